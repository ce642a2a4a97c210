/*
Package quad generates the 2×2 tile patterns used as the fundamental
dithering unit.

For an N-color palette the candidate set is one solid quad per color plus,
for every unordered color pair, two checkerboards, a horizontal split and a
vertical split. Candidates are then deduplicated by their integer-rounded
average Lab value, which bounds the search space for large palettes; the
first pattern generated for a bucket is the one kept, so checkerboards win
over splits with the same average.
*/
package quad

import (
	"image/color"
	"math"

	"github.com/bodgit/quadtile/colorspace"
	"github.com/bodgit/quadtile/palette"
)

// Cell order within a quad.
const (
	TopLeft = iota
	TopRight
	BottomLeft
	BottomRight
)

// Quad is a 2×2 arrangement of palette colors with its per-cell Lab values
// and their precomputed arithmetic mean.
type Quad struct {
	Colors  [4]color.RGBA
	Cells   [4]colorspace.Lab
	Average colorspace.Lab
}

// Solid reports whether all four cells share one color.
func (q Quad) Solid() bool {
	return q.Colors[0] == q.Colors[1] && q.Colors[1] == q.Colors[2] && q.Colors[2] == q.Colors[3]
}

func build(colors [4]color.RGBA, labs [4]colorspace.Lab) Quad {
	return Quad{
		Colors: colors,
		Cells:  labs,
		Average: colorspace.Lab{
			L: (labs[0].L + labs[1].L + labs[2].L + labs[3].L) / 4,
			A: (labs[0].A + labs[1].A + labs[2].A + labs[3].A) / 4,
			B: (labs[0].B + labs[1].B + labs[2].B + labs[3].B) / 4,
		},
	}
}

type bucket [3]int

func bucketOf(l colorspace.Lab) bucket {
	return bucket{
		int(math.Round(l.L)),
		int(math.Round(l.A)),
		int(math.Round(l.B)),
	}
}

// Generate produces the deduplicated candidate quad set for a palette.
func Generate(p palette.Palette) []Quad {
	labs := p.Lab()

	candidates := make([]Quad, 0, len(p)+2*len(p)*len(p))
	for i := range p {
		candidates = append(candidates, build(
			[4]color.RGBA{p[i], p[i], p[i], p[i]},
			[4]colorspace.Lab{labs[i], labs[i], labs[i], labs[i]},
		))
	}
	for i := 0; i < len(p); i++ {
		for j := i + 1; j < len(p); j++ {
			candidates = append(candidates,
				build(
					[4]color.RGBA{p[i], p[j], p[j], p[i]},
					[4]colorspace.Lab{labs[i], labs[j], labs[j], labs[i]},
				),
				build(
					[4]color.RGBA{p[j], p[i], p[i], p[j]},
					[4]colorspace.Lab{labs[j], labs[i], labs[i], labs[j]},
				),
				build(
					[4]color.RGBA{p[i], p[i], p[j], p[j]},
					[4]colorspace.Lab{labs[i], labs[i], labs[j], labs[j]},
				),
				build(
					[4]color.RGBA{p[i], p[j], p[i], p[j]},
					[4]colorspace.Lab{labs[i], labs[j], labs[i], labs[j]},
				),
			)
		}
	}

	// One representative per rounded average; first generated wins.
	seen := make(map[bucket]struct{}, len(candidates))
	out := make([]Quad, 0, len(candidates))
	for _, q := range candidates {
		b := bucketOf(q.Average)
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, q)
	}
	return out
}

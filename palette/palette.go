/*
Package palette builds fixed color palettes from images.

The primary builder runs Lloyd's k-means over a sample of the image in Lab
space and snaps the resulting centroids back onto real image colors, so a
generated palette never contains a color the image does not. An existing
palette can be refined against a full Lab grid, and a median-cut builder is
available as a cheaper alternative seed.
*/
package palette

import (
	"errors"
	"image"
	"image/color"
	"math/rand"
	"runtime"
	"sync"

	"github.com/bodgit/quadtile/colorspace"
	"github.com/ericpauley/go-quantize/quantize"
)

// ErrNoOpaquePixels is returned by Generate when the sampled image contains
// no opaque pixels to build a palette from.
var ErrNoOpaquePixels = errors.New("palette: image has no opaque pixels")

// Centroid movement below this squared distance counts as converged.
const convergence = 1e-6

// Alpha values above this are treated as opaque.
const opaqueThreshold = 128

// Palette is an ordered set of unique colors.
type Palette []color.RGBA

// Lab converts every palette entry to Lab.
func (p Palette) Lab() []colorspace.Lab {
	labs := make([]colorspace.Lab, len(p))
	for i, c := range p {
		labs[i] = colorspace.ToLab(c)
	}
	return labs
}

// Index returns the position of c in the palette, or -1.
func (p Palette) Index(c color.RGBA) int {
	for i, pc := range p {
		if pc == c {
			return i
		}
	}
	return -1
}

func dedup(in []color.RGBA) Palette {
	seen := make(map[color.RGBA]struct{}, len(in))
	out := make(Palette, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func rgbaAt(m image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(m.At(x, y)).(color.RGBA)
}

// samplePixels gathers the pixels k-means will cluster. Small images are
// used whole; larger ones are sampled with replacement, silently skipping
// any transparent draw.
func samplePixels(m image.Image, sampleSize int) []color.RGBA {
	b := m.Bounds()

	opaque := make([]color.RGBA, 0, sampleSize)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if c := rgbaAt(m, x, y); c.A > opaqueThreshold {
				opaque = append(opaque, c)
			}
		}
	}

	if len(opaque) <= sampleSize {
		return opaque
	}

	samples := make([]color.RGBA, 0, sampleSize)
	for i := 0; i < sampleSize; i++ {
		x := b.Min.X + rand.Intn(b.Dx())
		y := b.Min.Y + rand.Intn(b.Dy())
		if c := rgbaAt(m, x, y); c.A > opaqueThreshold {
			samples = append(samples, c)
		}
	}
	return samples
}

// assign writes the index of the nearest centroid for every point. Points
// are sharded across the available CPUs; each worker reads the shared
// centroids and writes a disjoint range of assignments.
func assign(points, centroids []colorspace.Lab, assignments []int) {
	workers := runtime.NumCPU()
	chunk := (len(points) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		if lo >= len(points) {
			break
		}
		hi := lo + chunk
		if hi > len(points) {
			hi = len(points)
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				best, bestDist := 0, colorspace.DistanceSquared(points[i], centroids[0])
				for j := 1; j < len(centroids); j++ {
					if d := colorspace.DistanceSquared(points[i], centroids[j]); d < bestDist {
						best, bestDist = j, d
					}
				}
				assignments[i] = best
			}
		}(lo, hi)
	}
	wg.Wait()
}

// lloyd iterates assignment and centroid recomputation in place until no
// centroid moves more than the convergence threshold or maxIterations is
// reached. Empty clusters are reseeded from a random point.
func lloyd(points, centroids []colorspace.Lab, maxIterations int) {
	assignments := make([]int, len(points))
	sums := make([][3]float64, len(centroids))
	counts := make([]int, len(centroids))

	for iter := 0; iter < maxIterations; iter++ {
		assign(points, centroids, assignments)

		for i := range centroids {
			sums[i] = [3]float64{}
			counts[i] = 0
		}
		for i, a := range assignments {
			sums[a][0] += points[i].L
			sums[a][1] += points[i].A
			sums[a][2] += points[i].B
			counts[a]++
		}

		changed := false
		for i := range centroids {
			if counts[i] == 0 {
				centroids[i] = points[rand.Intn(len(points))]
				changed = true
				continue
			}
			n := float64(counts[i])
			next := colorspace.Lab{
				L: sums[i][0] / n,
				A: sums[i][1] / n,
				B: sums[i][2] / n,
			}
			if colorspace.DistanceSquared(centroids[i], next) > convergence {
				changed = true
			}
			centroids[i] = next
		}

		if !changed {
			break
		}
	}
}

// Generate builds a palette of at most colorCount colors from m by k-means
// clustering a sample of up to sampleSize opaque pixels in Lab space. Every
// returned color is a real pixel color from the sample.
func Generate(m image.Image, colorCount, maxIterations, sampleSize int) (Palette, error) {
	samples := samplePixels(m, sampleSize)
	if len(samples) == 0 {
		return nil, ErrNoOpaquePixels
	}

	distinct := dedup(samples)
	if len(distinct) <= colorCount {
		return distinct, nil
	}

	points := make([]colorspace.Lab, len(samples))
	for i, c := range samples {
		points[i] = colorspace.ToLab(c)
	}

	// Seed centroids from distinct random sample indices.
	centroids := make([]colorspace.Lab, 0, colorCount)
	picked := make(map[int]struct{}, colorCount)
	for len(centroids) < colorCount {
		i := rand.Intn(len(samples))
		if _, ok := picked[i]; ok {
			continue
		}
		picked[i] = struct{}{}
		centroids = append(centroids, points[i])
	}

	lloyd(points, centroids, maxIterations)

	// Snap each centroid to the nearest real sampled color so the palette
	// never contains a synthetic average.
	out := make([]color.RGBA, 0, len(centroids))
	for _, c := range centroids {
		best, bestDist := 0, colorspace.DistanceSquared(c, points[0])
		for i := 1; i < len(points); i++ {
			if d := colorspace.DistanceSquared(c, points[i]); d < bestDist {
				best, bestDist = i, d
			}
		}
		out = append(out, samples[best])
	}

	return dedup(out), nil
}

// Refine runs k-means over a full Lab grid using an existing palette as the
// initial centroids and returns the converged centroids as colors. Unlike
// Generate the result is not snapped to real pixels.
func Refine(grid []colorspace.Lab, initial Palette, maxIterations int) Palette {
	if len(initial) == 0 || len(grid) == 0 || maxIterations < 1 {
		return initial
	}

	centroids := initial.Lab()
	lloyd(grid, centroids, maxIterations)

	out := make([]color.RGBA, 0, len(centroids))
	for _, c := range centroids {
		out = append(out, colorspace.ToColor(c))
	}
	return dedup(out)
}

// MedianCut builds a palette of at most colorCount colors using median-cut
// quantization instead of k-means.
func MedianCut(m image.Image, colorCount int) Palette {
	q := quantize.MedianCutQuantizer{}
	p := q.Quantize(make(color.Palette, 0, colorCount), m)

	out := make([]color.RGBA, 0, len(p))
	for _, c := range p {
		out = append(out, color.RGBAModel.Convert(c).(color.RGBA))
	}
	return dedup(out)
}

// Parse converts a list of "#rrggbb" or "rrggbb" strings into a palette.
func Parse(hex []string) (Palette, error) {
	out := make([]color.RGBA, 0, len(hex))
	for _, h := range hex {
		if len(h) > 0 && h[0] == '#' {
			h = h[1:]
		}
		if len(h) != 6 {
			return nil, errors.New("palette: colors must be 6 hex digits")
		}
		var c color.RGBA
		c.A = 0xff
		for i, p := range []*uint8{&c.R, &c.G, &c.B} {
			v, err := parseHexByte(h[i*2 : i*2+2])
			if err != nil {
				return nil, err
			}
			*p = v
		}
		out = append(out, c)
	}
	return dedup(out), nil
}

func parseHexByte(s string) (uint8, error) {
	var v uint8
	for i := 0; i < 2; i++ {
		v <<= 4
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			v |= c - '0'
		case c >= 'a' && c <= 'f':
			v |= c - 'a' + 10
		case c >= 'A' && c <= 'F':
			v |= c - 'A' + 10
		default:
			return 0, errors.New("palette: invalid hex digit")
		}
	}
	return v, nil
}

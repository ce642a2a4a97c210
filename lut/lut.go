/*
Package lut builds discretized 3D lookup tables over Lab space.

A table maps every cell of a fine grid spanning the nominal Lab bounding box
(L 0–100, a and b -120–120) to the index of the best candidate for that
cell, scored by squared Lab distance plus warmth and grayscale penalties.
Quad tables use a coarse acceleration grid so each fine cell only scans a
local neighborhood of candidates instead of the whole set; palette tables
scan directly since palettes are small. Lookups clamp into the bounding box
and are O(1).
*/
package lut

import (
	"math"
	"runtime"
	"sync"

	"github.com/bodgit/quadtile/colorspace"
	"github.com/bodgit/quadtile/palette"
	"github.com/bodgit/quadtile/quad"
)

// DefaultResolution is the fine grid resolution per axis.
const DefaultResolution = 128

const coarseResolution = 16

// Lab bounding box shared by the fine and coarse grids.
const (
	lMin, lMax   = 0.0, 100.0
	abMin, abMax = -120.0, 120.0
)

// Penalties only apply to near-neutral targets; saturated targets are
// matched on distance alone.
const (
	warmthChromaCutoff    = 25.0
	grayscaleChromaCutoff = 10.0
)

// Table is a read-only fine-grid lookup table.
type Table struct {
	resolution int
	cells      []int32
}

// Resolution returns the per-axis cell count.
func (t *Table) Resolution() int {
	return t.resolution
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func bin(v, min, max float64, resolution int) int {
	i := int((clamp(v, min, max) - min) / (max - min) * float64(resolution))
	if i >= resolution {
		i = resolution - 1
	}
	return i
}

// Lookup returns the stored candidate index for a Lab coordinate. Out of
// range coordinates are clamped, never rejected.
func (t *Table) Lookup(l colorspace.Lab) int {
	li := bin(l.L, lMin, lMax, t.resolution)
	ai := bin(l.A, abMin, abMax, t.resolution)
	bi := bin(l.B, abMin, abMax, t.resolution)
	return int(t.cells[(li*t.resolution+ai)*t.resolution+bi])
}

func cellCenter(resolution, li, ai, bi int) colorspace.Lab {
	return colorspace.Lab{
		L: lMin + (float64(li)+0.5)*(lMax-lMin)/float64(resolution),
		A: abMin + (float64(ai)+0.5)*(abMax-abMin)/float64(resolution),
		B: abMin + (float64(bi)+0.5)*(abMax-abMin)/float64(resolution),
	}
}

func warmthPenalty(target, candidate colorspace.Lab, strength float64) float64 {
	if colorspace.Chroma(target) > warmthChromaCutoff {
		return 0
	}
	d := target.B - candidate.B
	return strength * d * d
}

func grayscalePenalty(target, candidate colorspace.Lab, strength float64) float64 {
	if colorspace.Chroma(target) > grayscaleChromaCutoff {
		return 0
	}
	c := colorspace.Chroma(candidate)
	return strength * c * c
}

func score(target, candidate colorspace.Lab, warmth, grayscale float64) float64 {
	return colorspace.DistanceSquared(target, candidate) +
		warmthPenalty(target, candidate, warmth) +
		grayscalePenalty(target, candidate, grayscale)
}

// fill populates every fine cell from bestFor, sharding L-slices across the
// available CPUs. Each worker writes a disjoint range of cells.
func fill(resolution int, bestFor func(colorspace.Lab) int32) []int32 {
	cells := make([]int32, resolution*resolution*resolution)

	workers := runtime.NumCPU()
	chunk := (resolution + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		if lo >= resolution {
			break
		}
		hi := lo + chunk
		if hi > resolution {
			hi = resolution
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for li := lo; li < hi; li++ {
				for ai := 0; ai < resolution; ai++ {
					for bi := 0; bi < resolution; bi++ {
						cells[(li*resolution+ai)*resolution+bi] = bestFor(cellCenter(resolution, li, ai, bi))
					}
				}
			}
		}(lo, hi)
	}
	wg.Wait()

	return cells
}

// coarseGrid buckets candidate indices by the coarse cell of their Lab
// position.
type coarseGrid struct {
	buckets [coarseResolution * coarseResolution * coarseResolution][]int32
}

func coarseCell(l colorspace.Lab) (int, int, int) {
	return bin(l.L, lMin, lMax, coarseResolution),
		bin(l.A, abMin, abMax, coarseResolution),
		bin(l.B, abMin, abMax, coarseResolution)
}

func (g *coarseGrid) add(i int32, l colorspace.Lab) {
	li, ai, bi := coarseCell(l)
	idx := (li*coarseResolution+ai)*coarseResolution + bi
	g.buckets[idx] = append(g.buckets[idx], i)
}

// scan finds the lowest-scoring candidate near a target, starting with the
// 3×3×3 coarse block around it and widening one ring at a time until any
// candidate appears. Each ring only visits its new shell of cells; the
// best candidate accumulates across rings so the result is the minimum
// over the whole block searched so far. Ties keep the first candidate in
// scan order.
func (g *coarseGrid) scan(target colorspace.Lab, positions []colorspace.Lab, warmth, grayscale float64) int32 {
	cl, ca, cb := coarseCell(target)

	best, bestScore := int32(-1), math.MaxFloat64
	bucket := func(li, ai, bi int) {
		for _, i := range g.buckets[(li*coarseResolution+ai)*coarseResolution+bi] {
			if s := score(target, positions[i], warmth, grayscale); s < bestScore {
				best, bestScore = i, s
			}
		}
	}

	for r := 0; r < coarseResolution; r++ {
		for li := maxInt(cl-r, 0); li <= minInt(cl+r, coarseResolution-1); li++ {
			for ai := maxInt(ca-r, 0); ai <= minInt(ca+r, coarseResolution-1); ai++ {
				if absInt(li-cl) < r && absInt(ai-ca) < r {
					// Interior row: only the two boundary
					// cells are new at this radius.
					if cb-r >= 0 {
						bucket(li, ai, cb-r)
					}
					if cb+r < coarseResolution {
						bucket(li, ai, cb+r)
					}
					continue
				}
				for bi := maxInt(cb-r, 0); bi <= minInt(cb+r, coarseResolution-1); bi++ {
					bucket(li, ai, bi)
				}
			}
		}

		// The 3×3×3 block is radii 0 and 1 together; never stop
		// before both are searched.
		if r >= 1 && best >= 0 {
			return best
		}
	}

	return best
}

// BuildQuad builds a lookup table from Lab cells to quad indices. The
// resolution defaults to DefaultResolution when non-positive.
func BuildQuad(quads []quad.Quad, warmth, grayscale float64, resolution int) *Table {
	if resolution <= 0 {
		resolution = DefaultResolution
	}

	positions := make([]colorspace.Lab, len(quads))
	grid := &coarseGrid{}
	for i, q := range quads {
		positions[i] = q.Average
		grid.add(int32(i), q.Average)
	}

	return &Table{
		resolution: resolution,
		cells: fill(resolution, func(target colorspace.Lab) int32 {
			return grid.scan(target, positions, warmth, grayscale)
		}),
	}
}

// BuildPalette builds a lookup table from Lab cells to palette color
// indices. Palettes are small enough to scan directly.
func BuildPalette(p palette.Palette, warmth, grayscale float64, resolution int) *Table {
	if resolution <= 0 {
		resolution = DefaultResolution
	}

	positions := p.Lab()

	return &Table{
		resolution: resolution,
		cells: fill(resolution, func(target colorspace.Lab) int32 {
			best, bestScore := int32(-1), math.MaxFloat64
			for i, pos := range positions {
				if s := score(target, pos, warmth, grayscale); s < bestScore {
					best, bestScore = int32(i), s
				}
			}
			return best
		}),
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

package quadtile

import (
	"image"
	"image/color"
	"runtime"
	"sync"

	"github.com/bodgit/quadtile/colorspace"
)

// grid is a rectangular array of straight-alpha colors. Alpha 0 marks a
// transparent cell that takes no part in quantization; any other value is
// treated as opaque.
type grid struct {
	w, h int
	pix  []color.RGBA
}

func newGrid(w, h int) *grid {
	return &grid{
		w:   w,
		h:   h,
		pix: make([]color.RGBA, w*h),
	}
}

func (g *grid) at(x, y int) color.RGBA {
	return g.pix[y*g.w+x]
}

func (g *grid) set(x, y int, c color.RGBA) {
	g.pix[y*g.w+x] = c
}

func (g *grid) clone() *grid {
	dup := newGrid(g.w, g.h)
	copy(dup.pix, g.pix)
	return dup
}

// image copies the grid into a straight-alpha stdlib image.
func (g *grid) image() *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, g.w, g.h))
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			m.SetNRGBA(x, y, color.NRGBA(g.at(x, y)))
		}
	}
	return m
}

// labGrid converts every opaque cell to Lab. Transparent cells keep the
// zero Lab value and are flagged in the mask.
func (g *grid) labGrid() ([]colorspace.Lab, []bool) {
	labs := make([]colorspace.Lab, len(g.pix))
	opaque := make([]bool, len(g.pix))
	for i, c := range g.pix {
		if c.A == 0 {
			continue
		}
		labs[i] = colorspace.ToLab(c)
		opaque[i] = true
	}
	return labs, opaque
}

// parallelRows runs fn for every row, sharding contiguous row ranges across
// the available CPUs. Each worker must only write cells in its own rows.
func parallelRows(h int, fn func(y int)) {
	workers := runtime.NumCPU()
	chunk := (h + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		if lo >= h {
			break
		}
		hi := lo + chunk
		if hi > h {
			hi = h
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for y := lo; y < hi; y++ {
				fn(y)
			}
		}(lo, hi)
	}
	wg.Wait()
}

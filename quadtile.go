/*
Package quadtile converts full-color images into a small fixed palette
rendered as upscaled 2×2 quad tiles, producing a perceptually close,
pixel-art-style reproduction.

The pipeline downscales the source with a transparency-aware box filter,
denoises it with an edge-preserving bilateral filter in Lab space, then
picks the nearest quad tile for every cell through a precomputed lookup
table. An optional darkened second pass is blended back in per cell by
luminance, with any interpolated color snapped onto the palette.
*/
package quadtile

import (
	"errors"
	"image"
	"io/ioutil"
	"log"

	"github.com/bodgit/quadtile/lut"
	"github.com/bodgit/quadtile/palette"
	"github.com/bodgit/quadtile/quad"
)

// ErrEmptyPalette is returned when conversion is attempted with no palette
// colors to draw from.
var ErrEmptyPalette = errors.New("quadtile: empty palette")

// Engine converts images according to a fixed configuration.
type Engine struct {
	config Config
	logger *log.Logger
}

// New creates an Engine. A nil logger discards all output.
func New(config Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(ioutil.Discard, "", 0)
	}
	return &Engine{
		config: config,
		logger: logger,
	}
}

// Palette returns the palette Convert would use for m: the configured one
// if set, otherwise one generated from the downscaled image.
func (e *Engine) Palette(m image.Image) (palette.Palette, error) {
	return e.buildPalette(downscale(m, e.factor()))
}

func (e *Engine) factor() int {
	if e.config.Factor < 1 {
		return 1
	}
	return e.config.Factor
}

func (e *Engine) buildPalette(ds *grid) (palette.Palette, error) {
	if len(e.config.Palette) > 0 {
		return e.config.Palette, nil
	}

	m := ds.image()

	var p palette.Palette
	switch e.config.PaletteMode {
	case PaletteMedianCut:
		p = palette.MedianCut(m, e.config.PaletteSize)
	default:
		var err error
		if p, err = palette.Generate(m, e.config.PaletteSize, e.config.PaletteIterations, e.config.SampleSize); err != nil {
			return nil, err
		}
	}

	if e.config.RefineIterations > 0 {
		labs, opaque := ds.labGrid()
		points := labs[:0:0]
		for i, l := range labs {
			if opaque[i] {
				points = append(points, l)
			}
		}
		p = palette.Refine(points, p, e.config.RefineIterations)
	}

	return p, nil
}

// Convert runs the full pipeline over m and returns the quantized image at
// twice the downscaled resolution. No partial output is produced on error.
func (e *Engine) Convert(m image.Image) (image.Image, error) {
	ds := downscale(m, e.factor())

	pal, err := e.buildPalette(ds)
	if err != nil {
		return nil, err
	}
	if len(pal) == 0 {
		return nil, ErrEmptyPalette
	}

	quads := quad.Generate(pal)
	e.logger.Printf("palette of %d colors, %d candidate quads\n", len(pal), len(quads))

	table := lut.BuildQuad(quads, e.config.WarmthStrength, e.config.GrayscaleStrength, e.config.Resolution)

	work := ds.clone()
	applyBias(work, e.config.LuminanceBias)
	out := e.render(work, quads, table)

	if !e.config.MultiPass {
		return out, nil
	}

	darkOut := e.render(e.darken(ds), quads, table)

	paletteTable := lut.BuildPalette(pal, e.config.WarmthStrength, e.config.GrayscaleStrength, e.config.Resolution)
	e.logger.Printf("blending dark pass, threshold %.1f range %.1f\n", e.config.DarknessThreshold, e.config.BlendRange)

	return blendPasses(ds, out, darkOut, pal, paletteTable, e.config.DarknessThreshold, e.config.BlendRange), nil
}

// darken prepares the second-pass input: a copy of the raw downscaled grid
// darkened by the fixed bias and then put through the same luminance
// preprocessing as the first pass. Clipping from the configured bias never
// leaks into the darkened copy.
func (e *Engine) darken(ds *grid) *grid {
	g := ds.clone()
	applyBias(g, darkPassBias)
	applyBias(g, e.config.LuminanceBias)
	return g
}

func (e *Engine) render(g *grid, quads []quad.Quad, table *lut.Table) *image.NRGBA {
	labs, opaque := g.labGrid()
	if e.config.Bilateral.Enabled {
		labs = bilateral(labs, opaque, g.w, g.h, e.config.Bilateral.Radius, e.config.Bilateral.SpatialSigma, e.config.Bilateral.ColorSigma)
	}
	return renderPass(labs, opaque, g.w, g.h, quads, table, e.config.CenterWeight, e.config.NeighborhoodSize)
}

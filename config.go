package quadtile

import (
	"github.com/bodgit/quadtile/lut"
	"github.com/bodgit/quadtile/palette"
)

// PaletteMode selects how a palette is generated when one is not supplied.
type PaletteMode int

const (
	// PaletteKMeans clusters sampled pixels with k-means in Lab space.
	PaletteKMeans PaletteMode = iota
	// PaletteMedianCut uses median-cut quantization.
	PaletteMedianCut
)

// BilateralConfig controls the edge-preserving pre-filter.
type BilateralConfig struct {
	Enabled      bool
	Radius       int
	SpatialSigma float64
	ColorSigma   float64
}

// Config holds every option the engine recognizes. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	// Palette, when non-empty, is used as-is and generation is skipped.
	Palette palette.Palette

	PaletteMode       PaletteMode
	PaletteSize       int
	PaletteIterations int
	// RefineIterations, when positive, polishes the generated palette
	// against the full downscaled Lab grid.
	RefineIterations int
	SampleSize       int

	// Factor is the integer box-downscale factor, at least 1.
	Factor int

	// CenterWeight balances a pixel against its neighborhood mean when
	// choosing a quad; 1.0 ignores the neighborhood entirely.
	CenterWeight float64
	// LuminanceBias scales each channel by 1+bias before filtering.
	LuminanceBias    float64
	NeighborhoodSize int

	// MultiPass enables the darkened second pass and the perceptual
	// blend between the two passes.
	MultiPass         bool
	DarknessThreshold float64
	BlendRange        float64

	Bilateral BilateralConfig

	WarmthStrength    float64
	GrayscaleStrength float64

	// Resolution is the per-axis lookup table resolution; zero means
	// lut.DefaultResolution.
	Resolution int
}

// DefaultConfig returns the recommended starting configuration.
func DefaultConfig() Config {
	return Config{
		PaletteMode:       PaletteKMeans,
		PaletteSize:       32,
		PaletteIterations: 16,
		SampleSize:        4096,
		Factor:            4,
		CenterWeight:      0.6,
		NeighborhoodSize:  1,
		DarknessThreshold: 30,
		BlendRange:        15,
		Bilateral: BilateralConfig{
			Enabled:      true,
			Radius:       2,
			SpatialSigma: 1.5,
			ColorSigma:   8,
		},
		WarmthStrength:    0.5,
		GrayscaleStrength: 0.5,
		Resolution:        lut.DefaultResolution,
	}
}

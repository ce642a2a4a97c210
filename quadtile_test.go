package quadtile

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodgit/quadtile/palette"
)

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetNRGBA(x, y, c)
		}
	}
	return m
}

func TestConvertSolidRed(t *testing.T) {
	config := DefaultConfig()
	config.Palette = palette.Palette{
		{0xff, 0x00, 0x00, 0xff},
		{0x00, 0x00, 0x00, 0xff},
	}
	config.Resolution = 32
	config.Factor = 1
	config.CenterWeight = 1.0
	config.Bilateral.Enabled = false
	config.MultiPass = false

	m := solidImage(4, 4, color.NRGBA{0xff, 0x00, 0x00, 0xff})

	out, err := New(config, nil).Convert(m)
	require.NoError(t, err)

	b := out.Bounds()
	require.Equal(t, 8, b.Dx())
	require.Equal(t, 8, b.Dy())

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			assert.Equal(t, color.NRGBA{0xff, 0x00, 0x00, 0xff}, out.(*image.NRGBA).NRGBAAt(x, y), "pixel %d,%d", x, y)
		}
	}
}

func TestConvertTransparent(t *testing.T) {
	config := DefaultConfig()
	config.Palette = palette.Palette{
		{0xff, 0x00, 0x00, 0xff},
		{0x00, 0x00, 0x00, 0xff},
	}
	config.Resolution = 32
	config.Factor = 1
	config.MultiPass = true

	m := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	out, err := New(config, nil).Convert(m)
	require.NoError(t, err)

	b := out.Bounds()
	require.Equal(t, 8, b.Dx())
	require.Equal(t, 8, b.Dy())

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			_, _, _, a := out.At(x, y).RGBA()
			assert.Equal(t, uint32(0), a, "pixel %d,%d", x, y)
		}
	}
}

func TestConvertNoOpaquePixels(t *testing.T) {
	config := DefaultConfig()
	config.Resolution = 32
	config.Factor = 1

	_, err := New(config, nil).Convert(image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	assert.Equal(t, palette.ErrNoOpaquePixels, err)
}

func TestConvertMultiPassStaysOnPalette(t *testing.T) {
	config := DefaultConfig()
	config.Palette = palette.Palette{
		{0x00, 0x00, 0x00, 0xff},
		{0x55, 0x55, 0x55, 0xff},
		{0xaa, 0xaa, 0xaa, 0xff},
		{0xff, 0xff, 0xff, 0xff},
	}
	config.Resolution = 32
	config.Factor = 2
	config.MultiPass = true
	config.DarknessThreshold = 40
	config.BlendRange = 20
	config.Bilateral.Enabled = false

	// A vertical gradient crossing the blend range so all three blend
	// branches are exercised.
	m := image.NewNRGBA(image.Rect(0, 0, 8, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 8; x++ {
			v := uint8(y * 16)
			m.SetNRGBA(x, y, color.NRGBA{v, v, v, 0xff})
		}
	}

	out, err := New(config, nil).Convert(m)
	require.NoError(t, err)

	allowed := make(map[color.NRGBA]struct{})
	for _, c := range config.Palette {
		allowed[color.NRGBA(c)] = struct{}{}
	}

	b := out.Bounds()
	require.Equal(t, 8, b.Dx())
	require.Equal(t, 16, b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := out.(*image.NRGBA).NRGBAAt(x, y)
			_, ok := allowed[c]
			assert.True(t, ok, "off-palette color %v at %d,%d", c, x, y)
		}
	}
}

func TestConvertGeneratedPalette(t *testing.T) {
	config := DefaultConfig()
	config.Resolution = 32
	config.Factor = 1
	config.PaletteSize = 4
	config.Bilateral.Enabled = false

	m := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if (x+y)%2 == 0 {
				m.SetNRGBA(x, y, color.NRGBA{0xff, 0x00, 0x00, 0xff})
			} else {
				m.SetNRGBA(x, y, color.NRGBA{0x00, 0x00, 0xff, 0xff})
			}
		}
	}

	out, err := New(config, nil).Convert(m)
	require.NoError(t, err)
	assert.Equal(t, 16, out.Bounds().Dx())

	// Two distinct colors short-circuit palette generation; every
	// output pixel is one of them.
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			c := out.(*image.NRGBA).NRGBAAt(x, y)
			ok := c == color.NRGBA{0xff, 0x00, 0x00, 0xff} || c == color.NRGBA{0x00, 0x00, 0xff, 0xff}
			assert.True(t, ok, "unexpected color %v at %d,%d", c, x, y)
		}
	}
}

func TestEnginePalette(t *testing.T) {
	config := DefaultConfig()
	config.Resolution = 32
	config.Factor = 1

	m := solidImage(4, 4, color.NRGBA{0x12, 0x34, 0x56, 0xff})

	p, err := New(config, nil).Palette(m)
	require.NoError(t, err)
	assert.Equal(t, palette.Palette{{0x12, 0x34, 0x56, 0xff}}, p)
}

func TestDarkenFromUnbiasedGrid(t *testing.T) {
	config := DefaultConfig()
	config.LuminanceBias = 0.5

	g := newGrid(1, 1)
	g.set(0, 0, color.RGBA{200, 200, 200, 0xff})

	// Darkening applies to the raw downscaled value before the
	// configured bias, so preprocessing clipping (200·1.5 → 255) does
	// not feed the dark pass: 200·0.75 = 150, then 150·1.5 = 225.
	d := New(config, nil).darken(g)
	assert.Equal(t, color.RGBA{225, 225, 225, 0xff}, d.at(0, 0))
}

func TestFactorFloor(t *testing.T) {
	config := DefaultConfig()
	config.Resolution = 32
	config.Factor = 0
	config.Palette = palette.Palette{{0xff, 0xff, 0xff, 0xff}}

	out, err := New(config, nil).Convert(solidImage(2, 2, color.NRGBA{0xff, 0xff, 0xff, 0xff}))
	require.NoError(t, err)
	assert.Equal(t, 4, out.Bounds().Dx())
}

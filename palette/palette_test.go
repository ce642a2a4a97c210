package palette

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int, colors []color.RGBA) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetNRGBA(x, y, color.NRGBA(colors[(y*w+x)%len(colors)]))
		}
	}
	return m
}

func TestGenerateShortCircuit(t *testing.T) {
	colors := []color.RGBA{
		{0xff, 0x00, 0x00, 0xff},
		{0x00, 0xff, 0x00, 0xff},
		{0x00, 0x00, 0xff, 0xff},
	}
	m := testImage(8, 8, colors)

	p, err := Generate(m, 16, 10, 1024)
	require.NoError(t, err)

	// Fewer distinct colors than requested; clustering is skipped and the
	// distinct colors come back as-is.
	assert.Len(t, p, 3)
	for _, c := range colors {
		assert.NotEqual(t, -1, p.Index(c))
	}
}

func TestGenerateOnlyRealColors(t *testing.T) {
	// 64 distinct colors clustered down to 8; all output colors must be
	// colors that exist in the image.
	colors := make([]color.RGBA, 64)
	for i := range colors {
		colors[i] = color.RGBA{uint8(i * 4), uint8(255 - i*4), uint8(i), 0xff}
	}
	m := testImage(8, 8, colors)

	p, err := Generate(m, 8, 20, 1024)
	require.NoError(t, err)
	require.NotEmpty(t, p)

	in := make(map[color.RGBA]struct{})
	for _, c := range colors {
		in[c] = struct{}{}
	}
	for _, c := range p {
		_, ok := in[c]
		assert.True(t, ok, "palette color %v not present in image", c)
	}
}

func TestGenerateNoDuplicates(t *testing.T) {
	colors := make([]color.RGBA, 32)
	for i := range colors {
		colors[i] = color.RGBA{uint8(i * 8), uint8(i * 8), uint8(i * 8), 0xff}
	}
	m := testImage(16, 16, colors)

	p, err := Generate(m, 6, 20, 1024)
	require.NoError(t, err)

	seen := make(map[color.RGBA]struct{})
	for _, c := range p {
		_, ok := seen[c]
		assert.False(t, ok, "duplicate palette color %v", c)
		seen[c] = struct{}{}
	}
}

func TestGenerateTransparentOnly(t *testing.T) {
	m := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	_, err := Generate(m, 8, 10, 1024)
	assert.Equal(t, ErrNoOpaquePixels, err)
}

func TestGenerateSkipsTransparentPixels(t *testing.T) {
	m := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if x < 2 {
				m.SetNRGBA(x, y, color.NRGBA{0xff, 0x00, 0x00, 0xff})
			}
		}
	}

	p, err := Generate(m, 8, 10, 1024)
	require.NoError(t, err)
	assert.Equal(t, Palette{{0xff, 0x00, 0x00, 0xff}}, p)
}

func TestRefine(t *testing.T) {
	grid := Palette{
		{0x10, 0x10, 0x10, 0xff},
		{0x12, 0x12, 0x12, 0xff},
		{0xe0, 0xe0, 0xe0, 0xff},
		{0xe2, 0xe2, 0xe2, 0xff},
	}.Lab()
	initial := Palette{
		{0x00, 0x00, 0x00, 0xff},
		{0xff, 0xff, 0xff, 0xff},
	}

	p := Refine(grid, initial, 10)
	require.Len(t, p, 2)

	// Centroids migrate toward the dark and light pixel groups.
	assert.True(t, p[0].R > 0x00 && p[0].R < 0x40)
	assert.True(t, p[1].R > 0xc0 && p[1].R < 0xff)
}

func TestRefineEmptyInputs(t *testing.T) {
	initial := Palette{{0xff, 0x00, 0x00, 0xff}}
	assert.Equal(t, initial, Refine(nil, initial, 10))
	assert.Empty(t, Refine(initial.Lab(), nil, 10))
}

func TestMedianCut(t *testing.T) {
	colors := make([]color.RGBA, 64)
	for i := range colors {
		colors[i] = color.RGBA{uint8(i * 4), uint8(i * 2), uint8(i), 0xff}
	}
	m := testImage(8, 8, colors)

	p := MedianCut(m, 8)
	assert.NotEmpty(t, p)
	assert.True(t, len(p) <= 8)
}

func TestParse(t *testing.T) {
	p, err := Parse([]string{"#ff0000", "00FF00", "#0000ff", "#ff0000"})
	require.NoError(t, err)
	assert.Equal(t, Palette{
		{0xff, 0x00, 0x00, 0xff},
		{0x00, 0xff, 0x00, 0xff},
		{0x00, 0x00, 0xff, 0xff},
	}, p)

	_, err = Parse([]string{"nope"})
	assert.Error(t, err)

	_, err = Parse([]string{"zzzzzz"})
	assert.Error(t, err)
}

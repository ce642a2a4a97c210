package quadtile

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodgit/quadtile/palette"
)

func tempDB(t *testing.T) (*PaletteDB, func()) {
	dir, err := ioutil.TempDir("", "quadtile")
	require.NoError(t, err)

	db, err := NewPaletteDB(filepath.Join(dir, "test.db"))
	require.NoError(t, err)

	return db, func() {
		db.Close()
		os.RemoveAll(dir)
	}
}

func TestPaletteDBRoundTrip(t *testing.T) {
	db, done := tempDB(t)
	defer done()

	p := palette.Palette{
		{0xff, 0x00, 0x00, 0xff},
		{0x00, 0xff, 0x00, 0xff},
	}
	require.NoError(t, db.Save("primary", p))

	got, err := db.Palette("primary")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	missing, err := db.Palette("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPaletteDBReplace(t *testing.T) {
	db, done := tempDB(t)
	defer done()

	require.NoError(t, db.Save("p", palette.Palette{{0x01, 0x02, 0x03, 0xff}}))
	require.NoError(t, db.Save("p", palette.Palette{{0x04, 0x05, 0x06, 0xff}}))

	got, err := db.Palette("p")
	require.NoError(t, err)
	assert.Equal(t, palette.Palette{{0x04, 0x05, 0x06, 0xff}}, got)
}

func TestPaletteDBNames(t *testing.T) {
	db, done := tempDB(t)
	defer done()

	require.NoError(t, db.Save("a", palette.Palette{{0, 0, 0, 0xff}}))
	require.NoError(t, db.Save("b", palette.Palette{{0, 0, 0, 0xff}, {0xff, 0xff, 0xff, 0xff}}))

	names, err := db.Names()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, names)
}

func TestPaletteDBGenerated(t *testing.T) {
	db, done := tempDB(t)
	defer done()

	const sha = "DA39A3EE5E6B4B0D3255BFEF95601890AFD80709"

	missing, err := db.Generated(sha)
	require.NoError(t, err)
	assert.Nil(t, missing)

	p := palette.Palette{{0x10, 0x20, 0x30, 0xff}}
	require.NoError(t, db.AddGenerated(sha, p))

	got, err := db.Generated(sha)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestPaletteDBEmptyPalette(t *testing.T) {
	db, done := tempDB(t)
	defer done()

	assert.Equal(t, ErrEmptyPalette, db.Save("empty", nil))
	assert.Equal(t, ErrEmptyPalette, db.AddGenerated("whatever", nil))
}

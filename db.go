package quadtile

import (
	"database/sql"
	"errors"
	"fmt"
	"image/color"

	"github.com/bodgit/quadtile/palette"
	_ "github.com/mattn/go-sqlite3"
)

// PaletteDB is a sqlite-backed store of named palettes plus a cache of
// generated palettes keyed by the SHA-1 of their source image.
type PaletteDB struct {
	db *sql.DB
}

// NewPaletteDB opens or creates a palette database at file.
func NewPaletteDB(file string) (*PaletteDB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", file))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS palette (id INTEGER PRIMARY KEY NOT NULL, name TEXT NOT NULL UNIQUE, colors BLOB NOT NULL)"); err != nil {
		return nil, err
	}

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS generated (sha1 TEXT NOT NULL UNIQUE, colors BLOB NOT NULL)"); err != nil {
		return nil, err
	}

	return &PaletteDB{
		db: db,
	}, nil
}

func (db *PaletteDB) Close() error {
	return db.db.Close()
}

func marshalColors(p palette.Palette) []byte {
	b := make([]byte, 0, len(p)*4)
	for _, c := range p {
		b = append(b, c.R, c.G, c.B, c.A)
	}
	return b
}

func unmarshalColors(b []byte) (palette.Palette, error) {
	if len(b)%4 != 0 {
		return nil, errors.New("quadtile: malformed palette blob")
	}
	p := make(palette.Palette, 0, len(b)/4)
	for i := 0; i < len(b); i += 4 {
		p = append(p, color.RGBA{b[i], b[i+1], b[i+2], b[i+3]})
	}
	return p, nil
}

// Save stores a palette under a name, replacing any existing palette with
// the same name.
func (db *PaletteDB) Save(name string, p palette.Palette) error {
	if len(p) == 0 {
		return ErrEmptyPalette
	}
	if _, err := db.db.Exec("INSERT OR REPLACE INTO palette (name, colors) VALUES (?, ?)", name, marshalColors(p)); err != nil {
		return err
	}
	return nil
}

// Palette returns the named palette, or nil if it does not exist.
func (db *PaletteDB) Palette(name string) (palette.Palette, error) {
	var b []byte
	switch err := db.db.QueryRow("SELECT colors FROM palette WHERE name = ?", name).Scan(&b); err {
	case sql.ErrNoRows:
		return nil, nil
	case nil:
		return unmarshalColors(b)
	default:
		return nil, err
	}
}

// Names lists every stored palette name with its color count.
func (db *PaletteDB) Names() (map[string]int, error) {
	rows, err := db.db.Query("SELECT name, length(colors) FROM palette ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]int)
	for rows.Next() {
		var name string
		var length int
		if err := rows.Scan(&name, &length); err != nil {
			return nil, err
		}
		names[name] = length / 4
	}
	return names, rows.Err()
}

// Generated returns the cached palette for a source image SHA-1, or nil.
func (db *PaletteDB) Generated(sha string) (palette.Palette, error) {
	var b []byte
	switch err := db.db.QueryRow("SELECT colors FROM generated WHERE sha1 = ?", sha).Scan(&b); err {
	case sql.ErrNoRows:
		return nil, nil
	case nil:
		return unmarshalColors(b)
	default:
		return nil, err
	}
}

// AddGenerated caches a generated palette against its source image SHA-1.
func (db *PaletteDB) AddGenerated(sha string, p palette.Palette) error {
	if len(p) == 0 {
		return ErrEmptyPalette
	}
	if _, err := db.db.Exec("INSERT OR REPLACE INTO generated (sha1, colors) VALUES (?, ?)", sha, marshalColors(p)); err != nil {
		return err
	}
	return nil
}

package main

import (
	"crypto/sha1"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/quadtile"
	"github.com/bodgit/quadtile/palette"
	"github.com/urfave/cli/v2"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

const defaultDB = "quadtile.db"

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:  "version, V",
		Usage: "print the version",
	}
}

func newLogger(c *cli.Context) *log.Logger {
	logger := log.New(ioutil.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(os.Stderr)
	}
	return logger
}

func decode(file string) (image.Image, string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	h := sha1.New()
	m, _, err := image.Decode(io.TeeReader(f, h))
	if err != nil {
		return nil, "", err
	}

	return m, fmt.Sprintf("%X", h.Sum(nil)), nil
}

func configFromFlags(c *cli.Context) (quadtile.Config, error) {
	config := quadtile.DefaultConfig()

	if colors := c.String("colors"); colors != "" {
		p, err := palette.Parse(strings.Split(colors, ","))
		if err != nil {
			return config, err
		}
		config.Palette = p
	} else if name := c.String("palette"); name != "" {
		db, err := quadtile.NewPaletteDB(c.String("db"))
		if err != nil {
			return config, err
		}
		defer db.Close()

		p, err := db.Palette(name)
		if err != nil {
			return config, err
		}
		if p == nil {
			return config, fmt.Errorf("no palette named \"%s\"", name)
		}
		config.Palette = p
	}

	if c.String("palette-mode") == "mediancut" {
		config.PaletteMode = quadtile.PaletteMedianCut
	}

	config.PaletteSize = c.Int("palette-size")
	config.PaletteIterations = c.Int("iterations")
	config.RefineIterations = c.Int("refine")
	config.SampleSize = c.Int("sample-size")
	config.Factor = c.Int("factor")
	config.CenterWeight = c.Float64("center-weight")
	config.LuminanceBias = c.Float64("luminance-bias")
	config.NeighborhoodSize = c.Int("neighborhood")
	config.MultiPass = c.Bool("multi-pass")
	config.DarknessThreshold = c.Float64("darkness-threshold")
	config.BlendRange = c.Float64("blend-range")
	config.Bilateral.Enabled = !c.Bool("no-filter")
	config.Bilateral.Radius = c.Int("filter-radius")
	config.Bilateral.SpatialSigma = c.Float64("spatial-sigma")
	config.Bilateral.ColorSigma = c.Float64("color-sigma")
	config.WarmthStrength = c.Float64("warmth")
	config.GrayscaleStrength = c.Float64("grayscale")

	return config, nil
}

func writePNG(file string, m image.Image) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()

	return png.Encode(f, m)
}

func main() {
	app := cli.NewApp()

	app.Name = "quadtile"
	app.Usage = "Quad-tile pixel art converter"
	app.Version = "1.0.0"

	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	defaults := quadtile.DefaultConfig()

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			EnvVars: []string{"QUADTILE_DB"},
			Value:   filepath.Join(cwd, defaultDB),
			Usage:   "path to palette database",
		},
		&cli.BoolFlag{
			Name:  "verbose, v",
			Usage: "increase verbosity",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:      "convert",
			Usage:     "Convert an image to quad-tile pixel art",
			ArgsUsage: "FILE",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "output, o",
					Usage: "output PNG path",
				},
				&cli.StringFlag{
					Name:  "colors",
					Usage: "comma-separated #rrggbb palette",
				},
				&cli.StringFlag{
					Name:  "palette",
					Usage: "named palette from the database",
				},
				&cli.StringFlag{
					Name:  "palette-mode",
					Value: "kmeans",
					Usage: "palette generation mode, kmeans or mediancut",
				},
				&cli.IntFlag{Name: "palette-size", Value: defaults.PaletteSize},
				&cli.IntFlag{Name: "iterations", Value: defaults.PaletteIterations},
				&cli.IntFlag{Name: "refine", Value: defaults.RefineIterations},
				&cli.IntFlag{Name: "sample-size", Value: defaults.SampleSize},
				&cli.IntFlag{Name: "factor", Value: defaults.Factor},
				&cli.Float64Flag{Name: "center-weight", Value: defaults.CenterWeight},
				&cli.Float64Flag{Name: "luminance-bias", Value: defaults.LuminanceBias},
				&cli.IntFlag{Name: "neighborhood", Value: defaults.NeighborhoodSize},
				&cli.BoolFlag{Name: "multi-pass"},
				&cli.Float64Flag{Name: "darkness-threshold", Value: defaults.DarknessThreshold},
				&cli.Float64Flag{Name: "blend-range", Value: defaults.BlendRange},
				&cli.BoolFlag{Name: "no-filter", Usage: "disable the bilateral filter"},
				&cli.IntFlag{Name: "filter-radius", Value: defaults.Bilateral.Radius},
				&cli.Float64Flag{Name: "spatial-sigma", Value: defaults.Bilateral.SpatialSigma},
				&cli.Float64Flag{Name: "color-sigma", Value: defaults.Bilateral.ColorSigma},
				&cli.Float64Flag{Name: "warmth", Value: defaults.WarmthStrength},
				&cli.Float64Flag{Name: "grayscale", Value: defaults.GrayscaleStrength},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				config, err := configFromFlags(c)
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				file := c.Args().First()
				m, _, err := decode(file)
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				out, err := quadtile.New(config, newLogger(c)).Convert(m)
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				target := c.String("output")
				if target == "" {
					target = strings.TrimSuffix(file, filepath.Ext(file)) + ".quad.png"
				}

				if err := writePNG(target, out); err != nil {
					return cli.NewExitError(err, 1)
				}

				return nil
			},
		},
		{
			Name:  "palette",
			Usage: "Manage stored palettes",
			Subcommands: []*cli.Command{
				{
					Name:      "generate",
					Usage:     "Generate a palette from an image and store it",
					ArgsUsage: "FILE NAME",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "palette-mode",
							Value: "kmeans",
						},
						&cli.IntFlag{Name: "palette-size", Value: defaults.PaletteSize},
						&cli.IntFlag{Name: "iterations", Value: defaults.PaletteIterations},
						&cli.IntFlag{Name: "refine", Value: defaults.RefineIterations},
						&cli.IntFlag{Name: "sample-size", Value: defaults.SampleSize},
						&cli.IntFlag{Name: "factor", Value: defaults.Factor},
					},
					Action: func(c *cli.Context) error {
						if c.NArg() < 2 {
							cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
						}

						logger := newLogger(c)

						db, err := quadtile.NewPaletteDB(c.String("db"))
						if err != nil {
							return cli.NewExitError(err, 1)
						}
						defer db.Close()

						m, sha, err := decode(c.Args().First())
						if err != nil {
							return cli.NewExitError(err, 1)
						}

						// Identical source images reuse the
						// cached palette rather than
						// re-clustering.
						p, err := db.Generated(sha)
						if err != nil {
							return cli.NewExitError(err, 1)
						}
						if p == nil {
							config, err := configFromFlags(c)
							if err != nil {
								return cli.NewExitError(err, 1)
							}

							if p, err = quadtile.New(config, logger).Palette(m); err != nil {
								return cli.NewExitError(err, 1)
							}

							if err := db.AddGenerated(sha, p); err != nil {
								return cli.NewExitError(err, 1)
							}
						} else {
							logger.Printf("reusing cached palette for %s\n", sha)
						}

						if err := db.Save(c.Args().Get(1), p); err != nil {
							return cli.NewExitError(err, 1)
						}

						return nil
					},
				},
				{
					Name:      "save",
					Usage:     "Store an explicit palette",
					ArgsUsage: "NAME COLORS",
					Action: func(c *cli.Context) error {
						if c.NArg() < 2 {
							cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
						}

						p, err := palette.Parse(strings.Split(c.Args().Get(1), ","))
						if err != nil {
							return cli.NewExitError(err, 1)
						}

						db, err := quadtile.NewPaletteDB(c.String("db"))
						if err != nil {
							return cli.NewExitError(err, 1)
						}
						defer db.Close()

						if err := db.Save(c.Args().First(), p); err != nil {
							return cli.NewExitError(err, 1)
						}

						return nil
					},
				},
				{
					Name:  "list",
					Usage: "List stored palettes",
					Action: func(c *cli.Context) error {
						db, err := quadtile.NewPaletteDB(c.String("db"))
						if err != nil {
							return cli.NewExitError(err, 1)
						}
						defer db.Close()

						names, err := db.Names()
						if err != nil {
							return cli.NewExitError(err, 1)
						}

						for name, count := range names {
							fmt.Printf("%s\t%d colors\n", name, count)
						}

						return nil
					},
				},
				{
					Name:      "show",
					Usage:     "Print a stored palette as hex colors",
					ArgsUsage: "NAME",
					Action: func(c *cli.Context) error {
						if c.NArg() < 1 {
							cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
						}

						db, err := quadtile.NewPaletteDB(c.String("db"))
						if err != nil {
							return cli.NewExitError(err, 1)
						}
						defer db.Close()

						p, err := db.Palette(c.Args().First())
						if err != nil {
							return cli.NewExitError(err, 1)
						}
						if p == nil {
							return cli.NewExitError(fmt.Errorf("no palette named \"%s\"", c.Args().First()), 1)
						}

						for _, color := range p {
							fmt.Printf("#%02x%02x%02x\n", color.R, color.G, color.B)
						}

						return nil
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

package quadtile

import (
	"image"
	"image/color"
	"math"

	"github.com/bodgit/quadtile/colorspace"
	"github.com/bodgit/quadtile/lut"
	"github.com/bodgit/quadtile/palette"
	"github.com/bodgit/quadtile/quad"
)

// Brightness bias applied to the second pass.
const darkPassBias = -0.25

// Blend factors this close to 0 or 1 skip the Lab interpolation and use a
// pass color directly.
const blendEpsilon = 0.01

// downscale box-filters m by an integer factor. RGB channels average only
// the opaque pixels of each source block while alpha averages over the
// whole block, so cells along a transparency edge keep their true color
// instead of bleeding toward transparent black. A block with no opaque
// pixels produces a transparent cell.
func downscale(m image.Image, factor int) *grid {
	b := m.Bounds()
	w := b.Dx() / factor
	h := b.Dy() / factor
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	g := newGrid(w, h)
	parallelRows(h, func(cy int) {
		for cx := 0; cx < w; cx++ {
			x0 := b.Min.X + cx*factor
			y0 := b.Min.Y + cy*factor
			x1 := minInt(x0+factor, b.Max.X)
			y1 := minInt(y0+factor, b.Max.Y)

			var sumR, sumG, sumB, sumA, opaqueCount, total int
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					c := color.NRGBAModel.Convert(m.At(x, y)).(color.NRGBA)
					total++
					sumA += int(c.A)
					if c.A == 0 {
						continue
					}
					sumR += int(c.R)
					sumG += int(c.G)
					sumB += int(c.B)
					opaqueCount++
				}
			}

			if opaqueCount == 0 || total == 0 {
				continue
			}

			// A block containing any opaque pixel must stay opaque;
			// the rounded alpha mean is floored at 1 so alpha 0
			// remains a pure transparency sentinel.
			alpha := (sumA + total/2) / total
			if alpha == 0 {
				alpha = 1
			}

			g.set(cx, cy, color.RGBA{
				R: uint8(sumR / opaqueCount),
				G: uint8(sumG / opaqueCount),
				B: uint8(sumB / opaqueCount),
				A: uint8(alpha),
			})
		}
	})
	return g
}

// applyBias scales each color channel by 1+bias in place, clamping into
// range. Alpha is untouched.
func applyBias(g *grid, bias float64) {
	if bias == 0 {
		return
	}
	scale := 1 + bias
	for i, c := range g.pix {
		if c.A == 0 {
			continue
		}
		g.pix[i] = color.RGBA{
			R: clampChannel(float64(c.R) * scale),
			G: clampChannel(float64(c.G) * scale),
			B: clampChannel(float64(c.B) * scale),
			A: c.A,
		}
	}
}

func clampChannel(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// bilateral smooths a Lab grid with a joint spatial and color Gaussian,
// preserving strong color edges. Transparent cells pass through unchanged
// and never contribute to a neighbor's window. A non-positive radius or
// sigma makes this the identity.
func bilateral(labs []colorspace.Lab, opaque []bool, w, h, radius int, sigmaSpatial, sigmaColor float64) []colorspace.Lab {
	out := make([]colorspace.Lab, len(labs))
	copy(out, labs)
	if radius <= 0 || sigmaSpatial <= 0 || sigmaColor <= 0 {
		return out
	}

	twoSigmaS := 2 * sigmaSpatial * sigmaSpatial
	twoSigmaC := 2 * sigmaColor * sigmaColor

	parallelRows(h, func(y int) {
		for x := 0; x < w; x++ {
			i := y*w + x
			if !opaque[i] {
				continue
			}
			center := labs[i]

			var sumL, sumA, sumB, sumW float64
			for dy := -radius; dy <= radius; dy++ {
				ny := y + dy
				if ny < 0 || ny >= h {
					continue
				}
				for dx := -radius; dx <= radius; dx++ {
					nx := x + dx
					if nx < 0 || nx >= w {
						continue
					}
					j := ny*w + nx
					if !opaque[j] {
						continue
					}
					n := labs[j]

					spatial := float64(dx*dx + dy*dy)
					weight := math.Exp(-spatial/twoSigmaS) *
						math.Exp(-colorspace.DistanceSquared(center, n)/twoSigmaC)

					sumL += weight * n.L
					sumA += weight * n.A
					sumB += weight * n.B
					sumW += weight
				}
			}

			// The center always contributes weight 1 to itself so
			// sumW is never zero here.
			out[i] = colorspace.Lab{
				L: sumL / sumW,
				A: sumA / sumW,
				B: sumB / sumW,
			}
		}
	})
	return out
}

// renderPass writes one quad per opaque cell of the filtered Lab grid into
// a doubled-resolution image. The lookup target for each cell blends the
// cell's own value with its neighborhood mean by centerWeight; neighborhood
// indices clamp at the borders so edge cells resample their own edge.
// Transparent cells produce a transparent 2×2 block and never touch the
// lookup table.
func renderPass(labs []colorspace.Lab, opaque []bool, w, h int, quads []quad.Quad, table *lut.Table, centerWeight float64, neighborhood int) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, w*2, h*2))

	parallelRows(h, func(y int) {
		for x := 0; x < w; x++ {
			i := y*w + x
			if !opaque[i] {
				continue
			}
			center := labs[i]

			target := center
			if centerWeight < 1 && neighborhood > 0 {
				var sumL, sumA, sumB float64
				var count int
				for dy := -neighborhood; dy <= neighborhood; dy++ {
					ny := clampInt(y+dy, 0, h-1)
					for dx := -neighborhood; dx <= neighborhood; dx++ {
						nx := clampInt(x+dx, 0, w-1)
						j := ny*w + nx
						if !opaque[j] {
							continue
						}
						sumL += labs[j].L
						sumA += labs[j].A
						sumB += labs[j].B
						count++
					}
				}
				if count > 0 {
					mean := colorspace.Lab{
						L: sumL / float64(count),
						A: sumA / float64(count),
						B: sumB / float64(count),
					}
					target = colorspace.Lerp(mean, center, centerWeight)
				}
			}

			q := quads[table.Lookup(target)]
			setQuad(out, x, y, q.Colors)
		}
	})
	return out
}

func setQuad(m *image.NRGBA, x, y int, colors [4]color.RGBA) {
	m.SetNRGBA(x*2, y*2, color.NRGBA(colors[quad.TopLeft]))
	m.SetNRGBA(x*2+1, y*2, color.NRGBA(colors[quad.TopRight]))
	m.SetNRGBA(x*2, y*2+1, color.NRGBA(colors[quad.BottomLeft]))
	m.SetNRGBA(x*2+1, y*2+1, color.NRGBA(colors[quad.BottomRight]))
}

// blendFactor maps a cell's luminance to the dark-pass weight: full dark
// pass at or below the threshold, fading linearly to zero over the blend
// range.
func blendFactor(luminance, threshold, blendRange float64) float64 {
	if luminance <= threshold {
		return 1
	}
	if blendRange <= 0 || luminance >= threshold+blendRange {
		return 0
	}
	return 1 - (luminance-threshold)/blendRange
}

// blendPasses merges the main and dark passes per cell, weighting by the
// cell's unfiltered luminance. Mid-range factors interpolate the two quad
// colors in Lab and snap the result back onto the palette so the output
// never contains an off-palette color.
func blendPasses(ds *grid, mainPass, darkPass *image.NRGBA, p palette.Palette, table *lut.Table, threshold, blendRange float64) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, ds.w*2, ds.h*2))

	parallelRows(ds.h, func(y int) {
		for x := 0; x < ds.w; x++ {
			c := ds.at(x, y)
			if c.A == 0 {
				continue
			}
			factor := blendFactor(colorspace.ToLab(c).L, threshold, blendRange)

			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					px, py := x*2+dx, y*2+dy
					mc := mainPass.NRGBAAt(px, py)
					dc := darkPass.NRGBAAt(px, py)

					switch {
					case factor <= blendEpsilon:
						out.SetNRGBA(px, py, mc)
					case factor >= 1-blendEpsilon:
						out.SetNRGBA(px, py, dc)
					default:
						mixed := colorspace.Lerp(
							colorspace.ToLab(color.RGBA{mc.R, mc.G, mc.B, mc.A}),
							colorspace.ToLab(color.RGBA{dc.R, dc.G, dc.B, dc.A}),
							factor,
						)
						snapped := p[table.Lookup(mixed)]
						out.SetNRGBA(px, py, color.NRGBA(snapped))
					}
				}
			}
		}
	})
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

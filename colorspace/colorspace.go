/*
Package colorspace implements conversion between 8-bit sRGB colors and the
CIE L*a*b* color space, along with the squared perceptual distance used
throughout the quantizer.

All conversions assume the D65 reference white with a 2° observer. Distance
is plain Euclidean in (L, a, b); perceptual correction for near-neutral
targets is handled by penalty terms at lookup-table build time rather than a
heavier distance formula, as the distance is evaluated millions of times.
*/
package colorspace

import (
	"image/color"
	"math"
)

// D65 reference white.
const (
	refX = 0.95047
	refY = 1.0
	refZ = 1.08883
)

// Lab is a color in CIE L*a*b* space. L is nominally 0–100, a and b
// nominally -120–120; values outside those ranges are legal and are only
// clamped when indexing a lookup table.
type Lab struct {
	L, A, B float64
}

func linearize(c uint8) float64 {
	v := float64(c) / 255.0
	if v > 0.04045 {
		return math.Pow((v+0.055)/1.055, 2.4)
	}
	return v / 12.92
}

func delinearize(v float64) float64 {
	if v > 0.0031308 {
		return 1.055*math.Pow(v, 1.0/2.4) - 0.055
	}
	return 12.92 * v
}

func labF(t float64) float64 {
	if t > 0.008856 {
		return math.Cbrt(t)
	}
	return 7.787*t + 16.0/116.0
}

func labFInv(t float64) float64 {
	if t3 := t * t * t; t3 > 0.008856 {
		return t3
	}
	return (t - 16.0/116.0) / 7.787
}

// ToLab converts an sRGB color to Lab. The alpha channel is ignored.
func ToLab(c color.RGBA) Lab {
	r := linearize(c.R)
	g := linearize(c.G)
	b := linearize(c.B)

	x := (r*0.4124 + g*0.3576 + b*0.1805) / refX
	y := (r*0.2126 + g*0.7152 + b*0.0722) / refY
	z := (r*0.0193 + g*0.1192 + b*0.9505) / refZ

	fx, fy, fz := labF(x), labF(y), labF(z)

	l := 116.0*fy - 16.0
	if l < 0 {
		l = 0
	}

	return Lab{
		L: l,
		A: 500.0 * (fx - fy),
		B: 200.0 * (fy - fz),
	}
}

func clamp255(v float64) uint8 {
	v = math.Round(v * 255.0)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// ToColor converts a Lab value back to a fully opaque sRGB color, clamping
// each channel into range.
func ToColor(l Lab) color.RGBA {
	fy := (l.L + 16.0) / 116.0
	fx := fy + l.A/500.0
	fz := fy - l.B/200.0

	x := labFInv(fx) * refX
	y := labFInv(fy) * refY
	z := labFInv(fz) * refZ

	r := x*3.2406 + y*-1.5372 + z*-0.4986
	g := x*-0.9689 + y*1.8758 + z*0.0415
	b := x*0.0557 + y*-0.2040 + z*1.0570

	return color.RGBA{
		R: clamp255(delinearize(r)),
		G: clamp255(delinearize(g)),
		B: clamp255(delinearize(b)),
		A: 0xff,
	}
}

// DistanceSquared returns the squared Euclidean distance between two Lab
// values.
func DistanceSquared(p, q Lab) float64 {
	dl := p.L - q.L
	da := p.A - q.A
	db := p.B - q.B
	return dl*dl + da*da + db*db
}

// Chroma returns the distance from the neutral axis, sqrt(a²+b²).
func Chroma(l Lab) float64 {
	return math.Sqrt(l.A*l.A + l.B*l.B)
}

// Lerp linearly interpolates between two Lab values; t=0 yields p, t=1
// yields q.
func Lerp(p, q Lab, t float64) Lab {
	return Lab{
		L: p.L + (q.L-p.L)*t,
		A: p.A + (q.A-p.A)*t,
		B: p.B + (q.B-p.B)*t,
	}
}

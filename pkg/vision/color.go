package vision

import (
	"math"

	"github.com/menta2k/calorie-estimator/pkg/types"
)

// toHSV converts 8-bit RGB to HSV in OpenCV scale: H in [0,180), S and V in [0,255].
func toHSV(r, g, b uint8) types.HSV {
	rf, gf, bf := float64(r), float64(g), float64(b)
	mx := math.Max(rf, math.Max(gf, bf))
	mn := math.Min(rf, math.Min(gf, bf))
	delta := mx - mn

	var h float64
	switch {
	case delta == 0:
		h = 0
	case mx == rf:
		h = 60 * math.Mod((gf-bf)/delta, 6)
	case mx == gf:
		h = 60 * ((bf-rf)/delta + 2)
	default:
		h = 60 * ((rf-gf)/delta + 4)
	}
	if h < 0 {
		h += 360
	}

	var s float64
	if mx > 0 {
		s = delta / mx * 255
	}
	return types.HSV{H: h / 2, S: s, V: mx}
}

// hueDistance is the circular distance between two OpenCV hues
func hueDistance(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > 90 {
		d = 180 - d
	}
	return d
}

// hueAccumulator averages hues on the circle so reds near 0 and 179 do not cancel out
type hueAccumulator struct {
	sin, cos float64
	s, v     float64
	n        int
}

func (a *hueAccumulator) add(c types.HSV) {
	rad := c.H * math.Pi / 90
	a.sin += math.Sin(rad)
	a.cos += math.Cos(rad)
	a.s += c.S
	a.v += c.V
	a.n++
}

func (a *hueAccumulator) mean() types.HSV {
	if a.n == 0 {
		return types.HSV{}
	}
	h := math.Atan2(a.sin, a.cos) * 90 / math.Pi
	if h < 0 {
		h += 180
	}
	n := float64(a.n)
	return types.HSV{H: h, S: a.s / n, V: a.v / n}
}

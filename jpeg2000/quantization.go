package jpeg2000

import (
	"math"
)

// Scalar quantization, ISO/IEC 15444-1 Annex E. Reversible coding signals
// per-subband exponents only (style 0); irreversible coding signals
// exponent/mantissa step sizes (style 2, scalar expounded).

// 9/7 synthesis basis norms per orientation and level, used both to
// derive step sizes from the quality knob and as distortion weights.
var dwtNorms97 = [4][10]float64{
	{1.000, 1.965, 4.177, 8.403, 16.90, 33.84, 67.69, 135.3, 270.6, 540.9},
	{2.022, 3.989, 8.355, 17.04, 34.27, 68.63, 137.3, 274.6, 549.0, 0.0},
	{2.022, 3.989, 8.355, 17.04, 34.27, 68.63, 137.3, 274.6, 549.0, 0.0},
	{2.080, 3.865, 8.307, 17.18, 34.71, 69.59, 139.3, 278.6, 557.2, 0.0},
}

func dwtNorm97(level, orient int) float64 {
	if level < 0 {
		level = 0
	}
	if orient == 0 && level >= 10 {
		level = 9
	} else if orient > 0 && level >= 9 {
		level = 8
	}
	if orient < 0 || orient > 3 {
		return 1.0
	}
	n := dwtNorms97[orient][level]
	if n <= 0 {
		return 1.0
	}
	return n
}

// bandGain returns the log2 coefficient gain of a subband under the
// reversible transform: LL 0, HL/LH 1, HH 2.
func bandGain(orient int) int {
	switch orient {
	case 0:
		return 0
	case 3:
		return 2
	default:
		return 1
	}
}

// qualityScale converts the 1-100 quality knob into a base step size.
func qualityScale(quality int) float64 {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	if quality >= 100 {
		return 0
	}
	scale := math.Pow(2.0, (100.0-float64(quality))/12.5)
	if scale < 0.01 {
		scale = 0.01
	}
	return scale * 0.9 * 0.2
}

// stepSizes97 derives per-subband step sizes for numLevels decompositions.
// Index order matches the QCD subband order: LL first, then HL/LH/HH per
// resolution from the coarsest up.
func stepSizes97(numLevels, quality int) []float64 {
	scale := qualityScale(quality)
	if scale <= 0 {
		scale = 1.0 / 8192.0
	}
	n := 3*numLevels + 1
	steps := make([]float64, n)
	for idx := 0; idx < n; idx++ {
		_, orient, level := subbandOrder(idx, numLevels)
		steps[idx] = scale / dwtNorm97(level, orient)
	}
	return steps
}

// subbandOrder maps a QCD subband index to (resolution, orientation,
// level): index 0 is the LL, then triples of HL/LH/HH per resolution.
func subbandOrder(idx, numLevels int) (res, orient, level int) {
	if idx == 0 {
		res, orient = 0, 0
	} else {
		res = (idx-1)/3 + 1
		orient = (idx-1)%3 + 1
	}
	level = numLevels - res
	if level < 0 {
		level = 0
	}
	return
}

// qcdIndex returns the QCD subband index for (resolution, orientation).
func qcdIndex(res, orient int) int {
	if res == 0 {
		return 0
	}
	return 1 + 3*(res-1) + (orient - 1)
}

// encodeStepSize packs a step size into the 16-bit exponent/mantissa wire
// form of E.1, relative to the subband's dynamic range numbps.
func encodeStepSize(step float64, numbps int) uint16 {
	if step <= 0 {
		return 0
	}
	if step < 1.0/8192.0 {
		step = 1.0 / 8192.0
	}
	// step = frac * 2^e with frac in [0.5, 1), i.e. (1 + mant/2^11) * 2^p.
	frac, e := math.Frexp(step)
	p := e - 1
	mant := int32(math.Floor((2*frac - 1) * 2048.0))
	mant &= 0x7FF
	expn := numbps - p
	if expn < 0 {
		expn = 0
	}
	if expn > 0x1F {
		expn = 0x1F
	}
	return uint16(expn)<<11 | uint16(mant)
}

// decodeStepSize unpacks the wire form back into a step size for a
// subband whose dynamic range is numbps.
func decodeStepSize(encoded uint16, numbps int) float64 {
	expn := int(encoded>>11) & 0x1F
	mant := float64(encoded & 0x7FF)
	return math.Ldexp(1.0+mant/2048.0, numbps-expn)
}

// quantize maps a float coefficient onto its dead-zone index:
// sign(c) * floor(|c| / step). Everything below one step collapses to 0.
func quantize(c float64, step float64) int32 {
	if c >= 0 {
		return int32(c / step)
	}
	return -int32(-c / step)
}

// dequantize reconstructs at the interval midpoint.
func dequantize(q int32, step float64) float64 {
	if q > 0 {
		return (float64(q) + 0.5) * step
	}
	if q < 0 {
		return (float64(q) - 0.5) * step
	}
	return 0
}

package jpeg2000

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepSizeWireRoundTrip(t *testing.T) {
	for _, step := range []float64{0.001, 0.01, 0.125, 0.5, 1.0, 2.0, 7.5} {
		enc := encodeStepSize(step, 10)
		dec := decodeStepSize(enc, 10)
		assert.InEpsilon(t, step, dec, 0.01, "step %g", step)
	}
}

func TestQuantizeDeadZone(t *testing.T) {
	const step = 2.0
	// Everything below one step collapses to zero.
	assert.Zero(t, quantize(1.99, step))
	assert.Zero(t, quantize(-1.99, step))
	assert.Equal(t, int32(1), quantize(2.0, step))
	assert.Equal(t, int32(-1), quantize(-2.0, step))
	assert.Equal(t, int32(3), quantize(7.9, step))
	assert.Equal(t, int32(-3), quantize(-7.9, step))
}

func TestDequantizeMidpoint(t *testing.T) {
	const step = 2.0
	assert.Zero(t, dequantize(0, step))
	assert.Equal(t, 3.0, dequantize(1, step))
	assert.Equal(t, -3.0, dequantize(-1, step))

	// The reconstruction sits inside the original quantization bin.
	for _, c := range []float64{2.0, 3.9, 7.2, -2.5, -6.1} {
		q := quantize(c, step)
		r := dequantize(q, step)
		assert.LessOrEqual(t, absF(c-r), step, "coefficient %g", c)
	}
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestSubbandOrder(t *testing.T) {
	const levels = 3
	numBands := 3*levels + 1

	res, orient, level := subbandOrder(0, levels)
	assert.Equal(t, 0, res)
	assert.Equal(t, 0, orient)
	assert.Equal(t, levels, level)

	for idx := 1; idx < numBands; idx++ {
		res, orient, _ = subbandOrder(idx, levels)
		assert.Equal(t, idx, qcdIndex(res, orient), "index %d must survive the round trip", idx)
		assert.GreaterOrEqual(t, orient, 1)
		assert.LessOrEqual(t, orient, 3)
	}
}

func TestBandGain(t *testing.T) {
	assert.Equal(t, 0, bandGain(0))
	assert.Equal(t, 1, bandGain(1))
	assert.Equal(t, 1, bandGain(2))
	assert.Equal(t, 2, bandGain(3))
}

func TestStepSizes97ScaleWithQuality(t *testing.T) {
	coarse := stepSizes97(3, 20)
	fine := stepSizes97(3, 95)
	require.Len(t, coarse, 10)
	for i := range coarse {
		assert.Greater(t, coarse[i], fine[i], "lower quality must quantize harder (band %d)", i)
	}
}

func TestDwtNorm97Bounds(t *testing.T) {
	// Out-of-range lookups clamp instead of panicking.
	assert.Equal(t, 1.0, dwtNorm97(0, -1))
	assert.Greater(t, dwtNorm97(12, 0), 1.0)
	assert.Greater(t, dwtNorm97(12, 3), 1.0)
}

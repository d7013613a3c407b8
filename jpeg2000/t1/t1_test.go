package t1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lcg uint64

func (l *lcg) next() uint32 {
	*l = *l*6364136223846793005 + 1442695040888963407
	return uint32(*l >> 33)
}

func randomBlock(rng *lcg, n int, maxMag int32) []int32 {
	out := make([]int32, n)
	for i := range out {
		v := int32(rng.next() % uint32(maxMag+1))
		if rng.next()&1 == 1 {
			v = -v
		}
		out[i] = v
	}
	return out
}

func roundTrip(t *testing.T, w, h int, orient, style int, coeffs []int32) {
	t.Helper()

	enc := NewEncoder(w, h, orient, style)
	blk, err := enc.Encode(coeffs, 1.0)
	require.NoError(t, err)

	if blk.NumBitplanes == 0 {
		for _, v := range coeffs {
			require.Zero(t, v, "all-zero block must have no planes")
		}
		return
	}

	passLens := make([]int, len(blk.Passes))
	for i, p := range blk.Passes {
		passLens[i] = p.Len
	}

	dec := NewDecoder(w, h, orient, style)
	require.NoError(t, dec.Decode(blk.Data, passLens, blk.NumBitplanes-1))
	assert.Equal(t, coeffs, dec.Coefficients())
}

func TestBlockRoundTripSizes(t *testing.T) {
	sizes := []struct{ w, h int }{
		{4, 4}, {5, 5}, {5, 4}, {4, 5}, {8, 8}, {16, 16},
		{32, 32}, {64, 64}, {64, 1}, {1, 64}, {7, 3}, {3, 9},
	}
	rng := lcg(1)
	for _, sz := range sizes {
		for orient := 0; orient < 4; orient++ {
			coeffs := randomBlock(&rng, sz.w*sz.h, 255)
			roundTrip(t, sz.w, sz.h, orient, StyleTermAll, coeffs)
		}
	}
}

// Dense full-magnitude 64x64 blocks: the configuration that historically
// exposed byte-stuffing bugs in MQ implementations.
func TestBlockRoundTripDense64(t *testing.T) {
	rng := lcg(2)
	for trial := 0; trial < 4; trial++ {
		coeffs := make([]int32, 64*64)
		for i := range coeffs {
			v := int32(rng.next()%32768) + 32767
			if rng.next()&1 == 1 {
				v = -v
			}
			coeffs[i] = v
		}
		roundTrip(t, 64, 64, 3, StyleTermAll, coeffs)
	}
}

func TestBlockRoundTripStyles(t *testing.T) {
	styles := []int{
		StyleTermAll,
		StyleTermAll | StyleSegsym,
		StyleTermAll | StyleReset,
		StyleTermAll | StyleBypass,
		StyleTermAll | StyleBypass | StyleSegsym,
		StyleTermAll | StylePterm,
	}
	rng := lcg(3)
	for _, style := range styles {
		coeffs := randomBlock(&rng, 16*16, 4095)
		roundTrip(t, 16, 16, 1, style, coeffs)
	}
}

func TestBlockAllZero(t *testing.T) {
	enc := NewEncoder(8, 8, 0, StyleTermAll)
	blk, err := enc.Encode(make([]int32, 64), 1.0)
	require.NoError(t, err)
	assert.Zero(t, blk.NumBitplanes)
	assert.Empty(t, blk.Passes)
	assert.Empty(t, blk.Data)
}

func TestBlockSingleCoefficient(t *testing.T) {
	coeffs := make([]int32, 64)
	coeffs[27] = -5
	roundTrip(t, 8, 8, 2, StyleTermAll, coeffs)
}

func TestPassAccounting(t *testing.T) {
	rng := lcg(4)
	coeffs := randomBlock(&rng, 32*32, 1023)

	enc := NewEncoder(32, 32, 0, StyleTermAll)
	blk, err := enc.Encode(coeffs, 1.0)
	require.NoError(t, err)

	require.Equal(t, MaxPasses(blk.NumBitplanes), len(blk.Passes))
	sum := 0
	prevDist := 0.0
	for i, p := range blk.Passes {
		sum += p.Len
		assert.Equal(t, sum, p.CumLen, "pass %d cumulative length", i)
		assert.GreaterOrEqual(t, p.Distortion, prevDist, "pass %d distortion must not decrease", i)
		prevDist = p.Distortion
	}
	assert.Equal(t, len(blk.Data), sum, "pass lengths must cover the block data")

	// The pass sequence is cleanup first, then SPP/MRP/cleanup triplets.
	assert.Equal(t, PassCleanup, blk.Passes[0].Type)
	if len(blk.Passes) > 1 {
		assert.Equal(t, PassSigProp, blk.Passes[1].Type)
	}
}

func TestTruncatedDecode(t *testing.T) {
	rng := lcg(5)
	coeffs := randomBlock(&rng, 16*16, 255)

	enc := NewEncoder(16, 16, 0, StyleTermAll)
	blk, err := enc.Encode(coeffs, 1.0)
	require.NoError(t, err)
	require.Greater(t, len(blk.Passes), 3)

	// Decoding only a prefix of the passes must succeed and produce a
	// coarse approximation.
	keep := len(blk.Passes) / 2
	passLens := make([]int, keep)
	total := 0
	for i := 0; i < keep; i++ {
		passLens[i] = blk.Passes[i].Len
		total += passLens[i]
	}
	dec := NewDecoder(16, 16, 0, StyleTermAll)
	require.NoError(t, dec.Decode(blk.Data[:total], passLens, blk.NumBitplanes-1))
}

func TestDecodeRejectsOverlongPass(t *testing.T) {
	dec := NewDecoder(8, 8, 0, StyleTermAll)
	err := dec.Decode([]byte{0x00}, []int{5}, 3)
	assert.Error(t, err)
}

func TestSizeMismatch(t *testing.T) {
	enc := NewEncoder(8, 8, 0, StyleTermAll)
	_, err := enc.Encode(make([]int32, 10), 1.0)
	assert.Error(t, err)
}

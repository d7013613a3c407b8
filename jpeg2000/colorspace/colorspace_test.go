package colorspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRCTRoundTripExact(t *testing.T) {
	vals := []int32{-32768, -255, -128, -1, 0, 1, 127, 255, 32767}
	for _, r := range vals {
		for _, g := range vals {
			for _, b := range vals {
				y, cb, cr := RCTForward(r, g, b)
				r2, g2, b2 := RCTInverse(y, cb, cr)
				if r2 != r || g2 != g || b2 != b {
					t.Fatalf("RCT(%d,%d,%d) -> (%d,%d,%d) not reversible", r, g, b, r2, g2, b2)
				}
			}
		}
	}
}

func TestRCTPlanesRoundTrip(t *testing.T) {
	r := []int32{0, 10, -5, 127}
	g := []int32{1, -3, 90, -127}
	b := []int32{7, 2, -2, 100}
	wantR := append([]int32(nil), r...)
	wantG := append([]int32(nil), g...)
	wantB := append([]int32(nil), b...)

	RCTForwardPlanes(r, g, b)
	RCTInversePlanes(r, g, b)
	assert.Equal(t, wantR, r)
	assert.Equal(t, wantG, g)
	assert.Equal(t, wantB, b)
}

func TestICTApproximateRoundTrip(t *testing.T) {
	for r := int32(-128); r <= 127; r += 17 {
		for g := int32(-128); g <= 127; g += 19 {
			for b := int32(-128); b <= 127; b += 23 {
				y, cb, cr := ICTForward(r, g, b)
				r2, g2, b2 := ICTInverse(y, cb, cr)
				assert.InDelta(t, float64(r), float64(r2), 2)
				assert.InDelta(t, float64(g), float64(g2), 2)
				assert.InDelta(t, float64(b), float64(b2), 2)
			}
		}
	}
}

func TestICTGrayInput(t *testing.T) {
	y, cb, cr := ICTForward(50, 50, 50)
	assert.Equal(t, int32(50), y)
	assert.Zero(t, cb)
	assert.Zero(t, cr)
}

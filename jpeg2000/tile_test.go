package jpeg2000

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-j2k/jpeg2000/codestream"
)

func TestTileGridAndBounds(t *testing.T) {
	siz := &codestream.SIZ{
		Xsiz: 100, Ysiz: 60,
		XTsiz: 32, YTsiz: 32,
		Csiz:       1,
		Components: []codestream.ComponentSIZ{{Ssiz: 7, XRsiz: 1, YRsiz: 1}},
	}
	tx, ty := tileGrid(siz)
	assert.Equal(t, 4, tx)
	assert.Equal(t, 2, ty)

	r := tileRectAt(siz, 0)
	assert.Equal(t, tileRect{0, 0, 0, 32, 32}, r)

	// Edge tiles clip to the image.
	r = tileRectAt(siz, 3)
	assert.Equal(t, tileRect{3, 96, 0, 100, 32}, r)
	r = tileRectAt(siz, 7)
	assert.Equal(t, tileRect{7, 96, 32, 100, 60}, r)
}

func TestSubbandTreeLayout(t *testing.T) {
	g := buildTileCompGeom(0, 0, 64, 48, 2)
	require.Len(t, g.Subbands, 7)

	// Resolution window sizes halve with ceiling.
	assert.Equal(t, []int{16, 32, 64}, g.ResW)
	assert.Equal(t, []int{12, 24, 48}, g.ResH)

	ll := g.Subbands[0]
	assert.Equal(t, 0, ll.Res)
	assert.Equal(t, 16, ll.W)
	assert.Equal(t, 12, ll.H)

	// Finest-level bands sit beside and below the 32x24 low-pass window.
	hl := g.Subbands[qcdIndex(2, 1)]
	assert.Equal(t, 32, hl.X0)
	assert.Equal(t, 0, hl.Y0)
	assert.Equal(t, 32, hl.W)
	assert.Equal(t, 24, hl.H)

	lh := g.Subbands[qcdIndex(2, 2)]
	assert.Equal(t, 0, lh.X0)
	assert.Equal(t, 24, lh.Y0)

	hh := g.Subbands[qcdIndex(2, 3)]
	assert.Equal(t, 32, hh.X0)
	assert.Equal(t, 24, hh.Y0)
	assert.Equal(t, 32, hh.W)
	assert.Equal(t, 24, hh.H)

	// Subband areas tile the whole array.
	area := 0
	for _, sb := range g.Subbands {
		area += sb.W * sb.H
	}
	assert.Equal(t, 64*48, area)
}

func TestSubbandTreeOddOrigin(t *testing.T) {
	g := buildTileCompGeom(33, 17, 64, 48, 1)
	// Odd origin flips the split phase: 31 columns split 15/16.
	assert.Equal(t, 15, g.ResW[0])
	assert.Equal(t, 16, g.Subbands[qcdIndex(1, 1)].W)
}

func TestPrecinctPartition(t *testing.T) {
	g := buildTileCompGeom(0, 0, 64, 64, 1)
	cod := &codestream.COD{
		NumLayers:       1,
		NumLevels:       1,
		CodeBlockWidth:  2, // 16
		CodeBlockHeight: 2,
		Scod:            codestream.ScodPrecincts,
		PrecinctSizes: []codestream.PrecinctSize{
			{PPx: 5, PPy: 5}, // res 0: 32x32
			{PPx: 5, PPy: 5}, // res 1: 32x32 -> 16x16 band cells
		},
	}

	// Resolution 0: 32x32 LL, precinct 32 -> one precinct, 2x2 blocks.
	p0 := g.buildPrecincts(cod, 0)
	require.Len(t, p0, 1)
	require.Len(t, p0[0].Bands, 1)
	assert.Equal(t, 2, p0[0].Bands[0].NumCBX)
	assert.Equal(t, 2, p0[0].Bands[0].NumCBY)

	// Resolution 1: 64x64 window, precincts of 32 -> 2x2 precincts of
	// three bands; band cells are 16, so one 16x16 block per band.
	p1 := g.buildPrecincts(cod, 1)
	require.Len(t, p1, 4)
	for _, prec := range p1 {
		require.Len(t, prec.Bands, 3)
		for _, band := range prec.Bands {
			assert.Equal(t, 1, band.NumCBX)
			assert.Equal(t, 1, band.NumCBY)
			require.Len(t, band.Blocks, 1)
			cb := band.Blocks[0]
			assert.Equal(t, 16, cb.Width())
			assert.Equal(t, 16, cb.Height())
		}
	}
	assert.Equal(t, 4, g.numPrecincts(cod, 1))
}

func TestPrecinctDefaultIsSinglePartition(t *testing.T) {
	g := buildTileCompGeom(0, 0, 200, 120, 2)
	cod := &codestream.COD{NumLayers: 1, NumLevels: 2, CodeBlockWidth: 4, CodeBlockHeight: 4}
	for r := 0; r <= 2; r++ {
		assert.Equal(t, 1, g.numPrecincts(cod, r), "resolution %d", r)
	}
}

func TestApplyQuantReversible(t *testing.T) {
	g := buildTileCompGeom(0, 0, 32, 32, 1)
	qcd := &codestream.QCD{
		Sqcd:  2 << 5,
		SPqcd: []byte{8 << 3, 9 << 3, 9 << 3, 10 << 3},
	}
	g.applyQuant(qcd, 8, 0, 0, true)

	ll := g.Subbands[0]
	assert.Equal(t, 1.0, ll.Step)
	assert.Equal(t, 9, ll.Numbps) // guard 2 + exponent 8 - 1
	assert.Equal(t, 1.0, ll.Weight)

	hh := g.Subbands[qcdIndex(1, 3)]
	assert.Equal(t, 11, hh.Numbps)

	// ROI shift extends the bit-plane budget.
	g.applyQuant(qcd, 8, 0, 3, true)
	assert.Equal(t, 12, g.Subbands[0].Numbps)
}

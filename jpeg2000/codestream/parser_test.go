package codestream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalSIZ() *SIZ {
	return &SIZ{
		Xsiz:  64,
		Ysiz:  48,
		XTsiz: 64,
		YTsiz: 48,
		Csiz:  1,
		Components: []ComponentSIZ{
			{Ssiz: 7, XRsiz: 1, YRsiz: 1},
		},
	}
}

func minimalCOD() *COD {
	return &COD{
		NumLayers:       1,
		NumLevels:       2,
		CodeBlockWidth:  4, // 64
		CodeBlockHeight: 4,
		Transform:       1,
	}
}

func minimalQCD() *QCD {
	return &QCD{Sqcd: 2 << 5, SPqcd: []byte{8 << 3, 9 << 3, 9 << 3, 10 << 3, 9 << 3, 9 << 3, 10 << 3}}
}

// buildStream assembles SOC..EOC with one empty tile-part, optionally
// injecting extra bytes right after the main COM position.
func buildStream(t *testing.T, inject []byte) []byte {
	t.Helper()
	sink := NewBufferSink()
	w := NewWriter(sink)
	require.NoError(t, w.WriteSOC())
	require.NoError(t, w.WriteSIZ(minimalSIZ()))
	require.NoError(t, w.WriteCOD(minimalCOD()))
	require.NoError(t, w.WriteQCD(minimalQCD()))
	if inject != nil {
		require.NoError(t, w.WriteRaw(inject))
	}
	require.NoError(t, w.WriteSOT(&SOT{Isot: 0, Psot: 14, TPsot: 0, TNsot: 1}))
	require.NoError(t, w.WriteSOD())
	require.NoError(t, w.WriteEOC())
	return sink.Bytes()
}

func TestParseMinimalStream(t *testing.T) {
	cs, err := Parse(buildStream(t, nil))
	require.NoError(t, err)

	require.NotNil(t, cs.SIZ)
	assert.Equal(t, uint32(64), cs.SIZ.Xsiz)
	assert.Equal(t, 8, cs.SIZ.Components[0].BitDepth())
	assert.False(t, cs.SIZ.Components[0].Signed())

	require.NotNil(t, cs.COD)
	cbw, cbh := cs.COD.CodeBlockSize()
	assert.Equal(t, 64, cbw)
	assert.Equal(t, 64, cbh)

	require.NotNil(t, cs.QCD)
	assert.Equal(t, 2, cs.QCD.GuardBits())
	assert.Equal(t, QuantNone, cs.QCD.Style())
	assert.Equal(t, 8, cs.QCD.Exponent(0))

	require.Len(t, cs.Tiles, 1)
	assert.Empty(t, cs.Tiles[0].Data)
}

func TestParseMissingSIZ(t *testing.T) {
	// SOC, four arbitrary bytes, EOC: SIZ must be reported missing at
	// offset 2.
	data := []byte{0xFF, 0x4F, 0x12, 0x34, 0x56, 0x78, 0xFF, 0xD9}
	_, err := Parse(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingMarker)

	var ce *CodecError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, int64(2), ce.Offset)
}

func TestParseMissingSOC(t *testing.T) {
	_, err := Parse([]byte{0x00, 0x00, 0xFF, 0xD9})
	assert.ErrorIs(t, err, ErrMissingMarker)
}

func TestParseTruncated(t *testing.T) {
	full := buildStream(t, nil)
	for _, cut := range []int{1, 3, len(full) / 2, len(full) - 1} {
		_, err := Parse(full[:cut])
		require.Error(t, err, "cut at %d", cut)
		assert.ErrorIs(t, err, ErrTruncatedCodestream, "cut at %d", cut)
	}
}

func TestParseSkipsUnknownLengthMarker(t *testing.T) {
	// 0xFF71 with a 4-byte segment (length field 4 covers itself plus
	// two payload bytes).
	unknown := []byte{0xFF, 0x71, 0x00, 0x04, 0xAB, 0xCD}
	cs, err := Parse(buildStream(t, unknown))
	require.NoError(t, err)
	assert.Len(t, cs.Tiles, 1)
}

func TestParseRejectsUnknownNoLengthMarker(t *testing.T) {
	// 0xFF35 sits in the reserved no-length range; skipping is not
	// possible, so the parser must fail.
	unknown := []byte{0xFF, 0x35}
	_, err := Parse(buildStream(t, unknown))
	assert.ErrorIs(t, err, ErrMalformedMarker)
}

func TestParseSkipsCOMAndTLM(t *testing.T) {
	sink := NewBufferSink()
	w := NewWriter(sink)
	require.NoError(t, w.WriteSOC())
	require.NoError(t, w.WriteSIZ(minimalSIZ()))
	require.NoError(t, w.WriteCOD(minimalCOD()))
	require.NoError(t, w.WriteQCD(minimalQCD()))
	require.NoError(t, w.WriteCOM(&COM{Rcom: 1, Data: []byte("codec test")}))
	require.NoError(t, w.WriteTLM(0, []uint16{0}, []uint32{14}))
	require.NoError(t, w.WriteSOT(&SOT{Isot: 0, Psot: 14, TPsot: 0, TNsot: 1}))
	require.NoError(t, w.WriteSOD())
	require.NoError(t, w.WriteEOC())

	cs, err := Parse(sink.Bytes())
	require.NoError(t, err)
	require.Len(t, cs.COM, 1)
	assert.Equal(t, "codec test", string(cs.COM[0].Data))
}

func TestParsePOC(t *testing.T) {
	sink := NewBufferSink()
	w := NewWriter(sink)
	require.NoError(t, w.WriteSOC())
	require.NoError(t, w.WriteSIZ(minimalSIZ()))
	require.NoError(t, w.WriteCOD(minimalCOD()))
	require.NoError(t, w.WriteQCD(minimalQCD()))
	entries := []POCEntry{
		{RSpoc: 0, CSpoc: 0, LYEpoc: 1, REpoc: 1, CEpoc: 1, Ppoc: 1},
		{RSpoc: 1, CSpoc: 0, LYEpoc: 1, REpoc: 3, CEpoc: 1, Ppoc: 0},
	}
	require.NoError(t, w.WritePOC(entries, 1))
	require.NoError(t, w.WriteSOT(&SOT{Isot: 0, Psot: 14, TPsot: 0, TNsot: 1}))
	require.NoError(t, w.WriteSOD())
	require.NoError(t, w.WriteEOC())

	cs, err := Parse(sink.Bytes())
	require.NoError(t, err)
	require.Len(t, cs.POC, 2)
	assert.Equal(t, entries, cs.POC)
}

func TestParseRGNAndOverrides(t *testing.T) {
	sink := NewBufferSink()
	w := NewWriter(sink)
	require.NoError(t, w.WriteSOC())
	require.NoError(t, w.WriteSIZ(minimalSIZ()))
	require.NoError(t, w.WriteCOD(minimalCOD()))
	require.NoError(t, w.WriteQCD(minimalQCD()))
	require.NoError(t, w.WriteRGN(&RGN{Crgn: 0, Srgn: 0, SPrgn: 3}, 1))
	coc := &COC{Component: 0, NumLevels: 1, CodeBlockWidth: 3, CodeBlockHeight: 3, Transform: 1}
	require.NoError(t, w.WriteCOC(coc, 1))
	require.NoError(t, w.WriteSOT(&SOT{Isot: 0, Psot: 14, TPsot: 0, TNsot: 1}))
	require.NoError(t, w.WriteSOD())
	require.NoError(t, w.WriteEOC())

	cs, err := Parse(sink.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 3, cs.ROIShift(cs.Tiles[0], 0))

	resolved := cs.ComponentCOD(cs.Tiles[0], 0)
	require.NotNil(t, resolved)
	assert.Equal(t, uint8(1), resolved.NumLevels)
	cbw, _ := resolved.CodeBlockSize()
	assert.Equal(t, 32, cbw)
}

func TestParseMalformedSIZLength(t *testing.T) {
	good := buildStream(t, nil)
	bad := append([]byte(nil), good...)
	// Shrink the SIZ length field (offset 2 is the marker, 4 the length).
	bad[5] = bad[5] - 3
	_, err := Parse(bad)
	require.Error(t, err)
}

func TestPeekSIZ(t *testing.T) {
	data := buildStream(t, nil)
	siz, err := PeekSIZ(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(64), siz.Xsiz)
	assert.Equal(t, uint32(48), siz.Ysiz)

	_, err = PeekSIZ([]byte{0xFF, 0x4F})
	assert.ErrorIs(t, err, ErrTruncatedCodestream)
}

func TestMarkerNames(t *testing.T) {
	assert.Equal(t, "SOC", MarkerName(MarkerSOC))
	assert.Equal(t, "SIZ", MarkerName(MarkerSIZ))
	assert.Equal(t, "EOC", MarkerName(MarkerEOC))
	assert.Equal(t, "UNKNOWN", MarkerName(0xFF00))

	assert.False(t, HasLength(MarkerSOC))
	assert.False(t, HasLength(MarkerEPH))
	assert.False(t, HasLength(0xFF35))
	assert.True(t, HasLength(MarkerSOP))
	assert.True(t, HasLength(MarkerCOD))
}

func TestCodecErrorMatching(t *testing.T) {
	err := Truncatedf(17, "tile body")
	assert.ErrorIs(t, err, ErrTruncatedCodestream)
	assert.NotErrorIs(t, err, ErrCorruptCodestream)

	var ce *CodecError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, int64(17), ce.Offset)
	assert.Contains(t, ce.Error(), "tile body")
}

package jpeg2000

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-j2k/codec"
)

func TestStreamCodecRegistration(t *testing.T) {
	c, err := codec.Get(UIDLossless)
	require.NoError(t, err)
	assert.Equal(t, "jpeg2000-lossless", c.Name())

	c, err = codec.Get("jpeg2000")
	require.NoError(t, err)
	assert.Equal(t, UIDLossy, c.UID())
}

func TestStreamCodecRoundTrip(t *testing.T) {
	rng := lcg(77)
	pixels := make([]byte, 24*16)
	for i := range pixels {
		pixels[i] = byte(rng.next())
	}

	c := NewLosslessCodec()
	stream, err := c.Encode(codec.EncodeParams{
		PixelData:  pixels,
		Width:      24,
		Height:     16,
		Components: 1,
		BitDepth:   8,
	})
	require.NoError(t, err)

	siz, err := PeekSIZ(stream)
	require.NoError(t, err)
	assert.Equal(t, uint32(24), siz.Xsiz)

	res, err := c.Decode(stream)
	require.NoError(t, err)
	assert.Equal(t, pixels, res.PixelData)
	assert.Equal(t, 24, res.Width)
	assert.Equal(t, 16, res.Height)
	assert.Equal(t, 1, res.Components)
	assert.Equal(t, 8, res.BitDepth)
	assert.False(t, res.Signed)
}

func TestStreamCodecCustomOptions(t *testing.T) {
	pixels := make([]byte, 16*16)
	for i := range pixels {
		pixels[i] = byte(i)
	}

	opts := DefaultEncodeParams(0, 0, 0, 0, false)
	opts.NumLevels = 1
	opts.NumLayers = 2

	c := NewLosslessCodec()
	stream, err := c.Encode(codec.EncodeParams{
		PixelData:  pixels,
		Width:      16,
		Height:     16,
		Components: 1,
		BitDepth:   8,
		Options:    opts,
	})
	require.NoError(t, err)

	res, err := c.Decode(stream)
	require.NoError(t, err)
	assert.Equal(t, pixels, res.PixelData)
}

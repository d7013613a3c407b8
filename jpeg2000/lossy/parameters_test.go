package lossy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-j2k/jpeg2000/t2"
)

func TestParametersDefaults(t *testing.T) {
	p := NewParameters()
	assert.True(t, p.Irreversible)
	assert.Equal(t, 80, p.Quality)
	assert.Equal(t, 5, p.NumLevels)
	assert.Equal(t, t2.OrderLRCP, p.ProgressionOrder)
}

func TestParametersGetSet(t *testing.T) {
	p := NewParameters()
	p.SetParameter("quality", 55)
	p.SetParameter("irreversible", false)
	p.SetParameter("targetRatio", 20)

	assert.Equal(t, 55, p.GetParameter("quality"))
	assert.Equal(t, false, p.GetParameter("irreversible"))
	assert.Equal(t, 20.0, p.GetParameter("targetRatio"))
}

func TestParametersValidateClamps(t *testing.T) {
	p := NewParameters().WithQuality(0).WithNumLevels(-1)
	require.NoError(t, p.Validate())
	assert.Equal(t, 80, p.Quality)
	assert.Equal(t, 5, p.NumLevels)
}

func TestParametersChaining(t *testing.T) {
	p := NewParameters().
		WithQuality(42).
		WithIrreversible(false).
		WithNumLayers(2).
		WithProgression(t2.OrderCPRL).
		WithTargetRatio(16)
	assert.Equal(t, 42, p.Quality)
	assert.False(t, p.Irreversible)
	assert.Equal(t, 2, p.NumLayers)
	assert.Equal(t, t2.OrderCPRL, p.ProgressionOrder)
	assert.Equal(t, 16.0, p.TargetRatio)
}

func TestCodecIdentity(t *testing.T) {
	c := NewCodec()
	assert.Equal(t, "JPEG 2000", c.Name())
	assert.NotNil(t, c.GetDefaultParameters())
}

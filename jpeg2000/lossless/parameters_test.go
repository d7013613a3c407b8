package lossless

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-j2k/jpeg2000/t2"
)

func TestParametersDefaults(t *testing.T) {
	p := NewParameters()
	assert.Equal(t, 5, p.NumLevels)
	assert.True(t, p.AllowMCT)
	assert.Equal(t, 1, p.NumLayers)
	assert.Equal(t, t2.OrderLRCP, p.ProgressionOrder)
}

func TestParametersGetSet(t *testing.T) {
	p := NewParameters()
	p.SetParameter("numLevels", 3)
	p.SetParameter("numLayers", 4)
	p.SetParameter("allowMCT", false)
	p.SetParameter("targetRatio", 8.0)
	p.SetParameter("custom", "value")

	assert.Equal(t, 3, p.GetParameter("numLevels"))
	assert.Equal(t, 4, p.GetParameter("numLayers"))
	assert.Equal(t, false, p.GetParameter("allowMCT"))
	assert.Equal(t, 8.0, p.GetParameter("targetRatio"))
	assert.Equal(t, "value", p.GetParameter("custom"))
}

func TestParametersValidateClamps(t *testing.T) {
	p := NewParameters().WithNumLevels(9).WithNumLayers(0).WithTargetRatio(-1)
	require.NoError(t, p.Validate())
	assert.Equal(t, 5, p.NumLevels)
	assert.Equal(t, 1, p.NumLayers)
	assert.Zero(t, p.TargetRatio)
}

func TestParametersChaining(t *testing.T) {
	p := NewParameters().
		WithNumLevels(2).
		WithNumLayers(3).
		WithProgression(t2.OrderRPCL).
		WithAllowMCT(false).
		WithTargetRatio(10)
	assert.Equal(t, 2, p.NumLevels)
	assert.Equal(t, 3, p.NumLayers)
	assert.Equal(t, t2.OrderRPCL, p.ProgressionOrder)
	assert.False(t, p.AllowMCT)
	assert.Equal(t, 10.0, p.TargetRatio)
}

func TestCodecIdentity(t *testing.T) {
	c := NewCodec()
	assert.Equal(t, "JPEG 2000 Lossless", c.Name())
	assert.NotNil(t, c.GetDefaultParameters())
}

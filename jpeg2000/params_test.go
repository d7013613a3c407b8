package jpeg2000

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	p := DefaultEncodeParams(640, 480, 3, 8, false)
	assert.NoError(t, p.Validate())
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*EncodeParams)
	}{
		{"zero width", func(p *EncodeParams) { p.Width = 0 }},
		{"too many components", func(p *EncodeParams) { p.Components = 20000 }},
		{"zero depth", func(p *EncodeParams) { p.BitDepth = 0 }},
		{"depth beyond part 1", func(p *EncodeParams) { p.BitDepth = 39 }},
		{"levels beyond 32", func(p *EncodeParams) { p.NumLevels = 33 }},
		{"code block not power of two", func(p *EncodeParams) { p.CodeBlockWidth = 48 }},
		{"code block too small", func(p *EncodeParams) { p.CodeBlockWidth = 2 }},
		{"code block area over 4096", func(p *EncodeParams) {
			p.CodeBlockWidth = 128
			p.CodeBlockHeight = 64
		}},
		{"guard bits", func(p *EncodeParams) { p.GuardBits = 0 }},
		{"layers", func(p *EncodeParams) { p.NumLayers = 0 }},
		{"progression", func(p *EncodeParams) { p.ProgressionOrder = 7 }},
		{"precinct not power of two", func(p *EncodeParams) {
			p.PrecinctWidth = 48
			p.PrecinctHeight = 64
		}},
		{"quality", func(p *EncodeParams) { p.Lossless = false; p.Quality = 0 }},
		{"layer bytes mismatch", func(p *EncodeParams) { p.LayerBytes = []int{1, 2} }},
		{"roi shift range", func(p *EncodeParams) { p.ROIShifts = []int{40, 0, 0} }},
		{"roi shift count", func(p *EncodeParams) { p.ROIShifts = []int{1} }},
	}
	for _, tc := range cases {
		p := DefaultEncodeParams(640, 480, 3, 8, false)
		tc.mutate(p)
		err := p.Validate()
		require.Error(t, err, tc.name)
		assert.ErrorIs(t, err, ErrInvalidParameter, tc.name)
	}
}

func TestCodeBlockStyleFolding(t *testing.T) {
	p := DefaultEncodeParams(8, 8, 1, 8, false)
	assert.Equal(t, styleTermAll, p.codeBlockStyle(), "terminate-all is always signalled")

	p.SelectiveBypass = true
	p.Segmentation = true
	style := p.codeBlockStyle()
	assert.NotZero(t, style&styleBypass)
	assert.NotZero(t, style&styleSegsym)
	assert.NotZero(t, style&styleTermAll)
}

package jpeg2000

import (
	"github.com/cocosip/go-j2k/codec"
	"github.com/cocosip/go-j2k/jpeg2000/codestream"
)

// Transfer syntax UIDs for the two Part 1 configurations.
const (
	UIDLossless = "1.2.840.10008.1.2.4.90"
	UIDLossy    = "1.2.840.10008.1.2.4.91"
)

// StreamCodec adapts the core encoder and decoder to the registry-facing
// codec interface.
type StreamCodec struct {
	lossless bool
}

// NewLosslessCodec returns the reversible (5/3) codec.
func NewLosslessCodec() *StreamCodec { return &StreamCodec{lossless: true} }

// NewLossyCodec returns the irreversible (9/7) codec.
func NewLossyCodec() *StreamCodec { return &StreamCodec{} }

// Name returns the codec name.
func (c *StreamCodec) Name() string {
	if c.lossless {
		return "jpeg2000-lossless"
	}
	return "jpeg2000"
}

// UID returns the DICOM transfer syntax UID.
func (c *StreamCodec) UID() string {
	if c.lossless {
		return UIDLossless
	}
	return UIDLossy
}

// Encode compresses interleaved pixel data. Options may carry an
// *EncodeParams to override the coding knobs; geometry always comes from
// the request.
func (c *StreamCodec) Encode(params codec.EncodeParams) ([]byte, error) {
	ep := DefaultEncodeParams(params.Width, params.Height, params.Components,
		params.BitDepth, params.Signed)
	ep.Lossless = c.lossless
	if opts, ok := params.Options.(*EncodeParams); ok && opts != nil {
		custom := *opts
		custom.Width = params.Width
		custom.Height = params.Height
		custom.Components = params.Components
		custom.BitDepth = params.BitDepth
		custom.IsSigned = params.Signed
		custom.Lossless = c.lossless
		ep = &custom
	}
	return NewEncoder(ep).Encode(params.PixelData)
}

// Decode decompresses a codestream.
func (c *StreamCodec) Decode(data []byte) (*codec.DecodeResult, error) {
	d := NewDecoder()
	if err := d.Decode(data); err != nil {
		return nil, err
	}
	return &codec.DecodeResult{
		PixelData:  d.PixelData(),
		Width:      d.Width(),
		Height:     d.Height(),
		Components: d.Components(),
		BitDepth:   d.BitDepth(),
		Signed:     d.Signed(),
	}, nil
}

// PeekSIZ exposes the header-only image probe for container layers.
func PeekSIZ(data []byte) (*codestream.SIZ, error) {
	return codestream.PeekSIZ(data)
}

func init() {
	codec.Register(NewLosslessCodec())
	codec.Register(NewLossyCodec())
}

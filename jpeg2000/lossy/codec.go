// Package lossy provides the DICOM codec adapter for JPEG 2000 Image
// Compression, transfer syntax 1.2.840.10008.1.2.4.91.
package lossy

import (
	"fmt"

	"github.com/cocosip/go-dicom/pkg/dicom/transfer"
	"github.com/cocosip/go-dicom/pkg/imaging/codec"
	"github.com/cocosip/go-dicom/pkg/imaging/imagetypes"

	"github.com/cocosip/go-j2k/jpeg2000"
)

var _ codec.Codec = (*Codec)(nil)

const codecName = "JPEG 2000"

// Codec implements the go-dicom codec interface over the irreversible
// (9/7) configuration of the core encoder. The .91 syntax also permits
// reversible coding; Parameters.Irreversible false selects it.
type Codec struct {
	transferSyntax *transfer.Syntax
}

// NewCodec creates the codec for the standard JPEG 2000 transfer syntax.
func NewCodec() *Codec {
	return &Codec{transferSyntax: transfer.JPEG2000}
}

// Name returns the codec name.
func (c *Codec) Name() string { return codecName }

// TransferSyntax returns the DICOM transfer syntax this codec handles.
func (c *Codec) TransferSyntax() *transfer.Syntax { return c.transferSyntax }

// GetDefaultParameters returns the default codec parameters.
func (c *Codec) GetDefaultParameters() codec.Parameters {
	return NewParameters()
}

// Encode compresses every frame of oldPixelData into newPixelData.
func (c *Codec) Encode(oldPixelData, newPixelData imagetypes.PixelData, parameters codec.Parameters) error {
	if oldPixelData == nil || newPixelData == nil {
		return fmt.Errorf("source and destination PixelData cannot be nil")
	}
	frameInfo := oldPixelData.GetFrameInfo()
	if frameInfo == nil {
		return fmt.Errorf("source pixel data has no frame info")
	}

	params := extractParameters(parameters)
	if err := params.Validate(); err != nil {
		return fmt.Errorf("invalid lossy parameters: %w", err)
	}

	encParams := jpeg2000.DefaultEncodeParams(
		int(frameInfo.Width),
		int(frameInfo.Height),
		int(frameInfo.SamplesPerPixel),
		int(frameInfo.BitsStored),
		frameInfo.PixelRepresentation != 0,
	)
	encParams.Lossless = !params.Irreversible
	encParams.Quality = params.Quality
	encParams.NumLevels = params.NumLevels
	encParams.ProgressionOrder = params.ProgressionOrder
	encParams.NumLayers = params.NumLayers
	encParams.TargetRatio = params.TargetRatio
	encParams.EnableMCT = params.AllowMCT

	frameCount := oldPixelData.FrameCount()
	if frameCount == 0 {
		return fmt.Errorf("source pixel data is empty (no frames)")
	}
	for i := 0; i < frameCount; i++ {
		frame, err := oldPixelData.GetFrame(i)
		if err != nil {
			return fmt.Errorf("failed to get frame %d: %w", i, err)
		}
		encoder := jpeg2000.NewEncoder(encParams)
		encoded, err := encoder.Encode(frame)
		if err != nil {
			return fmt.Errorf("JPEG 2000 encode failed for frame %d: %w", i, err)
		}
		if err := newPixelData.AddFrame(encoded); err != nil {
			return fmt.Errorf("failed to add encoded frame %d: %w", i, err)
		}
	}
	return nil
}

// Decode decompresses every frame of oldPixelData into newPixelData.
func (c *Codec) Decode(oldPixelData, newPixelData imagetypes.PixelData, _ codec.Parameters) error {
	if oldPixelData == nil || newPixelData == nil {
		return fmt.Errorf("source and destination PixelData cannot be nil")
	}
	frameCount := oldPixelData.FrameCount()
	if frameCount == 0 {
		return fmt.Errorf("source pixel data is empty (no frames)")
	}
	for i := 0; i < frameCount; i++ {
		frame, err := oldPixelData.GetFrame(i)
		if err != nil {
			return fmt.Errorf("failed to get frame %d: %w", i, err)
		}
		decoder := jpeg2000.NewDecoder()
		if err := decoder.Decode(frame); err != nil {
			return fmt.Errorf("JPEG 2000 decode failed for frame %d: %w", i, err)
		}
		if err := newPixelData.AddFrame(decoder.PixelData()); err != nil {
			return fmt.Errorf("failed to add decoded frame %d: %w", i, err)
		}
	}
	return nil
}

// Register installs the codec in the global go-dicom registry.
func Register() {
	codec.GetGlobalRegistry().RegisterCodec(transfer.JPEG2000, NewCodec())
}

func init() {
	Register()
}

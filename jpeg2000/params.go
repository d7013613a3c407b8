package jpeg2000

import (
	"math/bits"

	"github.com/cocosip/go-j2k/jpeg2000/codestream"
	"github.com/cocosip/go-j2k/jpeg2000/t2"
)

// EncodeParams configures the encoder.
type EncodeParams struct {
	// Image geometry.
	Width      int
	Height     int
	Components int
	BitDepth   int
	IsSigned   bool

	// Tiling grid. Zero means a single tile covering the image.
	TileWidth  int
	TileHeight int

	// Coding parameters.
	NumLevels       int  // wavelet decomposition levels, 0-32
	Lossless        bool // true: 5/3 reversible; false: 9/7 irreversible
	CodeBlockWidth  int  // power of two, 4-1024, area <= 4096
	CodeBlockHeight int
	GuardBits       int // 1-7

	// Precinct size per resolution (power of two). Zero selects the
	// maximal 2^15 precinct.
	PrecinctWidth  int
	PrecinctHeight int

	// Lossy quality, 1-100; only used when Lossless is false.
	Quality int

	// TargetRatio requests original/compressed >= ratio via PCRD
	// truncation of the final layer; 0 disables rate control.
	TargetRatio float64

	// Explicit per-layer byte budgets; overrides TargetRatio when set.
	// A non-positive entry means "no bound" for that layer.
	LayerBytes []int

	// Progression and layering.
	ProgressionOrder int // t2.OrderLRCP etc.
	NumLayers        int

	// EnableMCT applies RCT (lossless) or ICT (lossy) on 3-component
	// images.
	EnableMCT bool

	// Optional code-block style additions (Table A.18); the terminate-
	// all-passes bit is always set by this encoder.
	SelectiveBypass bool
	ResetContexts   bool
	Segmentation    bool
	PredictableTerm bool

	// SOP/EPH resync markers.
	UseSOP bool
	UseEPH bool

	// ROIShifts applies the MaxShift method per component, signalled
	// through RGN. Empty means no ROI.
	ROIShifts []int

	// Comment written into the main header; empty disables COM.
	Comment string

	// WriteTLM emits a TLM segment with per-tile-part lengths.
	WriteTLM bool
}

// DefaultEncodeParams returns lossless defaults for the given image.
func DefaultEncodeParams(width, height, components, bitDepth int, isSigned bool) *EncodeParams {
	return &EncodeParams{
		Width:            width,
		Height:           height,
		Components:       components,
		BitDepth:         bitDepth,
		IsSigned:         isSigned,
		NumLevels:        5,
		Lossless:         true,
		Quality:          80,
		CodeBlockWidth:   64,
		CodeBlockHeight:  64,
		GuardBits:        2,
		ProgressionOrder: t2.OrderLRCP,
		NumLayers:        1,
		EnableMCT:        true,
	}
}

// Validate checks the Part 1 constraints.
func (p *EncodeParams) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return codestream.InvalidParameterf("image %dx%d is empty", p.Width, p.Height)
	}
	if p.Components <= 0 || p.Components > 16384 {
		return codestream.InvalidParameterf("component count %d outside [1, 16384]", p.Components)
	}
	if p.BitDepth < 1 || p.BitDepth > 38 {
		return codestream.InvalidParameterf("bit depth %d outside [1, 38]", p.BitDepth)
	}
	if p.BitDepth > 31 {
		return codestream.InvalidParameterf("bit depth %d exceeds this implementation's 31-bit sample range", p.BitDepth)
	}
	if p.NumLevels < 0 || p.NumLevels > 32 {
		return codestream.InvalidParameterf("decomposition levels %d outside [0, 32]", p.NumLevels)
	}
	if p.TileWidth < 0 || p.TileHeight < 0 {
		return codestream.InvalidParameterf("negative tile size")
	}
	if err := validateCodeBlockDim("width", p.CodeBlockWidth); err != nil {
		return err
	}
	if err := validateCodeBlockDim("height", p.CodeBlockHeight); err != nil {
		return err
	}
	if p.CodeBlockWidth*p.CodeBlockHeight > 4096 {
		return codestream.InvalidParameterf("code-block area %d exceeds 4096",
			p.CodeBlockWidth*p.CodeBlockHeight)
	}
	if p.GuardBits < 1 || p.GuardBits > 7 {
		return codestream.InvalidParameterf("guard bits %d outside [1, 7]", p.GuardBits)
	}
	if p.NumLayers < 1 || p.NumLayers > 65535 {
		return codestream.InvalidParameterf("layer count %d outside [1, 65535]", p.NumLayers)
	}
	if p.ProgressionOrder < t2.OrderLRCP || p.ProgressionOrder > t2.OrderCPRL {
		return codestream.InvalidParameterf("progression order %d out of range", p.ProgressionOrder)
	}
	if p.PrecinctWidth != 0 && (p.PrecinctWidth < 4 || bits.OnesCount(uint(p.PrecinctWidth)) != 1) {
		return codestream.InvalidParameterf("precinct width %d is not a power of two", p.PrecinctWidth)
	}
	if p.PrecinctHeight != 0 && (p.PrecinctHeight < 4 || bits.OnesCount(uint(p.PrecinctHeight)) != 1) {
		return codestream.InvalidParameterf("precinct height %d is not a power of two", p.PrecinctHeight)
	}
	if !p.Lossless && (p.Quality < 1 || p.Quality > 100) {
		return codestream.InvalidParameterf("quality %d outside [1, 100]", p.Quality)
	}
	if len(p.LayerBytes) > 0 && len(p.LayerBytes) != p.NumLayers {
		return codestream.InvalidParameterf("LayerBytes has %d entries for %d layers",
			len(p.LayerBytes), p.NumLayers)
	}
	for c, s := range p.ROIShifts {
		if s < 0 || s > 37 {
			return codestream.InvalidParameterf("ROI shift %d for component %d outside [0, 37]", s, c)
		}
		if s > 0 && p.BitDepth+s+p.NumLevels > 30 {
			return codestream.InvalidParameterf("ROI shift %d overflows the coefficient range", s)
		}
	}
	if len(p.ROIShifts) > 0 && len(p.ROIShifts) != p.Components {
		return codestream.InvalidParameterf("ROIShifts has %d entries for %d components",
			len(p.ROIShifts), p.Components)
	}
	return nil
}

func validateCodeBlockDim(name string, v int) error {
	if v < 4 || v > 1024 || bits.OnesCount(uint(v)) != 1 {
		return codestream.InvalidParameterf("code-block %s %d is not a power of two in [4, 1024]", name, v)
	}
	return nil
}

// codeBlockStyle folds the style options into the Table A.18 byte. Every
// pass is terminated by this encoder, so the terminate-all bit is fixed.
func (p *EncodeParams) codeBlockStyle() int {
	style := styleTermAll
	if p.SelectiveBypass {
		style |= styleBypass
	}
	if p.ResetContexts {
		style |= styleReset
	}
	if p.Segmentation {
		style |= styleSegsym
	}
	if p.PredictableTerm {
		style |= stylePterm
	}
	return style
}

// Style flag aliases shared with the t1 package.
const (
	styleBypass  = 0x01
	styleReset   = 0x02
	styleTermAll = 0x04
	stylePterm   = 0x10
	styleSegsym  = 0x20
)

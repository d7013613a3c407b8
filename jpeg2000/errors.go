// Package jpeg2000 implements the ISO/IEC 15444-1 core codec: tiling,
// component transforms, wavelet decomposition, quantization, EBCOT
// entropy coding, rate-distortion optimised layering, and the
// marker-segment codestream.
package jpeg2000

import "github.com/cocosip/go-j2k/jpeg2000/codestream"

// The error taxonomy lives at the codestream boundary; these aliases let
// callers match with errors.Is without importing the subpackage.
var (
	ErrInvalidParameter    = codestream.ErrInvalidParameter
	ErrTruncatedCodestream = codestream.ErrTruncatedCodestream
	ErrMissingMarker       = codestream.ErrMissingMarker
	ErrMalformedMarker     = codestream.ErrMalformedMarker
	ErrUnsupportedFeature  = codestream.ErrUnsupportedFeature
	ErrCorruptCodestream   = codestream.ErrCorruptCodestream
	ErrCancelled           = codestream.ErrCancelled
)

package codestream

import "fmt"

// Kind classifies a codec error per the decoder's failure taxonomy.
type Kind int

// Error kinds. Each failure anywhere in the codec maps to exactly one.
const (
	KindInvalidParameter Kind = iota
	KindTruncated
	KindMissingMarker
	KindMalformedMarker
	KindUnsupported
	KindCorrupt
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindInvalidParameter:
		return "invalid parameter"
	case KindTruncated:
		return "truncated codestream"
	case KindMissingMarker:
		return "missing marker"
	case KindMalformedMarker:
		return "malformed marker"
	case KindUnsupported:
		return "unsupported feature"
	case KindCorrupt:
		return "corrupt codestream"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// CodecError carries the failure kind, the byte offset at which it was
// detected, and the marker/segment context.
type CodecError struct {
	Kind    Kind
	Offset  int64
	Context string
	Err     error
}

func (e *CodecError) Error() string {
	msg := e.Kind.String()
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.Offset >= 0 {
		msg = fmt.Sprintf("%s (offset %d)", msg, e.Offset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CodecError) Unwrap() error { return e.Err }

// Is matches any CodecError of the same kind, so errors.Is works against
// the exported sentinels.
func (e *CodecError) Is(target error) bool {
	t, ok := target.(*CodecError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidParameter    = &CodecError{Kind: KindInvalidParameter, Offset: -1}
	ErrTruncatedCodestream = &CodecError{Kind: KindTruncated, Offset: -1}
	ErrMissingMarker       = &CodecError{Kind: KindMissingMarker, Offset: -1}
	ErrMalformedMarker     = &CodecError{Kind: KindMalformedMarker, Offset: -1}
	ErrUnsupportedFeature  = &CodecError{Kind: KindUnsupported, Offset: -1}
	ErrCorruptCodestream   = &CodecError{Kind: KindCorrupt, Offset: -1}
	ErrCancelled           = &CodecError{Kind: KindCancelled, Offset: -1}
)

func newError(kind Kind, offset int64, format string, args ...any) error {
	return &CodecError{Kind: kind, Offset: offset, Context: fmt.Sprintf(format, args...)}
}

// InvalidParameterf reports a caller-supplied configuration violation.
func InvalidParameterf(format string, args ...any) error {
	return newError(KindInvalidParameter, -1, format, args...)
}

// Truncatedf reports that the byte source ended inside a segment.
func Truncatedf(offset int64, format string, args ...any) error {
	return newError(KindTruncated, offset, format, args...)
}

// MissingMarkerf reports a mandatory marker absent from its position.
func MissingMarkerf(offset int64, format string, args ...any) error {
	return newError(KindMissingMarker, offset, format, args...)
}

// Malformedf reports a length or field inconsistency in a segment.
func Malformedf(offset int64, format string, args ...any) error {
	return newError(KindMalformedMarker, offset, format, args...)
}

// Unsupportedf reports a signalled feature this codec does not implement.
func Unsupportedf(offset int64, format string, args ...any) error {
	return newError(KindUnsupported, offset, format, args...)
}

// Corruptf reports entropy or packet data violating an invariant.
func Corruptf(offset int64, format string, args ...any) error {
	return newError(KindCorrupt, offset, format, args...)
}

// Cancelledf reports caller cancellation at a checkpoint.
func Cancelledf(format string, args ...any) error {
	return newError(KindCancelled, -1, format, args...)
}

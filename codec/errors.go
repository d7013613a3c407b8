package codec

import "errors"

var (
	// ErrCodecNotFound is returned when no codec matches a name or UID.
	ErrCodecNotFound = errors.New("codec not found")

	// ErrInvalidParameter indicates invalid encode or decode options.
	ErrInvalidParameter = errors.New("invalid parameter")
)

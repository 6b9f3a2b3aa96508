package domain

import "errors"

var (
	ErrInvalidChunkConfig = errors.New("invalid chunker configuration")
	ErrSearchUnavailable  = errors.New("search unavailable")
	ErrLengthMismatch     = errors.New("chunk and embedding counts differ")
	ErrUnsupportedFormat  = errors.New("unsupported file format")
	ErrDimensionMismatch  = errors.New("vector dimension mismatch")
	ErrStreamConsumed     = errors.New("stream already consumed")
)

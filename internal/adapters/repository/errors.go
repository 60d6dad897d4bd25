package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrClosed            = errors.New("store closed")
	ErrUnsupportedDriver = errors.New("unsupported store driver")
	ErrInvalidEmbedding  = errors.New("stored embedding is malformed")
)

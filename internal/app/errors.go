package service

import (
	"errors"
)

// Sentinel error kinds for request validation. Store and domain failures use
// the model.Err* kinds.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrFaceCount      = errors.New("exactly one face is required")
)

package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds shared across layers. These allow errors.Is from callers.
var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrInvalidSession    = errors.New("invalid session window")
	ErrInvalidSample     = errors.New("invalid enrollment sample")
	ErrNameConflict      = errors.New("external id already enrolled under another name")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSampleNotFound    = errors.New("enrollment sample not found")
	ErrEventNotFound     = errors.New("attendance event not found")
)

var (
	errEndBeforeStart = errors.New("end before start")
	errMaxScore       = errors.New("max score must be positive")
	errNegativeGrace  = errors.New("late grace must not be negative")
)

// KindError tags an operation failure with a sentinel kind and an optional cause.
type KindError struct {
	Op    string
	Kind  error
	Cause error
}

func (e *KindError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Cause)
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *KindError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// NewKind returns an error of the given kind for op.
func NewKind(op string, kind error) error {
	return &KindError{Op: op, Kind: kind}
}

// WrapKind returns an error of the given kind for op carrying cause.
func WrapKind(op string, kind, cause error) error {
	return &KindError{Op: op, Kind: kind, Cause: cause}
}

// DimensionMismatch reports a query/catalog dimensionality violation.
func DimensionMismatch(op string, want, got int) error {
	return WrapKind(op, ErrDimensionMismatch, fmt.Errorf("want %d components, got %d", want, got))
}

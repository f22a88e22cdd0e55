package models

import (
	"errors"
	"fmt"
)

var (
	ErrSourceUnavailable    = errors.New("source unavailable")
	ErrAllSourcesExhausted  = errors.New("all sources exhausted")
	ErrUnknownSymbol        = errors.New("unknown symbol")
	ErrStaleSnapshotTimeout = errors.New("stale snapshot timeout")
	ErrInvalidOrder         = errors.New("invalid order")
	ErrEmptySnapshot        = errors.New("empty snapshot")
	ErrInvalidSettings      = errors.New("invalid settings")
)

// SourceError records why a single upstream failed. It matches both
// ErrSourceUnavailable and the underlying cause with errors.Is.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Err}
}

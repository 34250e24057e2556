package render

import (
	"errors"
	"fmt"
)

var (
	// ErrSampleRateMismatch reports a stem whose sample rate differs
	// from the filter dataset.
	ErrSampleRateMismatch = errors.New("render: sample rate mismatch")

	// ErrUnsolvableLayout reports a speaker layout whose cancellation
	// system cannot be inverted.
	ErrUnsolvableLayout = errors.New("render: unsolvable speaker layout")
)

// StemError wraps a failure of one stem so multi-stem renders can
// report which input failed.
type StemError struct {
	Stem string
	Err  error
}

func (e *StemError) Error() string {
	return fmt.Sprintf("render: stem %q: %v", e.Stem, e.Err)
}

func (e *StemError) Unwrap() error { return e.Err }

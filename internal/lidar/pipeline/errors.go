package pipeline

import (
	"errors"
	"fmt"
)

// ErrWriteFailure is matched by every WriteFailureError.
var ErrWriteFailure = errors.New("sample write failed")

// ErrSamplePending is returned by Run while a failed write awaits RetryPending.
var ErrSamplePending = errors.New("a sample is pending retry")

// WriteFailureError reports that the sample writer rejected a completed
// sample. The driver keeps the encoded sample so RetryPending can write it
// again without re-accumulating.
type WriteFailureError struct {
	SampleIndex int
	Err         error
}

func (e *WriteFailureError) Error() string {
	return fmt.Sprintf("failed to write sample %d: %v", e.SampleIndex, e.Err)
}

// Is matches ErrWriteFailure.
func (e *WriteFailureError) Is(target error) bool { return target == ErrWriteFailure }

func (e *WriteFailureError) Unwrap() error { return e.Err }

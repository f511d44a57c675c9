package pipeline

import (
	"context"
	"errors"
)

var (
	// ErrInvalidRequest is returned when a request cannot be planned or laid out.
	ErrInvalidRequest = errors.New("runcompare: invalid request")

	// ErrSourceUnavailable is returned when a source is missing, unreadable or has no video track.
	ErrSourceUnavailable = errors.New("runcompare: source unavailable")

	// ErrEncodeFailed is returned when the export backend fails.
	ErrEncodeFailed = errors.New("runcompare: encode failed")

	// ErrCancelled is returned when the caller cancels an export.
	ErrCancelled = errors.New("runcompare: cancelled")
)

// KindOf maps an error to the ErrorKind reported in ExportResult.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorNone
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return ErrorCancelled
	case errors.Is(err, ErrSourceUnavailable):
		return ErrorSourceUnavailable
	case errors.Is(err, ErrInvalidRequest):
		return ErrorInvalidRequest
	default:
		return ErrorEncodeFailed
	}
}

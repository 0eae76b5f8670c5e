package scheduler

import (
	"errors"
	"fmt"
)

// ErrNoCardsAvailable is returned by StartSession when the scheduler has nothing to review.
var ErrNoCardsAvailable = errors.New("no flashcards available")

// TransientError is a timeout, transport failure or 5xx response. It is safe to retry.
type TransientError struct {
	Op     string
	Status int // zero when no response was received
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: server error %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Temporary reports that the call may succeed if retried.
func (e *TransientError) Temporary() bool { return true }

// RemoteError is a non-retryable 4xx response.
type RemoteError struct {
	Op     string
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

// IsTransient reports whether err is, or wraps, a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

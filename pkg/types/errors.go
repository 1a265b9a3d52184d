package types

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownFailure    = errors.New("an error has occurred")
	ErrConnectInProgress = errors.New("a connection attempt is already in progress")
	ErrAlreadyConnected  = errors.New("already connected to a room")
	ErrNotConnected      = errors.New("not connected to a room")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrNotSupported      = errors.New("operation not supported")
)

// ConnectionError is recorded in room state when a connection attempt fails.
type ConnectionError struct {
	URL   string
	Cause error
}

func NewConnectionError(url string, cause error) *ConnectionError {
	if cause == nil {
		cause = ErrUnknownFailure
	}
	return &ConnectionError{URL: url, Cause: cause}
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("could not connect to %s: %v", e.URL, e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

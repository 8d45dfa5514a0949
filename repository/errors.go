package repository

import (
	"errors"
	"fmt"
)

// StaleError accompanies data served from the last-known-good snapshot
// after a failed remote read. The returned data is usable.
type StaleError struct {
	Op  string
	Err error
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("%s: serving cached data: %v", e.Op, e.Err)
}

func (e *StaleError) Unwrap() error { return e.Err }

// RemoteError is a failed call to the remote registry API.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: remote registry: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: remote registry returned %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsStale reports whether err only signals that returned data came from a
// snapshot.
func IsStale(err error) bool {
	var stale *StaleError
	return errors.As(err, &stale)
}

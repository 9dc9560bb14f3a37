package abtest

import (
	"errors"
	"fmt"
)

var (
	// ErrSnapshotNotLoaded is returned by Execute before any snapshot was applied.
	ErrSnapshotNotLoaded = errors.New("snapshot not loaded")

	// ErrProjectNotFound is returned when no project owns the requested id or URL.
	ErrProjectNotFound = errors.New("project not found")

	// ErrURLMismatch is returned when a URL lies outside its project's URL.
	ErrURLMismatch = errors.New("url mismatch")
)

type AbtestClientError struct {
	msg string
	err error
}

type AbtestAPIError struct {
	Msg                string
	Err                error
	ResponseStatusCode int
	ResponseStatus     string
}

func newClientError(err error, format string, args ...any) *AbtestClientError {
	return &AbtestClientError{msg: fmt.Sprintf(format, args...), err: err}
}

func (e *AbtestClientError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *AbtestClientError) Unwrap() error {
	return e.err
}

func (e *AbtestAPIError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	if e.ResponseStatus != "" {
		return fmt.Sprintf("%s: %s", e.Msg, e.ResponseStatus)
	}
	return e.Msg
}

func (e *AbtestAPIError) Unwrap() error {
	return e.Err
}

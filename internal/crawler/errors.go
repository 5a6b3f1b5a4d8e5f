package crawler

import (
	"errors"
	"fmt"
)

// ErrMaxRetriesExceeded matches every MaxRetriesExceededError via errors.Is.
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// ErrMirrorWrite marks a batch that reached the primary table but not every
// mirror. The rows are durable and must not be written to the primary again.
var ErrMirrorWrite = errors.New("mirror write failed")

// FetchError reports a network, navigation, timeout or status failure.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a payload whose expected structure is missing or malformed.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse: " + e.Reason
	}
	return fmt.Sprintf("parse: %s: %v", e.Reason, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MaxRetriesExceededError is returned when a unit exhausts its retry budget.
type MaxRetriesExceededError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *MaxRetriesExceededError) Error() string {
	return fmt.Sprintf("max retries exceeded for %s after %d attempts: %v", e.URL, e.Attempts, e.Last)
}

// Unwrap exposes both the sentinel and the last cause.
func (e *MaxRetriesExceededError) Unwrap() []error {
	return []error{ErrMaxRetriesExceeded, e.Last}
}

// NewFetchError wraps err unless it already is a FetchError.
func NewFetchError(url string, err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{URL: url, Err: err}
}

// NewParseError builds a ParseError.
func NewParseError(reason string, err error) error {
	return &ParseError{Reason: reason, Err: err}
}

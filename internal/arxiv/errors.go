package arxiv

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIdentifier means the input matched none of the recognized shapes.
	ErrInvalidIdentifier = errors.New("invalid arXiv identifier")

	// ErrNotFound means the identifier is well formed but arXiv has no record of it.
	ErrNotFound = errors.New("arXiv paper not found")

	// ErrUpstreamUnavailable covers network failures, throttling and 5xx replies.
	// It is the only fetch error worth retrying.
	ErrUpstreamUnavailable = errors.New("arXiv unavailable")

	// ErrMalformedResponse means arXiv answered but the feed could not be interpreted.
	ErrMalformedResponse = errors.New("malformed arXiv response")
)

// IdentifierError carries the rejected input.
type IdentifierError struct {
	Input  string
	Reason string
}

func (e *IdentifierError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %q", ErrInvalidIdentifier, e.Input)
	}
	return fmt.Sprintf("%s: %q (%s)", ErrInvalidIdentifier, e.Input, e.Reason)
}

func (e *IdentifierError) Unwrap() error {
	return ErrInvalidIdentifier
}

// FetchError wraps one of the fetch sentinels with the id and underlying cause.
type FetchError struct {
	ID   string
	Kind error
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.ID, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.ID, e.Kind, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func fetchErr(id string, kind, err error) error {
	return &FetchError{ID: id, Kind: kind, Err: err}
}

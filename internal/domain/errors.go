package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrParse signals a malformed triplet token or query string.
	ErrParse = errors.New("parse error")
	// ErrEmptyQuery signals a query that resolves to no usable filter groups.
	ErrEmptyQuery = errors.New("empty query")
	// ErrDecode signals a query identity that was not produced by the encoder.
	ErrDecode = errors.New("invalid query reference")
	// ErrAmbiguousTerm signals a term that resolves to several candidate triplets.
	ErrAmbiguousTerm = errors.New("ambiguous term")
	// ErrInvalidRequest signals an invalid request parameter.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable signals that the document store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrUpstream signals a failure of an external collaborator (image service).
	ErrUpstream = errors.New("upstream service error")
)

// ParseError wraps ErrParse with the offending token.
type ParseError struct {
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("%s: %s", ErrParse.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: %q: %s", ErrParse.Error(), e.Token, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// NewParseError creates a parse error for a token.
func NewParseError(token, reason string) error {
	return &ParseError{Token: token, Reason: reason}
}

// AmbiguousTermError wraps ErrAmbiguousTerm with the candidate triplets.
type AmbiguousTermError struct {
	Submitted  string
	Candidates []string
}

func (e *AmbiguousTermError) Error() string {
	return fmt.Sprintf("%s: %q matches %s", ErrAmbiguousTerm.Error(), e.Submitted, strings.Join(e.Candidates, ";"))
}

func (e *AmbiguousTermError) Unwrap() error { return ErrAmbiguousTerm }

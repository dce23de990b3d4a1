package stats

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/N4S4/site-stats/internal/badge"
	"github.com/N4S4/site-stats/internal/github"
)

// Kind classifies why a fetch failed
type Kind int

const (
	// KindNetwork covers transport failures and unexpected upstream responses
	KindNetwork Kind = iota + 1
	// KindRateLimited means the upstream quota was exhausted
	KindRateLimited
	// KindParse means the upstream answered but the payload could not be understood
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRateLimited:
		return "rate_limited"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// FetchError records a failed refresh of one resource
type FetchError struct {
	Resource string
	Kind     Kind
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Resource, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind carried by err, or 0 if err is not a FetchError
func KindOf(err error) Kind {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind
	}
	return 0
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, github.ErrRateLimited), errors.Is(err, github.ErrSecondaryRateLimited):
		return KindRateLimited
	case errors.Is(err, badge.ErrNoText), errors.Is(err, badge.ErrMalformed):
		return KindParse
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return KindParse
	}

	return KindNetwork
}

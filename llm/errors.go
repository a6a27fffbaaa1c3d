package llm

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Package errors.
var (
	ErrEmptyInput    = errors.New("llm: no transcript provided")
	ErrNotConfigured = errors.New("llm: API key not configured")
	ErrNoResponse    = errors.New("llm: response contained no message output")
)

// ErrorKind classifies a completion failure.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindRateLimited
	KindInvalidRequest
	KindNetwork
	KindAuth
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate-limited"
	case KindInvalidRequest:
		return "invalid-request"
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	}
	return "generic"
}

// APIError wraps a provider failure with its classification.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm provider: %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm provider: %s: %v", e.Kind, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

func classify(statusCode int, err error) error {
	if err == nil {
		return nil
	}
	kind := KindGeneric
	switch statusCode {
	case http.StatusTooManyRequests:
		kind = KindRateLimited
	case http.StatusBadRequest:
		kind = KindInvalidRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindAuth
	default:
		var netErr net.Error
		if errors.As(err, &netErr) {
			kind = KindNetwork
		}
	}
	return &APIError{Kind: kind, StatusCode: statusCode, Err: err}
}

// KindOf extracts the classification from err.
func KindOf(err error) ErrorKind {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindGeneric
}

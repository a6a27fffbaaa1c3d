// Package stt turns recorded audio files into text through a speech
// provider, handling size limits, chunking of long recordings, retries and
// temp-file hygiene.
package stt

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
)

// Validation and pipeline errors.
var (
	ErrFileTooSmall       = errors.New("stt: audio file too small to contain speech")
	ErrFileTooLarge       = errors.New("stt: audio file exceeds provider limit")
	ErrNoSuccessfulChunks = errors.New("stt: transcription failed for every chunk")
	ErrNoSpeechDetected   = errors.New("stt: no speech detected in audio")
)

// ErrorKind classifies a provider failure for user-facing messaging and
// retry decisions.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindRateLimited
	KindInvalidFormat
	KindNetwork
	KindTooLarge
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate-limited"
	case KindInvalidFormat:
		return "invalid-format"
	case KindNetwork:
		return "network"
	case KindTooLarge:
		return "too-large"
	case KindNotFound:
		return "not-found"
	}
	return "generic"
}

// ProviderError wraps a speech provider failure with its classification.
type ProviderError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("stt provider: %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("stt provider: %s: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Classify wraps err with the kind implied by the HTTP status or error
// shape. A nil err returns nil.
func Classify(statusCode int, err error) error {
	if err == nil {
		return nil
	}
	kind := KindGeneric
	switch statusCode {
	case http.StatusRequestEntityTooLarge:
		kind = KindTooLarge
	case http.StatusTooManyRequests:
		kind = KindRateLimited
	case http.StatusBadRequest:
		kind = KindInvalidFormat
	default:
		var netErr net.Error
		switch {
		case errors.As(err, &netErr):
			kind = KindNetwork
		case errors.Is(err, os.ErrNotExist):
			kind = KindNotFound
		}
	}
	return &ProviderError{Kind: kind, StatusCode: statusCode, Err: err}
}

// KindOf extracts the classification from err, or KindGeneric when err is
// not a ProviderError.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindGeneric
}

// Retryable reports whether a retry could plausibly succeed. Malformed
// input and oversized uploads fail the same way every time.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindInvalidFormat, KindTooLarge, KindNotFound:
		return false
	}
	return true
}

/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Kind categorizes judge failures.
type Kind string

const (
	// KindUnavailable covers missing credentials, rejected authentication and
	// unconfigured backends. Not retried.
	KindUnavailable Kind = "unavailable"
	// KindInvalidRequest covers requests the backend refuses as malformed. Not retried.
	KindInvalidRequest Kind = "invalid_request"
	// KindTimeout is a per-call timeout. Retried.
	KindTimeout Kind = "timeout"
	// KindRateLimit is a 429 or quota exhaustion. Retried.
	KindRateLimit Kind = "rate_limit"
	// KindServer is a 5xx from the backend. Retried.
	KindServer Kind = "server"
	// KindNetwork is a connection-level failure. Retried.
	KindNetwork Kind = "network"
	// KindMalformedOutput means the judge replied without a usable verdict. Not retried.
	KindMalformedOutput Kind = "malformed_output"
)

// Retryable reports whether failures of this kind are worth another attempt.
func (k Kind) Retryable() bool {
	switch k {
	case KindTimeout, KindRateLimit, KindServer, KindNetwork:
		return true
	default:
		return false
	}
}

// BackendError is a classified failure from a judge backend.
type BackendError struct {
	Provider   Provider
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s judge %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s judge %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ParseError reports judge output that does not hold a valid verdict.
type ParseError struct {
	Reason string
	Raw    string
	// Usage is the metadata of the call that produced Raw, set when the
	// backend reported token usage for it.
	Usage *Metadata
}

func (e *ParseError) Error() string {
	return "malformed judge output: " + e.Reason
}

// UsageOf returns the token usage carried by err, if the failed call was
// billed by the backend.
func UsageOf(err error) (Metadata, bool) {
	var pe *ParseError
	if errors.As(err, &pe) && pe.Usage != nil {
		return *pe.Usage, true
	}
	return Metadata{}, false
}

// ErrNoBackend is returned when no backend is registered for a provider.
var ErrNoBackend = errors.New("no judge backend configured")

// ErrMissingCredentials is returned when a backend needs an API key that was not supplied.
var ErrMissingCredentials = errors.New("judge credentials are not configured")

// KindOf returns the failure kind of err, or "" when it is unclassified.
func KindOf(err error) Kind {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return KindMalformedOutput
	}
	if errors.Is(err, ErrNoBackend) || errors.Is(err, ErrMissingCredentials) {
		return KindUnavailable
	}
	return ""
}

// IsRetryable reports whether err is a transient backend failure.
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}

// IsUnavailable reports whether err means the judge backend cannot be used at all.
func IsUnavailable(err error) bool {
	return KindOf(err) == KindUnavailable
}

// kindForStatus maps an HTTP status code onto the taxonomy.
func kindForStatus(code int) Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case code == http.StatusRequestTimeout:
		return KindTimeout
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindUnavailable
	case code == 529 || code >= 500:
		return KindServer
	default:
		return KindInvalidRequest
	}
}

// classifyTransport classifies an error that carries no HTTP status.
// ok is false when the error is not recognizably transport related.
func classifyTransport(err error) (Kind, bool) {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout, true
		}
		return KindNetwork, true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return KindNetwork, true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") {
		return KindNetwork, true
	}
	return "", false
}

// classify wraps err as a BackendError for provider, using status when known.
func classify(provider Provider, status int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	if status != 0 {
		return &BackendError{Provider: provider, Kind: kindForStatus(status), StatusCode: status, Err: err}
	}
	if kind, ok := classifyTransport(err); ok {
		return &BackendError{Provider: provider, Kind: kind, Err: err}
	}
	return &BackendError{Provider: provider, Kind: KindInvalidRequest, Err: err}
}

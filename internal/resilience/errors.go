package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// TransientError wraps an error that is safe to retry (429, 5xx, network
// timeout) with an optional HTTP status code.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// QuotaError signals that an external source's API quota is exhausted.
// It is not retried within a dispatch; instead it pauses the session so a
// later resume can pick up where the batch stopped.
type QuotaError struct {
	Source string
	Err    error
}

func (e *QuotaError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: api quota exhausted", e.Source)
	}
	return fmt.Sprintf("%s: api quota exhausted: %s", e.Source, e.Err.Error())
}

func (e *QuotaError) Unwrap() error {
	return e.Err
}

// NewQuotaError marks an error as a quota-exhaustion signal from a source.
func NewQuotaError(source string, err error) *QuotaError {
	return &QuotaError{Source: source, Err: err}
}

// IsQuota reports whether the error chain contains a QuotaError.
func IsQuota(err error) bool {
	var qe *QuotaError
	return errors.As(err, &qe)
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or matches common transient network patterns. Quota errors
// are never transient: backing off will not restore a spent quota.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if IsQuota(err) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String heuristics for errors wrapped by HTTP clients.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// ClassifyHTTPStatus maps an HTTP status code onto the retry taxonomy:
// timeout/throttle codes and 5xx are transient, everything else permanent.
// Callers that know a 429 means a spent daily quota (rather than a rate
// limit) should wrap with NewQuotaError instead.
func ClassifyHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

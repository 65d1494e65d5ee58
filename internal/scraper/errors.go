package scraper

import (
	"errors"
	"fmt"
)

// The scraper reports failures through three typed errors rather than a
// generic error chain, so the sync engine can branch on the class:
// network failures are transient and retryable, parse failures mean the
// page changed shape and retrying will not help, and an empty page is not
// a failure at all.

// NetworkError is a transient transport-level failure (connection errors,
// non-2xx statuses, oversized responses). Retryable.
type NetworkError struct {
	Message string
	Cause   error
}

func (e *NetworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("network error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("network error: %s", e.Message)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// ParseError means the fetched document could not be interpreted: the
// upstream markup changed or the URL points at something malformed. Logged
// and skipped, never retried within a cycle.
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// NoDataError marks a well-formed but empty page: nothing to merge, not a
// failure for the caller.
type NoDataError struct {
	Message string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no data found: %s", e.Message)
}

// IsRetryable reports whether the failure class is worth retrying.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsNoData reports whether the error only marks an empty page.
func IsNoData(err error) bool {
	var noData *NoDataError
	return errors.As(err, &noData)
}

// FailureClass names the error class for logs and metrics.
func FailureClass(err error) string {
	var (
		netErr   *NetworkError
		parseErr *ParseError
		noData   *NoDataError
	)
	switch {
	case errors.As(err, &netErr):
		return "network"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &noData):
		return "no_data"
	default:
		return "unknown"
	}
}

// Package errors provides error types and handling for the trail crawler.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorType categorizes errors for handling decisions.
type ErrorType int

const (
	// Unknown is an uncategorized error.
	Unknown ErrorType = iota
	// SessionExpired means the validity probe landed on the login page.
	SessionExpired
	// ContentNotReady means an awaited content marker never appeared.
	ContentNotReady
	// Navigation represents network or browser navigation failures.
	Navigation
	// Timeout represents a wait that exceeded its deadline.
	Timeout
	// Extraction represents a field extractor failure on a loaded page.
	Extraction
	// Seed represents an invalid or unreadable seed.
	Seed
	// Config represents invalid configuration.
	Config
	// Cancelled represents context cancellation.
	Cancelled
)

// String returns the string representation of ErrorType.
func (t ErrorType) String() string {
	switch t {
	case SessionExpired:
		return "session_expired"
	case ContentNotReady:
		return "content_not_ready"
	case Navigation:
		return "navigation"
	case Timeout:
		return "timeout"
	case Extraction:
		return "extraction"
	case Seed:
		return "seed"
	case Config:
		return "config"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsRetryable returns whether errors of this type should be retried.
func (t ErrorType) IsRetryable() bool {
	return t == Timeout
}

// CrawlError represents a categorized crawl error.
type CrawlError struct {
	Type      ErrorType
	URL       string
	Operation string
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *CrawlError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error during %s on %s: %s (caused by: %v)",
			e.Type.String(), e.Operation, e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error during %s on %s: %s",
		e.Type.String(), e.Operation, e.URL, e.Message)
}

// Unwrap returns the underlying error.
func (e *CrawlError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a CrawlError of the same type.
func (e *CrawlError) Is(target error) bool {
	t, ok := target.(*CrawlError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// ErrSessionExpired matches any SessionExpired CrawlError via errors.Is.
var ErrSessionExpired = &CrawlError{Type: SessionExpired}

// NewCrawlError creates a new CrawlError.
func NewCrawlError(errType ErrorType, url, operation, message string, cause error) *CrawlError {
	return &CrawlError{
		Type:      errType,
		URL:       url,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// NewSessionExpiredError creates a session expired error.
func NewSessionExpiredError(probeURL, landedOn string) *CrawlError {
	return NewCrawlError(SessionExpired, probeURL, "probe",
		"redirected to "+landedOn+"; re-authenticate required", nil)
}

// NewNavigationError creates a navigation error.
func NewNavigationError(url string, cause error) *CrawlError {
	return NewCrawlError(Navigation, url, "navigate", "navigation failed", cause)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(url, operation string, cause error) *CrawlError {
	return NewCrawlError(Timeout, url, operation, "wait timed out", cause)
}

// NewExtractionError creates an extraction error.
func NewExtractionError(url string, cause error) *CrawlError {
	return NewCrawlError(Extraction, url, "extract", "field extraction failed", cause)
}

// NewSeedError creates a seed validation error.
func NewSeedError(url, reason string) *CrawlError {
	return NewCrawlError(Seed, url, "seed", reason, nil)
}

// NewCancelledError creates a cancelled error.
func NewCancelledError(url, operation string) *CrawlError {
	return NewCrawlError(Cancelled, url, operation, "operation cancelled", nil)
}

// Categorize determines the error type from a generic error.
func Categorize(err error, url, operation string) *CrawlError {
	if err == nil {
		return nil
	}

	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr
	}

	if errors.Is(err, context.Canceled) {
		return NewCancelledError(url, operation)
	}

	if isTimeout(err) {
		return NewTimeoutError(url, operation, err)
	}

	if isNetworkError(err) {
		return NewNavigationError(url, err)
	}

	return NewCrawlError(Unknown, url, operation, err.Error(), err)
}

// isTimeout checks if an error is a timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// isNetworkError checks for chrome's net::ERR_* failures and dial errors.
func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "net::ERR_") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host")
}

// IsRetryable checks if an error should be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr.Type.IsRetryable()
	}

	return isTimeout(err)
}

// GetErrorType extracts the error type from an error.
func GetErrorType(err error) ErrorType {
	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr.Type
	}
	return Unknown
}

// IsSessionExpired reports whether err is a SessionExpired error.
func IsSessionExpired(err error) bool {
	return GetErrorType(err) == SessionExpired
}

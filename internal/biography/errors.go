package biography

import (
	"errors"
	"fmt"
)

// ErrorCategory is the normalized failure taxonomy for biography fetches.
type ErrorCategory string

const (
	// CategoryTimeout: the upstream took too long to respond.
	CategoryTimeout ErrorCategory = "timeout"

	// CategoryBadData: the upstream answered with something unparseable.
	CategoryBadData ErrorCategory = "bad_data"

	// CategoryAuthentication: credential or token problems.
	CategoryAuthentication ErrorCategory = "authentication"

	// CategoryOutage: the upstream is unreachable or erroring.
	CategoryOutage ErrorCategory = "outage"

	// CategoryNotFound: the subject has no usable record upstream.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryInternal: anything else.
	CategoryInternal ErrorCategory = "internal"
)

// FetchError wraps a biography fetch failure with its normalized category.
type FetchError struct {
	Category   ErrorCategory
	Source     string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *FetchError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("source %s [%s]: %s: %v", e.Source, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("source %s [%s]: %s", e.Source, e.Category, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Underlying
}

// NewFetchError builds a FetchError; timeouts and outages are retryable,
// everything else is not.
func NewFetchError(category ErrorCategory, source, message string, underlying error) *FetchError {
	return &FetchError{
		Category:   category,
		Source:     source,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == CategoryTimeout || category == CategoryOutage,
	}
}

// IsRetryable reports whether another attempt could plausibly succeed.
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

// IsNotFound reports whether the subject simply has no usable upstream
// record (missing page, missing infobox). Distinct from transient failure:
// the engine turns it into a "bad source page" notification instead of a
// retry.
func IsNotFound(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Category == CategoryNotFound
	}
	return false
}

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a tracking failure. It is set where the failure happens and
// drives both the retry policy and the process exit code.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvalidQuery
	KindUnsupportedCountry
	KindNotFound
	KindPostalCodeMismatch
	KindTransient
	KindRetriesExhausted
	KindCancelled
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindInvalidQuery:       "invalid_query",
	KindUnsupportedCountry: "unsupported_country",
	KindNotFound:           "not_found",
	KindPostalCodeMismatch: "postal_code_mismatch",
	KindTransient:          "transient",
	KindRetriesExhausted:   "retries_exhausted",
	KindCancelled:          "cancelled",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Retryable reports whether a failure of this kind may succeed on another attempt.
func (k Kind) Retryable() bool {
	return k == KindTransient
}

// Sentinels for errors.Is checks. They compare by Kind only.
var (
	ErrInvalidQuery       = &Error{Kind: KindInvalidQuery}
	ErrUnsupportedCountry = &Error{Kind: KindUnsupportedCountry}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrPostalCodeMismatch = &Error{Kind: KindPostalCodeMismatch}
	ErrTransient          = &Error{Kind: KindTransient}
	ErrRetriesExhausted   = &Error{Kind: KindRetriesExhausted}
	ErrCancelled          = &Error{Kind: KindCancelled}
)

// Error is the single failure type surfaced by the tracking core.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	// Populated for KindPostalCodeMismatch.
	Expected string
	Actual   string
	// Populated for KindUnsupportedCountry.
	Supported []string
	// Populated for KindRetriesExhausted.
	Attempts int
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Kind.String()
}

// Unwrap allows errors.Is/As to inspect the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error of the same Kind, so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is classified as transient.
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}

// InvalidQuery reports a query that failed validation.
func InvalidQuery(err error) *Error {
	return &Error{Kind: KindInvalidQuery, Message: "invalid query", Err: err}
}

// UnsupportedCountry reports a country code missing from the registry.
func UnsupportedCountry(code string, supported []string) *Error {
	return &Error{
		Kind:      KindUnsupportedCountry,
		Message:   fmt.Sprintf("Unsupported country: %s. Supported: %s", code, strings.Join(supported, ", ")),
		Supported: supported,
	}
}

// NotFound reports a parcel the carrier has no lifecycle data for.
func NotFound(trackingNumber string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("Tracking number not found: %s. The parcel might not be in the system yet.", trackingNumber),
	}
}

// PostalCodeMismatch reports that the carrier's postal code differs from the one supplied.
func PostalCodeMismatch(expected, actual string) *Error {
	return &Error{
		Kind:     KindPostalCodeMismatch,
		Message:  fmt.Sprintf("Postal code mismatch: expected %s, carrier reports %s", expected, actual),
		Expected: expected,
		Actual:   actual,
	}
}

// Transient wraps a failure that may go away on retry.
func Transient(err error) *Error {
	return &Error{Kind: KindTransient, Err: err}
}

// RetriesExhausted wraps the last transient failure once the attempt budget is spent.
func RetriesExhausted(attempts int, last error) *Error {
	return &Error{
		Kind:     KindRetriesExhausted,
		Message:  fmt.Sprintf("Failed after %d attempts", attempts),
		Err:      last,
		Attempts: attempts,
	}
}

// Cancelled reports that the caller abandoned the operation.
func Cancelled(err error) *Error {
	return &Error{Kind: KindCancelled, Message: "tracking cancelled", Err: err}
}

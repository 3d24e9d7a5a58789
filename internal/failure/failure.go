// Package failure defines the crawler's error taxonomy: a severity
// classification plus an interface every component error implements so
// callers can decide to retry, count, or abort without string matching.
package failure

import "errors"

// Severity classifies how a caller should react to an error.
type Severity int

const (
	// Recoverable errors are logged, counted, and the crawl continues.
	Recoverable Severity = iota
	// Fatal marks an error as unrecoverable for the crawl. No component
	// error type in this module reports Fatal, and the worker pool and
	// controller do not branch on severity.
	Fatal
)

func (s Severity) String() string {
	if s == Fatal {
		return "fatal"
	}

	return "recoverable"
}

// ClassifiedError is implemented by every component-level error type so
// the worker pool and controller can branch on severity and retryability
// without inspecting error strings.
type ClassifiedError interface {
	error
	Severity() Severity
	Retryable() bool
}

// IsFatal reports whether err is a ClassifiedError with Fatal severity.
func IsFatal(err error) bool {
	var ce ClassifiedError
	if errors.As(err, &ce) {
		return ce.Severity() == Fatal
	}

	return false
}

// IsRetryable reports whether err is a ClassifiedError marked retryable.
func IsRetryable(err error) bool {
	var ce ClassifiedError
	if errors.As(err, &ce) {
		return ce.Retryable()
	}

	return false
}

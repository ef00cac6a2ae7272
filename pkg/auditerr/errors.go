// Package auditerr defines the error taxonomy described in spec.md §7.
//
// Most failure modes inside the pipeline never reach this package: adapter
// failures are encoded into envelope status fields, and normalization/
// correlation failures are dropped with an observability counter. Only
// input errors, availability errors for non-optional tools, internal
// invariant violations, and caller cancellation produce a non-result
// outcome, and all four are represented here.
package auditerr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error without requiring callers to match on message text.
type Kind string

const (
	// KindInput covers an invalid contract path, unreadable file, or unknown mode.
	KindInput Kind = "input"

	// KindAvailability covers a non-optional adapter reporting non-AVAILABLE.
	KindAvailability Kind = "availability"

	// KindInvariant covers a fatal internal invariant violation (a bug, not
	// user input) such as a severity/score mismatch surviving re-bucketing.
	KindInvariant Kind = "invariant"

	// KindCancelled covers caller-initiated cancellation (spec.md §5).
	KindCancelled Kind = "cancelled"
)

// Error is the structured Audit Error surfaced at the core API boundary.
type Error struct {
	Kind Kind
	// Tool is set when the error concerns a specific adapter (KindAvailability).
	Tool string
	// DiagnosticID is set for KindInvariant: a stable id for bug reports.
	DiagnosticID string
	Cause        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAvailability:
		return fmt.Sprintf("availability: tool %q unavailable: %v", e.Tool, e.Cause)
	case KindInvariant:
		return fmt.Sprintf("invariant violation [%s]: %v", e.DiagnosticID, e.Cause)
	case KindCancelled:
		return "audit cancelled"
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, auditerr.ErrCancelled)-style sentinel matching by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return false
	}
	return e.Kind == t.Kind
}

// Input wraps a caller-input error.
func Input(cause error) *Error {
	return &Error{Kind: KindInput, Cause: cause}
}

// Inputf wraps a formatted caller-input error.
func Inputf(format string, args ...any) *Error {
	return &Error{Kind: KindInput, Cause: fmt.Errorf(format, args...)}
}

// Unavailable wraps a non-optional tool's availability failure.
func Unavailable(tool string, cause error) *Error {
	return &Error{Kind: KindAvailability, Tool: tool, Cause: cause}
}

// Invariant wraps a fatal internal invariant violation.
func Invariant(diagnosticID string, cause error) *Error {
	return &Error{Kind: KindInvariant, DiagnosticID: diagnosticID, Cause: cause}
}

// Cancelled is the sentinel returned when the caller cancels an in-flight audit.
var Cancelled = &Error{Kind: KindCancelled, Cause: errors.New("cancelled by caller")}

// KindOf extracts the Kind from err if it (or something it wraps) is an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

package models

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind is the failure taxonomy shared by every stage of the pipeline.
type ErrorKind string

const (
	KindAuthenticationRequired ErrorKind = "authentication_required"
	KindAuthenticationFailed   ErrorKind = "authentication_failed"
	KindAccessDenied           ErrorKind = "access_denied"
	KindNavigationFailure      ErrorKind = "navigation_failure"
	KindCaptureFailure         ErrorKind = "capture_failure"
	KindRecoveryFailure        ErrorKind = "recovery_failure"
	KindTimeout                ErrorKind = "timeout"
	KindUnknown                ErrorKind = "unknown"
)

// SessionTerminal reports whether a kind aborts the whole session rather
// than a single page.
func (k ErrorKind) SessionTerminal() bool {
	switch k {
	case KindAuthenticationRequired, KindAuthenticationFailed, KindAccessDenied, KindTimeout:
		return true
	}
	return false
}

// StageError carries the taxonomy kind and, for per-page failures, the
// page index the stage was working on.
type StageError struct {
	Kind      ErrorKind
	PageIndex int
	Err       error
}

func (e *StageError) Error() string {
	if e.PageIndex > 0 {
		return fmt.Sprintf("%s (page %d): %v", e.Kind, e.PageIndex, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Fail wraps err with a taxonomy kind. pageIndex is zero for session-level
// conditions.
func Fail(kind ErrorKind, pageIndex int, err error) *StageError {
	if err == nil {
		err = errors.New(string(kind))
	}
	return &StageError{Kind: kind, PageIndex: pageIndex, Err: err}
}

// Failf is Fail with a formatted message.
func Failf(kind ErrorKind, pageIndex int, format string, args ...interface{}) *StageError {
	return &StageError{Kind: kind, PageIndex: pageIndex, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the taxonomy kind from an error chain. Context expiry maps
// to Timeout; anything untyped is Unknown.
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindUnknown
}

// PageOf returns the page index attached to an error chain, zero if none.
func PageOf(err error) int {
	var se *StageError
	if errors.As(err, &se) {
		return se.PageIndex
	}
	return 0
}

// ToDeckError converts an error chain into its serialized form.
func ToDeckError(err error) DeckError {
	return DeckError{PageIndex: PageOf(err), Kind: KindOf(err), Message: err.Error()}
}

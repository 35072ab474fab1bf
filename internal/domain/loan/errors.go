package loan

import (
	"errors"
	"fmt"
)

// ErrVersionConflict is the repository-level signal that another writer
// committed against the same loan first. The service retries the operation
// once against fresh state before surfacing a conflict.
var ErrVersionConflict = errors.New("version_conflict")

type Kind int

const (
	KindValidation Kind = iota + 1
	KindIneligible
	KindNotFound
	KindPrecondition
	KindConflict
	KindInternal
)

// Error is the typed result of a failed operation. Code is a stable
// snake_case identifier for clients; Message is human-readable.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Reasons []string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func Validationf(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Ineligible(reasons []string) *Error {
	return &Error{Kind: KindIneligible, Code: "not_eligible", Message: "borrower is not eligible for a loan", Reasons: reasons}
}

func NotFound(code string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: code}
}

func Preconditionf(code, format string, args ...any) *Error {
	return &Error{Kind: KindPrecondition, Code: code, Message: fmt.Sprintf(format, args...)}
}

// AlreadyInState marks an idempotent repeat of a transition the loan has
// already taken, so callers can tell a race from a bug.
func AlreadyInState(s Status) *Error {
	return &Error{Kind: KindPrecondition, Code: "already_" + string(s), Message: fmt.Sprintf("loan is already %s", s)}
}

func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Code: "concurrency_conflict", Message: fmt.Sprintf(format, args...)}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal_error", Message: "internal error", Err: err}
}

// KindOf classifies any error for the transport boundary. Unknown errors map
// to KindInternal so no storage detail leaks to callers.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

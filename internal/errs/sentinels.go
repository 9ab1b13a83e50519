// Package errs contains the error taxonomy shared across layers (spec
// section 7) and the sentinel values used for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport-layer mapping. A handler never
// needs to inspect error strings — only Kind.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthenticationFailed
	KindTwoFactorRequired
	KindNotAuthorized
	KindNotFound
	KindConflict
	KindValidationFailed
	KindPolicyViolation
	KindTransientUnavailable
	KindTooManyRequests
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindAuthenticationFailed:
		return "AuthenticationFailed"
	case KindTwoFactorRequired:
		return "TwoFactorRequired"
	case KindNotAuthorized:
		return "NotAuthorized"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindValidationFailed:
		return "ValidationFailed"
	case KindPolicyViolation:
		return "PolicyViolation"
	case KindTransientUnavailable:
		return "TransientUnavailable"
	case KindTooManyRequests:
		return "TooManyRequests"
	case KindFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// Error pairs a Kind with a message and an optional wrapped cause. Handlers
// at the transport boundary use errors.As to recover the Kind.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind around an existing cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind of err, defaulting to KindFatal for errors not
// produced by this package (an unclassified error is always treated as an
// internal failure rather than silently passed through as 200 OK).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return KindUnknown
	}
	return KindFatal
}

// Sentinels retained for code that only needs identity comparison rather
// than a full Kind/message pair (mirrors the teacher's plain-sentinel
// style for the handful of errors compared with errors.Is throughout the
// store and service layers).
var (
	// ErrNotFound indicates the requested entity does not exist or is
	// hidden from the requester.
	ErrNotFound = errors.New("not found")

	// ErrForeignKeyViolation indicates an upsert targeted a child row whose
	// parent was concurrently deleted; callers must surface NotFound rather
	// than resurrect the parent (spec 4.3).
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrVersionConflict indicates an optimistic-concurrency mismatch.
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnauthorized indicates failed authentication or missing access.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates a temporary lockout from the rate limiter.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a uniqueness violation (duplicate email,
	// duplicate collection name, a second response to an AuthRequest, ...).
	ErrAlreadyExists = errors.New("already exists")

	// ErrTwoFactorRequired signals that the password check passed but a
	// second factor is still outstanding; it is not a failure.
	ErrTwoFactorRequired = errors.New("two factor required")
)

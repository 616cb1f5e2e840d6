// Package errors provides centralized error definitions and error handling utilities
// for imecore. It defines sentinel errors, typed errors carrying context, and
// classification helpers.
//
// # Error Taxonomy
//
// Only one category of failure is ever surfaced as an error value:
//
//   - IllegalStateError: a programming error such as submitting work to a stopped
//     dispatcher or requesting a lifecycle transition from the wrong state.
//   - SessionError: an operation issued through a daemon session that is no longer
//     (or was never) established.
//   - InputError: a request a user typed that cannot be carried out, such as an
//     unknown command or a candidate index out of range.
//
// Every typed error carries a Severity, used to pick a log level, and a flag
// saying whether its message may be shown to the user as is.
//
// Engine operations that "fail" (a key that was not consumed, a schema that could not
// be selected) report that through their boolean results, never through this package.
// Buffer overflow on the event bus and slow tasks are not errors at all.
//
// # Usage
//
//	err := errors.NewIllegalStateError("dispatcher", "submit", errors.ErrNotRunning).
//		WithState("stopped")
//
//	if errors.Is(err, errors.ErrNotRunning) { ... }
//
//	var ise *errors.IllegalStateError
//	if errors.As(err, &ise) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Dispatcher-related sentinel errors
var (
	// ErrNotRunning indicates that work was submitted to a dispatcher that is not running.
	ErrNotRunning = New("dispatcher is not running")
	// ErrTaskAbandoned indicates that the dispatcher stopped before a task got to run.
	ErrTaskAbandoned = New("task abandoned before it ran")
)

// Lifecycle-related sentinel errors
var (
	// ErrIllegalTransition indicates a lifecycle transition requested from the wrong state.
	ErrIllegalTransition = New("illegal lifecycle transition")
)

// Session-related sentinel errors
var (
	// ErrSessionNotEstablished indicates use of a session that has been disconnected.
	ErrSessionNotEstablished = New("session is not established")
)

// Event-related sentinel errors
var (
	// ErrSubscriptionClosed indicates a read from a closed subscription.
	ErrSubscriptionClosed = New("subscription closed")
)

// Input-related sentinel errors
var (
	// ErrInvalidKeySequence indicates a key sequence that could not be parsed.
	ErrInvalidKeySequence = New("invalid key sequence")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// CoreError is the base interface for all imecore errors.
type CoreError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// IllegalStateError reports an operation attempted while a component was in a
// state that does not permit it. These are programming errors: they are returned
// to the immediate caller and never retried.
//
// Example:
//
//	err := errors.NewIllegalStateError("lifecycle", "mark ready", errors.ErrIllegalTransition).
//		WithState("stopped")
//	fmt.Println(err) // "illegal state [component=lifecycle, state=stopped]: mark ready: illegal lifecycle transition"
type IllegalStateError struct {
	baseError
	Component string
	State     string
}

// NewIllegalStateError creates a new IllegalStateError.
func NewIllegalStateError(component, operation string, cause error) *IllegalStateError {
	return &IllegalStateError{
		baseError: baseError{
			message:    operation,
			cause:      cause,
			severity:   SeverityCritical,
			userFacing: false,
		},
		Component: component,
	}
}

// WithState records the state the component was in.
func (e *IllegalStateError) WithState(state string) *IllegalStateError {
	e.State = state
	return e
}

// Error returns the formatted error message.
func (e *IllegalStateError) Error() string {
	var parts []string
	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("component=%s", e.Component))
	}
	if e.State != "" {
		parts = append(parts, fmt.Sprintf("state=%s", e.State))
	}

	prefix := "illegal state"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("illegal state [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *IllegalStateError) Is(target error) bool {
	if _, ok := target.(*IllegalStateError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SessionError represents errors related to daemon sessions.
//
// Example:
//
//	err := errors.NewSessionError("run on ready", errors.ErrSessionNotEstablished).
//		WithSessionName("keyboard")
type SessionError struct {
	baseError
	SessionName string
}

// NewSessionError creates a new SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithSessionName adds a session name to the error context.
func (e *SessionError) WithSessionName(name string) *SessionError {
	e.SessionName = name
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	prefix := "session error"
	if e.SessionName != "" {
		prefix = fmt.Sprintf("session error [session=%s]", e.SessionName)
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SessionError) Is(target error) bool {
	if _, ok := target.(*SessionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// InputError reports a user request that cannot be carried out. Its message
// is meant for the user.
//
// Example:
//
//	err := errors.NewInputError(fmt.Sprintf("unknown command %q", name), nil)
type InputError struct {
	baseError
}

// NewInputError creates a new InputError.
func NewInputError(message string, cause error) *InputError {
	return &InputError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// Is checks if this error matches the target.
func (e *InputError) Is(target error) bool {
	if _, ok := target.(*InputError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsIllegalState returns true if err is, or wraps, an IllegalStateError.
func IsIllegalState(err error) bool {
	if err == nil {
		return false
	}
	var ise *IllegalStateError
	return As(err, &ise)
}

// IsUserFacing returns true if err is, or wraps, a typed error whose message
// is safe to show the user.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var coreErr CoreError
	if As(err, &coreErr) {
		return coreErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement CoreError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var coreErr CoreError
	if As(err, &coreErr) {
		return coreErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike fmt.Errorf with %w, this returns nil for a nil err.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

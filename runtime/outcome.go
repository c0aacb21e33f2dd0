package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/rawzeo/types"
)

// Exit codes for session outcomes.
const (
	ExitCodeCompleted      = 0   // all sources read to the end
	ExitCodeTransportError = 1   // a source failed to read
	ExitCodeSinkFailure    = 2   // emit, persistence or forwarding failed
	ExitCodeConfigError    = 3   // invalid configuration or setup failure
	ExitCodeCanceled       = 130 // interrupted (SIGINT)
)

// SessionErrorKind classifies session errors for outcome determination.
type SessionErrorKind int

const (
	// SessionErrorTransport indicates a source read failure.
	SessionErrorTransport SessionErrorKind = iota
	// SessionErrorSink indicates an emit, policy or sink failure.
	SessionErrorSink
	// SessionErrorCanceled indicates context cancellation.
	SessionErrorCanceled
)

func (k SessionErrorKind) String() string {
	switch k {
	case SessionErrorTransport:
		return "transport"
	case SessionErrorSink:
		return "sink"
	case SessionErrorCanceled:
		return "canceled"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// SessionError is a classified session failure.
type SessionError struct {
	Kind SessionErrorKind
	// Source is the description of the source being read, when known.
	Source string
	// Err is the underlying error.
	Err error
}

func (e *SessionError) Error() string {
	return e.Err.Error()
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// IsTransportError returns true if err is a transport failure.
func IsTransportError(err error) bool {
	return hasKind(err, SessionErrorTransport)
}

// IsSinkError returns true if err is an emit, policy or sink failure.
func IsSinkError(err error) bool {
	return hasKind(err, SessionErrorSink)
}

// IsCanceledError returns true if err is due to context cancellation.
func IsCanceledError(err error) bool {
	return hasKind(err, SessionErrorCanceled)
}

func hasKind(err error, kind SessionErrorKind) bool {
	var sessErr *SessionError
	if errors.As(err, &sessErr) {
		return sessErr.Kind == kind
	}
	return false
}

// DetermineOutcome maps a session error to an outcome and exit code.
//
//   - nil: completed (0)
//   - transport error: transport_error (1)
//   - sink error: sink_failure (2)
//   - canceled, or any context.Canceled: canceled (130)
//   - anything else: config_error (3), since errors outside a running
//     session come from setting it up
func DetermineOutcome(err error) types.SessionOutcome {
	switch {
	case err == nil:
		return types.SessionOutcome{
			Status:   types.OutcomeCompleted,
			Message:  "session completed",
			ExitCode: ExitCodeCompleted,
		}
	case IsCanceledError(err), errors.Is(err, context.Canceled):
		return types.SessionOutcome{
			Status:   types.OutcomeCanceled,
			Message:  "session canceled",
			ExitCode: ExitCodeCanceled,
		}
	case IsTransportError(err):
		return types.SessionOutcome{
			Status:   types.OutcomeTransportError,
			Message:  err.Error(),
			ExitCode: ExitCodeTransportError,
		}
	case IsSinkError(err):
		return types.SessionOutcome{
			Status:   types.OutcomeSinkFailure,
			Message:  err.Error(),
			ExitCode: ExitCodeSinkFailure,
		}
	default:
		return types.SessionOutcome{
			Status:   types.OutcomeConfigError,
			Message:  err.Error(),
			ExitCode: ExitCodeConfigError,
		}
	}
}

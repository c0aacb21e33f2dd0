// Package types defines the small shared types of a decode session.
//
//nolint:revive // types is a common Go package naming convention
package types

// OutcomeStatus is the final status of a decode session.
type OutcomeStatus string

const (
	// OutcomeCompleted means every source was read to its end.
	OutcomeCompleted OutcomeStatus = "completed"
	// OutcomeTransportError means a source failed to read.
	OutcomeTransportError OutcomeStatus = "transport_error"
	// OutcomeSinkFailure means emitting, persisting or forwarding a record
	// failed.
	OutcomeSinkFailure OutcomeStatus = "sink_failure"
	// OutcomeConfigError means the session could not be set up.
	OutcomeConfigError OutcomeStatus = "config_error"
	// OutcomeCanceled means the session was interrupted.
	OutcomeCanceled OutcomeStatus = "canceled"
)

// SessionOutcome is the final outcome of a session.
type SessionOutcome struct {
	Status OutcomeStatus
	// Message is a human-readable description.
	Message string
	// ExitCode is the process exit code for this outcome.
	ExitCode int
}

// IsSuccess reports whether the outcome is OutcomeCompleted.
func (o SessionOutcome) IsSuccess() bool {
	return o.Status == OutcomeCompleted
}

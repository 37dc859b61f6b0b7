package task

import "errors"

// Failure taxonomy. Using sentinel variables allows callers to reliably
// detect error conditions via errors.Is instead of brittle string
// comparisons. The sentinel message doubles as the task failure reason
// surfaced by status queries.

var (
	// ErrUnknownStep indicates the declared intent resolved to a step that
	// has no registered handler. Resolution-time, fatal to the task.
	ErrUnknownStep = errors.New("unknown step")

	// ErrHandlerFailure indicates a local capability provider reported an
	// error. Fatal to the task, no automatic retry.
	ErrHandlerFailure = errors.New("handler failure")

	// ErrCounterpartyUnreachable indicates a delegation handoff could not
	// be initiated.
	ErrCounterpartyUnreachable = errors.New("counterparty unreachable")

	// ErrTimedOut indicates a delegated subtask exceeded its deadline.
	ErrTimedOut = errors.New("delegation timed out")

	// ErrPublishError indicates an output artifact could not be stored; it
	// is treated as a handler failure of the step that produced it.
	ErrPublishError = errors.New("artifact publish error")

	// ErrCancelled indicates the task was cancelled by its caller.
	ErrCancelled = errors.New("task cancelled")

	// ErrTaskTerminal is returned when a mutation other than a late
	// artifact/log annotation targets a completed or failed task.
	ErrTaskTerminal = errors.New("task already terminal")

	// ErrIllegalTransition is returned when a requested state change would
	// move the task backwards in its state machine.
	ErrIllegalTransition = errors.New("illegal state transition")

	// ErrStepNotFound is returned when an outcome references a step name
	// absent from the task's resolved plan.
	ErrStepNotFound = errors.New("step not found")
)

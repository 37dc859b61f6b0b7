package task

// State represents the lifecycle state of a task.
type State string

const (
	StatePending          State = "pending"
	StateRunning          State = "running"
	StateAwaitingDelegate State = "awaitingDelegate"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
)

// IsTerminal returns true for states no transition may leave.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransition reports whether s -> next is a legal forward transition.
func (s State) CanTransition(next State) bool {
	switch s {
	case StatePending:
		return next == StateRunning || next == StateFailed
	case StateRunning:
		return next == StateRunning || next == StateAwaitingDelegate ||
			next == StateCompleted || next == StateFailed
	case StateAwaitingDelegate:
		return next == StateRunning || next == StateFailed
	}
	return false
}

// StepStatus represents the execution status of a single step record.
type StepStatus string

const (
	StepNotStarted StepStatus = "notStarted"
	StepInProgress StepStatus = "inProgress"
	StepDelegated  StepStatus = "delegated"
	StepDone       StepStatus = "done"
	StepFailed     StepStatus = "failed"
)

// IsTerminal returns true once a step reached done or failed.
func (s StepStatus) IsTerminal() bool {
	return s == StepDone || s == StepFailed
}

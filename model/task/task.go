package task

import (
	"time"

	"github.com/babelmesh/lingua/internal/clock"
	"github.com/babelmesh/lingua/model/intent"
)

// Input is the original request payload a task was submitted with.
type Input struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"sourceLanguage,omitempty"`
	TargetLanguage string `json:"targetLanguage,omitempty"`
}

// DelegateRef identifies a delegated subtask and the counterparty agent
// that owns it. Present on a step record only while the step is delegated.
type DelegateRef struct {
	RemoteID     string `json:"remoteID"`
	Counterparty string `json:"counterparty"`
}

// StepRecord is one named unit of execution within a task's resolved plan.
// Records are created when the plan is attached, mutated only through the
// ledger and never deleted.
type StepRecord struct {
	Name        string       `json:"name"`
	Status      StepStatus   `json:"status"`
	Input       interface{}  `json:"input,omitempty"`
	Output      interface{}  `json:"output,omitempty"`
	Error       string       `json:"error,omitempty"`
	DelegateRef *DelegateRef `json:"delegateRef,omitempty"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	FinishedAt  *time.Time   `json:"finishedAt,omitempty"`
}

// Outcome carries the result of a single step execution, produced either
// by a local capability provider or reported back by a counterparty.
type Outcome struct {
	Output    interface{}       `json:"output,omitempty"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Failed returns true when the outcome reports a failure reason.
func (o *Outcome) Failed() bool {
	return o != nil && o.Error != ""
}

// Task is a unit of work tracked to completion or failure. All mutation is
// funnelled through the ledger, which serializes access per task id; the
// struct itself carries no lock.
type Task struct {
	ID         string            `json:"id"`
	Input      *Input            `json:"input"`
	Intent     intent.Intent     `json:"intent"`
	State      State             `json:"state"`
	Reason     string            `json:"reason,omitempty"`
	Steps      []*StepRecord     `json:"steps,omitempty"`
	Artifacts  map[string]string `json:"artifacts,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	FinishedAt *time.Time        `json:"finishedAt,omitempty"`
}

// New creates a pending task.
func New(id string, input *Input, anIntent intent.Intent) *Task {
	now := clock.Now()
	return &Task{
		ID:        id,
		Input:     input,
		Intent:    anIntent,
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the task to the next state, enforcing forward-only
// transitions and terminal-state immutability.
func (t *Task) Transition(next State) error {
	if t.State.IsTerminal() {
		return ErrTaskTerminal
	}
	if !t.State.CanTransition(next) {
		return ErrIllegalTransition
	}
	t.State = next
	t.UpdatedAt = clock.Now()
	if next.IsTerminal() {
		now := clock.Now()
		t.FinishedAt = &now
	}
	return nil
}

// AttachPlan appends step records in resolution order and moves the task
// to running. The plan can be attached only once, at acceptance.
func (t *Task) AttachPlan(steps []string) error {
	if len(t.Steps) > 0 {
		return ErrIllegalTransition
	}
	if err := t.Transition(StateRunning); err != nil {
		return err
	}
	for _, name := range steps {
		t.Steps = append(t.Steps, &StepRecord{Name: name, Status: StepNotStarted})
	}
	return nil
}

// Step returns the record for the given step name, or nil.
func (t *Task) Step(name string) *StepRecord {
	for _, step := range t.Steps {
		if step.Name == name {
			return step
		}
	}
	return nil
}

// NextStep returns the first step that has not finished yet; nil when the
// whole plan is done.
func (t *Task) NextStep() *StepRecord {
	for _, step := range t.Steps {
		if !step.Status.IsTerminal() {
			return step
		}
	}
	return nil
}

// AppendArtifact records a named output locator. Artifacts accumulate and
// are never removed; late annotations on terminal tasks are allowed.
func (t *Task) AppendArtifact(name, locator string) {
	if t.Artifacts == nil {
		t.Artifacts = make(map[string]string)
	}
	t.Artifacts[name] = locator
	t.UpdatedAt = clock.Now()
}

// Fail moves the task to failed with the supplied reason.
func (t *Task) Fail(reason string) error {
	if err := t.Transition(StateFailed); err != nil {
		return err
	}
	t.Reason = reason
	return nil
}

// Clone creates a deep copy so that callers can inspect the task without
// racing against ledger mutation.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	clone := *t
	if t.Input != nil {
		input := *t.Input
		clone.Input = &input
	}
	if t.Steps != nil {
		clone.Steps = make([]*StepRecord, len(t.Steps))
		for i, step := range t.Steps {
			stepCopy := *step
			if step.DelegateRef != nil {
				ref := *step.DelegateRef
				stepCopy.DelegateRef = &ref
			}
			clone.Steps[i] = &stepCopy
		}
	}
	if t.Artifacts != nil {
		clone.Artifacts = make(map[string]string, len(t.Artifacts))
		for k, v := range t.Artifacts {
			clone.Artifacts[k] = v
		}
	}
	if t.FinishedAt != nil {
		finished := *t.FinishedAt
		clone.FinishedAt = &finished
	}
	return &clone
}

// Package ledger is the durable record of task identity, state, step
// history and accumulated artifacts. Every task mutation in the system is
// funnelled through this service so that state transitions are observable
// and auditable; each mutation emits a log event.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/babelmesh/lingua/internal/clock"
	"github.com/babelmesh/lingua/internal/idgen"
	"github.com/babelmesh/lingua/model/intent"
	"github.com/babelmesh/lingua/model/task"
	"github.com/babelmesh/lingua/service/dao"
	"github.com/babelmesh/lingua/service/event"
)

// LogEntry is the audit record published for every ledger mutation.
type LogEntry struct {
	TaskID  string     `json:"taskID"`
	Step    string     `json:"step,omitempty"`
	Message string     `json:"message"`
	Level   string     `json:"level"`
	State   task.State `json:"state"`
}

// Service owns all Task and StepRecord mutation. Mutations are serialized
// per task id; distinct tasks mutate independently.
type Service struct {
	dao    dao.Service[string, task.Task]
	events *event.Publisher[LogEntry]

	locksMux sync.Mutex
	locks    map[string]*sync.Mutex
}

// New creates a ledger over the supplied store. The publisher may be nil
// when no audit trail is wanted (e.g. focused unit tests).
func New(store dao.Service[string, task.Task], events *event.Publisher[LogEntry]) *Service {
	return &Service{
		dao:    store,
		events: events,
		locks:  make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex dedicated to the given task id; one lock per
// task id, never a global lock.
func (s *Service) lockFor(id string) *sync.Mutex {
	s.locksMux.Lock()
	defer s.locksMux.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// Create registers a new pending task and returns a copy of it.
func (s *Service) Create(ctx context.Context, input *task.Input, anIntent intent.Intent) (*task.Task, error) {
	t := task.New(idgen.New(), input, anIntent)
	if err := s.dao.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}
	s.log(ctx, t, "", "info", "task accepted")
	return t.Clone(), nil
}

// Get returns a copy of the task for inspection.
func (s *Service) Get(ctx context.Context, id string) (*task.Task, error) {
	t, err := s.dao.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	return t.Clone(), nil
}

// AttachPlan records the resolved step plan and moves the task to running.
func (s *Service) AttachPlan(ctx context.Context, id string, steps []string) error {
	return s.mutate(ctx, id, func(t *task.Task) error {
		if err := t.AttachPlan(steps); err != nil {
			return err
		}
		s.log(ctx, t, "", "info", fmt.Sprintf("plan attached: %v", steps))
		return nil
	})
}

// MarkStepRunning transitions a step to in-progress and records its input.
func (s *Service) MarkStepRunning(ctx context.Context, id, step string, input interface{}) error {
	return s.mutate(ctx, id, func(t *task.Task) error {
		if t.State.IsTerminal() {
			return task.ErrTaskTerminal
		}
		rec := t.Step(step)
		if rec == nil {
			return fmt.Errorf("%w: %q", task.ErrStepNotFound, step)
		}
		if rec.Status != task.StepNotStarted {
			return nil
		}
		now := clock.Now()
		rec.Status = task.StepInProgress
		rec.Input = input
		rec.StartedAt = &now
		t.UpdatedAt = now
		s.log(ctx, t, step, "info", "step started")
		return nil
	})
}

// MarkStepDelegated records the delegate reference and suspends the task
// until the counterparty reports back. A no-op when the outcome already
// landed: an in-process counterparty can report before the handoff is
// recorded.
func (s *Service) MarkStepDelegated(ctx context.Context, id, step string, ref *task.DelegateRef) error {
	return s.mutate(ctx, id, func(t *task.Task) error {
		rec := t.Step(step)
		if rec == nil {
			return fmt.Errorf("%w: %q", task.ErrStepNotFound, step)
		}
		if t.State.IsTerminal() || rec.Status.IsTerminal() {
			return nil
		}
		if err := t.Transition(task.StateAwaitingDelegate); err != nil {
			return err
		}
		rec.Status = task.StepDelegated
		rec.DelegateRef = ref
		s.log(ctx, t, step, "info", fmt.Sprintf("step delegated to %v as %v", ref.Counterparty, ref.RemoteID))
		return nil
	})
}

// ApplyStepOutcome merges a step outcome into the task. It is idempotent
// per (id, step): re-applying an outcome to an already finished step, or
// any outcome to an already terminal task, is a no-op. The updated (or
// unchanged) task copy is returned.
func (s *Service) ApplyStepOutcome(ctx context.Context, id, step string, outcome *task.Outcome) (*task.Task, error) {
	var ret *task.Task
	err := s.mutate(ctx, id, func(t *task.Task) error {
		defer func() { ret = t.Clone() }()
		if t.State.IsTerminal() {
			return nil
		}
		rec := t.Step(step)
		if rec == nil {
			return fmt.Errorf("%w: %q", task.ErrStepNotFound, step)
		}
		if rec.Status.IsTerminal() {
			return nil
		}
		now := clock.Now()
		rec.FinishedAt = &now
		rec.DelegateRef = nil
		if outcome.Failed() {
			rec.Status = task.StepFailed
			rec.Error = outcome.Error
			if err := t.Fail(outcome.Error); err != nil {
				return err
			}
			s.log(ctx, t, step, "error", outcome.Error)
			return nil
		}
		rec.Status = task.StepDone
		rec.Output = outcome.Output
		for name, locator := range outcome.Artifacts {
			t.AppendArtifact(name, locator)
		}
		if t.State == task.StateAwaitingDelegate {
			if err := t.Transition(task.StateRunning); err != nil {
				return err
			}
		}
		t.UpdatedAt = now
		s.log(ctx, t, step, "info", "step completed")
		return nil
	})
	return ret, err
}

// Complete moves the task to completed. A task never completes with an
// unfinished step; callers advance steps first.
func (s *Service) Complete(ctx context.Context, id string) error {
	return s.mutate(ctx, id, func(t *task.Task) error {
		for _, rec := range t.Steps {
			if rec.Status != task.StepDone {
				return fmt.Errorf("step %q is %v: %w", rec.Name, rec.Status, task.ErrIllegalTransition)
			}
		}
		if err := t.Transition(task.StateCompleted); err != nil {
			return err
		}
		s.log(ctx, t, "", "info", "task completed")
		return nil
	})
}

// Fail moves the task to failed with the supplied reason.
func (s *Service) Fail(ctx context.Context, id, reason string) error {
	return s.mutate(ctx, id, func(t *task.Task) error {
		if err := t.Fail(reason); err != nil {
			return err
		}
		s.log(ctx, t, "", "error", reason)
		return nil
	})
}

// Cancel fails the task locally with a cancellation reason.
func (s *Service) Cancel(ctx context.Context, id string) error {
	return s.Fail(ctx, id, task.ErrCancelled.Error())
}

// AppendArtifact records a named artifact locator. Late annotations on
// terminal tasks are explicitly allowed.
func (s *Service) AppendArtifact(ctx context.Context, id, name, locator string) error {
	return s.mutate(ctx, id, func(t *task.Task) error {
		t.AppendArtifact(name, locator)
		s.log(ctx, t, "", "info", fmt.Sprintf("artifact %q -> %v", name, locator))
		return nil
	})
}

// mutate loads, mutates and saves a task under its per-id lock.
func (s *Service) mutate(ctx context.Context, id string, fn func(t *task.Task) error) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	t, err := s.dao.Load(ctx, id)
	if err != nil {
		return err
	}
	if err = fn(t); err != nil {
		return err
	}
	return s.dao.Save(ctx, t)
}

func (s *Service) log(ctx context.Context, t *task.Task, step, level, message string) {
	if s.events == nil {
		return
	}
	entry := LogEntry{TaskID: t.ID, Step: step, Message: message, Level: level, State: t.State}
	_ = s.events.Publish(ctx, event.NewEvent(&event.Context{TaskID: t.ID, Step: step, EventType: "ledger"}, entry))
}

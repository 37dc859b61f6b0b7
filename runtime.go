package lingua

import (
	"context"
	"fmt"
	"time"

	"github.com/babelmesh/lingua/ledger"
	"github.com/babelmesh/lingua/model/intent"
	"github.com/babelmesh/lingua/model/task"
	"github.com/babelmesh/lingua/registry"
	"github.com/babelmesh/lingua/runtime/delegation"
	"github.com/babelmesh/lingua/runtime/orchestrator"
	"github.com/babelmesh/lingua/service/event"
)

// Runtime is the assembled engine: it accepts tasks, reports their status
// and feeds counterparty results back into the state machine. It satisfies
// the gateway's engine contract.
type Runtime struct {
	registry     *registry.Service
	ledger       *ledger.Service
	orchestrator *orchestrator.Service
	channel      *delegation.Channel
	listener     *event.Listener[ledger.LogEntry]
}

// Registry returns the step registry.
func (r *Runtime) Registry() *registry.Service {
	return r.registry
}

// Ledger returns the task ledger.
func (r *Runtime) Ledger() *ledger.Service {
	return r.ledger
}

// Start launches the worker pool, the delegation sweep and the audit
// listener.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.orchestrator.Start(ctx); err != nil {
		return err
	}
	go func() { _ = r.channel.Start(ctx) }()
	if r.listener != nil {
		r.listener.Start()
	}
	return nil
}

// Shutdown stops the engine components.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.orchestrator.Shutdown()
	r.channel.Shutdown()
	if r.listener != nil {
		r.listener.Stop()
	}
	return nil
}

// SubmitTask accepts a new task for the declared intent.
func (r *Runtime) SubmitTask(ctx context.Context, input *task.Input, anIntent intent.Intent) (*task.Task, error) {
	return r.orchestrator.Submit(ctx, input, anIntent)
}

// GetStatus returns a copy of the task record.
func (r *Runtime) GetStatus(ctx context.Context, taskID string) (*task.Task, error) {
	return r.ledger.Get(ctx, taskID)
}

// CancelTask fails the task locally and abandons in-flight delegations.
func (r *Runtime) CancelTask(ctx context.Context, taskID string) error {
	return r.orchestrator.Cancel(ctx, taskID)
}

// HandleSubtaskResult feeds a counterparty result into the delegation
// channel; unknown or duplicate remote ids are discarded.
func (r *Runtime) HandleSubtaskResult(ctx context.Context, remoteID string, outcome *task.Outcome) {
	r.channel.OnSubtaskResult(ctx, remoteID, outcome)
}

// WaitForTask polls until the task reaches a terminal state or the timeout
// elapses. Intended for command-line callers and tests.
func (r *Runtime) WaitForTask(ctx context.Context, taskID string, timeout time.Duration) (*task.Task, error) {
	deadline := time.Now().Add(timeout)
	for {
		t, err := r.ledger.Get(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if t.State.IsTerminal() {
			return t, nil
		}
		if time.Now().After(deadline) {
			return t, fmt.Errorf("timeout waiting for task %q", taskID)
		}
		select {
		case <-ctx.Done():
			return t, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

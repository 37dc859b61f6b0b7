// Package orchestrator drives tasks through their resolved step plans. A
// pool of workers consumes step work items from a queue; each item either
// runs a local capability provider synchronously or hands the step to the
// delegation channel and suspends the task. Distinct tasks progress in
// parallel while a single task's steps stay strictly serial: the next work
// item is only published after the previous outcome was applied.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sync"
	"time"

	"github.com/babelmesh/lingua/ledger"
	"github.com/babelmesh/lingua/model/intent"
	"github.com/babelmesh/lingua/model/task"
	"github.com/babelmesh/lingua/model/types"
	"github.com/babelmesh/lingua/registry"
	"github.com/babelmesh/lingua/runtime/delegation"
	"github.com/babelmesh/lingua/service/messaging"
	"github.com/babelmesh/lingua/tracing"
)

// Work is one unit of orchestration: execute the named step of a task.
type Work struct {
	TaskID string `json:"taskID"`
	Step   string `json:"step"`
}

// Config represents orchestrator configuration.
type Config struct {
	// WorkerCount is the number of workers processing step work items.
	WorkerCount int
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{WorkerCount: 5}
}

// Service is the state machine core.
type Service struct {
	config   Config
	registry *registry.Service
	ledger   *ledger.Service
	queue    messaging.Queue[Work]
	channel  *delegation.Channel

	workers    []*worker
	workerWg   sync.WaitGroup
	shutdownCh chan struct{}
}

type worker struct {
	id       int
	service  *Service
	ctx      context.Context
	cancelFn context.CancelFunc
}

// Option customises the orchestrator.
type Option func(s *Service)

// WithRegistry sets the step registry.
func WithRegistry(reg *registry.Service) Option {
	return func(s *Service) { s.registry = reg }
}

// WithLedger sets the task ledger.
func WithLedger(l *ledger.Service) Option {
	return func(s *Service) { s.ledger = l }
}

// WithQueue sets the step work queue.
func WithQueue(queue messaging.Queue[Work]) Option {
	return func(s *Service) { s.queue = queue }
}

// WithChannel sets the delegation channel.
func WithChannel(channel *delegation.Channel) Option {
	return func(s *Service) { s.channel = channel }
}

// WithWorkers sets the worker count.
func WithWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.config.WorkerCount = count
		}
	}
}

// New creates an orchestrator service.
func New(options ...Option) (*Service, error) {
	s := &Service{
		config:     DefaultConfig(),
		shutdownCh: make(chan struct{}),
	}
	for _, option := range options {
		option(s)
	}
	if s.registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if s.ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if s.queue == nil {
		return nil, fmt.Errorf("work queue is required")
	}
	if s.channel != nil {
		s.channel.SetHandler(s.onDelegateOutcome)
	}
	return s, nil
}

// Start spins up the worker pool.
func (s *Service) Start(ctx context.Context) error {
	for i := 0; i < s.config.WorkerCount; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		w := &worker{id: i, service: s, ctx: workerCtx, cancelFn: cancel}
		s.workers = append(s.workers, w)
		s.workerWg.Add(1)
		go w.run()
	}
	return nil
}

// Shutdown stops the workers and waits for them to drain.
func (s *Service) Shutdown() {
	for _, w := range s.workers {
		w.cancelFn()
	}
	s.workerWg.Wait()
}

// Submit accepts a task: the plan is resolved exactly once here, recorded
// in the ledger, and the first step is scheduled. A task whose intent
// cannot be resolved fails immediately with no step records; a task with
// an empty plan completes immediately.
func (s *Service) Submit(ctx context.Context, input *task.Input, anIntent intent.Intent) (t *task.Task, err error) {
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("orchestrator.Submit %s", anIntent), "INTERNAL")
	defer tracing.EndSpan(span, err)

	t, err = s.ledger.Create(ctx, input, anIntent)
	if err != nil {
		return nil, err
	}
	span.WithAttributes(map[string]string{"task.id": t.ID})

	steps, resolveErr := s.registry.Resolve(anIntent)
	if resolveErr != nil {
		if err = s.ledger.Fail(ctx, t.ID, resolveErr.Error()); err != nil {
			return nil, err
		}
		return s.ledger.Get(ctx, t.ID)
	}
	if err = s.ledger.AttachPlan(ctx, t.ID, steps); err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		if err = s.ledger.Complete(ctx, t.ID); err != nil {
			return nil, err
		}
		return s.ledger.Get(ctx, t.ID)
	}
	if err = s.queue.Publish(ctx, &Work{TaskID: t.ID, Step: steps[0]}); err != nil {
		return nil, fmt.Errorf("failed to schedule first step: %w", err)
	}
	return s.ledger.Get(ctx, t.ID)
}

// Cancel fails the task locally and abandons any in-flight delegation.
func (s *Service) Cancel(ctx context.Context, taskID string) error {
	if err := s.ledger.Cancel(ctx, taskID); err != nil {
		return err
	}
	if s.channel != nil {
		s.channel.CancelTask(ctx, taskID)
	}
	return nil
}

// run processes work items from the queue.
func (w *worker) run() {
	defer w.service.workerWg.Done()
	for {
		msg, err := w.service.queue.Consume(w.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if msg == nil {
			continue
		}
		if pErr := w.service.processWork(w.ctx, msg); pErr != nil {
			log.Printf("orchestrator: worker %d failed to process work: %v", w.id, pErr)
		}
	}
}

// processWork executes a single step work item.
func (s *Service) processWork(ctx context.Context, msg messaging.Message[Work]) (err error) {
	work := msg.T()
	defer func() {
		if err != nil {
			_ = msg.Nack(err)
		} else {
			_ = msg.Ack()
		}
	}()

	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("orchestrator.step %s", work.Step), "INTERNAL")
	defer tracing.EndSpan(span, err)
	span.WithAttributes(map[string]string{"task.id": work.TaskID, "step": work.Step})

	t, err := s.ledger.Get(ctx, work.TaskID)
	if err != nil {
		return err
	}
	if t.State.IsTerminal() {
		return nil // stale work item for an already finished task
	}
	rec := t.Step(work.Step)
	if rec == nil {
		return fmt.Errorf("%w: %q", task.ErrStepNotFound, work.Step)
	}
	if rec.Status != task.StepNotStarted {
		return nil // duplicate delivery
	}

	stepDef, provider, err := s.registry.Lookup(work.Step)
	if err != nil {
		s.applyOutcome(ctx, work.TaskID, work.Step, &task.Outcome{Error: err.Error()})
		return nil
	}

	input := s.stepInput(t, rec)
	if err = s.ledger.MarkStepRunning(ctx, work.TaskID, work.Step, input); err != nil {
		return err
	}

	if stepDef.Mode == registry.ModeDelegated {
		ref, dErr := s.channelDelegate(ctx, work.TaskID, work.Step, input, stepDef)
		if dErr != nil {
			s.applyOutcome(ctx, work.TaskID, work.Step, &task.Outcome{Error: dErr.Error()})
			return nil
		}
		return s.ledger.MarkStepDelegated(ctx, work.TaskID, work.Step, ref)
	}

	outcome := s.executeLocal(ctx, provider, stepDef, input)
	s.applyOutcome(ctx, work.TaskID, work.Step, outcome)
	return nil
}

func (s *Service) channelDelegate(ctx context.Context, taskID, step string, input interface{}, stepDef *registry.Step) (*task.DelegateRef, error) {
	if s.channel == nil {
		return nil, task.ErrCounterpartyUnreachable
	}
	return s.channel.Delegate(ctx, taskID, step, input, stepDef.Counterparty, stepDef.Plan, stepDef.Timeout)
}

// executeLocal runs a capability provider synchronously, blocking only
// this task's progression.
func (s *Service) executeLocal(ctx context.Context, provider types.Service, stepDef *registry.Step, input interface{}) *task.Outcome {
	executable, err := provider.Method(stepDef.Method)
	if err != nil {
		return &task.Outcome{Error: fmt.Sprintf("%v: %v", task.ErrHandlerFailure, err)}
	}
	signature := provider.Methods().Lookup(stepDef.Method)
	if signature == nil {
		return &task.Outcome{Error: fmt.Sprintf("%v: no signature for method %q", task.ErrHandlerFailure, stepDef.Method)}
	}
	in, err := materialise(signature.Input, input)
	if err != nil {
		return &task.Outcome{Error: fmt.Sprintf("%v: %v", task.ErrHandlerFailure, err)}
	}
	out := reflect.New(signature.Output.Elem()).Interface()
	if err = executable(ctx, in, out); err != nil {
		return &task.Outcome{Error: fmt.Sprintf("%v: %v", task.ErrHandlerFailure, err)}
	}
	outcome := &task.Outcome{Output: out}
	if artifacts, ok := out.(types.Artifacts); ok {
		outcome.Artifacts = artifacts.Artifacts()
	}
	return outcome
}

// onDelegateOutcome resumes a suspended task when the delegation channel
// reports a subtask result (or a synthetic timeout).
func (s *Service) onDelegateOutcome(ctx context.Context, taskID, step string, outcome *task.Outcome) {
	if outcome != nil && !outcome.Failed() {
		outcome.Output = s.rematerialise(step, outcome.Output)
	}
	s.applyOutcome(ctx, taskID, step, outcome)
}

// applyOutcome records a step outcome and advances the task: schedule the
// next unresolved step, or complete the task when none remains. Failures
// are fail-fast: the ledger already moved the task to failed and no
// further steps run.
func (s *Service) applyOutcome(ctx context.Context, taskID, step string, outcome *task.Outcome) {
	t, err := s.ledger.ApplyStepOutcome(ctx, taskID, step, outcome)
	if err != nil {
		log.Printf("orchestrator: failed to apply outcome for task %v step %v: %v", taskID, step, err)
		return
	}
	if t.State != task.StateRunning {
		return
	}
	next := t.NextStep()
	if next == nil {
		if err = s.ledger.Complete(ctx, taskID); err != nil {
			log.Printf("orchestrator: failed to complete task %v: %v", taskID, err)
		}
		return
	}
	if err = s.queue.Publish(ctx, &Work{TaskID: taskID, Step: next.Name}); err != nil {
		log.Printf("orchestrator: failed to schedule step %v of task %v: %v", next.Name, taskID, err)
	}
}

// stepInput selects the payload a step consumes: the output of the latest
// finished step, or the task's original input for the first one.
func (s *Service) stepInput(t *task.Task, rec *task.StepRecord) interface{} {
	var input interface{} = t.Input
	for _, step := range t.Steps {
		if step == rec || step.Name == rec.Name {
			break
		}
		if step.Status == task.StepDone && step.Output != nil {
			input = step.Output
		}
	}
	return input
}

// rematerialise converts a delegated output, typically decoded from JSON
// as a generic map, back into the payload type declared on the step.
func (s *Service) rematerialise(step string, output interface{}) interface{} {
	if output == nil {
		return nil
	}
	stepDef, _, err := s.registry.Lookup(step)
	if err != nil || stepDef.OutputType == "" {
		return output
	}
	registered := s.registry.Types().Lookup(stepDef.OutputType)
	if registered == nil {
		return output
	}
	typed, err := materialise(reflect.PtrTo(registered.Type), output)
	if err != nil {
		return output
	}
	return typed
}

// materialise JSON round-trips an opaque payload into the supplied pointer
// type so that providers receive their declared input structs.
func materialise(target reflect.Type, payload interface{}) (interface{}, error) {
	if target == nil {
		return payload, nil
	}
	value := reflect.New(target.Elem()).Interface()
	if payload == nil {
		return value, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal step payload: %w", err)
	}
	if err = json.Unmarshal(data, value); err != nil {
		return nil, fmt.Errorf("failed to unmarshal step payload into %v: %w", target, err)
	}
	return value, nil
}

// Package delegation turns "execute this step remotely" into a subtask
// exchange with a counterparty agent and routes the asynchronous result
// back into the orchestrator as a step outcome. The channel owns the set
// of in-flight correlation entries and never mutates task state directly.
package delegation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/babelmesh/lingua/internal/clock"
	"github.com/babelmesh/lingua/metering"
	"github.com/babelmesh/lingua/model/task"
	"github.com/babelmesh/lingua/service/counterparty"
)

// Handler receives correlated outcomes; the orchestrator applies them.
type Handler func(ctx context.Context, taskID, step string, outcome *task.Outcome)

// Config represents channel configuration.
type Config struct {
	// DefaultTimeout is the deadline applied when the step definition
	// carries none.
	DefaultTimeout time.Duration

	// SweepInterval is how often expired correlation entries are reaped.
	SweepInterval time.Duration
}

// DefaultConfig returns the default channel configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: 5 * time.Minute,
		SweepInterval:  time.Second,
	}
}

// Channel is the delegation protocol adapter.
type Channel struct {
	config   Config
	client   counterparty.Client
	store    *Store
	dao      DAO
	handler  Handler
	meter    metering.Meter
	identity string
	callback string

	shutdownCh chan struct{}
}

// Option customises the channel.
type Option func(c *Channel)

// WithMeter gates subtask creation on plan credits.
func WithMeter(meter metering.Meter) Option {
	return func(c *Channel) { c.meter = meter }
}

// WithIdentity sets the caller identity sent with every subtask request.
func WithIdentity(identity string) Option {
	return func(c *Channel) { c.identity = identity }
}

// WithCallbackURL sets the URL counterparties report results to.
func WithCallbackURL(callbackURL string) Option {
	return func(c *Channel) { c.callback = callbackURL }
}

// WithDAO sets the persistence used to recover in-flight entries.
func WithDAO(dao DAO) Option {
	return func(c *Channel) { c.dao = dao }
}

// WithConfig overrides the default timeout/sweep configuration.
func WithConfig(config Config) Option {
	return func(c *Channel) { c.config = config }
}

// New creates a delegation channel over the supplied protocol client.
func New(client counterparty.Client, options ...Option) *Channel {
	ret := &Channel{
		config:     DefaultConfig(),
		client:     client,
		store:      NewStore(),
		shutdownCh: make(chan struct{}),
	}
	for _, option := range options {
		option(ret)
	}
	if ret.dao == nil {
		ret.dao = NewMemoryDAO()
	}
	return ret
}

// SetHandler wires the outcome sink; called once by the orchestrator.
func (c *Channel) SetHandler(handler Handler) {
	c.handler = handler
}

// Delegate initiates a subtask with the counterparty and registers a
// correlation entry. The handoff is non-blocking: it returns as soon as
// the counterparty acknowledged the subtask.
func (c *Channel) Delegate(ctx context.Context, taskID, step string, input interface{}, endpoint, plan string, timeout time.Duration) (*task.DelegateRef, error) {
	if c.client == nil {
		return nil, fmt.Errorf("%w: no protocol client configured", task.ErrCounterpartyUnreachable)
	}
	if c.meter != nil && plan != "" {
		if err := metering.Ensure(ctx, c.meter, plan); err != nil {
			return nil, fmt.Errorf("%w: %v", task.ErrCounterpartyUnreachable, err)
		}
		if err := c.meter.Charge(ctx, plan, 1); err != nil {
			return nil, fmt.Errorf("%w: %v", task.ErrCounterpartyUnreachable, err)
		}
	}
	request := &counterparty.SubtaskRequest{
		Step:        step,
		Input:       input,
		Caller:      c.identity,
		CallbackURL: c.callback,
	}
	remoteID, err := c.client.CreateSubtask(ctx, endpoint, request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", task.ErrCounterpartyUnreachable, err)
	}
	if timeout <= 0 {
		timeout = c.config.DefaultTimeout
	}
	now := clock.Now()
	deadline := now.Add(timeout)
	entry := c.store.Create(&Entry{
		RemoteID:     remoteID,
		TaskID:       taskID,
		Step:         step,
		Counterparty: endpoint,
		CreatedAt:    now,
		DeadlineAt:   &deadline,
	})
	if err = c.dao.Save(ctx, entry); err != nil {
		log.Printf("delegation: failed to persist entry %v: %v", remoteID, err)
	}
	return &task.DelegateRef{RemoteID: remoteID, Counterparty: endpoint}, nil
}

// OnSubtaskResult delivers a counterparty result. Results for unknown
// remote ids (duplicates, or late deliveries after a timeout already
// failed the task) are discarded.
func (c *Channel) OnSubtaskResult(ctx context.Context, remoteID string, outcome *task.Outcome) {
	entry := c.store.Remove(remoteID)
	if entry == nil {
		log.Printf("delegation: discarding result for unknown subtask %v", remoteID)
		return
	}
	_ = c.dao.Delete(ctx, remoteID)
	if c.handler != nil {
		c.handler(ctx, entry.TaskID, entry.Step, outcome)
	}
}

// CancelTask drops all correlation entries of a task and asks the
// counterparties, best effort, to abandon the subtasks. Any result that
// still arrives is discarded by OnSubtaskResult.
func (c *Channel) CancelTask(ctx context.Context, taskID string) {
	var remoteIDs []string
	c.store.Iterate(func(remoteID string, entry *Entry) {
		if entry.TaskID == taskID {
			remoteIDs = append(remoteIDs, remoteID)
		}
	})
	for _, remoteID := range remoteIDs {
		entry := c.store.Remove(remoteID)
		if entry == nil {
			continue
		}
		_ = c.dao.Delete(ctx, remoteID)
		if err := c.client.Abandon(ctx, entry.Counterparty, remoteID); err != nil {
			log.Printf("delegation: abandon of %v failed: %v", remoteID, err)
		}
	}
}

// Start recovers persisted entries and runs the timeout sweep until the
// context is cancelled or Shutdown is called.
func (c *Channel) Start(ctx context.Context) error {
	if entries, err := c.dao.List(ctx); err == nil {
		for _, entry := range entries {
			c.store.Create(entry)
		}
	}
	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.shutdownCh:
			return nil
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

// Shutdown stops the sweep loop.
func (c *Channel) Shutdown() {
	close(c.shutdownCh)
}

// sweep fires a synthetic timed-out outcome for every entry past its
// deadline and removes it.
func (c *Channel) sweep(ctx context.Context) {
	now := clock.Now()
	var expired []string
	c.store.Iterate(func(remoteID string, entry *Entry) {
		if entry.Expired(now) {
			expired = append(expired, remoteID)
		}
	})
	for _, remoteID := range expired {
		entry := c.store.Remove(remoteID)
		if entry == nil {
			continue
		}
		_ = c.dao.Delete(ctx, remoteID)
		log.Printf("delegation: subtask %v timed out", remoteID)
		if c.handler != nil {
			c.handler(ctx, entry.TaskID, entry.Step, &task.Outcome{Error: task.ErrTimedOut.Error()})
		}
	}
}

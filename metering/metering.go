// Package metering gates delegation on payment-plan credits. The actual
// payment rail is an external collaborator behind the Meter interface;
// this package only decides whether a handoff may proceed and orders the
// plan again when the balance ran out.
package metering

import (
	"context"
	"errors"
	"sync"
)

// ErrInsufficientCredits indicates the plan has no credits left and could
// not be (re)ordered.
var ErrInsufficientCredits = errors.New("metering: insufficient credits")

// Meter exposes the payment collaborator's plan operations.
type Meter interface {
	// Balance returns the remaining credits on a plan.
	Balance(ctx context.Context, planID string) (int64, error)

	// Order purchases the plan again, topping up its credits.
	Order(ctx context.Context, planID string) error

	// Charge consumes credits from a plan.
	Charge(ctx context.Context, planID string, credits int64) error
}

// Ensure guarantees at least one credit is available on the plan, ordering
// the plan again when the balance ran out.
func Ensure(ctx context.Context, meter Meter, planID string) error {
	balance, err := meter.Balance(ctx, planID)
	if err != nil {
		return err
	}
	if balance >= 1 {
		return nil
	}
	if err = meter.Order(ctx, planID); err != nil {
		return errors.Join(ErrInsufficientCredits, err)
	}
	return nil
}

type meterKey string

const contextKey = meterKey("lingua.meter")

// WithMeter injects a meter into the context.
func WithMeter(ctx context.Context, meter Meter) context.Context {
	return context.WithValue(ctx, contextKey, meter)
}

// FromContext extracts a meter previously injected into the context.
func FromContext(ctx context.Context) Meter {
	if ctx == nil {
		return nil
	}
	if value := ctx.Value(contextKey); value != nil {
		if meter, ok := value.(Meter); ok {
			return meter
		}
	}
	return nil
}

// Memory is an in-process meter for tests and single-agent deployments.
type Memory struct {
	mu           sync.Mutex
	balances     map[string]int64
	orderCredits int64
}

// NewMemory creates a memory meter; each Order grants orderCredits.
func NewMemory(orderCredits int64) *Memory {
	return &Memory{balances: make(map[string]int64), orderCredits: orderCredits}
}

func (m *Memory) Balance(_ context.Context, planID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[planID], nil
}

func (m *Memory) Order(_ context.Context, planID string) error {
	if m.orderCredits <= 0 {
		return ErrInsufficientCredits
	}
	m.mu.Lock()
	m.balances[planID] += m.orderCredits
	m.mu.Unlock()
	return nil
}

func (m *Memory) Charge(_ context.Context, planID string, credits int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[planID] < credits {
		return ErrInsufficientCredits
	}
	m.balances[planID] -= credits
	return nil
}

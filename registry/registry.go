// Package registry maps declared intents to ordered step plans and step
// names to the handlers responsible for executing them. The registry is
// populated at startup and read-only afterwards; resolution is a pure
// mapping with no side effects.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/babelmesh/lingua/model/intent"
	"github.com/babelmesh/lingua/model/task"
	"github.com/babelmesh/lingua/model/types"
	"github.com/viant/x"
)

// Mode determines where a step executes.
type Mode string

const (
	// ModeLocal steps run a registered capability provider in-process.
	ModeLocal Mode = "local"

	// ModeDelegated steps are handed off to a counterparty agent through
	// the delegation channel.
	ModeDelegated Mode = "delegated"
)

// Step binds a step name to its execution mode and handler reference.
type Step struct {
	Name string
	Mode Mode

	// Local mode: provider service and method names.
	Service string
	Method  string

	// Delegated mode: counterparty endpoint, payment plan and deadline.
	Counterparty string
	Plan         string
	Timeout      time.Duration

	// OutputType optionally names a registered payload type the delegated
	// output should be re-materialised into.
	OutputType string
}

// Service provides intent resolution and step lookup.
type Service struct {
	types    *Types
	services map[string]types.Service
	steps    map[string]*Step
	plans    map[intent.Intent][]string
	mux      sync.RWMutex
}

// New creates a registry, optionally seeding the payload type registry.
func New(goTypes ...*x.Type) *Service {
	ret := &Service{
		types:    NewTypes(),
		services: make(map[string]types.Service),
		steps:    make(map[string]*Step),
		plans:    make(map[intent.Intent][]string),
	}
	for _, t := range goTypes {
		ret.types.Register(t)
	}
	return ret
}

// Types returns the payload type registry.
func (s *Service) Types() *Types {
	return s.types
}

// RegisterService registers a capability provider.
func (s *Service) RegisterService(service types.Service) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.services[service.Name()] = service
}

// RegisterStep registers a step definition.
func (s *Service) RegisterStep(step *Step) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.steps[step.Name] = step
}

// RegisterPlan binds an intent to its ordered step list.
func (s *Service) RegisterPlan(anIntent intent.Intent, steps ...string) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.plans[anIntent] = steps
}

// Resolve produces the minimal ordered step list satisfying the declared
// intent. A step without a registered definition fails resolution.
func (s *Service) Resolve(anIntent intent.Intent) ([]string, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	plan, ok := s.plans[anIntent]
	if !ok {
		return nil, fmt.Errorf("%w: no plan for intent %q", task.ErrUnknownStep, anIntent)
	}
	for _, name := range plan {
		if _, ok := s.steps[name]; !ok {
			return nil, fmt.Errorf("%w: %q", task.ErrUnknownStep, name)
		}
	}
	return append([]string(nil), plan...), nil
}

// Lookup returns the step definition and, for local steps, its provider.
func (s *Service) Lookup(name string) (*Step, types.Service, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	step, ok := s.steps[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", task.ErrUnknownStep, name)
	}
	if step.Mode == ModeDelegated {
		return step, nil, nil
	}
	service, ok := s.services[step.Service]
	if !ok {
		return nil, nil, fmt.Errorf("%w: service %q for step %q", task.ErrUnknownStep, step.Service, name)
	}
	return step, service, nil
}

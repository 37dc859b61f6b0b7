package lingua

import (
	"github.com/babelmesh/lingua/ledger"
	"github.com/babelmesh/lingua/metering"
	"github.com/babelmesh/lingua/model/intent"
	"github.com/babelmesh/lingua/model/task"
	"github.com/babelmesh/lingua/model/types"
	"github.com/babelmesh/lingua/registry"
	"github.com/babelmesh/lingua/runtime/delegation"
	"github.com/babelmesh/lingua/runtime/orchestrator"
	"github.com/babelmesh/lingua/service/counterparty"
	"github.com/babelmesh/lingua/service/dao"
	taskmem "github.com/babelmesh/lingua/service/dao/task/memory"
	"github.com/babelmesh/lingua/service/event"
	"github.com/babelmesh/lingua/service/messaging"
	mmemory "github.com/babelmesh/lingua/service/messaging/memory"
	"github.com/viant/x"
)

type Service struct {
	runtime *Runtime

	taskDAO          dao.Service[string, task.Task]
	queue            messaging.Queue[orchestrator.Work]
	client           counterparty.Client
	meter            metering.Meter
	identity         string
	callbackURL      string
	delegationDAO    delegation.DAO
	delegationConfig *delegation.Config
	workers          int

	auditHandler      func(*event.Event[ledger.LogEntry])
	extensionTypes    []*x.Type
	extensionServices []types.Service
	steps             []*registry.Step
	plans             map[intent.Intent][]string
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()

	s.runtime.registry = registry.New(s.extensionTypes...)
	for _, service := range s.extensionServices {
		s.runtime.registry.RegisterService(service)
	}
	for _, step := range s.steps {
		s.runtime.registry.RegisterStep(step)
	}
	for anIntent, plan := range s.plans {
		s.runtime.registry.RegisterPlan(anIntent, plan...)
	}

	var events *event.Publisher[ledger.LogEntry]
	if s.auditHandler != nil {
		queue := mmemory.NewQueue[event.Event[ledger.LogEntry]](mmemory.DefaultConfig())
		events = event.NewPublisher[ledger.LogEntry](queue)
		s.runtime.listener = event.NewListener(events, s.auditHandler)
	}
	s.runtime.ledger = ledger.New(s.taskDAO, events)

	channelOptions := []delegation.Option{delegation.WithDAO(s.delegationDAO)}
	if s.meter != nil {
		channelOptions = append(channelOptions, delegation.WithMeter(s.meter))
	}
	if s.identity != "" {
		channelOptions = append(channelOptions, delegation.WithIdentity(s.identity))
	}
	if s.callbackURL != "" {
		channelOptions = append(channelOptions, delegation.WithCallbackURL(s.callbackURL))
	}
	if s.delegationConfig != nil {
		channelOptions = append(channelOptions, delegation.WithConfig(*s.delegationConfig))
	}
	s.runtime.channel = delegation.New(s.client, channelOptions...)

	s.runtime.orchestrator, _ = orchestrator.New(
		orchestrator.WithRegistry(s.runtime.registry),
		orchestrator.WithLedger(s.runtime.ledger),
		orchestrator.WithQueue(s.queue),
		orchestrator.WithChannel(s.runtime.channel),
		orchestrator.WithWorkers(s.workers))
}

func (s *Service) ensureBaseSetup() {
	if s.taskDAO == nil {
		s.taskDAO = taskmem.New()
	}
	if s.queue == nil {
		s.queue = mmemory.NewQueue[orchestrator.Work](mmemory.DefaultConfig())
	}
	if s.delegationDAO == nil {
		s.delegationDAO = delegation.NewMemoryDAO()
	}
	if s.plans == nil {
		s.plans = map[intent.Intent][]string{}
	}
}

// RegisterExtensionServices registers capability providers after construction.
func (s *Service) RegisterExtensionServices(services ...types.Service) {
	for i := range services {
		s.runtime.registry.RegisterService(services[i])
	}
}

// RegisterExtensionTypes registers payload types after construction.
func (s *Service) RegisterExtensionTypes(goTypes ...*x.Type) {
	for i := range goTypes {
		s.runtime.registry.Types().Register(goTypes[i])
	}
}

func (s *Service) Runtime() *Runtime {
	return s.runtime
}

func New(options ...Option) *Service {
	ret := &Service{runtime: &Runtime{}}
	ret.init(options)
	return ret
}

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
	"github.com/babelmesh/lingua/service/event"
	"github.com/babelmesh/lingua/service/messaging"
	"github.com/babelmesh/lingua/tracing"
	"github.com/viant/x"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises the engine assembly.
type Option func(s *Service)

// WithTaskDAO sets the task store.
func WithTaskDAO(store dao.Service[string, task.Task]) Option {
	return func(s *Service) { s.taskDAO = store }
}

// WithQueue sets the step work queue.
func WithQueue(queue messaging.Queue[orchestrator.Work]) Option {
	return func(s *Service) { s.queue = queue }
}

// WithCounterpartyClient sets the outbound subtask protocol client.
func WithCounterpartyClient(client counterparty.Client) Option {
	return func(s *Service) { s.client = client }
}

// WithMeter gates delegations on payment plan credits.
func WithMeter(meter metering.Meter) Option {
	return func(s *Service) { s.meter = meter }
}

// WithIdentity names this agent in outbound subtask requests.
func WithIdentity(identity string) Option {
	return func(s *Service) { s.identity = identity }
}

// WithCallbackURL sets the URL counterparties report results to.
func WithCallbackURL(callbackURL string) Option {
	return func(s *Service) { s.callbackURL = callbackURL }
}

// WithDelegationDAO sets the correlation entry persistence.
func WithDelegationDAO(store delegation.DAO) Option {
	return func(s *Service) { s.delegationDAO = store }
}

// WithDelegationConfig overrides the delegation timeout/sweep defaults.
func WithDelegationConfig(config delegation.Config) Option {
	return func(s *Service) { s.delegationConfig = &config }
}

// WithWorkers sets the orchestrator worker count.
func WithWorkers(count int) Option {
	return func(s *Service) { s.workers = count }
}

// WithExtensionTypes seeds the payload type registry.
func WithExtensionTypes(goTypes ...*x.Type) Option {
	return func(s *Service) { s.extensionTypes = goTypes }
}

// WithExtensionServices registers capability providers.
func WithExtensionServices(services ...types.Service) Option {
	return func(s *Service) { s.extensionServices = services }
}

// WithStep registers a step definition.
func WithStep(step *registry.Step) Option {
	return func(s *Service) { s.steps = append(s.steps, step) }
}

// WithPlan binds an intent to its ordered step list.
func WithPlan(anIntent intent.Intent, steps ...string) Option {
	return func(s *Service) {
		if s.plans == nil {
			s.plans = map[intent.Intent][]string{}
		}
		s.plans[anIntent] = steps
	}
}

// WithAuditHandler receives every ledger audit event.
func WithAuditHandler(handler func(*event.Event[ledger.LogEntry])) Option {
	return func(s *Service) { s.auditHandler = handler }
}

// WithTracing configures OpenTelemetry tracing with the stdout exporter. If
// outputFile is empty traces go to stdout. Safe to call multiple times; the
// first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing with a custom span
// exporter, e.g. OTLP, Jaeger or Zipkin.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}

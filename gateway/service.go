// Package gateway exposes the agent over HTTP: a task API for clients and
// the subtask protocol surface other agents delegate work through.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/babelmesh/lingua/model/intent"
	"github.com/babelmesh/lingua/model/task"
	"github.com/babelmesh/lingua/service/counterparty"
	"github.com/babelmesh/lingua/service/dao"
	"github.com/babelmesh/lingua/tracing"
)

// Engine is the orchestration surface the gateway fronts.
type Engine interface {
	SubmitTask(ctx context.Context, input *task.Input, anIntent intent.Intent) (*task.Task, error)
	GetStatus(ctx context.Context, taskID string) (*task.Task, error)
	CancelTask(ctx context.Context, taskID string) error
	HandleSubtaskResult(ctx context.Context, remoteID string, outcome *task.Outcome)
}

// Config represents gateway configuration.
type Config struct {
	// Addr is the listen address.
	Addr string

	// PollInterval is how often a served subtask is checked for completion
	// before its result is reported back to the caller.
	PollInterval time.Duration
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{Addr: ":8080", PollInterval: 200 * time.Millisecond}
}

// Service is the HTTP gateway.
type Service struct {
	config   Config
	engine   Engine
	notifier counterparty.Notifier
	intents  map[string]intent.Intent
	server   *http.Server
	wg       sync.WaitGroup
}

// Option customises the gateway.
type Option func(s *Service)

// WithConfig overrides the default configuration.
func WithConfig(config Config) Option {
	return func(s *Service) {
		if config.PollInterval <= 0 {
			config.PollInterval = DefaultConfig().PollInterval
		}
		s.config = config
	}
}

// WithNotifier sets the client used to report served subtask results back
// to their callers.
func WithNotifier(notifier counterparty.Notifier) Option {
	return func(s *Service) { s.notifier = notifier }
}

// WithSubtaskIntents declares which incoming subtask steps this agent
// serves, mapping each step name to the local intent that fulfils it.
func WithSubtaskIntents(intents map[string]intent.Intent) Option {
	return func(s *Service) { s.intents = intents }
}

// New creates a gateway over the supplied engine.
func New(engine Engine, options ...Option) *Service {
	ret := &Service{
		config:  DefaultConfig(),
		engine:  engine,
		intents: map[string]intent.Intent{},
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Handler builds the HTTP routing table.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/tasks", s.submitTask)
	mux.HandleFunc("GET /v1/tasks/{id}", s.getTask)
	mux.HandleFunc("DELETE /v1/tasks/{id}", s.cancelTask)
	mux.HandleFunc("POST /v1/results", s.receiveResult)
	mux.HandleFunc("POST /v1/subtasks", s.serveSubtask)
	mux.HandleFunc("DELETE /v1/subtasks/{id}", s.abandonSubtask)
	return mux
}

// Start runs the HTTP server until the context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.server = &http.Server{Addr: s.config.Addr, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.wg.Wait()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

type submitRequest struct {
	Input  *task.Input `json:"input"`
	Intent string      `json:"intent"`
}

func (s *Service) submitTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "gateway.submitTask", "SERVER")
	request := &submitRequest{}
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		s.writeError(w, span, http.StatusBadRequest, "invalid request body")
		return
	}
	anIntent, err := intent.Parse(request.Intent)
	if err != nil {
		s.writeError(w, span, http.StatusBadRequest, err.Error())
		return
	}
	t, err := s.engine.SubmitTask(ctx, request.Input, anIntent)
	if err != nil {
		s.writeError(w, span, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, span, http.StatusAccepted, t)
}

func (s *Service) getTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "gateway.getTask", "SERVER")
	t, err := s.engine.GetStatus(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			s.writeError(w, span, http.StatusNotFound, "task not found")
			return
		}
		s.writeError(w, span, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, span, http.StatusOK, t)
}

func (s *Service) cancelTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "gateway.cancelTask", "SERVER")
	if err := s.engine.CancelTask(ctx, r.PathValue("id")); err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			s.writeError(w, span, http.StatusNotFound, "task not found")
			return
		}
		s.writeError(w, span, http.StatusInternalServerError, err.Error())
		return
	}
	span.SetStatusFromHTTPCode(http.StatusNoContent)
	tracing.EndSpan(span, nil)
	w.WriteHeader(http.StatusNoContent)
}

// receiveResult is the callback endpoint counterparties report subtask
// results to. Delivery is at-least-once; duplicates are discarded by the
// delegation channel, so this handler always answers 204.
func (s *Service) receiveResult(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "gateway.receiveResult", "SERVER")
	result := &counterparty.Result{}
	if err := json.NewDecoder(r.Body).Decode(result); err != nil {
		s.writeError(w, span, http.StatusBadRequest, "invalid result body")
		return
	}
	if result.RemoteID == "" {
		s.writeError(w, span, http.StatusBadRequest, "remoteID is required")
		return
	}
	outcome := &task.Outcome{
		Output:    result.Output,
		Artifacts: result.Artifacts,
		Error:     result.Error,
	}
	s.engine.HandleSubtaskResult(ctx, result.RemoteID, outcome)
	span.SetStatusFromHTTPCode(http.StatusNoContent)
	tracing.EndSpan(span, nil)
	w.WriteHeader(http.StatusNoContent)
}

// serveSubtask accepts a delegated step from another agent: the step is
// mapped to a local intent, run as an ordinary task, and its result is
// reported back to the caller's callback URL once the task finishes.
func (s *Service) serveSubtask(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "gateway.serveSubtask", "SERVER")
	request := &counterparty.SubtaskRequest{}
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		s.writeError(w, span, http.StatusBadRequest, "invalid subtask body")
		return
	}
	anIntent, ok := s.intents[request.Step]
	if !ok {
		s.writeError(w, span, http.StatusNotFound, "step not served: "+request.Step)
		return
	}
	input := &task.Input{}
	if request.Input != nil {
		data, err := json.Marshal(request.Input)
		if err == nil {
			_ = json.Unmarshal(data, input)
		}
	}
	t, err := s.engine.SubmitTask(ctx, input, anIntent)
	if err != nil {
		s.writeError(w, span, http.StatusInternalServerError, err.Error())
		return
	}
	if request.CallbackURL != "" && s.notifier != nil {
		s.wg.Add(1)
		go s.reportWhenDone(t.ID, request.CallbackURL)
	}
	s.writeJSON(w, span, http.StatusCreated, &counterparty.SubtaskAccepted{RemoteID: t.ID})
}

func (s *Service) abandonSubtask(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "gateway.abandonSubtask", "SERVER")
	if err := s.engine.CancelTask(ctx, r.PathValue("id")); err != nil && !errors.Is(err, dao.ErrNotFound) {
		s.writeError(w, span, http.StatusInternalServerError, err.Error())
		return
	}
	span.SetStatusFromHTTPCode(http.StatusNoContent)
	tracing.EndSpan(span, nil)
	w.WriteHeader(http.StatusNoContent)
}

// reportWhenDone polls a served subtask until it reaches a terminal state
// and reports the result to the caller.
func (s *Service) reportWhenDone(taskID, callbackURL string) {
	defer s.wg.Done()
	ctx := context.Background()
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()
	for range ticker.C {
		t, err := s.engine.GetStatus(ctx, taskID)
		if err != nil {
			log.Printf("gateway: lost track of served subtask %v: %v", taskID, err)
			return
		}
		if !t.State.IsTerminal() {
			continue
		}
		result := &counterparty.Result{RemoteID: taskID, Artifacts: t.Artifacts}
		if t.State == task.StateFailed {
			result.Error = t.Reason
		} else if last := lastOutput(t); last != nil {
			result.Output = last
		}
		if err = s.notifier.ReportResult(ctx, callbackURL, result); err != nil {
			log.Printf("gateway: failed to report subtask %v result: %v", taskID, err)
		}
		return
	}
}

// lastOutput returns the output of the final finished step.
func lastOutput(t *task.Task) interface{} {
	for i := len(t.Steps) - 1; i >= 0; i-- {
		if t.Steps[i].Status == task.StepDone && t.Steps[i].Output != nil {
			return t.Steps[i].Output
		}
	}
	return nil
}

func (s *Service) writeJSON(w http.ResponseWriter, span *tracing.Span, status int, value interface{}) {
	span.SetStatusFromHTTPCode(status)
	tracing.EndSpan(span, nil)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func (s *Service) writeError(w http.ResponseWriter, span *tracing.Span, status int, message string) {
	span.SetStatusFromHTTPCode(status)
	tracing.EndSpan(span, errors.New(message))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

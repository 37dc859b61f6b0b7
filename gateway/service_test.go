package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/babelmesh/lingua/model/intent"
	"github.com/babelmesh/lingua/model/task"
	"github.com/babelmesh/lingua/service/counterparty"
	"github.com/babelmesh/lingua/service/dao"
	"github.com/stretchr/testify/assert"
)

type fakeEngine struct {
	mu        sync.Mutex
	tasks     map[string]*task.Task
	nextID    int
	cancelled []string
	results   map[string]*task.Outcome
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{tasks: map[string]*task.Task{}, results: map[string]*task.Outcome{}}
}

func (e *fakeEngine) SubmitTask(_ context.Context, input *task.Input, anIntent intent.Intent) (*task.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	t := task.New(fmt.Sprintf("task-%d", e.nextID), input, anIntent)
	e.tasks[t.ID] = t
	return t, nil
}

func (e *fakeEngine) GetStatus(_ context.Context, taskID string) (*task.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasks[taskID]
	if !ok {
		return nil, dao.ErrNotFound
	}
	return t.Clone(), nil
}

func (e *fakeEngine) CancelTask(_ context.Context, taskID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.tasks[taskID]; !ok {
		return dao.ErrNotFound
	}
	e.cancelled = append(e.cancelled, taskID)
	return nil
}

func (e *fakeEngine) HandleSubtaskResult(_ context.Context, remoteID string, outcome *task.Outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results[remoteID] = outcome
}

func (e *fakeEngine) finish(taskID string, state task.State, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.tasks[taskID]
	t.State = state
	t.Reason = reason
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	data, err := json.Marshal(payload)
	assert.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	assert.NoError(t, err)
	return resp
}

func TestService_TaskAPI(t *testing.T) {
	engine := newFakeEngine()
	gw := New(engine)
	server := httptest.NewServer(gw.Handler())
	defer server.Close()

	// submit
	resp := postJSON(t, server.URL+"/v1/tasks", map[string]interface{}{
		"input":  map[string]string{"text": "hola"},
		"intent": "translate",
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	submitted := &task.Task{}
	_ = json.NewDecoder(resp.Body).Decode(submitted)
	resp.Body.Close()
	assert.Equal(t, "task-1", submitted.ID)

	// status
	resp, err := http.Get(server.URL + "/v1/tasks/task-1")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(server.URL + "/v1/tasks/missing")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// invalid intent
	resp = postJSON(t, server.URL+"/v1/tasks", map[string]interface{}{"intent": "summarize"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// cancel
	request, _ := http.NewRequest(http.MethodDelete, server.URL+"/v1/tasks/task-1", nil)
	resp, err = http.DefaultClient.Do(request)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, []string{"task-1"}, engine.cancelled)
}

func TestService_ReceiveResult(t *testing.T) {
	engine := newFakeEngine()
	gw := New(engine)
	server := httptest.NewServer(gw.Handler())
	defer server.Close()

	resp := postJSON(t, server.URL+"/v1/results", &counterparty.Result{
		RemoteID:  "remote-1",
		Output:    map[string]string{"text": "hello"},
		Artifacts: map[string]string{"audio": "ipfs://abc"},
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	outcome := engine.results["remote-1"]
	assert.NotNil(t, outcome)
	assert.Equal(t, "ipfs://abc", outcome.Artifacts["audio"])

	// missing remote id is rejected
	resp = postJSON(t, server.URL+"/v1/results", &counterparty.Result{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestService_ServeSubtask(t *testing.T) {
	engine := newFakeEngine()
	notifier := counterparty.NewHTTPClient(nil)

	var reported *counterparty.Result
	var mu sync.Mutex
	callback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		reported = &counterparty.Result{}
		_ = json.NewDecoder(r.Body).Decode(reported)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer callback.Close()

	gw := New(engine,
		WithConfig(Config{Addr: ":0", PollInterval: 10 * time.Millisecond}),
		WithNotifier(notifier),
		WithSubtaskIntents(map[string]intent.Intent{"text2speech": intent.Speech}))
	server := httptest.NewServer(gw.Handler())
	defer server.Close()

	resp := postJSON(t, server.URL+"/v1/subtasks", &counterparty.SubtaskRequest{
		Step:        "text2speech",
		Input:       map[string]string{"text": "hello"},
		Caller:      "peer",
		CallbackURL: callback.URL + "/v1/results",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	accepted := &counterparty.SubtaskAccepted{}
	_ = json.NewDecoder(resp.Body).Decode(accepted)
	resp.Body.Close()
	assert.Equal(t, "task-1", accepted.RemoteID)

	// once the local task finishes the result is reported to the callback
	engine.finish("task-1", task.StateCompleted, "")
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reported != nil
	}, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, "task-1", reported.RemoteID)
	assert.Empty(t, reported.Error)
	mu.Unlock()

	// unserved steps are rejected
	resp = postJSON(t, server.URL+"/v1/subtasks", &counterparty.SubtaskRequest{Step: "summarize"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestService_ServeSubtask_FailureReported(t *testing.T) {
	engine := newFakeEngine()

	var reported *counterparty.Result
	var mu sync.Mutex
	callback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		reported = &counterparty.Result{}
		_ = json.NewDecoder(r.Body).Decode(reported)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer callback.Close()

	gw := New(engine,
		WithConfig(Config{Addr: ":0", PollInterval: 10 * time.Millisecond}),
		WithNotifier(counterparty.NewHTTPClient(nil)),
		WithSubtaskIntents(map[string]intent.Intent{"text2speech": intent.Speech}))
	server := httptest.NewServer(gw.Handler())
	defer server.Close()

	resp := postJSON(t, server.URL+"/v1/subtasks", &counterparty.SubtaskRequest{
		Step:        "text2speech",
		CallbackURL: callback.URL,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	engine.finish("task-1", task.StateFailed, "handler failure: boom")
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reported != nil
	}, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, "handler failure: boom", reported.Error)
	mu.Unlock()
}

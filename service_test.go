package lingua_test

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/babelmesh/lingua"
	"github.com/babelmesh/lingua/model/intent"
	"github.com/babelmesh/lingua/model/task"
	"github.com/babelmesh/lingua/model/types"
	"github.com/babelmesh/lingua/registry"
	"github.com/babelmesh/lingua/runtime/delegation"
	"github.com/babelmesh/lingua/service/counterparty"
	"github.com/stretchr/testify/assert"
	"github.com/viant/x"
)

type textInput struct {
	Text string `json:"text"`
}

type textOutput struct {
	Text string `json:"text"`
}

type audioOutput struct {
	Locator string `json:"locator"`
}

func (o *audioOutput) Artifacts() map[string]string {
	if o.Locator == "" {
		return nil
	}
	return map[string]string{"audio": o.Locator}
}

type fakeTranslate struct{}

func (s *fakeTranslate) Name() string { return "translate" }

func (s *fakeTranslate) Methods() types.Signatures {
	return []types.Signature{
		{Name: "translate", Input: reflect.TypeOf(&textInput{}), Output: reflect.TypeOf(&textOutput{})},
	}
}

func (s *fakeTranslate) Method(name string) (types.Executable, error) {
	if name != "translate" {
		return nil, types.NewMethodNotFoundError(name)
	}
	return func(_ context.Context, in, out interface{}) error {
		out.(*textOutput).Text = strings.ToUpper(in.(*textInput).Text)
		return nil
	}, nil
}

type fakeSpeech struct{}

func (s *fakeSpeech) Name() string { return "text2speech" }

func (s *fakeSpeech) Methods() types.Signatures {
	return []types.Signature{
		{Name: "synthesize", Input: reflect.TypeOf(&textInput{}), Output: reflect.TypeOf(&audioOutput{})},
	}
}

func (s *fakeSpeech) Method(name string) (types.Executable, error) {
	if name != "synthesize" {
		return nil, types.NewMethodNotFoundError(name)
	}
	return func(_ context.Context, in, out interface{}) error {
		out.(*audioOutput).Locator = "ipfs://" + in.(*textInput).Text
		return nil
	}, nil
}

// loopbackClient wires two in-process engines together: subtask creation
// submits a task on the remote engine, and a goroutine reports the terminal
// result back to the caller the way an HTTP callback would.
type loopbackClient struct {
	remote *lingua.Runtime
	caller *lingua.Runtime
	intent intent.Intent
	wg     sync.WaitGroup
}

func (c *loopbackClient) CreateSubtask(ctx context.Context, _ string, request *counterparty.SubtaskRequest) (string, error) {
	input := &task.Input{}
	if request.Input != nil {
		data, err := json.Marshal(request.Input)
		if err != nil {
			return "", err
		}
		if err = json.Unmarshal(data, input); err != nil {
			return "", err
		}
	}
	submitted, err := c.remote.SubmitTask(ctx, input, c.intent)
	if err != nil {
		return "", err
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		finished, err := c.remote.WaitForTask(context.Background(), submitted.ID, 5*time.Second)
		if err != nil {
			return
		}
		outcome := &task.Outcome{Artifacts: finished.Artifacts}
		if finished.State == task.StateFailed {
			outcome.Error = finished.Reason
		} else {
			for i := len(finished.Steps) - 1; i >= 0; i-- {
				if finished.Steps[i].Status == task.StepDone && finished.Steps[i].Output != nil {
					outcome.Output = finished.Steps[i].Output
					break
				}
			}
		}
		c.caller.HandleSubtaskResult(context.Background(), submitted.ID, outcome)
	}()
	return submitted.ID, nil
}

func (c *loopbackClient) Abandon(ctx context.Context, _ string, remoteID string) error {
	return c.remote.CancelTask(ctx, remoteID)
}

func newSpeechEngine() *lingua.Runtime {
	engine := lingua.New(
		lingua.WithIdentity("speechd"),
		lingua.WithExtensionServices(&fakeSpeech{}),
		lingua.WithStep(&registry.Step{Name: "text2speech", Mode: registry.ModeLocal, Service: "text2speech", Method: "synthesize"}),
		lingua.WithPlan(intent.Speech, "text2speech"))
	return engine.Runtime()
}

func TestService_LocalTranslate(t *testing.T) {
	engine := lingua.New(
		lingua.WithExtensionServices(&fakeTranslate{}),
		lingua.WithStep(&registry.Step{Name: "translate", Mode: registry.ModeLocal, Service: "translate", Method: "translate"}),
		lingua.WithPlan(intent.Translate, "translate"))
	runtime := engine.Runtime()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.NoError(t, runtime.Start(ctx))
	defer func() { _ = runtime.Shutdown(ctx) }()

	submitted, err := runtime.SubmitTask(ctx, &task.Input{Text: "hola"}, intent.Translate)
	assert.NoError(t, err)

	finished, err := runtime.WaitForTask(ctx, submitted.ID, 2*time.Second)
	assert.NoError(t, err)
	assert.Equal(t, task.StateCompleted, finished.State)
	output, ok := finished.Step("translate").Output.(*textOutput)
	assert.True(t, ok)
	assert.Equal(t, "HOLA", output.Text)
}

func TestService_DelegatedSpeech(t *testing.T) {
	speechRuntime := newSpeechEngine()
	client := &loopbackClient{remote: speechRuntime, intent: intent.Speech}

	engine := lingua.New(
		lingua.WithIdentity("linguad"),
		lingua.WithCounterpartyClient(client),
		lingua.WithExtensionServices(&fakeTranslate{}),
		lingua.WithExtensionTypes(x.NewType(reflect.TypeOf(audioOutput{}), x.WithName("speech.Output"))),
		lingua.WithStep(&registry.Step{Name: "translate", Mode: registry.ModeLocal, Service: "translate", Method: "translate"}),
		lingua.WithStep(&registry.Step{Name: "text2speech", Mode: registry.ModeDelegated, Counterparty: "http://speechd", OutputType: "speech.Output"}),
		lingua.WithPlan(intent.TranslateSpeech, "translate", "text2speech"))
	runtime := engine.Runtime()
	client.caller = runtime

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.NoError(t, speechRuntime.Start(ctx))
	assert.NoError(t, runtime.Start(ctx))
	defer func() {
		_ = runtime.Shutdown(ctx)
		_ = speechRuntime.Shutdown(ctx)
	}()

	submitted, err := runtime.SubmitTask(ctx, &task.Input{Text: "hola"}, intent.TranslateSpeech)
	assert.NoError(t, err)

	finished, err := runtime.WaitForTask(ctx, submitted.ID, 5*time.Second)
	assert.NoError(t, err)
	assert.Equal(t, task.StateCompleted, finished.State)

	// translate ran locally, speech ran on the remote engine
	assert.Equal(t, task.StepDone, finished.Step("translate").Status)
	assert.Equal(t, task.StepDone, finished.Step("text2speech").Status)
	assert.Equal(t, "ipfs://HOLA", finished.Artifacts["audio"])

	// the delegated output was re-materialised into its declared type
	output, ok := finished.Step("text2speech").Output.(*audioOutput)
	assert.True(t, ok)
	assert.Equal(t, "ipfs://HOLA", output.Locator)

	client.wg.Wait()
}

type silentClient struct {
	mu     sync.Mutex
	nextID int
	last   string
}

func (c *silentClient) CreateSubtask(_ context.Context, _ string, _ *counterparty.SubtaskRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.last = fmt.Sprintf("remote-%d", c.nextID)
	return c.last, nil
}

func (c *silentClient) Abandon(_ context.Context, _, _ string) error { return nil }

func TestService_DelegationTimeout(t *testing.T) {
	client := &silentClient{}
	engine := lingua.New(
		lingua.WithCounterpartyClient(client),
		lingua.WithDelegationConfig(delegation.Config{DefaultTimeout: 30 * time.Millisecond, SweepInterval: 5 * time.Millisecond}),
		lingua.WithStep(&registry.Step{Name: "text2speech", Mode: registry.ModeDelegated, Counterparty: "http://silent"}),
		lingua.WithPlan(intent.Speech, "text2speech"))
	runtime := engine.Runtime()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.NoError(t, runtime.Start(ctx))
	defer func() { _ = runtime.Shutdown(ctx) }()

	submitted, err := runtime.SubmitTask(ctx, &task.Input{Text: "hola"}, intent.Speech)
	assert.NoError(t, err)

	finished, err := runtime.WaitForTask(ctx, submitted.ID, 2*time.Second)
	assert.NoError(t, err)
	assert.Equal(t, task.StateFailed, finished.State)
	assert.Equal(t, task.ErrTimedOut.Error(), finished.Reason)

	// a result arriving after the deadline is discarded
	runtime.HandleSubtaskResult(ctx, client.last, &task.Outcome{Output: map[string]string{"locator": "ipfs://late"}})
	after, err := runtime.GetStatus(ctx, submitted.ID)
	assert.NoError(t, err)
	assert.Equal(t, task.StateFailed, after.State)
	assert.Empty(t, after.Artifacts)
}

func TestService_UnknownIntent(t *testing.T) {
	engine := lingua.New()
	runtime := engine.Runtime()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.NoError(t, runtime.Start(ctx))
	defer func() { _ = runtime.Shutdown(ctx) }()

	submitted, err := runtime.SubmitTask(ctx, &task.Input{Text: "hola"}, intent.Translate)
	assert.NoError(t, err)
	assert.Equal(t, task.StateFailed, submitted.State)
	assert.Contains(t, submitted.Reason, task.ErrUnknownStep.Error())
}

func TestService_CounterpartyUnreachable(t *testing.T) {
	engine := lingua.New(
		lingua.WithStep(&registry.Step{Name: "text2speech", Mode: registry.ModeDelegated, Counterparty: "http://peer"}),
		lingua.WithPlan(intent.Speech, "text2speech"))
	runtime := engine.Runtime()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.NoError(t, runtime.Start(ctx))
	defer func() { _ = runtime.Shutdown(ctx) }()

	// no counterparty client was wired, the handoff cannot start
	submitted, err := runtime.SubmitTask(ctx, &task.Input{Text: "hola"}, intent.Speech)
	assert.NoError(t, err)

	finished, err := runtime.WaitForTask(ctx, submitted.ID, 2*time.Second)
	assert.NoError(t, err)
	assert.Equal(t, task.StateFailed, finished.State)
	assert.Contains(t, finished.Reason, task.ErrCounterpartyUnreachable.Error())
}

package registry

import (
	"context"
	"reflect"
	"testing"

	"github.com/babelmesh/lingua/model/intent"
	"github.com/babelmesh/lingua/model/task"
	"github.com/babelmesh/lingua/model/types"
	"github.com/stretchr/testify/assert"
	"github.com/viant/x"
)

type echoInput struct {
	Text string `json:"text"`
}

type echoOutput struct {
	Text string `json:"text"`
}

type echoService struct{}

func (s *echoService) Name() string { return "echo" }

func (s *echoService) Methods() types.Signatures {
	return []types.Signature{
		{Name: "echo", Input: reflect.TypeOf(&echoInput{}), Output: reflect.TypeOf(&echoOutput{})},
	}
}

func (s *echoService) Method(name string) (types.Executable, error) {
	if name != "echo" {
		return nil, types.NewMethodNotFoundError(name)
	}
	return func(_ context.Context, in, out interface{}) error {
		out.(*echoOutput).Text = in.(*echoInput).Text
		return nil
	}, nil
}

func TestService_Resolve(t *testing.T) {
	reg := New()
	reg.RegisterService(&echoService{})
	reg.RegisterStep(&Step{Name: "translate", Mode: ModeLocal, Service: "echo", Method: "echo"})
	reg.RegisterStep(&Step{Name: "text2speech", Mode: ModeDelegated, Counterparty: "http://peer"})
	reg.RegisterPlan(intent.Translate, "translate")
	reg.RegisterPlan(intent.TranslateSpeech, "translate", "text2speech")
	reg.RegisterPlan(intent.Speech, "missing")

	plan, err := reg.Resolve(intent.Translate)
	assert.NoError(t, err)
	assert.Equal(t, []string{"translate"}, plan)

	plan, err = reg.Resolve(intent.TranslateSpeech)
	assert.NoError(t, err)
	assert.Equal(t, []string{"translate", "text2speech"}, plan)

	_, err = reg.Resolve(intent.Speech)
	assert.ErrorIs(t, err, task.ErrUnknownStep)

	_, err = reg.Resolve(intent.Intent("unknown"))
	assert.ErrorIs(t, err, task.ErrUnknownStep)
}

func TestService_Lookup(t *testing.T) {
	reg := New()
	reg.RegisterService(&echoService{})
	reg.RegisterStep(&Step{Name: "translate", Mode: ModeLocal, Service: "echo", Method: "echo"})
	reg.RegisterStep(&Step{Name: "text2speech", Mode: ModeDelegated, Counterparty: "http://peer"})
	reg.RegisterStep(&Step{Name: "orphan", Mode: ModeLocal, Service: "missing", Method: "run"})

	step, provider, err := reg.Lookup("translate")
	assert.NoError(t, err)
	assert.Equal(t, ModeLocal, step.Mode)
	assert.NotNil(t, provider)

	step, provider, err = reg.Lookup("text2speech")
	assert.NoError(t, err)
	assert.Equal(t, ModeDelegated, step.Mode)
	assert.Nil(t, provider)

	_, _, err = reg.Lookup("orphan")
	assert.ErrorIs(t, err, task.ErrUnknownStep)

	_, _, err = reg.Lookup("nope")
	assert.ErrorIs(t, err, task.ErrUnknownStep)
}

func TestService_Types(t *testing.T) {
	reg := New(x.NewType(reflect.TypeOf(echoOutput{}), x.WithName("echo.Output")))
	registered := reg.Types().Lookup("echo.Output")
	assert.NotNil(t, registered)
	assert.Equal(t, reflect.TypeOf(echoOutput{}), registered.Type)
	assert.Nil(t, reg.Types().Lookup("missing"))
}

package task

import (
	"testing"

	"github.com/babelmesh/lingua/model/intent"
	"github.com/stretchr/testify/assert"
)

func TestStateTransitions(t *testing.T) {
	testCases := []struct {
		description string
		from        State
		to          State
		legal       bool
	}{
		{description: "pending to running", from: StatePending, to: StateRunning, legal: true},
		{description: "pending to failed", from: StatePending, to: StateFailed, legal: true},
		{description: "pending to completed", from: StatePending, to: StateCompleted, legal: false},
		{description: "running to awaiting delegate", from: StateRunning, to: StateAwaitingDelegate, legal: true},
		{description: "running to completed", from: StateRunning, to: StateCompleted, legal: true},
		{description: "awaiting delegate to running", from: StateAwaitingDelegate, to: StateRunning, legal: true},
		{description: "awaiting delegate to completed", from: StateAwaitingDelegate, to: StateCompleted, legal: false},
		{description: "completed is terminal", from: StateCompleted, to: StateRunning, legal: false},
		{description: "failed is terminal", from: StateFailed, to: StateRunning, legal: false},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.legal, testCase.from.CanTransition(testCase.to), testCase.description)
	}
}

func TestTask_Transition(t *testing.T) {
	aTask := New("t1", &Input{Text: "hola"}, intent.Translate)
	assert.Equal(t, StatePending, aTask.State)

	err := aTask.Transition(StateRunning)
	assert.NoError(t, err)

	err = aTask.Transition(StateCompleted)
	assert.NoError(t, err)
	assert.NotNil(t, aTask.FinishedAt)

	err = aTask.Transition(StateRunning)
	assert.ErrorIs(t, err, ErrTaskTerminal)
}

func TestTask_AttachPlan(t *testing.T) {
	aTask := New("t1", &Input{Text: "hola"}, intent.TranslateSpeech)
	err := aTask.AttachPlan([]string{"translate", "text2speech"})
	assert.NoError(t, err)
	assert.Equal(t, StateRunning, aTask.State)
	assert.Len(t, aTask.Steps, 2)
	assert.Equal(t, StepNotStarted, aTask.Steps[0].Status)

	err = aTask.AttachPlan([]string{"translate"})
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestTask_NextStep(t *testing.T) {
	aTask := New("t1", &Input{Text: "hola"}, intent.TranslateSpeech)
	_ = aTask.AttachPlan([]string{"translate", "text2speech"})

	next := aTask.NextStep()
	assert.Equal(t, "translate", next.Name)

	aTask.Steps[0].Status = StepDone
	next = aTask.NextStep()
	assert.Equal(t, "text2speech", next.Name)

	aTask.Steps[1].Status = StepDone
	assert.Nil(t, aTask.NextStep())
}

func TestTask_Fail(t *testing.T) {
	aTask := New("t1", &Input{Text: "hola"}, intent.Translate)
	err := aTask.Fail("handler failure: boom")
	assert.NoError(t, err)
	assert.Equal(t, StateFailed, aTask.State)
	assert.Equal(t, "handler failure: boom", aTask.Reason)
	assert.ErrorIs(t, aTask.Fail("again"), ErrTaskTerminal)
}

func TestTask_Clone(t *testing.T) {
	aTask := New("t1", &Input{Text: "hola"}, intent.TranslateSpeech)
	_ = aTask.AttachPlan([]string{"translate"})
	aTask.Steps[0].DelegateRef = &DelegateRef{RemoteID: "r1", Counterparty: "http://peer"}
	aTask.AppendArtifact("audio", "mem://1")

	clone := aTask.Clone()
	clone.Input.Text = "changed"
	clone.Steps[0].DelegateRef.RemoteID = "r2"
	clone.Artifacts["audio"] = "mem://2"

	assert.Equal(t, "hola", aTask.Input.Text)
	assert.Equal(t, "r1", aTask.Steps[0].DelegateRef.RemoteID)
	assert.Equal(t, "mem://1", aTask.Artifacts["audio"])
}

func TestOutcome_Failed(t *testing.T) {
	assert.False(t, (&Outcome{Output: "x"}).Failed())
	assert.True(t, (&Outcome{Error: "boom"}).Failed())
	var nilOutcome *Outcome
	assert.False(t, nilOutcome.Failed())
}

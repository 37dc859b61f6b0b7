// Package counterparty defines the agent-to-agent subtask protocol: the
// outbound handoff of a step to a cooperating agent and the asynchronous
// result report flowing back. Authentication and metering of the exchange
// are handled by external collaborators; this package only threads the
// caller identity through.
package counterparty

import "context"

// SubtaskRequest asks a counterparty agent to execute one step.
type SubtaskRequest struct {
	Step        string      `json:"step"`
	Input       interface{} `json:"input,omitempty"`
	Caller      string      `json:"caller,omitempty"`
	CallbackURL string      `json:"callbackURL,omitempty"`
}

// SubtaskAccepted acknowledges subtask creation with the identifier the
// counterparty assigned to it.
type SubtaskAccepted struct {
	RemoteID string `json:"remoteID"`
}

// Result is the counterparty's terminal report for a subtask. A non-empty
// Error marks the subtask as failed.
type Result struct {
	RemoteID  string            `json:"remoteID"`
	Output    interface{}       `json:"output,omitempty"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Client initiates and abandons subtasks on a counterparty agent.
type Client interface {
	// CreateSubtask hands a step off to the agent at endpoint and returns
	// the remote identifier assigned by that agent.
	CreateSubtask(ctx context.Context, endpoint string, request *SubtaskRequest) (string, error)

	// Abandon asks the agent to stop working on a subtask; best effort.
	Abandon(ctx context.Context, endpoint, remoteID string) error
}

// Notifier reports a finished subtask back to the caller's callback URL.
type Notifier interface {
	ReportResult(ctx context.Context, callbackURL string, result *Result) error
}

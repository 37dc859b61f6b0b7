package event

import "time"

// Context locates an event within a task's history.
type Context struct {
	TaskID    string `json:"taskID"`
	Step      string `json:"step,omitempty"`
	EventType string `json:"eventType"`
}

// Event is a typed audit record. The ledger publishes one for every task
// mutation; together they form the system's inspectable log trail.
type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: time.Now(),
		Data:      data,
	}
}

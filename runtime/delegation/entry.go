package delegation

import "time"

// Entry correlates an in-flight subtask with the task/step that spawned
// it. The entry is a weak reference: the subtask itself is owned by the
// counterparty agent, the channel only needs enough to route the result
// back. An entry is removed on result arrival, deadline expiry or task
// cancellation; whichever claims it first wins.
type Entry struct {
	RemoteID     string     `json:"remoteID"`
	TaskID       string     `json:"taskID"`
	Step         string     `json:"step"`
	Counterparty string     `json:"counterparty"`
	CreatedAt    time.Time  `json:"createdAt"`
	DeadlineAt   *time.Time `json:"deadlineAt,omitempty"`
}

// Expired returns true when the entry carries a deadline in the past.
func (e *Entry) Expired(now time.Time) bool {
	return e.DeadlineAt != nil && now.After(*e.DeadlineAt)
}

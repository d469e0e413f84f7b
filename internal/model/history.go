package model

import (
	"encoding/json"
	"time"
)

// EventType discriminates the history.jsonl tagged union.
type EventType string

const (
	EventTaskCreated   EventType = "task.created"
	EventStatusChanged EventType = "status.changed"
	EventAgentSpawned  EventType = "agent.spawned"
	EventAgentCrashed  EventType = "agent.crashed"
	EventAutoAdvanced  EventType = "auto.advanced"
	EventTaskMerged    EventType = "task.merged"
	EventTaskCancelled EventType = "task.cancelled"
	EventPRCreated     EventType = "pr.created"
	EventPRMerged      EventType = "pr.merged"
)

// Event is one line of a task's append-only history log. Fields beyond
// Type/Timestamp are variant-specific; on read, decode Type first, then the
// rest into the concrete payload the caller expects.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	TaskID    string    `json:"task_id,omitempty"`
	Project   string    `json:"project,omitempty"`

	// Variant fields. Encoded with omitempty so each event line carries only
	// the fields relevant to its Type.
	From     string `json:"from,omitempty"`      // status.changed
	To       string `json:"to,omitempty"`        // status.changed
	Hook     string `json:"hook,omitempty"`      // agent.crashed (hook that failed)
	Variant  string `json:"variant,omitempty"`   // agent.spawned (worker|reviewer|...)
	Session  string `json:"session,omitempty"`   // agent.spawned
	Crashes  int    `json:"crash_count,omitempty"` // agent.crashed
	Reason   string `json:"reason,omitempty"`    // agent.crashed, auto.advanced
	Strategy string `json:"strategy,omitempty"`  // task.merged
	Commit   string `json:"commit,omitempty"`    // task.merged
	URL      string `json:"url,omitempty"`       // pr.created, pr.merged
}

// MarshalLine encodes the event as a single newline-terminated JSON line.
func (e Event) MarshalLine() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// NewEvent builds an Event stamped with now, for the given task/project.
func NewEvent(typ EventType, taskID, project string, now time.Time) Event {
	return Event{Type: typ, Timestamp: now, TaskID: taskID, Project: project}
}

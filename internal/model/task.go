// Package model defines the data types persisted by the state store:
// projects, tasks, and history events.
package model

import "time"

// Status is one of the closed set of task lifecycle states.
type Status string

const (
	StatusPending       Status = "pending"
	StatusPlanning      Status = "planning"
	StatusClarification Status = "clarification"
	StatusWorking       Status = "working"
	StatusAgentReview   Status = "agent-review"
	StatusReviewing     Status = "reviewing"
	StatusStuck         Status = "stuck"
	StatusDone          Status = "done"
	StatusCancelled     Status = "cancelled"
)

// Terminal reports whether a status has no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusCancelled
}

// Valid reports whether s is one of the nine defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPlanning, StatusClarification, StatusWorking,
		StatusAgentReview, StatusReviewing, StatusStuck, StatusDone, StatusCancelled:
		return true
	default:
		return false
	}
}

// Task is one unit of agent work, identified by a 21-character
// case-sensitive alphanumeric id. Frontmatter keys in TASK.md are exactly
// these fields (see internal/store).
type Task struct {
	ID             string `yaml:"id"`
	Project        string `yaml:"project"`
	Branch         string `yaml:"branch"`
	Harness        string `yaml:"harness"`
	ReviewHarness  string `yaml:"review_harness"`
	Status         Status `yaml:"status"`
	ReviewRound    int    `yaml:"review_round"`
	CrashCount     int    `yaml:"crash_count"`
	Workspace      string `yaml:"workspace,omitempty"`
	TmuxSession    string `yaml:"tmux_session,omitempty"`
	Summary        string `yaml:"summary"`

	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
	PRURL     string    `yaml:"pr_url,omitempty"`

	// Body is the raw markdown following the frontmatter; it hosts the
	// agent-written Plan/Handoff/Review sections. The engine reads it but
	// never writes into it.
	Body string `yaml:"-"`

	// Extra carries unknown frontmatter keys so hand-edited TASK.md files
	// round-trip without data loss.
	Extra map[string]any `yaml:"-"`
}

// HasWorkspace reports whether the task currently binds a pool slot.
func (t *Task) HasWorkspace() bool { return t.Workspace != "" }

// HasSession reports whether the task currently owns a multiplexer session.
func (t *Task) HasSession() bool { return t.TmuxSession != "" }

package engine

import (
	"github.com/orangehq/orange/internal/gate"
	"github.com/orangehq/orange/internal/model"
)

// row is one entry of the static transition table. No transition outside
// this table is ever permitted.
type row struct {
	from, to  model.Status
	gateName  string
	gate      func(body string) bool
	condition func(t *model.Task) bool
	hooks     []string
}

func reviewRoundUnder(n int) func(*model.Task) bool {
	return func(t *model.Task) bool { return t.ReviewRound < n }
}

func reviewRoundAtLeast(n int) func(*model.Task) bool {
	return func(t *model.Task) bool { return t.ReviewRound >= n }
}

func reviewGate(want gate.Verdict) func(string) bool {
	return func(body string) bool { return gate.Review(body, want) }
}

// table is the authoritative transition list from pending through the two
// terminal states, done and cancelled.
var table = []row{
	{from: model.StatusPending, to: model.StatusPlanning,
		hooks: []string{"acquire_workspace", "spawn_agent(worker)"}},
	{from: model.StatusPending, to: model.StatusCancelled},

	{from: model.StatusPlanning, to: model.StatusWorking, gateName: "Plan", gate: gate.Plan},
	{from: model.StatusPlanning, to: model.StatusClarification},
	{from: model.StatusPlanning, to: model.StatusCancelled,
		hooks: []string{"kill_session", "release_workspace"}},

	{from: model.StatusClarification, to: model.StatusPlanning},
	{from: model.StatusClarification, to: model.StatusCancelled,
		hooks: []string{"kill_session", "release_workspace"}},

	{from: model.StatusWorking, to: model.StatusAgentReview, gateName: "Handoff", gate: gate.Handoff,
		hooks: []string{"spawn_reviewer", "increment_review_round"}},
	{from: model.StatusWorking, to: model.StatusClarification},
	{from: model.StatusWorking, to: model.StatusStuck},
	{from: model.StatusWorking, to: model.StatusCancelled,
		hooks: []string{"kill_session", "release_workspace"}},

	{from: model.StatusAgentReview, to: model.StatusReviewing,
		gateName: "Review(PASS)", gate: reviewGate(gate.VerdictPass),
		hooks: []string{"kill_reviewer"}},
	{from: model.StatusAgentReview, to: model.StatusWorking,
		gateName: "Review(FAIL)", gate: reviewGate(gate.VerdictFail), condition: reviewRoundUnder(2),
		hooks: []string{"kill_reviewer", "notify_worker"}},
	{from: model.StatusAgentReview, to: model.StatusStuck,
		gateName: "Review(FAIL)", gate: reviewGate(gate.VerdictFail), condition: reviewRoundAtLeast(2),
		hooks: []string{"kill_reviewer"}},
	{from: model.StatusAgentReview, to: model.StatusCancelled,
		hooks: []string{"kill_reviewer", "kill_session", "release_workspace"}},

	{from: model.StatusReviewing, to: model.StatusWorking,
		hooks: []string{"notify_worker"}},
	{from: model.StatusReviewing, to: model.StatusDone,
		hooks: []string{"kill_session", "release_workspace", "delete_remote_branch", "spawn_next"}},
	{from: model.StatusReviewing, to: model.StatusCancelled,
		hooks: []string{"kill_session", "release_workspace"}},

	{from: model.StatusStuck, to: model.StatusReviewing},
	{from: model.StatusStuck, to: model.StatusCancelled,
		hooks: []string{"kill_session", "release_workspace"}},
}

// lookup finds the row governing a from/to pair.
func lookup(from, to model.Status) (row, bool) {
	for _, r := range table {
		if r.from == from && r.to == to {
			return r, true
		}
	}
	return row{}, false
}

// Package monitor implements the exit monitor: a periodic scan that
// detects tasks whose multiplexer session has died out from under them and
// synthesises the transition the table itself cannot reach on its own,
// since nothing calls execute_transition when an agent just stops running.
package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/orangehq/orange/internal/engine"
	"github.com/orangehq/orange/internal/gate"
	"github.com/orangehq/orange/internal/model"
	"github.com/orangehq/orange/internal/store"
	"github.com/orangehq/orange/internal/tmuxw"
)

// watchedStatuses are the non-terminal statuses a live session backs.
// pending tasks never have a session yet; done/cancelled are terminal.
var watchedStatuses = map[model.Status]bool{
	model.StatusPlanning:      true,
	model.StatusClarification: true,
	model.StatusWorking:       true,
	model.StatusAgentReview:   true,
	model.StatusReviewing:     true,
	model.StatusStuck:         true,
}

// crashEscalateAt is the consecutive-crash threshold that forces a task to
// stuck regardless of its current status.
const crashEscalateAt = 2

// Monitor periodically scans the store for tasks whose session has died.
type Monitor struct {
	store  *store.Store
	engine *engine.Engine
	tmux   tmuxw.Tmux
	log    zerolog.Logger
}

// New returns a Monitor. Call Run to start its scan loop, or Scan once for
// a single pass.
func New(s *store.Store, e *engine.Engine, tmux tmuxw.Tmux, log zerolog.Logger) *Monitor {
	return &Monitor{store: s, engine: e, tmux: tmux, log: log.With().Str("component", "monitor").Logger()}
}

// Run scans every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Scan(); err != nil {
				m.log.Error().Err(err).Msg("scan failed")
			}
		}
	}
}

// Scan runs one pass over all non-terminal tasks across every project.
func (m *Monitor) Scan() error {
	tasks, err := m.store.ListTasks("", false)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if !watchedStatuses[task.Status] || !task.HasSession() {
			continue
		}
		alive, err := m.tmux.SessionExists(task.TmuxSession)
		if err != nil {
			m.log.Warn().Err(err).Str("task", task.ID).Msg("checking session liveness failed")
			continue
		}
		if alive {
			continue
		}
		m.log.Warn().Str("task", task.ID).Str("session", task.TmuxSession).Str("status", string(task.Status)).Msg("dead session detected")
		if err := m.applyAutoAdvanceRules(task); err != nil {
			m.log.Error().Err(err).Str("task", task.ID).Msg("auto-advance failed")
		}
	}
	return nil
}

// applyAutoAdvanceRules implements spec.md §4.G's per-status table: a
// gate-passing body advances the task exactly like a human-driven
// transition would; anything else crashes the task, potentially escalating
// it to stuck once crash_count reaches the threshold.
func (m *Monitor) applyAutoAdvanceRules(task *model.Task) error {
	switch task.Status {
	case model.StatusPlanning:
		if gate.Plan(task.Body) {
			return m.engine.Execute(task, model.StatusWorking)
		}
		return m.crash(task, "plan gate failed on dead session")

	case model.StatusWorking:
		if gate.Handoff(task.Body) {
			return m.engine.Execute(task, model.StatusAgentReview)
		}
		return m.crash(task, "handoff gate failed on dead session")

	case model.StatusAgentReview:
		switch {
		case gate.Review(task.Body, gate.VerdictPass):
			return m.engine.Execute(task, model.StatusReviewing)
		case gate.Review(task.Body, gate.VerdictFail) && task.ReviewRound < 2:
			return m.engine.Execute(task, model.StatusWorking)
		case gate.Review(task.Body, gate.VerdictFail):
			return m.engine.Execute(task, model.StatusStuck)
		default:
			return m.crash(task, "review gate unresolved on dead session")
		}

	case model.StatusClarification, model.StatusReviewing, model.StatusStuck:
		return m.crash(task, "dead session in a status that never auto-advances")

	default:
		return nil
	}
}

// crash records a lost-agent condition and escalates to stuck once the
// task has crashed twice in a row without making forward progress.
func (m *Monitor) crash(task *model.Task, reason string) error {
	task.CrashCount++
	now := time.Now().UTC()
	ev := model.NewEvent(model.EventAgentCrashed, task.ID, task.Project, now)
	ev.Crashes, ev.Reason = task.CrashCount, reason
	if err := m.store.AppendHistory(task.Project, task.ID, ev); err != nil {
		return err
	}
	task.UpdatedAt = now
	if err := m.store.SaveTask(task); err != nil {
		return err
	}

	if task.CrashCount >= crashEscalateAt && task.Status != model.StatusStuck {
		from := task.Status
		task.Status = model.StatusStuck
		task.UpdatedAt = time.Now().UTC()
		if err := m.store.SaveTask(task); err != nil {
			return err
		}
		adv := model.NewEvent(model.EventAutoAdvanced, task.ID, task.Project, time.Now().UTC())
		adv.From, adv.To, adv.Reason = string(from), string(model.StatusStuck), "crash_count threshold reached"
		return m.store.AppendHistory(task.Project, task.ID, adv)
	}
	return nil
}

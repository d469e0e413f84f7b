// Package engine implements the static transition table and the single
// execute_transition entry point that drives every task through its
// lifecycle. The engine never touches git, tmux, or the code-hosting CLI
// directly — all side effects run through the hook Executor it is given at
// construction, breaking the natural cycle between "the engine calls
// hooks" and "spawn_next must re-enter the engine".
package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/orangehq/orange/internal/model"
	"github.com/orangehq/orange/internal/orangeerr"
	"github.com/orangehq/orange/internal/store"
)

// Executor runs one named hook against a task, flushing any mutation it
// makes (workspace, tmux_session, review_round, ...) back to the task
// document itself. The production implementation lives in internal/hooks;
// tests may inject a recording or no-op double.
type Executor interface {
	Run(hookSpec string, task *model.Task) error
}

// lostAgentHooks are the hooks whose failure means the task's agent is
// unreachable, not merely that a best-effort cleanup step fizzled. Only
// these produce an agent.crashed history event; all hook failures are
// still logged to the application log.
var lostAgentHooks = map[string]bool{
	"acquire_workspace": true,
	"spawn_agent":       true,
	"spawn_reviewer":    true,
}

// hookName returns the hook name of a spec, e.g. "spawn_agent" for
// "spawn_agent(worker)".
func hookName(spec string) string {
	if i := strings.IndexByte(spec, '('); i >= 0 {
		return spec[:i]
	}
	return spec
}

// Engine executes transitions against tasks persisted in a Store.
type Engine struct {
	store *store.Store
	hooks Executor
	log   zerolog.Logger
}

// New returns an Engine. hooks is typically supplied by internal/hooks,
// which holds a back-reference to this Engine for the spawn_next hook.
func New(s *store.Store, hooks Executor, log zerolog.Logger) *Engine {
	return &Engine{store: s, hooks: hooks, log: log.With().Str("component", "engine").Logger()}
}

// Execute runs execute_transition(task, target) per spec.md §4.E's fixed
// seven-step order. task is mutated in place and its final state has
// already been persisted by the time this returns, success or failure of
// individual hooks notwithstanding.
func (e *Engine) Execute(task *model.Task, target model.Status) error {
	r, ok := lookup(task.Status, target)
	if !ok {
		return &orangeerr.NoTransitionErr{From: string(task.Status), To: string(target)}
	}
	if r.condition != nil && !r.condition(task) {
		return &orangeerr.NoTransitionErr{From: string(task.Status), To: string(target)}
	}
	if r.gate != nil && !r.gate(task.Body) {
		return &orangeerr.GateRejectedErr{Gate: r.gateName, Reason: "expected artifact missing or malformed in task body"}
	}

	from := task.Status
	now := time.Now().UTC()
	task.Status = target
	task.UpdatedAt = now
	if err := e.store.SaveTask(task); err != nil {
		return fmt.Errorf("persisting transition %s->%s: %w", from, target, err)
	}

	for _, spec := range r.hooks {
		if err := e.hooks.Run(spec, task); err != nil {
			name := hookName(spec)
			e.log.Error().Err(err).Str("task", task.ID).Str("hook", spec).Msg("hook failed after committed transition")
			if lostAgentHooks[name] {
				task.CrashCount++
				ev := model.NewEvent(model.EventAgentCrashed, task.ID, task.Project, time.Now().UTC())
				ev.Hook = spec
				ev.Crashes = task.CrashCount
				ev.Reason = err.Error()
				_ = e.store.AppendHistory(task.Project, task.ID, ev)
			}
		}
	}

	task.CrashCount = 0
	task.UpdatedAt = time.Now().UTC()
	if err := e.store.SaveTask(task); err != nil {
		return fmt.Errorf("persisting post-hook state: %w", err)
	}

	ev := model.NewEvent(model.EventStatusChanged, task.ID, task.Project, time.Now().UTC())
	ev.From, ev.To = string(from), string(target)
	return e.store.AppendHistory(task.Project, task.ID, ev)
}

// CreateTask builds and persists a new task document, then drives it to its
// starting state. A non-empty summary transitions pending->planning through
// the normal table, acquiring a workspace and spawning the worker. An empty
// summary means the human hasn't decided what to build yet: the task starts
// in clarification directly (the table has no pending->clarification row)
// and the same two hooks run once, outside
// execute_transition, launching the bare harness binary with no prompt.
func (e *Engine) CreateTask(task *model.Task) error {
	task.Status = model.StatusPending
	now := time.Now().UTC()
	task.CreatedAt, task.UpdatedAt = now, now

	if task.Summary != "" {
		if err := e.store.SaveTask(task); err != nil {
			return fmt.Errorf("persisting new task: %w", err)
		}
		if err := e.store.AppendHistory(task.Project, task.ID, model.NewEvent(model.EventTaskCreated, task.ID, task.Project, now)); err != nil {
			return err
		}
		return e.Execute(task, model.StatusPlanning)
	}

	task.Status = model.StatusClarification
	if err := e.store.SaveTask(task); err != nil {
		return fmt.Errorf("persisting new task: %w", err)
	}
	if err := e.store.AppendHistory(task.Project, task.ID, model.NewEvent(model.EventTaskCreated, task.ID, task.Project, now)); err != nil {
		return err
	}

	for _, spec := range []string{"acquire_workspace", "spawn_agent(worker)"} {
		if err := e.hooks.Run(spec, task); err != nil {
			name := hookName(spec)
			e.log.Error().Err(err).Str("task", task.ID).Str("hook", spec).Msg("hook failed while entering clarification")
			if lostAgentHooks[name] {
				task.CrashCount++
				ev := model.NewEvent(model.EventAgentCrashed, task.ID, task.Project, time.Now().UTC())
				ev.Hook, ev.Crashes, ev.Reason = spec, task.CrashCount, err.Error()
				_ = e.store.AppendHistory(task.Project, task.ID, ev)
			}
		}
	}
	task.UpdatedAt = time.Now().UTC()
	return e.store.SaveTask(task)
}

// CanTransition reports whether (from, to) is in the table, ignoring gates
// and conditions.
func CanTransition(from, to model.Status) bool {
	_, ok := lookup(from, to)
	return ok
}

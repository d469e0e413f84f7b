// Package spawner implements spawn_next: picking the oldest pending task
// in a project and driving it into planning, the engine's only way back in
// after a task finishes and frees up a workspace slot.
package spawner

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/orangehq/orange/internal/engine"
	"github.com/orangehq/orange/internal/model"
	"github.com/orangehq/orange/internal/store"
)

// Spawner re-enters the engine on behalf of the spawn_next hook.
type Spawner struct {
	store  *store.Store
	engine *engine.Engine
	log    zerolog.Logger
}

// New returns a Spawner. It must be wired into the Hooks executor with
// SetSpawner before spawn_next is ever exercised.
func New(s *store.Store, e *engine.Engine, log zerolog.Logger) *Spawner {
	return &Spawner{store: s, engine: e, log: log.With().Str("component", "spawner").Logger()}
}

// SpawnNextPending picks the oldest pending task for project, FIFO by
// created_at, and transitions it to planning. A pool-exhausted project (or
// any other transition failure) is logged and swallowed: spawn_next never
// propagates a failure back through the transition that triggered it.
func (sp *Spawner) SpawnNextPending(project string) error {
	tasks, err := sp.store.ListTasks(project, false)
	if err != nil {
		return err
	}

	var pending []*model.Task
	for _, t := range tasks {
		if t.Status == model.StatusPending {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	next := pending[0]
	if err := sp.engine.Execute(next, model.StatusPlanning); err != nil {
		sp.log.Warn().Err(err).Str("task", next.ID).Str("project", project).Msg("spawn_next could not start the next pending task")
	}
	return nil
}

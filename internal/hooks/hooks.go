// Package hooks implements the closed hook vocabulary the workflow engine
// invokes after a transition's status write has committed: acquiring and
// releasing workspace pool slots, spawning and notifying agent sessions,
// and re-entering the engine via the spawner for the next pending task.
//
// The production Hooks value is constructed before the engine it services,
// then wired to it with SetSpawner once the engine (and the spawner that
// wraps it) exist — the dependency-inversion the engine and hook executor
// need to break their natural cycle.
package hooks

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/orangehq/orange/internal/config"
	"github.com/orangehq/orange/internal/gitw"
	"github.com/orangehq/orange/internal/hostcli"
	"github.com/orangehq/orange/internal/model"
	"github.com/orangehq/orange/internal/orangeerr"
	"github.com/orangehq/orange/internal/pool"
	"github.com/orangehq/orange/internal/store"
	"github.com/orangehq/orange/internal/tmuxw"
)

// Spawner is the engine re-entry point spawn_next delegates to. Satisfied
// by *internal/spawner.Spawner.
type Spawner interface {
	SpawnNextPending(project string) error
}

// Hooks implements engine.Executor against real git, tmux, and pool
// adapters.
type Hooks struct {
	store   *store.Store
	pool    *pool.Pool
	newGit  pool.GitFactory
	tmux    tmuxw.Tmux
	host    hostcli.HostCLI
	cfg     *config.TownConfig
	log     zerolog.Logger
	spawner Spawner
}

// New constructs a Hooks value with no pool or spawner yet: both close a
// construction cycle (the pool needs Hooks as its Binder; the spawner needs
// the engine that is in turn built from these hooks) and must be supplied
// with SetPool/SetSpawner once the rest of the graph exists.
func New(s *store.Store, newGit pool.GitFactory, tmux tmuxw.Tmux, host hostcli.HostCLI, cfg *config.TownConfig, log zerolog.Logger) *Hooks {
	return &Hooks{store: s, newGit: newGit, tmux: tmux, host: host, cfg: cfg, log: log.With().Str("component", "hooks").Logger()}
}

// SetPool completes construction after the pool exists.
func (h *Hooks) SetPool(p *pool.Pool) { h.pool = p }

// SetSpawner completes construction after the engine and spawner exist.
func (h *Hooks) SetSpawner(sp Spawner) { h.spawner = sp }

// Run dispatches one hook spec (e.g. "spawn_agent(worker)") against task.
func (h *Hooks) Run(spec string, task *model.Task) error {
	name, arg := parseSpec(spec)
	switch name {
	case "acquire_workspace":
		return h.acquireWorkspace(task)
	case "spawn_agent":
		return h.spawnAgent(task, arg)
	case "spawn_reviewer":
		return h.spawnReviewer(task)
	case "kill_reviewer":
		return h.killReviewer(task)
	case "notify_worker":
		return h.notifyWorker(task)
	case "release_workspace":
		return h.releaseWorkspace(task)
	case "kill_session":
		return h.killSession(task)
	case "increment_review_round":
		task.ReviewRound++
		return nil
	case "spawn_next":
		return h.spawnNext(task)
	case "delete_remote_branch":
		return h.deleteRemoteBranch(task)
	default:
		return fmt.Errorf("unknown hook %q", spec)
	}
}

func parseSpec(spec string) (name, arg string) {
	i := strings.IndexByte(spec, '(')
	if i < 0 {
		return spec, ""
	}
	return spec[:i], strings.TrimSuffix(spec[i+1:], ")")
}

// BoundWorkspaces implements pool.Binder by scanning the project's active
// task documents for their workspace field.
func (h *Hooks) BoundWorkspaces(project string) (map[string]bool, error) {
	tasks, err := h.store.ListTasks(project, true)
	if err != nil {
		return nil, err
	}
	bound := map[string]bool{}
	for _, t := range tasks {
		if t.HasWorkspace() {
			bound[t.Workspace] = true
		}
	}
	return bound, nil
}

func (h *Hooks) acquireWorkspace(task *model.Task) error {
	if task.HasWorkspace() {
		return nil
	}
	proj, err := h.store.GetProject(task.Project)
	if err != nil {
		return err
	}

	slot, err := h.pool.Acquire(task.Project, proj.Path, proj.DefaultBranch, proj.PoolSize)
	if err != nil {
		return err
	}

	workspacePath := h.pool.SlotPath(task.Project, slot)
	g := h.newGit(workspacePath)

	if err := g.Fetch("origin"); err != nil {
		_ = h.pool.Release(task.Project, slot, proj.DefaultBranch, true)
		return fmt.Errorf("fetching origin: %w", err)
	}
	if err := g.ResetHard("origin/" + proj.DefaultBranch); err != nil {
		_ = h.pool.Release(task.Project, slot, proj.DefaultBranch, true)
		return fmt.Errorf("resetting to origin/%s: %w", proj.DefaultBranch, err)
	}

	exists, err := g.BranchExists(task.Branch)
	if err != nil {
		_ = h.pool.Release(task.Project, slot, proj.DefaultBranch, true)
		return err
	}
	if exists {
		if inUse, werr := branchCheckedOutElsewhere(g, task.Branch, workspacePath); werr == nil && inUse {
			_ = h.pool.Release(task.Project, slot, proj.DefaultBranch, true)
			return &orangeerr.BranchInUseErr{Branch: task.Branch}
		}
		if err := g.Checkout(task.Branch); err != nil {
			_ = h.pool.Release(task.Project, slot, proj.DefaultBranch, true)
			return fmt.Errorf("checking out existing branch %s: %w", task.Branch, err)
		}
	} else {
		if err := g.CreateBranch(task.Branch, proj.DefaultBranch); err != nil {
			_ = h.pool.Release(task.Project, slot, proj.DefaultBranch, true)
			return fmt.Errorf("creating branch %s: %w", task.Branch, err)
		}
		if err := g.Checkout(task.Branch); err != nil {
			_ = h.pool.Release(task.Project, slot, proj.DefaultBranch, true)
			return fmt.Errorf("checking out new branch %s: %w", task.Branch, err)
		}
	}

	if err := symlinkTaskFile(h.store, task, workspacePath); err != nil {
		return err
	}
	if err := writeTaskMarker(workspacePath, task.ID); err != nil {
		return err
	}
	if err := h.runWorkspaceSetup(task, workspacePath); err != nil {
		h.log.Warn().Err(err).Str("task", task.ID).Msg("workspace setup step failed")
	}

	task.Workspace = slot
	return h.store.SaveTask(task)
}

// branchCheckedOutElsewhere reports whether task.Branch is already bound
// to a worktree other than ours, per `git worktree list`.
func branchCheckedOutElsewhere(g gitw.Git, branch, ourPath string) (bool, error) {
	worktrees, err := g.WorktreeList()
	if err != nil {
		return false, err
	}
	for _, w := range worktrees {
		if w.Branch == branch && w.Path != ourPath {
			return true, nil
		}
	}
	return false, nil
}

func symlinkTaskFile(s *store.Store, task *model.Task, workspacePath string) error {
	target := filepath.Join(s.Dir, "tasks", task.Project, task.ID, "TASK.md")
	link := filepath.Join(workspacePath, "TASK.md")
	_ = os.Remove(link)
	return os.Symlink(target, link)
}

func writeTaskMarker(workspacePath, taskID string) error {
	data := fmt.Sprintf(`{"id": %q}`, taskID)
	return os.WriteFile(filepath.Join(workspacePath, ".orange-task"), []byte(data), 0644)
}

func (h *Hooks) runWorkspaceSetup(task *model.Task, workspacePath string) error {
	spec := h.cfg.Harness(task.Harness)
	if spec.WorkspaceSetupCmd == "" {
		return nil
	}
	return runInDir(workspacePath, spec.WorkspaceSetupCmd)
}

func (h *Hooks) releaseWorkspace(task *model.Task) error {
	if !task.HasWorkspace() {
		return nil
	}
	proj, err := h.store.GetProject(task.Project)
	if err != nil {
		return err
	}
	slot := task.Workspace
	task.Workspace = ""
	if err := h.store.SaveTask(task); err != nil {
		return err
	}
	return h.pool.Release(task.Project, slot, proj.DefaultBranch, true)
}

func (h *Hooks) killSession(task *model.Task) error {
	if !task.HasSession() {
		return nil
	}
	session := task.TmuxSession
	task.TmuxSession = ""
	if err := h.store.SaveTask(task); err != nil {
		return err
	}
	return h.tmux.KillSessionSafe(session)
}

func (h *Hooks) killReviewer(task *model.Task) error {
	if !task.HasSession() {
		return nil
	}
	window := fmt.Sprintf("review-%d", task.ReviewRound)
	return h.tmux.KillWindowSafe(task.TmuxSession, window)
}

func (h *Hooks) notifyWorker(task *model.Task) error {
	if !task.HasSession() {
		return nil
	}
	notice := fmt.Sprintf("\n# orange: review complete, task is now %s\n", task.Status)
	if err := h.tmux.SendLiteral(task.TmuxSession+":worker", notice); err != nil {
		h.log.Warn().Err(err).Str("task", task.ID).Msg("notify_worker failed, worker session may be dead")
		return nil
	}
	return h.tmux.SendKeys(task.TmuxSession+":worker", "Enter")
}

func (h *Hooks) spawnAgent(task *model.Task, variant string) error {
	if !task.HasWorkspace() {
		return fmt.Errorf("spawn_agent(%s): task %s has no workspace", variant, task.ID)
	}
	workspacePath := h.pool.SlotPath(task.Project, task.Workspace)
	spec := h.cfg.Harness(task.Harness)
	command := buildSpawnCommand(spec, variant, task)

	session := sessionName(task)
	_ = h.tmux.KillSessionSafe(session)
	if err := h.tmux.NewSession(session, workspacePath, command); err != nil {
		return fmt.Errorf("spawning session %s: %w", session, err)
	}
	if err := h.tmux.RenameWindow(session, "", variant); err != nil {
		h.log.Warn().Err(err).Msg("renaming agent window failed")
	}

	task.TmuxSession = session
	if err := h.store.SaveTask(task); err != nil {
		return err
	}
	ev := model.NewEvent(model.EventAgentSpawned, task.ID, task.Project, time.Now().UTC())
	ev.Variant, ev.Session = variant, session
	return h.store.AppendHistory(task.Project, task.ID, ev)
}

func (h *Hooks) spawnReviewer(task *model.Task) error {
	if !task.HasWorkspace() || !task.HasSession() {
		return fmt.Errorf("spawn_reviewer: task %s missing workspace or session", task.ID)
	}
	workspacePath := h.pool.SlotPath(task.Project, task.Workspace)
	spec := h.cfg.Harness(task.ReviewHarness)
	command := buildSpawnCommand(spec, "reviewer", task)
	window := fmt.Sprintf("review-%d", task.ReviewRound+1)

	if err := h.tmux.NewWindow(task.TmuxSession, window, workspacePath, command); err != nil {
		return fmt.Errorf("spawning reviewer window: %w", err)
	}
	_ = h.tmux.SelectWindowSafe(task.TmuxSession, "worker")

	ev := model.NewEvent(model.EventAgentSpawned, task.ID, task.Project, time.Now().UTC())
	ev.Variant, ev.Session = "reviewer", task.TmuxSession+":"+window
	return h.store.AppendHistory(task.Project, task.ID, ev)
}

func (h *Hooks) spawnNext(task *model.Task) error {
	if h.spawner == nil {
		return fmt.Errorf("spawn_next: spawner not wired")
	}
	return h.spawner.SpawnNextPending(task.Project)
}

func (h *Hooks) deleteRemoteBranch(task *model.Task) error {
	proj, err := h.store.GetProject(task.Project)
	if err != nil {
		return err
	}
	g := h.newGit(proj.Path)
	if err := g.DeleteRemoteBranch("origin", task.Branch); err != nil {
		h.log.Warn().Err(err).Str("task", task.ID).Msg("delete_remote_branch failed, leaving remote branch in place")
		return nil
	}
	return nil
}

// runInDir runs a harness's workspace_setup_cmd through the shell, the way
// the teacher's setup steps invoke user-supplied commands, with cwd pinned
// to the freshly acquired worktree.
func runInDir(dir, command string) error {
	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("workspace setup command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// sessionName builds the "<project>/<branch>" multiplexer session name the
// spec mandates, so independent tasks never collide in the session
// namespace.
func sessionName(task *model.Task) string {
	return task.Project + "/" + task.Branch
}

// buildSpawnCommand resolves a harness's per-variant command template. An
// empty template, or a templated prompt with an empty task summary
// (clarification mode), spawns the bare binary with no prompt; otherwise a
// template is formatted with the task's summary as its one placeholder.
func buildSpawnCommand(spec config.HarnessSpec, variant string, task *model.Task) string {
	tmpl, ok := spec.SpawnCommand[variant]
	if !ok || tmpl == "" {
		return spec.Binary
	}
	if strings.Contains(tmpl, "%s") {
		if task.Summary == "" {
			return spec.Binary
		}
		return fmt.Sprintf(tmpl, task.Summary)
	}
	return tmpl
}

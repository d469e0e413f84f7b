package hooks

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

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

// sharedFactory returns a GitFactory whose wrappers all share one Fake, the
// way every git call against a real repo's worktrees actually shares one
// on-disk object store.
func sharedFactory(g *gitw.Fake) pool.GitFactory {
	return func(string) gitw.Git { return g }
}

type fakeSpawner struct {
	called []string
}

func (s *fakeSpawner) SpawnNextPending(project string) error {
	s.called = append(s.called, project)
	return nil
}

func newTestHooks(t *testing.T) (*Hooks, *store.Store, *pool.Pool, *gitw.Fake, *tmuxw.Fake) {
	t.Helper()
	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	g := gitw.NewFake()
	tm := tmuxw.NewFake()
	host := hostcli.NewFake()
	cfg := config.Default(t.TempDir())

	proj := model.Project{Name: "orange", Path: "/repos/orange", DefaultBranch: "main", PoolSize: 2, Harness: "claude", ReviewHarness: "claude"}
	if err := s.AddProject(proj); err != nil {
		t.Fatal(err)
	}

	h := New(s, sharedFactory(g), tm, host, cfg, zerolog.Nop())
	p := pool.New(t.TempDir(), sharedFactory(g), h)
	h.SetPool(p)
	return h, s, p, g, tm
}

func newTask(id string) *model.Task {
	return &model.Task{ID: id, Project: "orange", Branch: "orange/" + id, Harness: "claude", ReviewHarness: "claude", Status: model.StatusPending, Summary: "do the thing"}
}

func TestAcquireWorkspaceCreatesBranchAndSlot(t *testing.T) {
	h, s, _, g, _ := newTestHooks(t)
	task := newTask("t1")
	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}

	if err := h.Run("acquire_workspace", task); err != nil {
		t.Fatal(err)
	}
	if task.Workspace == "" {
		t.Fatal("expected workspace to be bound")
	}
	if !g.Branches[task.Branch] {
		t.Error("expected task branch to be created")
	}
	if g.FetchCalls == 0 {
		t.Error("expected acquire_workspace to fetch origin before branching")
	}
	if len(g.ResetCalls) == 0 || g.ResetCalls[len(g.ResetCalls)-1] != "origin/main" {
		t.Errorf("expected reset to origin/main, got %+v", g.ResetCalls)
	}

	slotPath := h.pool.SlotPath(task.Project, task.Workspace)
	if _, err := os.Lstat(filepath.Join(slotPath, "TASK.md")); err != nil {
		t.Errorf("expected TASK.md symlink in workspace: %v", err)
	}
	if _, err := os.Stat(filepath.Join(slotPath, ".orange-task")); err != nil {
		t.Errorf("expected .orange-task marker: %v", err)
	}
}

func TestAcquireWorkspaceIsNoOpWhenAlreadyBound(t *testing.T) {
	h, s, _, _, _ := newTestHooks(t)
	task := newTask("t1")
	task.Workspace = "orange--1"
	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}
	if err := h.Run("acquire_workspace", task); err != nil {
		t.Fatal(err)
	}
	if task.Workspace != "orange--1" {
		t.Errorf("workspace changed on already-bound task: %s", task.Workspace)
	}
}

func TestAcquireWorkspaceRejectsBranchCheckedOutElsewhere(t *testing.T) {
	h, s, _, g, _ := newTestHooks(t)
	task := newTask("t1")
	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}
	g.Branches[task.Branch] = true
	g.Worktrees["/repos/orange-other-checkout"] = task.Branch

	err := h.Run("acquire_workspace", task)
	if err == nil {
		t.Fatal("expected BranchInUseErr")
	}
	if _, ok := err.(*orangeerr.BranchInUseErr); !ok {
		t.Errorf("expected *orangeerr.BranchInUseErr, got %T: %v", err, err)
	}
	if task.HasWorkspace() {
		t.Error("workspace should not be bound after rejection")
	}
}

func TestSpawnAgentStartsSessionAndRecordsEvent(t *testing.T) {
	h, s, _, _, tm := newTestHooks(t)
	task := newTask("t1")
	task.Workspace = "orange--1"
	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}

	if err := h.Run("spawn_agent(worker)", task); err != nil {
		t.Fatal(err)
	}
	if task.TmuxSession == "" {
		t.Fatal("expected a tmux session to be assigned")
	}
	if exists, _ := tm.SessionExists(task.TmuxSession); !exists {
		t.Error("expected session to exist in fake multiplexer")
	}

	events, err := s.ReadHistory(task.Project, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Type != model.EventAgentSpawned || events[0].Variant != "worker" {
		t.Errorf("unexpected history: %+v", events)
	}
}

func TestSpawnAgentRequiresWorkspace(t *testing.T) {
	h, s, _, _, _ := newTestHooks(t)
	task := newTask("t1")
	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}
	if err := h.Run("spawn_agent(worker)", task); err == nil {
		t.Fatal("expected error for missing workspace")
	}
}

func TestSpawnReviewerOpensWindowAndReturnsToWorker(t *testing.T) {
	h, s, _, _, tm := newTestHooks(t)
	task := newTask("t1")
	task.Workspace = "orange--1"
	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}
	if err := h.Run("spawn_agent(worker)", task); err != nil {
		t.Fatal(err)
	}

	if err := h.Run("spawn_reviewer", task); err != nil {
		t.Fatal(err)
	}
	if !tm.HasWindow(task.TmuxSession, "review-1") {
		t.Error("expected review-1 window to exist")
	}
}

func TestKillReviewerRemovesWindowOnly(t *testing.T) {
	h, s, _, _, tm := newTestHooks(t)
	task := newTask("t1")
	task.Workspace = "orange--1"
	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}
	if err := h.Run("spawn_agent(worker)", task); err != nil {
		t.Fatal(err)
	}
	if err := h.Run("spawn_reviewer", task); err != nil {
		t.Fatal(err)
	}
	task.ReviewRound = 1

	if err := h.Run("kill_reviewer", task); err != nil {
		t.Fatal(err)
	}
	if tm.HasWindow(task.TmuxSession, "review-1") {
		t.Error("expected review-1 window to be gone")
	}
	if exists, _ := tm.SessionExists(task.TmuxSession); !exists {
		t.Error("session should survive killing a single window")
	}
}

func TestReleaseWorkspaceClearsBindingAndFreesSlot(t *testing.T) {
	h, s, p, _, _ := newTestHooks(t)
	task := newTask("t1")
	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}
	if err := h.Run("acquire_workspace", task); err != nil {
		t.Fatal(err)
	}
	slot := task.Workspace

	if err := h.Run("release_workspace", task); err != nil {
		t.Fatal(err)
	}
	if task.HasWorkspace() {
		t.Error("expected workspace cleared after release")
	}
	stats, err := p.Stats(task.Project, 2)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Bound != 0 {
		t.Errorf("expected slot %s to no longer be bound, stats=%+v", slot, stats)
	}
}

func TestKillSessionClearsSessionField(t *testing.T) {
	h, s, _, _, tm := newTestHooks(t)
	task := newTask("t1")
	task.Workspace = "orange--1"
	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}
	if err := h.Run("spawn_agent(worker)", task); err != nil {
		t.Fatal(err)
	}
	session := task.TmuxSession

	if err := h.Run("kill_session", task); err != nil {
		t.Fatal(err)
	}
	if task.HasSession() {
		t.Error("expected session field cleared")
	}
	if exists, _ := tm.SessionExists(session); exists {
		t.Error("expected session to be killed")
	}
}

func TestNotifyWorkerIsBestEffort(t *testing.T) {
	h, s, _, _, _ := newTestHooks(t)
	task := newTask("t1")
	task.TmuxSession = "orange/does-not-exist"
	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}
	if err := h.Run("notify_worker", task); err != nil {
		t.Fatalf("notify_worker must not propagate multiplexer errors: %v", err)
	}
}

func TestIncrementReviewRound(t *testing.T) {
	h, _, _, _, _ := newTestHooks(t)
	task := newTask("t1")
	if err := h.Run("increment_review_round", task); err != nil {
		t.Fatal(err)
	}
	if task.ReviewRound != 1 {
		t.Errorf("ReviewRound = %d, want 1", task.ReviewRound)
	}
}

func TestSpawnNextDelegatesToSpawner(t *testing.T) {
	h, _, _, _, _ := newTestHooks(t)
	sp := &fakeSpawner{}
	h.SetSpawner(sp)
	task := newTask("t1")

	if err := h.Run("spawn_next", task); err != nil {
		t.Fatal(err)
	}
	if len(sp.called) != 1 || sp.called[0] != "orange" {
		t.Errorf("unexpected spawner calls: %v", sp.called)
	}
}

func TestSpawnNextFailsWithoutSpawnerWired(t *testing.T) {
	h, _, _, _, _ := newTestHooks(t)
	task := newTask("t1")
	if err := h.Run("spawn_next", task); err == nil {
		t.Fatal("expected error when spawner is unset")
	}
}

func TestDeleteRemoteBranchIsBestEffort(t *testing.T) {
	h, s, _, g, _ := newTestHooks(t)
	task := newTask("t1")
	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}
	g.FailOn["DeleteRemoteBranch"] = errors.New("remote rejected delete")
	if err := h.Run("delete_remote_branch", task); err != nil {
		t.Fatalf("delete_remote_branch must not propagate: %v", err)
	}
}

package monitor

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/orangehq/orange/internal/engine"
	"github.com/orangehq/orange/internal/model"
	"github.com/orangehq/orange/internal/store"
	"github.com/orangehq/orange/internal/tmuxw"
)

type nopExecutor struct{}

func (nopExecutor) Run(spec string, task *model.Task) error { return nil }

func newTestMonitor(t *testing.T) (*Monitor, *store.Store, *tmuxw.Fake) {
	t.Helper()
	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	eng := engine.New(s, nopExecutor{}, zerolog.Nop())
	tm := tmuxw.NewFake()
	return New(s, eng, tm, zerolog.Nop()), s, tm
}

func saveTask(t *testing.T, s *store.Store, task *model.Task) {
	t.Helper()
	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}
}

func TestScanIgnoresLiveSessions(t *testing.T) {
	m, s, tm := newTestMonitor(t)
	task := &model.Task{ID: "t1", Project: "orange", Status: model.StatusWorking, TmuxSession: "orange/feature-x"}
	saveTask(t, s, task)
	tm.NewSession(task.TmuxSession, "/tmp", "")

	if err := m.Scan(); err != nil {
		t.Fatal(err)
	}
	reloaded, err := s.LoadTask("orange", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Status != model.StatusWorking {
		t.Errorf("status changed despite live session: %s", reloaded.Status)
	}
}

func TestScanAdvancesPlanningWithPassingGate(t *testing.T) {
	m, s, _ := newTestMonitor(t)
	task := &model.Task{ID: "t1", Project: "orange", Status: model.StatusPlanning, TmuxSession: "orange/feature-x", Body: "## Plan\nAPPROACH: do it\n"}
	saveTask(t, s, task)

	if err := m.Scan(); err != nil {
		t.Fatal(err)
	}
	reloaded, err := s.LoadTask("orange", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Status != model.StatusWorking {
		t.Errorf("status = %s, want working", reloaded.Status)
	}
}

func TestScanCrashesPlanningWithoutPlan(t *testing.T) {
	m, s, _ := newTestMonitor(t)
	task := &model.Task{ID: "t1", Project: "orange", Status: model.StatusPlanning, TmuxSession: "orange/feature-x"}
	saveTask(t, s, task)

	if err := m.Scan(); err != nil {
		t.Fatal(err)
	}
	reloaded, err := s.LoadTask("orange", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Status != model.StatusPlanning {
		t.Errorf("status = %s, want unchanged planning after single crash", reloaded.Status)
	}
	if reloaded.CrashCount != 1 {
		t.Errorf("CrashCount = %d, want 1", reloaded.CrashCount)
	}

	events, err := s.ReadHistory("orange", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Type != model.EventAgentCrashed {
		t.Errorf("unexpected history: %+v", events)
	}
}

func TestScanEscalatesToStuckAtThreshold(t *testing.T) {
	m, s, _ := newTestMonitor(t)
	task := &model.Task{ID: "t1", Project: "orange", Status: model.StatusWorking, TmuxSession: "orange/feature-x", CrashCount: 1}
	saveTask(t, s, task)

	if err := m.Scan(); err != nil {
		t.Fatal(err)
	}
	reloaded, err := s.LoadTask("orange", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Status != model.StatusStuck {
		t.Errorf("status = %s, want stuck after second crash", reloaded.Status)
	}

	events, err := s.ReadHistory("orange", "t1")
	if err != nil {
		t.Fatal(err)
	}
	var sawAdvance bool
	for _, ev := range events {
		if ev.Type == model.EventAutoAdvanced {
			sawAdvance = true
		}
	}
	if !sawAdvance {
		t.Error("expected auto.advanced event on escalation")
	}
}

func TestScanNeverAutoAdvancesClarification(t *testing.T) {
	m, s, _ := newTestMonitor(t)
	task := &model.Task{ID: "t1", Project: "orange", Status: model.StatusClarification, TmuxSession: "orange/feature-x", Body: "## Plan\nAPPROACH: irrelevant here\n"}
	saveTask(t, s, task)

	if err := m.Scan(); err != nil {
		t.Fatal(err)
	}
	reloaded, err := s.LoadTask("orange", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Status != model.StatusClarification {
		t.Errorf("status = %s, want unchanged clarification", reloaded.Status)
	}
	if reloaded.CrashCount != 1 {
		t.Errorf("CrashCount = %d, want 1", reloaded.CrashCount)
	}
}

func TestScanIgnoresPendingTasks(t *testing.T) {
	m, s, _ := newTestMonitor(t)
	task := &model.Task{ID: "t1", Project: "orange", Status: model.StatusPending}
	saveTask(t, s, task)

	if err := m.Scan(); err != nil {
		t.Fatal(err)
	}
	reloaded, err := s.LoadTask("orange", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.CrashCount != 0 {
		t.Error("pending tasks without a session must never be touched")
	}
}

package store

import (
	"testing"
	"time"

	"github.com/orangehq/orange/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAddProjectDuplicate(t *testing.T) {
	s := newTestStore(t)
	p := model.Project{Name: "widget", Path: "/repos/widget"}
	if err := s.AddProject(p); err != nil {
		t.Fatal(err)
	}
	if err := s.AddProject(p); err == nil {
		t.Fatal("expected duplicate project error")
	}
}

func TestProjectRoundTrip(t *testing.T) {
	s := newTestStore(t)
	p := model.Project{Name: "widget", Path: "/repos/widget", PoolSize: 3}
	if err := s.AddProject(p); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetProject("widget")
	if err != nil {
		t.Fatal(err)
	}
	if got.PoolSize != 3 {
		t.Errorf("PoolSize = %d, want 3", got.PoolSize)
	}

	if err := s.UpdateProject("widget", func(p *model.Project) { p.PoolSize = 5 }); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetProject("widget")
	if err != nil {
		t.Fatal(err)
	}
	if got.PoolSize != 5 {
		t.Errorf("after update PoolSize = %d, want 5", got.PoolSize)
	}

	if err := s.RemoveProject("widget"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetProject("widget"); err == nil {
		t.Fatal("expected not-found after removal")
	}
}

func TestTaskSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	task := &model.Task{
		ID:        "abc123",
		Project:   "widget",
		Branch:    "orange/abc123",
		Harness:   "claude",
		Status:    model.StatusPlanning,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Body:      "## Plan\nAPPROACH: do it\n",
	}
	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadTask("widget", "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if got.Branch != task.Branch || got.Body != task.Body {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestLoadTaskNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.LoadTask("widget", "missing"); err == nil {
		t.Fatal("expected error for missing task")
	}
}

func TestListTasksOrderingAndFilter(t *testing.T) {
	s := newTestStore(t)
	older := &model.Task{ID: "t1", Project: "widget", Status: model.StatusDone, CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := &model.Task{ID: "t2", Project: "widget", Status: model.StatusPlanning, CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}
	for _, task := range []*model.Task{older, newer} {
		if err := s.SaveTask(task); err != nil {
			t.Fatal(err)
		}
	}

	active, err := s.ListTasks("widget", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != "t2" {
		t.Errorf("expected only t2 in active list, got %+v", active)
	}

	all, err := s.ListTasks("widget", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != "t2" || all[1].ID != "t1" {
		t.Errorf("expected [t2,t1] by created_at desc, got %+v", all)
	}
}

func TestHistoryAppendAndRead(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ev1 := model.NewEvent(model.EventTaskCreated, "t1", "widget", now)
	ev2 := model.NewEvent(model.EventStatusChanged, "t1", "widget", now.Add(time.Minute))
	ev2.From, ev2.To = "planning", "working"

	if err := s.AppendHistory("widget", "t1", ev1); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendHistory("widget", "t1", ev2); err != nil {
		t.Fatal(err)
	}

	events, err := s.ReadHistory("widget", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[1].From != "planning" || events[1].To != "working" {
		t.Errorf("second event mismatch: %+v", events[1])
	}
}

func TestDeleteTaskRemovesDocumentAndHistory(t *testing.T) {
	s := newTestStore(t)
	task := &model.Task{ID: "t1", Project: "widget", Status: model.StatusDone, CreatedAt: time.Now()}
	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendHistory("widget", "t1", model.NewEvent(model.EventTaskCreated, "t1", "widget", time.Now())); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteTask("widget", "t1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadTask("widget", "t1"); err == nil {
		t.Fatal("expected task document to be gone after delete")
	}
}

func TestReadHistoryMissing(t *testing.T) {
	s := newTestStore(t)
	events, err := s.ReadHistory("widget", "nope")
	if err != nil {
		t.Fatal(err)
	}
	if events != nil {
		t.Errorf("expected nil events for missing history, got %+v", events)
	}
}

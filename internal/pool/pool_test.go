package pool

import (
	"testing"

	"github.com/orangehq/orange/internal/gitw"
)

// fakeBinder is a test Binder backed by an in-memory set of bound slots.
type fakeBinder struct {
	bound map[string]map[string]bool // project -> slot -> bound
}

func newFakeBinder() *fakeBinder {
	return &fakeBinder{bound: map[string]map[string]bool{}}
}

func (b *fakeBinder) BoundWorkspaces(project string) (map[string]bool, error) {
	if b.bound[project] == nil {
		return map[string]bool{}, nil
	}
	return b.bound[project], nil
}

func (b *fakeBinder) bind(project, slot string) {
	if b.bound[project] == nil {
		b.bound[project] = map[string]bool{}
	}
	b.bound[project][slot] = true
}

func (b *fakeBinder) unbind(project, slot string) {
	delete(b.bound[project], slot)
}

func fakeFactory() GitFactory {
	return func(string) gitw.Git { return gitw.NewFake() }
}

func TestAcquireLazyCreatesUpToPoolSize(t *testing.T) {
	root := t.TempDir()
	binder := newFakeBinder()
	p := New(root, fakeFactory(), binder)

	s1, err := p.Acquire("orange", "/repos/orange", "main", 2)
	if err != nil {
		t.Fatal(err)
	}
	if s1 != "orange--1" {
		t.Errorf("first slot = %q, want orange--1", s1)
	}
	binder.bind("orange", s1)

	s2, err := p.Acquire("orange", "/repos/orange", "main", 2)
	if err != nil {
		t.Fatal(err)
	}
	if s2 != "orange--2" {
		t.Errorf("second slot = %q, want orange--2", s2)
	}
	binder.bind("orange", s2)

	if _, err := p.Acquire("orange", "/repos/orange", "main", 2); err == nil {
		t.Fatal("expected PoolExhausted on third acquire")
	}
}

func TestAcquireReusesUnboundSlot(t *testing.T) {
	root := t.TempDir()
	binder := newFakeBinder()
	p := New(root, fakeFactory(), binder)

	s1, err := p.Acquire("orange", "/repos/orange", "main", 2)
	if err != nil {
		t.Fatal(err)
	}
	// s1 never gets bound: acquire again should reuse it, not create a
	// second slot.
	s2, err := p.Acquire("orange", "/repos/orange", "main", 2)
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 {
		t.Errorf("expected reuse of unbound slot, got %q then %q", s1, s2)
	}
}

func TestReleaseRequiresUnboundUnlessForced(t *testing.T) {
	root := t.TempDir()
	binder := newFakeBinder()
	p := New(root, fakeFactory(), binder)

	slot, err := p.Acquire("orange", "/repos/orange", "main", 1)
	if err != nil {
		t.Fatal(err)
	}
	binder.bind("orange", slot)

	if err := p.Release("orange", slot, "main", false); err == nil {
		t.Fatal("expected release to fail while still bound")
	}
	if err := p.Release("orange", slot, "main", true); err != nil {
		t.Fatalf("forced release should succeed: %v", err)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	root := t.TempDir()
	binder := newFakeBinder()
	p := New(root, fakeFactory(), binder)

	if err := p.Init("orange", "/repos/orange", "main", 2); err != nil {
		t.Fatal(err)
	}
	if err := p.Init("orange", "/repos/orange", "main", 2); err != nil {
		t.Fatal(err)
	}
	stats, err := p.Stats("orange", 2)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2 after idempotent init", stats.Total)
	}
}

func TestSlotsReportsBindingState(t *testing.T) {
	root := t.TempDir()
	binder := newFakeBinder()
	p := New(root, fakeFactory(), binder)

	slot, err := p.Acquire("orange", "/repos/orange", "main", 2)
	if err != nil {
		t.Fatal(err)
	}
	binder.bind("orange", slot)

	slots, err := p.Slots("orange")
	if err != nil {
		t.Fatal(err)
	}
	if !slots[slot] {
		t.Errorf("expected %s to be reported bound, got %+v", slot, slots)
	}
}

func TestGCResetsOnlyUnboundSlots(t *testing.T) {
	root := t.TempDir()
	binder := newFakeBinder()
	p := New(root, fakeFactory(), binder)

	bound, err := p.Acquire("orange", "/repos/orange", "main", 2)
	if err != nil {
		t.Fatal(err)
	}
	binder.bind("orange", bound)

	idle, err := p.Acquire("orange", "/repos/orange", "main", 2)
	if err != nil {
		t.Fatal(err)
	}

	n, err := p.GC("orange", "main")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("GC reset %d slots, want 1 (only %s is unbound)", n, idle)
	}
}

func TestStatsReflectsBoundCount(t *testing.T) {
	root := t.TempDir()
	binder := newFakeBinder()
	p := New(root, fakeFactory(), binder)

	slot, err := p.Acquire("orange", "/repos/orange", "main", 2)
	if err != nil {
		t.Fatal(err)
	}
	binder.bind("orange", slot)

	stats, err := p.Stats("orange", 2)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 1 || stats.Bound != 1 || stats.Available != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

package gitw

import "testing"

func TestParseNumstat(t *testing.T) {
	in := "3\t1\tfoo.go\n-\t-\tbinary.png\n"
	stats := ParseNumstat(in)
	if len(stats) != 2 {
		t.Fatalf("got %d stats, want 2", len(stats))
	}
	if stats[0].Path != "foo.go" || stats[0].Added != 3 || stats[0].Deleted != 1 {
		t.Errorf("unexpected stat[0]: %+v", stats[0])
	}
	if !stats[1].Binary || stats[1].Path != "binary.png" {
		t.Errorf("unexpected stat[1]: %+v", stats[1])
	}
}

func TestParseNumstatEmpty(t *testing.T) {
	if stats := ParseNumstat("   \n"); stats != nil {
		t.Errorf("expected nil for empty input, got %v", stats)
	}
}

func TestFakeAddWorktreeBranchInUse(t *testing.T) {
	f := NewFake()
	if err := f.AddWorktree("/a", "feature-x"); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := f.AddWorktree("/b", "feature-x"); err == nil {
		t.Fatal("expected branch-in-use error on second worktree for same branch")
	}
}

func TestFakeFailOn(t *testing.T) {
	f := NewFake()
	f.FailOn["Fetch"] = errTest
	if err := f.Fetch("origin"); err != errTest {
		t.Fatalf("expected injected error, got %v", err)
	}
}

var errTest = &GitError{Command: "fetch", Err: nil}

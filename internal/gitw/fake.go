package gitw

import "fmt"

// Fake is an in-memory Git double. Tests configure its branch/worktree
// state directly instead of shelling out to a real repository, mirroring
// the "live implementation + in-memory double" split the subprocess
// adapters are specified to have.
type Fake struct {
	Branches      map[string]bool
	CurrentBranchName string
	Worktrees     map[string]string // path -> branch
	FetchCalls    int
	CleanCalls    int
	ResetCalls    []string
	CommitHashes  map[bool]string
	Diffs         []DiffStat
	Commits       int

	// FailOn, if non-nil, is returned verbatim by the named method.
	FailOn map[string]error
}

// NewFake returns a Fake with an empty state.
func NewFake() *Fake {
	return &Fake{
		Branches:     map[string]bool{},
		Worktrees:    map[string]string{},
		CommitHashes: map[bool]string{false: "0000000000000000000000000000000000000000", true: "0000000"},
		FailOn:       map[string]error{},
	}
}

func (f *Fake) fail(name string) error {
	if f.FailOn == nil {
		return nil
	}
	return f.FailOn[name]
}

func (f *Fake) IsRepo() bool { return true }

func (f *Fake) Fetch(remote string) error {
	f.FetchCalls++
	return f.fail("Fetch")
}

func (f *Fake) Checkout(ref string) error {
	if err := f.fail("Checkout"); err != nil {
		return err
	}
	f.CurrentBranchName = ref
	return nil
}

func (f *Fake) ResetHard(ref string) error {
	f.ResetCalls = append(f.ResetCalls, ref)
	return f.fail("ResetHard")
}

func (f *Fake) CreateBranch(name, startPoint string) error {
	if err := f.fail("CreateBranch"); err != nil {
		return err
	}
	f.Branches[name] = true
	return nil
}

func (f *Fake) BranchExists(name string) (bool, error) {
	return f.Branches[name], f.fail("BranchExists")
}

func (f *Fake) DeleteBranch(name string, force bool) error {
	delete(f.Branches, name)
	return f.fail("DeleteBranch")
}

func (f *Fake) DeleteRemoteBranch(remote, branch string) error {
	return f.fail("DeleteRemoteBranch")
}

func (f *Fake) Merge(branch string, strategy MergeStrategy) error {
	return f.fail("Merge")
}

func (f *Fake) CurrentBranch() (string, error) {
	return f.CurrentBranchName, f.fail("CurrentBranch")
}

func (f *Fake) Clean() error {
	f.CleanCalls++
	return f.fail("Clean")
}

func (f *Fake) AddWorktree(path, branch string) error {
	if err := f.fail("AddWorktree"); err != nil {
		return err
	}
	for p, b := range f.Worktrees {
		if b == branch && p != path {
			return fmt.Errorf("branch %q already checked out at %s", branch, p)
		}
	}
	f.Worktrees[path] = branch
	return nil
}

func (f *Fake) RemoveWorktree(path string) error {
	delete(f.Worktrees, path)
	return f.fail("RemoveWorktree")
}

func (f *Fake) CommitHash(short bool) (string, error) {
	return f.CommitHashes[short], f.fail("CommitHash")
}

func (f *Fake) DiffStats(base string) ([]DiffStat, error) {
	return f.Diffs, f.fail("DiffStats")
}

func (f *Fake) CommitCount(base string) (int, error) {
	return f.Commits, f.fail("CommitCount")
}

func (f *Fake) WorktreeList() ([]Worktree, error) {
	var list []Worktree
	for p, b := range f.Worktrees {
		list = append(list, Worktree{Path: p, Branch: b})
	}
	return list, f.fail("WorktreeList")
}

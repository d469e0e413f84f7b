// Package pool manages the per-project bounded set of git worktrees that
// back running tasks. Acquisition and release are serialised per project,
// both in-process (a mutex keyed by project name) and across processes (a
// flock on the project's slot-state file), mirroring the way the teacher's
// rig manager treats worktree directories as the one shared mutable
// resource that must never be double-bound.
package pool

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"

	"github.com/orangehq/orange/internal/gitw"
	"github.com/orangehq/orange/internal/orangeerr"
)

// Stats summarizes a project's slot usage.
type Stats struct {
	Total     int
	Available int
	Bound     int
	PoolSize  int
}

// Binder tells the pool which slots are currently bound to a task, so
// acquire can tell an idle slot from one in use without the pool owning
// task documents itself.
type Binder interface {
	// BoundWorkspaces returns the set of workspace slot names currently
	// recorded on a task document for the given project.
	BoundWorkspaces(project string) (map[string]bool, error)
}

// GitFactory builds a Git wrapper rooted at workDir. The pool needs one
// instance per worktree it touches (the project's primary clone to run
// `worktree add` from, and each slot's own directory to fetch/reset/clean
// against), so it takes a factory rather than a single Git value.
type GitFactory func(workDir string) gitw.Git

// Pool leases worktree directories under root, one project's slots at a
// time.
type Pool struct {
	root    string // D/workspaces
	newGit  GitFactory
	bind    Binder

	mu    sync.Mutex
	locks map[string]*flock.Flock
}

// New returns a Pool rooted at root (typically Store.WorkspacesDir()).
func New(root string, newGit GitFactory, bind Binder) *Pool {
	return &Pool{root: root, newGit: newGit, bind: bind, locks: map[string]*flock.Flock{}}
}

func (p *Pool) projectDir(project string) string {
	return filepath.Join(p.root, project)
}

func slotName(project string, n int) string {
	return fmt.Sprintf("%s--%d", project, n)
}

func (p *Pool) slotPath(project, slot string) string {
	return filepath.Join(p.projectDir(project), slot)
}

// withProjectLock serialises acquire/release for one project, first via an
// in-process mutex and then a flock, so a second process touching the same
// data directory cannot interleave filesystem mutations with this one.
func (p *Pool) withProjectLock(project string, fn func() error) error {
	p.mu.Lock()
	lock, ok := p.locks[project]
	if !ok {
		if err := os.MkdirAll(p.root, 0755); err != nil {
			p.mu.Unlock()
			return fmt.Errorf("creating workspace root: %w", err)
		}
		lock = flock.New(filepath.Join(p.root, project+".lock"))
		p.locks[project] = lock
	}
	p.mu.Unlock()

	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking pool for %s: %w", project, err)
	}
	defer lock.Unlock()
	return fn()
}

// existingSlots lists slot directory names already present for a project,
// sorted for deterministic iteration.
func (p *Pool) existingSlots(project string) ([]string, error) {
	entries, err := os.ReadDir(p.projectDir(project))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing workspace slots: %w", err)
	}
	var slots []string
	for _, e := range entries {
		if e.IsDir() {
			slots = append(slots, e.Name())
		}
	}
	sort.Strings(slots)
	return slots, nil
}

// Acquire returns a slot name bound to the caller's task. If an existing
// slot for the project is not in the bound set it is reused; otherwise a
// new slot is created if pool_size allows it. repoPath is the project's
// primary clone, the one `git worktree add` runs from.
func (p *Pool) Acquire(project, repoPath, defaultBranch string, poolSize int) (slot string, err error) {
	err = p.withProjectLock(project, func() error {
		bound, berr := p.bind.BoundWorkspaces(project)
		if berr != nil {
			return berr
		}
		slots, serr := p.existingSlots(project)
		if serr != nil {
			return serr
		}

		for _, s := range slots {
			if !bound[s] {
				slot = s
				return nil
			}
		}

		if len(slots) >= poolSize {
			return &orangeerr.PoolExhaustedErr{Used: len(slots), Size: poolSize}
		}

		next := slotName(project, len(slots)+1)
		if err := p.createSlot(project, repoPath, next, defaultBranch); err != nil {
			return err
		}
		slot = next
		return nil
	})
	return slot, err
}

// createSlot materialises a new detached worktree at origin/defaultBranch
// and seeds it so the task-file symlink never shows up as dirty.
func (p *Pool) createSlot(project, repoPath, slot, defaultBranch string) error {
	path := p.slotPath(project, slot)
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("creating workspace slot dir: %w", err)
	}
	repo := p.newGit(repoPath)
	if err := repo.AddWorktree(path, defaultBranch); err != nil {
		return fmt.Errorf("creating worktree for %s: %w", slot, err)
	}
	return seedExclude(path)
}

// seedExclude appends the orange task-file symlink to .git/info/exclude so
// it never appears as an untracked file in `git status`.
func seedExclude(worktreePath string) error {
	excludePath := filepath.Join(worktreePath, ".git", "info", "exclude")
	f, err := os.OpenFile(excludePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		// Worktree .git files are themselves files pointing at the real
		// gitdir; a missing info/ directory here is unusual but not fatal
		// to acquisition.
		return nil
	}
	defer f.Close()
	_, err = f.WriteString("TASK.md\n")
	return err
}

// Release resets a slot to a clean checkout of defaultBranch and makes it
// available again. Callers must have already cleared the task's workspace
// field unless force is set.
func (p *Pool) Release(project, slot, defaultBranch string, force bool) error {
	return p.withProjectLock(project, func() error {
		if !force {
			bound, err := p.bind.BoundWorkspaces(project)
			if err != nil {
				return err
			}
			if bound[slot] {
				return &orangeerr.InvalidArgumentErr{Msg: fmt.Sprintf("slot %s still bound; pass force to override", slot)}
			}
		}

		path := p.slotPath(project, slot)
		if err := p.resetSlot(path, defaultBranch); err != nil {
			// Slot is left bound-less but not deleted, matching the
			// "discoverable but unbound" failure mode.
			return err
		}
		return nil
	})
}

func (p *Pool) resetSlot(path, defaultBranch string) error {
	g := p.newGit(path)
	if err := g.Fetch("origin"); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if err := g.Checkout(defaultBranch); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if err := g.ResetHard("origin/" + defaultBranch); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := g.Clean(); err != nil {
		return fmt.Errorf("clean: %w", err)
	}
	return nil
}

// Init pre-creates slots up to poolSize. Idempotent.
func (p *Pool) Init(project, repoPath, defaultBranch string, poolSize int) error {
	return p.withProjectLock(project, func() error {
		slots, err := p.existingSlots(project)
		if err != nil {
			return err
		}
		for len(slots) < poolSize {
			next := slotName(project, len(slots)+1)
			if err := p.createSlot(project, repoPath, next, defaultBranch); err != nil {
				return err
			}
			slots = append(slots, next)
		}
		return nil
	})
}

// Stats reports slot usage for a project.
func (p *Pool) Stats(project string, poolSize int) (Stats, error) {
	var st Stats
	err := p.withProjectLock(project, func() error {
		bound, err := p.bind.BoundWorkspaces(project)
		if err != nil {
			return err
		}
		slots, err := p.existingSlots(project)
		if err != nil {
			return err
		}
		usedBound := 0
		for _, s := range slots {
			if bound[s] {
				usedBound++
			}
		}
		st = Stats{Total: len(slots), Bound: usedBound, Available: len(slots) - usedBound, PoolSize: poolSize}
		return nil
	})
	return st, err
}

// SlotPath returns the filesystem path for a slot name, for callers that
// need to join paths against it (symlinking TASK.md, running harnesses).
func (p *Pool) SlotPath(project, slot string) string {
	return p.slotPath(project, slot)
}

// Slots lists a project's slot names and whether each is currently bound.
func (p *Pool) Slots(project string) (map[string]bool, error) {
	var result map[string]bool
	err := p.withProjectLock(project, func() error {
		bound, err := p.bind.BoundWorkspaces(project)
		if err != nil {
			return err
		}
		slots, err := p.existingSlots(project)
		if err != nil {
			return err
		}
		result = make(map[string]bool, len(slots))
		for _, s := range slots {
			result[s] = bound[s]
		}
		return nil
	})
	return result, err
}

// GC resets every currently unbound slot back to a clean checkout of
// defaultBranch, the way a crashed worker can leave a slot dirty without
// ever going through Release. Returns the number of slots reset.
func (p *Pool) GC(project, defaultBranch string) (int, error) {
	var n int
	err := p.withProjectLock(project, func() error {
		bound, err := p.bind.BoundWorkspaces(project)
		if err != nil {
			return err
		}
		slots, err := p.existingSlots(project)
		if err != nil {
			return err
		}
		for _, s := range slots {
			if bound[s] {
				continue
			}
			if err := p.resetSlot(p.slotPath(project, s), defaultBranch); err != nil {
				return fmt.Errorf("resetting slot %s: %w", s, err)
			}
			n++
		}
		return nil
	})
	return n, err
}

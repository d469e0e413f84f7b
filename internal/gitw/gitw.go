// Package gitw wraps git operations invoked as a subprocess. It is grounded
// on the teacher's own git wrapper: a thin argv builder around exec.Command
// that returns typed errors carrying raw stderr for the caller to inspect.
package gitw

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/orangehq/orange/internal/orangeerr"
)

// MergeStrategy selects how Merge folds a branch into the current HEAD.
type MergeStrategy string

const (
	MergeFastForward MergeStrategy = "ff"
	MergeCommit      MergeStrategy = "merge"
)

// DiffStat summarizes one changed file.
type DiffStat struct {
	Path    string
	Added   int
	Deleted int
	Binary  bool
}

// GitError carries the raw stdout/stderr of a failed git invocation so
// callers can inspect it programmatically rather than pattern-match a
// formatted message.
type GitError struct {
	Command string
	Args    []string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *GitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git %s: %s", e.Command, e.Stderr)
	}
	return fmt.Sprintf("git %s: %v", e.Command, e.Err)
}

func (e *GitError) Unwrap() error { return e.Err }

// Git is the subset of git plumbing the workflow engine and workspace pool
// depend on. CLI is the live implementation; Fake is an in-memory double
// used by tests that would otherwise need a real repository on disk.
type Git interface {
	Fetch(remote string) error
	Checkout(ref string) error
	ResetHard(ref string) error
	CreateBranch(name, startPoint string) error
	BranchExists(name string) (bool, error)
	DeleteBranch(name string, force bool) error
	DeleteRemoteBranch(remote, branch string) error
	Merge(branch string, strategy MergeStrategy) error
	CurrentBranch() (string, error)
	Clean() error
	AddWorktree(path, branch string) error
	RemoveWorktree(path string) error
	CommitHash(short bool) (string, error)
	DiffStats(base string) ([]DiffStat, error)
	CommitCount(base string) (int, error)
	IsRepo() bool
	WorktreeList() ([]Worktree, error)
}

// Worktree is one entry of `git worktree list --porcelain`.
type Worktree struct {
	Path   string
	Branch string
	Commit string
}

// CLI shells out to the git binary in workDir.
type CLI struct {
	workDir string
}

// New returns a live Git wrapper rooted at workDir.
func New(workDir string) *CLI {
	return &CLI{workDir: workDir}
}

func (g *CLI) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = g.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", g.wrapError(err, stdout.String(), stderr.String(), args)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (g *CLI) wrapError(err error, stdout, stderr string, args []string) error {
	command := ""
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			command = a
			break
		}
	}
	return &GitError{
		Command: command,
		Args:    args,
		Stdout:  strings.TrimSpace(stdout),
		Stderr:  strings.TrimSpace(stderr),
		Err:     err,
	}
}

func (g *CLI) IsRepo() bool {
	_, err := g.run("rev-parse", "--git-dir")
	return err == nil
}

func (g *CLI) Fetch(remote string) error {
	if remote == "" {
		remote = "origin"
	}
	_, err := g.run("fetch", remote)
	return err
}

func (g *CLI) Checkout(ref string) error {
	_, err := g.run("checkout", ref)
	return err
}

func (g *CLI) ResetHard(ref string) error {
	_, err := g.run("reset", "--hard", ref)
	return err
}

func (g *CLI) CreateBranch(name, startPoint string) error {
	args := []string{"branch", name}
	if startPoint != "" {
		args = append(args, startPoint)
	}
	_, err := g.run(args...)
	return err
}

// BranchExists reports whether a local branch exists. show-ref exits
// non-zero with empty stdout/stderr when the ref is simply absent, so any
// error here is treated as "does not exist" rather than propagated.
func (g *CLI) BranchExists(name string) (bool, error) {
	_, err := g.run("show-ref", "--verify", "--quiet", "refs/heads/"+name)
	return err == nil, nil
}

func (g *CLI) DeleteBranch(name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := g.run("branch", flag, name)
	return err
}

func (g *CLI) DeleteRemoteBranch(remote, branch string) error {
	_, err := g.run("push", remote, "--delete", branch)
	return err
}

func (g *CLI) Merge(branch string, strategy MergeStrategy) error {
	switch strategy {
	case MergeFastForward:
		_, err := g.run("merge", "--ff-only", branch)
		return err
	default:
		_, err := g.run("merge", "--no-ff", branch, "-m", fmt.Sprintf("Merge %s", branch))
		return err
	}
}

func (g *CLI) CurrentBranch() (string, error) {
	return g.run("rev-parse", "--abbrev-ref", "HEAD")
}

func (g *CLI) Clean() error {
	_, err := g.run("clean", "-fd")
	return err
}

// AddWorktree creates a new worktree at path, always detached at
// origin/<branch> to avoid "branch in use elsewhere" errors — the task
// branch itself is created/checked-out by the acquire_workspace hook, not
// by the pool.
func (g *CLI) AddWorktree(path, branch string) error {
	_, err := g.run("worktree", "add", "--detach", path, "origin/"+branch)
	return err
}

func (g *CLI) RemoveWorktree(path string) error {
	_, err := g.run("worktree", "remove", "--force", path)
	return err
}

func (g *CLI) CommitHash(short bool) (string, error) {
	if short {
		return g.run("rev-parse", "--short", "HEAD")
	}
	return g.run("rev-parse", "HEAD")
}

// DiffStats parses `git diff --numstat` output: "<added>\t<deleted>\t<path>",
// with "-\t-\t<path>" for binary files.
func (g *CLI) DiffStats(base string) ([]DiffStat, error) {
	out, err := g.run("diff", "--numstat", base+"...HEAD")
	if err != nil {
		return nil, err
	}
	return ParseNumstat(out), nil
}

// ParseNumstat parses `git diff --numstat` output into DiffStats.
func ParseNumstat(numstat string) []DiffStat {
	numstat = strings.TrimSpace(numstat)
	if numstat == "" {
		return nil
	}
	var stats []DiffStat
	for _, line := range strings.Split(numstat, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			continue
		}
		ds := DiffStat{Path: parts[2]}
		if parts[0] == "-" && parts[1] == "-" {
			ds.Binary = true
		} else {
			ds.Added, _ = strconv.Atoi(parts[0])
			ds.Deleted, _ = strconv.Atoi(parts[1])
		}
		stats = append(stats, ds)
	}
	return stats
}

func (g *CLI) CommitCount(base string) (int, error) {
	out, err := g.run("rev-list", "--count", base+"..HEAD")
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(out)
	if convErr != nil {
		return 0, &orangeerr.InvalidArgumentErr{Msg: "unparseable commit count: " + out}
	}
	return n, nil
}

func (g *CLI) WorktreeList() ([]Worktree, error) {
	out, err := g.run("worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	var list []Worktree
	var cur Worktree
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			if cur.Path != "" {
				list = append(list, cur)
				cur = Worktree{}
			}
			continue
		}
		switch {
		case strings.HasPrefix(line, "worktree "):
			cur.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			cur.Commit = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			cur.Branch = strings.TrimPrefix(line, "branch refs/heads/")
		}
	}
	if cur.Path != "" {
		list = append(list, cur)
	}
	return list, nil
}

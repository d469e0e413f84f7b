// Package orangeerr defines the closed set of error kinds Orange surfaces
// to callers, independent of which layer produced the failure.
package orangeerr

import "fmt"

// NoTransitionErr means the (from, to) pair is not in the transition table,
// or the row's condition evaluated false.
type NoTransitionErr struct {
	From, To string
}

func (e *NoTransitionErr) Error() string {
	return fmt.Sprintf("no transition %s -> %s", e.From, e.To)
}

// GateRejectedErr means an artifact gate rejected a transition.
type GateRejectedErr struct {
	Gate   string
	Reason string
}

func (e *GateRejectedErr) Error() string {
	return fmt.Sprintf("gate %s rejected: %s", e.Gate, e.Reason)
}

// PoolExhaustedErr means a project's worktree pool has no available slots.
type PoolExhaustedErr struct {
	Used, Size int
}

func (e *PoolExhaustedErr) Error() string {
	return fmt.Sprintf("pool exhausted: %d/%d", e.Used, e.Size)
}

// BranchInUseErr means the branch is already checked out in another worktree.
type BranchInUseErr struct {
	Branch string
}

func (e *BranchInUseErr) Error() string {
	return fmt.Sprintf("branch %q already checked out elsewhere", e.Branch)
}

// SubprocessFailedErr wraps a failed external tool invocation.
type SubprocessFailedErr struct {
	Tool   string
	Exit   int
	Stderr string
}

func (e *SubprocessFailedErr) Error() string {
	return fmt.Sprintf("%s failed (exit %d): %s", e.Tool, e.Exit, e.Stderr)
}

// NotAGitRepoErr means a project's path is not a git root.
type NotAGitRepoErr struct {
	Path string
}

func (e *NotAGitRepoErr) Error() string {
	return fmt.Sprintf("not a git repository: %s", e.Path)
}

// DuplicateProjectErr means a project name or path already exists.
type DuplicateProjectErr struct {
	Name string
}

func (e *DuplicateProjectErr) Error() string {
	return fmt.Sprintf("project already exists: %s", e.Name)
}

// TaskNotFoundErr means no task matches the given id.
type TaskNotFoundErr struct {
	ID string
}

func (e *TaskNotFoundErr) Error() string {
	return fmt.Sprintf("task not found: %s", e.ID)
}

// InvalidArgumentErr means a caller-supplied argument failed validation.
type InvalidArgumentErr struct {
	Msg string
}

func (e *InvalidArgumentErr) Error() string {
	return e.Msg
}

// Kind returns the short name of an error's kind, or "" if err is not one
// of the closed set above. Used by the logger to attach a structured field.
func Kind(err error) string {
	switch err.(type) {
	case *NoTransitionErr:
		return "NoTransition"
	case *GateRejectedErr:
		return "GateRejected"
	case *PoolExhaustedErr:
		return "PoolExhausted"
	case *BranchInUseErr:
		return "BranchInUse"
	case *SubprocessFailedErr:
		return "SubprocessFailed"
	case *NotAGitRepoErr:
		return "NotAGitRepo"
	case *DuplicateProjectErr:
		return "DuplicateProject"
	case *TaskNotFoundErr:
		return "TaskNotFound"
	case *InvalidArgumentErr:
		return "InvalidArgument"
	default:
		return ""
	}
}

// Package hostcli wraps the code-hosting CLI (gh) as a subprocess, the way
// internal/beads in the teacher repo wraps the bd CLI: build argv, run with
// a captured stdout/stderr, unmarshal JSON on success, return a typed error
// carrying raw output on failure.
package hostcli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// CheckState is the PR's CI status as reported by the host.
type CheckState string

const (
	ChecksNone    CheckState = "none"
	ChecksPending CheckState = "pending"
	ChecksPass    CheckState = "pass"
	ChecksFail    CheckState = "fail"
)

// PRState mirrors the host's pull-request lifecycle states.
type PRState string

const (
	PROpen   PRState = "OPEN"
	PRClosed PRState = "CLOSED"
	PRMerged PRState = "MERGED"
)

// CreatePRRequest is the input to CreatePR.
type CreatePRRequest struct {
	Head  string
	Base  string
	Title string
	Body  string
}

// PRStatus is the output of PRStatus.
type PRStatus struct {
	Exists         bool
	URL            string
	State          PRState
	MergeCommit    string
	Checks         CheckState
	ReviewDecision string
}

// HostError carries the raw output of a failed gh invocation.
type HostError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("gh %s: %s", strings.Join(e.Args, " "), strings.TrimSpace(e.Stderr))
}
func (e *HostError) Unwrap() error { return e.Err }

// HostCLI is the code-hosting adapter the merge/PR hooks depend on.
type HostCLI interface {
	IsAvailable(cwd string) bool
	CreatePR(cwd string, req CreatePRRequest) (string, error)
	PRStatus(cwd, branch string) (PRStatus, error)
}

// GH shells out to the `gh` binary.
type GH struct {
	Proxy string // forwarded as HTTPS_PROXY and HTTP_PROXY
}

func New(proxy string) *GH { return &GH{Proxy: proxy} }

func (g *GH) run(cwd string, args ...string) ([]byte, error) {
	cmd := exec.Command("gh", args...)
	cmd.Dir = cwd
	if g.Proxy != "" {
		cmd.Env = append(cmd.Environ(), "HTTPS_PROXY="+g.Proxy, "HTTP_PROXY="+g.Proxy)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &HostError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}

// IsAvailable reports whether gh is installed and authenticated for cwd's
// remote. PR-linking is best-effort: the workflow never depends on it.
func (g *GH) IsAvailable(cwd string) bool {
	if _, err := exec.LookPath("gh"); err != nil {
		return false
	}
	args := []string{"auth", "status"}
	if host, _ := DetectHost(originURL(cwd)); host != "" {
		args = append(args, "--hostname", host)
	}
	_, err := g.run(cwd, args...)
	return err == nil
}

// originURL returns cwd's origin remote URL, or "" if it can't be read,
// which DetectHost then falls back on to the default public host.
func originURL(cwd string) string {
	cmd := exec.Command("git", "remote", "get-url", "origin")
	cmd.Dir = cwd
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// CreatePR runs `gh pr create` and returns the new PR's URL.
func (g *GH) CreatePR(cwd string, req CreatePRRequest) (string, error) {
	out, err := g.run(cwd, "pr", "create",
		"--head", req.Head, "--base", req.Base,
		"--title", req.Title, "--body", req.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

type prViewPayload struct {
	State             string `json:"state"`
	URL               string `json:"url"`
	MergeCommit       *struct {
		Oid string `json:"oid"`
	} `json:"mergeCommit"`
	ReviewDecision    string `json:"reviewDecision"`
	StatusCheckRollup []struct {
		Conclusion string `json:"conclusion"`
		Status     string `json:"status"`
	} `json:"statusCheckRollup"`
}

// PRStatus runs `gh pr view <branch> --json ...` and classifies CI checks.
func (g *GH) PRStatus(cwd, branch string) (PRStatus, error) {
	out, err := g.run(cwd, "pr", "view", branch, "--json",
		"state,url,mergeCommit,reviewDecision,statusCheckRollup")
	if err != nil {
		var herr *HostError
		if asHostError(err, &herr) && strings.Contains(herr.Stderr, "no pull requests found") {
			return PRStatus{Exists: false}, nil
		}
		return PRStatus{}, err
	}

	var payload prViewPayload
	if err := json.Unmarshal(out, &payload); err != nil {
		return PRStatus{}, fmt.Errorf("parsing pr view output: %w", err)
	}

	status := PRStatus{
		Exists:         true,
		URL:            payload.URL,
		State:          PRState(payload.State),
		ReviewDecision: payload.ReviewDecision,
		Checks:         classifyChecks(payload.StatusCheckRollup),
	}
	if payload.MergeCommit != nil {
		status.MergeCommit = payload.MergeCommit.Oid
	}
	return status, nil
}

func asHostError(err error, out **HostError) bool {
	he, ok := err.(*HostError)
	if ok {
		*out = he
	}
	return ok
}

func classifyChecks(rollup []struct {
	Conclusion string `json:"conclusion"`
	Status     string `json:"status"`
}) CheckState {
	if len(rollup) == 0 {
		return ChecksNone
	}
	sawFail := false
	sawPending := false
	for _, c := range rollup {
		if c.Status != "" && c.Status != "COMPLETED" {
			sawPending = true
			continue
		}
		switch c.Conclusion {
		case "FAILURE", "TIMED_OUT", "CANCELLED":
			sawFail = true
		case "", "PENDING", "IN_PROGRESS", "QUEUED":
			sawPending = true
		}
	}
	switch {
	case sawFail:
		return ChecksFail
	case sawPending:
		return ChecksPending
	default:
		return ChecksPass
	}
}

var sshRemoteRe = regexp.MustCompile(`^git@([^:]+):(.+?)(\.git)?$`)
var httpsRemoteRe = regexp.MustCompile(`^https?://([^/]+)/(.+?)(\.git)?$`)

// DetectHost parses a `git remote get-url origin` value into (host, owner/repo),
// supporting both SSH and HTTPS remote forms and falling back to github.com
// when the URL doesn't match either shape.
func DetectHost(remoteURL string) (host, ownerRepo string) {
	if m := sshRemoteRe.FindStringSubmatch(remoteURL); m != nil {
		return m[1], m[2]
	}
	if m := httpsRemoteRe.FindStringSubmatch(remoteURL); m != nil {
		return m[1], m[2]
	}
	return "github.com", ""
}

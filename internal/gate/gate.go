// Package gate implements the pure text predicates that authorize workflow
// transitions by inspecting the markdown a task's agent writes to its
// TASK.md body. Gates never mutate state; a failing gate only refuses the
// transition that asked for it.
package gate

import (
	"regexp"
	"strings"
)

// Verdict is the outcome an agent records in a "## Review" section.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

// heading2 matches a level-2 markdown heading with the given title, case
// sensitive, tolerant of surrounding whitespace on the heading line.
func heading2(body, title string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^##[ \t]+` + regexp.QuoteMeta(title) + `[ \t]*$`)
}

// section extracts the text between a "## <title>" heading and the next
// level-1-or-2 heading (or end of body). Returns "", false if the heading
// is absent.
func section(body, title string) (string, bool) {
	re := heading2(body, title)
	loc := re.FindStringIndex(body)
	if loc == nil {
		return "", false
	}
	rest := body[loc[1]:]
	nextHeading := regexp.MustCompile(`(?m)^#{1,2}[ \t]`)
	if end := nextHeading.FindStringIndex(rest); end != nil {
		return rest[:end[0]], true
	}
	return rest, true
}

// fieldLine finds a "KEY: value" line within section text and returns the
// trimmed value, or "", false if the key is absent or its value is empty.
func fieldLine(sec, key string) (string, bool) {
	re := regexp.MustCompile(`(?m)^[ \t]*` + regexp.QuoteMeta(key) + `:[ \t]*(.*)$`)
	m := re.FindStringSubmatch(sec)
	if m == nil {
		return "", false
	}
	val := strings.TrimSpace(m[1])
	if val == "" {
		return "", false
	}
	return val, true
}

// Plan gates planning -> working: body must contain a "## Plan" section
// with a non-empty "APPROACH:" line.
func Plan(body string) bool {
	sec, ok := section(body, "Plan")
	if !ok {
		return false
	}
	_, ok = fieldLine(sec, "APPROACH")
	return ok
}

// Handoff gates working -> agent-review: body must contain a "## Handoff"
// section with a non-empty "DONE:" line.
func Handoff(body string) bool {
	sec, ok := section(body, "Handoff")
	if !ok {
		return false
	}
	_, ok = fieldLine(sec, "DONE")
	return ok
}

// Review gates agent-review -> {reviewing, working, stuck}, parameterised
// by the verdict the caller is asking for: body must contain a "## Review"
// section containing "Verdict: <verdict>".
func Review(body string, want Verdict) bool {
	sec, ok := section(body, "Review")
	if !ok {
		return false
	}
	val, ok := fieldLine(sec, "Verdict")
	if !ok {
		return false
	}
	return Verdict(val) == want
}

package store

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/orangehq/orange/internal/model"
)

const frontmatterDelim = "---"

// knownTaskKeys are the frontmatter keys the engine itself reads and
// writes. Anything else found in a hand-edited TASK.md round-trips through
// Task.Extra.
var knownTaskKeys = map[string]bool{
	"id": true, "project": true, "branch": true, "harness": true,
	"review_harness": true, "status": true, "review_round": true,
	"crash_count": true, "workspace": true, "tmux_session": true,
	"summary": true, "created_at": true, "updated_at": true, "pr_url": true,
}

// EncodeTask renders a task as "---\n<yaml>\n---\n<body>".
func EncodeTask(t *model.Task) ([]byte, error) {
	known, err := yaml.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encoding frontmatter: %w", err)
	}

	merged := map[string]any{}
	if err := yaml.Unmarshal(known, &merged); err != nil {
		return nil, fmt.Errorf("re-decoding known frontmatter: %w", err)
	}
	for k, v := range t.Extra {
		if !knownTaskKeys[k] {
			merged[k] = v
		}
	}

	out, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encoding merged frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(frontmatterDelim)
	buf.WriteByte('\n')
	buf.Write(out)
	buf.WriteString(frontmatterDelim)
	buf.WriteByte('\n')
	if t.Body != "" {
		buf.WriteString(t.Body)
		if !strings.HasSuffix(t.Body, "\n") {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}

// DecodeTask parses "---\n<yaml>\n---\n<body>" into a Task. Reads are
// tolerant of missing optional keys: zero values are used.
func DecodeTask(data []byte) (*model.Task, error) {
	text := string(data)
	if !strings.HasPrefix(text, frontmatterDelim) {
		return nil, fmt.Errorf("missing frontmatter delimiter")
	}
	rest := text[len(frontmatterDelim):]
	rest = strings.TrimPrefix(rest, "\n")

	idx := strings.Index(rest, "\n"+frontmatterDelim)
	if idx == -1 {
		return nil, fmt.Errorf("unterminated frontmatter block")
	}
	fm := rest[:idx]
	body := strings.TrimPrefix(rest[idx+len("\n"+frontmatterDelim):], "\n")

	var t model.Task
	if err := yaml.Unmarshal([]byte(fm), &t); err != nil {
		return nil, fmt.Errorf("parsing frontmatter: %w", err)
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal([]byte(fm), &raw); err != nil {
		return nil, fmt.Errorf("parsing frontmatter keys: %w", err)
	}
	extra := map[string]any{}
	for k, v := range raw {
		if !knownTaskKeys[k] {
			extra[k] = v
		}
	}
	t.Extra = extra
	t.Body = body
	return &t, nil
}

// Package config loads and saves the town-level configuration file and
// resolves environment variable overrides, the way the teacher's own
// internal/config loads TownConfig: read, validate, unmarshal on load;
// MarshalIndent and 0600 permissions on save.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound indicates the config file does not exist.
var ErrNotFound = errors.New("config file not found")

// HarnessSpec names the binary and per-variant invocation for one coding
// agent harness (e.g. "claude", "aider"). SpawnCommand keys are the
// spawn_agent variants: worker, worker_respawn, worker_wait, reviewer,
// stuck_fix. A variant absent from the map, or mapped to "", spawns the
// bare Binary with no prompt (clarification mode).
type HarnessSpec struct {
	Binary            string            `json:"binary"`
	SpawnCommand      map[string]string `json:"spawn_command"`
	WorkspaceSetupCmd string            `json:"workspace_setup_cmd,omitempty"`
}

// TownConfig is the town-wide configuration file at
// $ORANGE_HOME/config.json.
type TownConfig struct {
	DataDir              string                 `json:"data_dir"`
	DefaultHarness       string                 `json:"default_harness"`
	DefaultReviewHarness string                 `json:"default_review_harness"`
	DefaultPoolSize      int                    `json:"default_pool_size"`
	GHProxy              string                 `json:"gh_proxy,omitempty"`
	Harnesses            map[string]HarnessSpec `json:"harnesses"`
}

func validate(c *TownConfig) error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if c.DefaultPoolSize <= 0 {
		c.DefaultPoolSize = 2
	}
	return nil
}

// Load reads and validates the town config at path.
func Load(path string) (*TownConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var c TownConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save writes the town config to path, creating parent directories as
// needed.
func Save(path string, c *TownConfig) error {
	if err := validate(c); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// Default returns a TownConfig seeded with reasonable defaults, used when
// no config file exists yet (e.g. on `orange install`).
func Default(dataDir string) *TownConfig {
	return &TownConfig{
		DataDir:              dataDir,
		DefaultHarness:       "claude",
		DefaultReviewHarness: "claude",
		DefaultPoolSize:      2,
		Harnesses: map[string]HarnessSpec{
			"claude": {
				Binary: "claude",
				SpawnCommand: map[string]string{
					"worker":         `claude --permission-mode=acceptEdits "%s"`,
					"worker_respawn": `claude --permission-mode=acceptEdits --resume "%s"`,
					"worker_wait":    "",
					"reviewer":       `claude --permission-mode=acceptEdits "%s"`,
					"stuck_fix":      `claude --permission-mode=acceptEdits "%s"`,
				},
			},
		},
	}
}

// Harness looks up a harness spec by name, falling back to a bare-binary
// spec if the name is unconfigured (so an operator-supplied harness name
// that never made it into config.json still launches something).
func (c *TownConfig) Harness(name string) HarnessSpec {
	if spec, ok := c.Harnesses[name]; ok {
		return spec
	}
	return HarnessSpec{Binary: name}
}

// Package cmd implements the orange command-line front-end: a cobra
// command tree over the workflow engine, workspace pool, and store,
// grounded on the teacher's own internal/cmd conventions (one file per
// command group, package-level *cobra.Command vars registered from init,
// a bufio.NewReader [y/N] prompt for destructive actions).
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orangehq/orange/internal/config"
	"github.com/orangehq/orange/internal/engine"
	"github.com/orangehq/orange/internal/gitw"
	"github.com/orangehq/orange/internal/hooks"
	"github.com/orangehq/orange/internal/hostcli"
	"github.com/orangehq/orange/internal/monitor"
	"github.com/orangehq/orange/internal/orangeerr"
	"github.com/orangehq/orange/internal/orangelog"
	"github.com/orangehq/orange/internal/pool"
	"github.com/orangehq/orange/internal/spawner"
	"github.com/orangehq/orange/internal/store"
	"github.com/orangehq/orange/internal/tmuxw"
)

// Command groups, mirroring the teacher's GroupID convention.
const (
	GroupProjects = "projects"
	GroupTasks    = "tasks"
	GroupWorkspace = "workspace"
	GroupOps      = "ops"
)

var assumeYes bool

var rootCmd = &cobra.Command{
	Use:           "orange",
	Short:         "Orchestrate long-running coding agents across git worktrees and tmux sessions",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupProjects, Title: "Projects:"},
		&cobra.Group{ID: GroupTasks, Title: "Tasks:"},
		&cobra.Group{ID: GroupWorkspace, Title: "Workspace:"},
		&cobra.Group{ID: GroupOps, Title: "Operations:"},
	)
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation prompts")
}

// Execute runs the command tree and returns a process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		logFailure(err)
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

// classifySubprocessErr folds a raw git or code-hosting subprocess failure
// into the closed error-kind set so it logs and dispatches the same way a
// domain error would, instead of passing through as an opaque wrapped error.
func classifySubprocessErr(err error) error {
	var gerr *gitw.GitError
	if errors.As(err, &gerr) {
		return &orangeerr.SubprocessFailedErr{Tool: "git " + gerr.Command, Exit: exitCode(gerr.Err), Stderr: gerr.Stderr}
	}
	var herr *hostcli.HostError
	if errors.As(err, &herr) {
		return &orangeerr.SubprocessFailedErr{Tool: "gh " + strings.Join(herr.Args, " "), Exit: exitCode(herr.Err), Stderr: herr.Stderr}
	}
	return err
}

func exitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// logFailure writes a structured log entry carrying the error's kind before
// the CLI prints it and exits, so orange.log always shows why a command
// failed even when nothing else on the path ever touched a logger.
func logFailure(err error) {
	home, herr := config.Home()
	if herr != nil {
		return
	}
	log := orangelog.New(orangelog.Options{Path: home + "/orange.log", Level: config.LogLevel(), AlsoStderr: false})
	log = orangelog.Component(log, "cli")
	kind := orangeerr.Kind(classifySubprocessErr(err))
	if kind == "" {
		kind = "Unknown"
	}
	log.Error().Str("kind", kind).Err(err).Msg("command failed")
}

// app bundles every wired component a command handler needs. It is built
// fresh per invocation from $ORANGE_HOME, never held across commands.
type app struct {
	home    string
	cfg     *config.TownConfig
	store   *store.Store
	pool    *pool.Pool
	engine  *engine.Engine
	hooks   *hooks.Hooks
	spawner *spawner.Spawner
	monitor *monitor.Monitor
	tmux    tmuxw.Tmux
	host    *hostcli.GH
}

// newApp wires up every subsystem the way main() would at process start:
// load or seed the town config, open the store, construct the pool, then
// break the engine/hooks/spawner cycle with a setter once all three exist.
func newApp() (*app, error) {
	home, err := config.Home()
	if err != nil {
		return nil, fmt.Errorf("resolving orange home: %w", err)
	}
	if err := os.MkdirAll(home, 0755); err != nil {
		return nil, fmt.Errorf("creating orange home: %w", err)
	}

	configPath := home + "/config.json"
	cfg, err := config.Load(configPath)
	if err != nil {
		cfg = config.Default(home)
		if err := config.Save(configPath, cfg); err != nil {
			return nil, fmt.Errorf("seeding default config: %w", err)
		}
	}

	log := orangelog.New(orangelog.Options{Path: home + "/orange.log", Level: config.LogLevel(), AlsoStderr: false})

	s, err := store.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	tmux := tmuxw.New()
	host := hostcli.New(config.GHProxy())

	gitFactory := func(workDir string) gitw.Git { return gitw.New(workDir) }

	a := &app{home: home, cfg: cfg, store: s, tmux: tmux, host: host}

	h := hooks.New(s, gitFactory, tmux, host, cfg, log)
	a.pool = pool.New(s.WorkspacesDir(), gitFactory, h)
	h.SetPool(a.pool)

	eng := engine.New(s, h, log)
	sp := spawner.New(s, eng, log)
	h.SetSpawner(sp)

	a.hooks = h
	a.engine = eng
	a.spawner = sp
	a.monitor = monitor.New(s, eng, tmux, log)
	return a, nil
}

// confirm prompts "question [y/N]" unless --yes was passed.
func confirm(question string) bool {
	if assumeYes {
		return true
	}
	fmt.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

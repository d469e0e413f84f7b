package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/orangehq/orange/internal/gitw"
	"github.com/orangehq/orange/internal/model"
	"github.com/orangehq/orange/internal/orangeerr"
)

var (
	projectAddName     string
	projectAddPoolSize int
	projectUpdatePool  int
)

var projectCmd = &cobra.Command{
	Use:     "project",
	GroupID: GroupProjects,
	Short:   "Manage registered git projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add [path]",
	Short: "Register a git repository as an orange project",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProjectAdd,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered projects",
	Args:  cobra.NoArgs,
	RunE:  runProjectList,
}

var projectUpdateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Update a project's pool size",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectUpdate,
}

var projectRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Unregister a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectRemove,
}

func init() {
	projectAddCmd.Flags().StringVar(&projectAddName, "name", "", "project name (defaults to the repository directory name)")
	projectAddCmd.Flags().IntVar(&projectAddPoolSize, "pool-size", model.DefaultPoolSize, "number of worktree slots to lease concurrently")
	projectUpdateCmd.Flags().IntVar(&projectUpdatePool, "pool-size", 0, "new pool size")

	projectCmd.AddCommand(projectAddCmd, projectListCmd, projectUpdateCmd, projectRemoveCmd)
	rootCmd.AddCommand(projectCmd)
}

func runProjectAdd(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) == 1 {
		path = args[0]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	g := gitw.New(abs)
	if !g.IsRepo() {
		return &orangeerr.NotAGitRepoErr{Path: abs}
	}
	defaultBranch, err := g.CurrentBranch()
	if err != nil || defaultBranch == "" {
		defaultBranch = "main"
	}

	name := projectAddName
	if name == "" {
		name = filepath.Base(abs)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	proj := model.Project{Name: name, Path: abs, DefaultBranch: defaultBranch, PoolSize: projectAddPoolSize, Harness: a.cfg.DefaultHarness, ReviewHarness: a.cfg.DefaultReviewHarness}
	if err := a.store.AddProject(proj); err != nil {
		return err
	}
	if err := a.pool.Init(proj.Name, proj.Path, proj.DefaultBranch, proj.PoolSize); err != nil {
		return err
	}
	fmt.Printf("registered project %q at %s (default branch %s, pool size %d)\n", proj.Name, proj.Path, proj.DefaultBranch, proj.PoolSize)
	return nil
}

func runProjectList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	projects, err := a.store.LoadProjects()
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Println("no registered projects")
		return nil
	}
	for _, p := range projects {
		stats, err := a.pool.Stats(p.Name, p.PoolSize)
		if err != nil {
			return err
		}
		fmt.Printf("%-20s %-40s pool %d/%d bound (harness %s)\n", p.Name, p.Path, stats.Bound, stats.PoolSize, p.Harness)
	}
	return nil
}

func runProjectUpdate(cmd *cobra.Command, args []string) error {
	if projectUpdatePool <= 0 {
		return &orangeerr.InvalidArgumentErr{Msg: "--pool-size must be positive"}
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	return a.store.UpdateProject(args[0], func(p *model.Project) { p.PoolSize = projectUpdatePool })
}

func runProjectRemove(cmd *cobra.Command, args []string) error {
	name := args[0]
	if !confirm(fmt.Sprintf("remove project %q from the registry", name)) {
		return nil
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	return a.store.RemoveProject(name)
}

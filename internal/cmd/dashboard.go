package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: GroupOps,
	Short:   "Print a one-shot snapshot of every project's tasks and pool usage",
	Args:    cobra.NoArgs,
	RunE:    runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

// runDashboard prints a static snapshot rather than a live-refreshing TUI:
// a terminal-width table per project, not a bubbletea program.
func runDashboard(cmd *cobra.Command, args []string) error {
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

	for i, proj := range projects {
		if i > 0 {
			fmt.Println()
		}
		stats, err := a.pool.Stats(proj.Name, proj.PoolSize)
		if err != nil {
			return err
		}
		fmt.Printf("== %s (%s) == pool %d/%d bound\n", proj.Name, proj.Path, stats.Bound, stats.PoolSize)

		tasks, err := a.store.ListTasks(proj.Name, false)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("  no active tasks")
			continue
		}
		for _, t := range tasks {
			session := t.TmuxSession
			if session == "" {
				session = "-"
			}
			fmt.Printf("  %-24s %-14s %-20s round=%d crashes=%d session=%s\n",
				t.ID, t.Status, t.Branch, t.ReviewRound, t.CrashCount, session)
		}
	}
	return nil
}

package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var workspaceListAll bool

var workspaceCmd = &cobra.Command{
	Use:     "workspace",
	GroupID: GroupWorkspace,
	Short:   "Inspect and maintain per-project worktree pools",
}

var workspaceInitCmd = &cobra.Command{
	Use:   "init <project>",
	Short: "Pre-create a project's worktree slots up to its pool size",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkspaceInit,
}

var workspaceListCmd = &cobra.Command{
	Use:   "list [project]",
	Short: "List worktree slots and their binding state",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWorkspaceList,
}

var workspaceGCCmd = &cobra.Command{
	Use:   "gc <project>",
	Short: "Reset unbound slots back to a clean checkout",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkspaceGC,
}

func init() {
	workspaceListCmd.Flags().BoolVar(&workspaceListAll, "all", false, "list slots across every registered project")
	workspaceCmd.AddCommand(workspaceInitCmd, workspaceListCmd, workspaceGCCmd)
	rootCmd.AddCommand(workspaceCmd)
}

func runWorkspaceInit(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	proj, err := a.store.GetProject(args[0])
	if err != nil {
		return err
	}
	if err := a.pool.Init(proj.Name, proj.Path, proj.DefaultBranch, proj.PoolSize); err != nil {
		return err
	}
	fmt.Printf("initialized %d slots for %s\n", proj.PoolSize, proj.Name)
	return nil
}

func runWorkspaceList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	var names []string
	if len(args) == 1 {
		names = []string{args[0]}
	} else {
		projects, err := a.store.LoadProjects()
		if err != nil {
			return err
		}
		if !workspaceListAll && len(projects) > 1 {
			return fmt.Errorf("multiple projects registered; pass a project name or --all")
		}
		for _, p := range projects {
			names = append(names, p.Name)
		}
	}

	for _, name := range names {
		slots, err := a.pool.Slots(name)
		if err != nil {
			return err
		}
		slotNames := make([]string, 0, len(slots))
		for s := range slots {
			slotNames = append(slotNames, s)
		}
		sort.Strings(slotNames)
		for _, s := range slotNames {
			state := "available"
			if slots[s] {
				state = "bound"
			}
			fmt.Printf("%-20s %-16s %s\n", name, s, state)
		}
	}
	return nil
}

func runWorkspaceGC(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	proj, err := a.store.GetProject(args[0])
	if err != nil {
		return err
	}
	n, err := a.pool.GC(proj.Name, proj.DefaultBranch)
	if err != nil {
		return err
	}
	fmt.Printf("reset %d unbound slot(s) for %s\n", n, proj.Name)
	return nil
}

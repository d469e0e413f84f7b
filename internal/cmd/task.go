package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/orangehq/orange/internal/engine"
	"github.com/orangehq/orange/internal/gitw"
	"github.com/orangehq/orange/internal/hostcli"
	"github.com/orangehq/orange/internal/model"
	"github.com/orangehq/orange/internal/orangeerr"
	"github.com/orangehq/orange/internal/store"
)

var (
	taskCreateProject string
	taskListStatus    string
	taskListAll       bool
	taskUpdateBranch  string
	taskUpdateSummary string
	taskMergeStrategy string
	taskMergeLocal    bool
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: GroupTasks,
	Short:   "Create and drive coding tasks through their lifecycle",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create [branch] [summary]",
	Short: "Create a new task; an empty summary starts it in clarification",
	Args:  cobra.MaximumNArgs(2),
	RunE:  runTaskCreate,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Args:  cobra.NoArgs,
	RunE:  runTaskList,
}

var taskSpawnCmd = &cobra.Command{
	Use:   "spawn <id>",
	Short: "Manually drive a pending task into planning",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskSpawn,
}

var taskAttachCmd = &cobra.Command{
	Use:   "attach <id>",
	Short: "Attach the terminal to a task's worker tmux session",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskAttach,
}

var taskRespawnCmd = &cobra.Command{
	Use:   "respawn <id>",
	Short: "Restart a task's worker session in its current workspace",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRespawn,
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a task's branch or summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskUpdate,
}

var taskCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Signal that the worker finished (stop-hook entry point)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskComplete,
}

var taskStuckCmd = &cobra.Command{
	Use:   "stuck <id>",
	Short: "Signal that the worker could not finish (stop-hook entry point)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskStuck,
}

var taskMergeCmd = &cobra.Command{
	Use:   "merge <id>",
	Short: "Merge a reviewed task's branch and close it out",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskMerge,
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a task from any non-terminal state",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskCancel,
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a terminal task's document and history",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDelete,
}

var taskCreatePRCmd = &cobra.Command{
	Use:   "create-pr <id>",
	Short: "Open a pull request for a task's branch",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskCreatePR,
}

var taskRequestChangesCmd = &cobra.Command{
	Use:   "request-changes <id>",
	Short: "Bounce a task back to working for another pass",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRequestChanges,
}

func init() {
	taskCreateCmd.Flags().StringVar(&taskCreateProject, "project", "", "project name (required if more than one project is registered)")
	taskListCmd.Flags().StringVar(&taskListStatus, "status", "", "filter by status")
	taskListCmd.Flags().BoolVar(&taskListAll, "all", false, "include terminal (done/cancelled) tasks")
	taskUpdateCmd.Flags().StringVar(&taskUpdateBranch, "branch", "", "new branch name")
	taskUpdateCmd.Flags().StringVar(&taskUpdateSummary, "summary", "", "new summary")
	taskMergeCmd.Flags().StringVar(&taskMergeStrategy, "strategy", "ff", "merge strategy: ff or merge")
	taskMergeCmd.Flags().BoolVar(&taskMergeLocal, "local", false, "skip fetching origin before merging")
	taskCancelCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation")
	taskDeleteCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation")

	taskCmd.AddCommand(taskCreateCmd, taskListCmd, taskSpawnCmd, taskAttachCmd, taskRespawnCmd,
		taskUpdateCmd, taskCompleteCmd, taskStuckCmd, taskMergeCmd, taskCancelCmd, taskDeleteCmd,
		taskCreatePRCmd, taskRequestChangesCmd)
	rootCmd.AddCommand(taskCmd)
}

// resolveProject picks the task's project when there is exactly one
// registered, or requires --project when there is more than one.
func resolveProject(a *app, flagValue string) (model.Project, error) {
	if flagValue != "" {
		return a.store.GetProject(flagValue)
	}
	projects, err := a.store.LoadProjects()
	if err != nil {
		return model.Project{}, err
	}
	if len(projects) == 1 {
		return projects[0], nil
	}
	if len(projects) == 0 {
		return model.Project{}, &orangeerr.InvalidArgumentErr{Msg: "no projects registered; run `orange project add` first"}
	}
	return model.Project{}, &orangeerr.InvalidArgumentErr{Msg: "multiple projects registered; pass --project"}
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	var branch, summary string
	if len(args) > 0 {
		branch = args[0]
	}
	if len(args) > 1 {
		summary = args[1]
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	proj, err := resolveProject(a, taskCreateProject)
	if err != nil {
		return err
	}

	id, err := store.NewTaskID()
	if err != nil {
		return err
	}
	if branch == "" {
		branch = "orange-" + id
	}

	task := &model.Task{
		ID:            id,
		Project:       proj.Name,
		Branch:        branch,
		Harness:       proj.Harness,
		ReviewHarness: proj.ReviewHarness,
		Summary:       summary,
	}
	if err := a.engine.CreateTask(task); err != nil {
		return err
	}
	fmt.Printf("created task %s (%s) in project %s, status %s\n", task.ID, task.Branch, task.Project, task.Status)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	tasks, err := a.store.ListTasks("", taskListAll)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if taskListStatus != "" && string(t.Status) != taskListStatus {
			continue
		}
		fmt.Printf("%-24s %-12s %-12s %-20s %s\n", t.ID, t.Project, t.Status, t.Branch, t.Summary)
	}
	return nil
}

func loadTaskByID(s *store.Store, id string) (*model.Task, error) {
	tasks, err := s.ListTasks("", true)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, &orangeerr.TaskNotFoundErr{ID: id}
}

func runTaskSpawn(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	task, err := loadTaskByID(a.store, args[0])
	if err != nil {
		return err
	}
	return a.engine.Execute(task, model.StatusPlanning)
}

func runTaskAttach(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	task, err := loadTaskByID(a.store, args[0])
	if err != nil {
		return err
	}
	if !task.HasSession() {
		return &orangeerr.InvalidArgumentErr{Msg: "task has no active session; run `orange task spawn` first"}
	}

	tmuxPath, err := exec.LookPath("tmux")
	if err != nil {
		return fmt.Errorf("tmux not found: %w", err)
	}
	attachCmd := exec.Command(tmuxPath, "attach-session", "-t", task.TmuxSession)
	attachCmd.Stdin = os.Stdin
	attachCmd.Stdout = os.Stdout
	attachCmd.Stderr = os.Stderr
	return attachCmd.Run()
}

func runTaskRespawn(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	task, err := loadTaskByID(a.store, args[0])
	if err != nil {
		return err
	}
	if !task.HasWorkspace() {
		return &orangeerr.InvalidArgumentErr{Msg: "task has no workspace; run `orange task spawn` first"}
	}
	variant := "worker_respawn"
	if task.Status == model.StatusClarification {
		variant = "worker"
	}
	return a.hooks.Run("spawn_agent("+variant+")", task)
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	task, err := loadTaskByID(a.store, args[0])
	if err != nil {
		return err
	}
	if taskUpdateBranch != "" {
		task.Branch = taskUpdateBranch
	}
	if taskUpdateSummary != "" {
		task.Summary = taskUpdateSummary
		if task.Status == model.StatusClarification {
			return a.engine.Execute(task, model.StatusPlanning)
		}
	}
	return a.store.SaveTask(task)
}

func runTaskComplete(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	task, err := loadTaskByID(a.store, args[0])
	if err != nil {
		return err
	}
	return advanceAfterStopHook(a.engine, task)
}

// advanceAfterStopHook drives a task forward by whichever transition its
// current status makes available, the way the external stop hook calls
// back into the CLI with just a task id and an outcome.
func advanceAfterStopHook(e *engine.Engine, task *model.Task) error {
	switch task.Status {
	case model.StatusPlanning:
		return e.Execute(task, model.StatusWorking)
	case model.StatusWorking:
		return e.Execute(task, model.StatusAgentReview)
	case model.StatusAgentReview:
		if err := e.Execute(task, model.StatusReviewing); err == nil {
			return nil
		}
		if task.ReviewRound < 2 {
			return e.Execute(task, model.StatusWorking)
		}
		return e.Execute(task, model.StatusStuck)
	default:
		return &orangeerr.NoTransitionErr{From: string(task.Status), To: "next"}
	}
}

func runTaskStuck(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	task, err := loadTaskByID(a.store, args[0])
	if err != nil {
		return err
	}
	return a.engine.Execute(task, model.StatusStuck)
}

func runTaskMerge(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	task, err := loadTaskByID(a.store, args[0])
	if err != nil {
		return err
	}
	proj, err := a.store.GetProject(task.Project)
	if err != nil {
		return err
	}

	strategy := gitw.MergeFastForward
	if taskMergeStrategy == "merge" {
		strategy = gitw.MergeCommit
	}
	g := gitw.New(proj.Path)
	if !taskMergeLocal {
		if err := g.Fetch("origin"); err != nil {
			return err
		}
	}
	if err := g.Checkout(proj.DefaultBranch); err != nil {
		return err
	}
	if err := g.Merge(task.Branch, strategy); err != nil {
		return err
	}

	if err := a.engine.Execute(task, model.StatusDone); err != nil {
		return err
	}

	hash, err := g.CommitHash(true)
	if err != nil {
		return err
	}
	ev := model.NewEvent(model.EventTaskMerged, task.ID, task.Project, time.Now().UTC())
	ev.Strategy = taskMergeStrategy
	ev.Commit = hash
	if err := a.store.AppendHistory(task.Project, task.ID, ev); err != nil {
		return err
	}

	fmt.Printf("merged %s into %s and closed task %s\n", task.Branch, proj.DefaultBranch, task.ID)
	return nil
}

func runTaskCancel(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	task, err := loadTaskByID(a.store, args[0])
	if err != nil {
		return err
	}
	if !confirm(fmt.Sprintf("cancel task %s", task.ID)) {
		return nil
	}
	if err := a.engine.Execute(task, model.StatusCancelled); err != nil {
		return err
	}
	return a.store.AppendHistory(task.Project, task.ID, model.NewEvent(model.EventTaskCancelled, task.ID, task.Project, time.Now().UTC()))
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	task, err := loadTaskByID(a.store, args[0])
	if err != nil {
		return err
	}
	if !task.Status.Terminal() {
		return &orangeerr.InvalidArgumentErr{Msg: "task must be done or cancelled before it can be deleted"}
	}
	if !confirm(fmt.Sprintf("permanently delete task %s and its history", task.ID)) {
		return nil
	}
	return a.store.DeleteTask(task.Project, task.ID)
}

func runTaskCreatePR(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	task, err := loadTaskByID(a.store, args[0])
	if err != nil {
		return err
	}
	proj, err := a.store.GetProject(task.Project)
	if err != nil {
		return err
	}
	if !a.host.IsAvailable(proj.Path) {
		fmt.Println("code-hosting CLI unavailable; skipping PR creation")
		return nil
	}
	url, err := a.host.CreatePR(proj.Path, hostcli.CreatePRRequest{
		Head:  task.Branch,
		Base:  proj.DefaultBranch,
		Title: firstLine(task.Summary),
		Body:  task.Summary,
	})
	if err != nil {
		return err
	}
	task.PRURL = url
	if err := a.store.SaveTask(task); err != nil {
		return err
	}
	ev := model.NewEvent(model.EventPRCreated, task.ID, task.Project, time.Now().UTC())
	ev.URL = url
	fmt.Println(url)
	return a.store.AppendHistory(task.Project, task.ID, ev)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func runTaskRequestChanges(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	task, err := loadTaskByID(a.store, args[0])
	if err != nil {
		return err
	}
	if task.Status != model.StatusAgentReview && task.Status != model.StatusReviewing {
		return &orangeerr.NoTransitionErr{From: string(task.Status), To: string(model.StatusWorking)}
	}
	return a.engine.Execute(task, model.StatusWorking)
}

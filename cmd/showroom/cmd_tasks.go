package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/showroom/followup"
	"github.com/GoCodeAlone/showroom/task"
)

var (
	tasksDate    string
	tasksOpen    bool
	tasksOverdue bool
	tasksClient  string
	tasksLimit   int
	tasksJSON    bool
)

// tasksCmd lists follow-up tasks
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List follow-up tasks (due today by default)",
	Long: `Lists follow-up tasks. Without flags it shows the tasks due today.

Examples:
  showroom tasks --overdue
  showroom tasks --open --client 3f9c...
  showroom tasks --date 2024-01-31 --json`,
	Args: cobra.NoArgs,
	RunE: listTasks,
}

// completeCmd marks a task done
var completeCmd = &cobra.Command{
	Use:   "complete <task-id>",
	Short: "Mark a follow-up task done and record the client contact",
	Args:  cobra.ExactArgs(1),
	RunE:  completeTask,
}

func init() {
	tasksCmd.Flags().StringVar(&tasksDate, "date", "", "show tasks due on this date (YYYY-MM-DD)")
	tasksCmd.Flags().BoolVar(&tasksOpen, "open", false, "show every open task")
	tasksCmd.Flags().BoolVar(&tasksOverdue, "overdue", false, "show open tasks due before today")
	tasksCmd.Flags().StringVar(&tasksClient, "client", "", "only tasks for this client ID")
	tasksCmd.Flags().IntVar(&tasksLimit, "limit", 0, "maximum number of tasks")
	tasksCmd.Flags().BoolVar(&tasksJSON, "json", false, "print JSON")
	tasksCmd.MarkFlagsMutuallyExclusive("date", "open", "overdue")
}

func listTasks(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	today := a.gen.Today()
	var filter task.Filter
	switch {
	case tasksOpen:
		filter = task.Open()
	case tasksOverdue:
		filter = task.Overdue(today)
	case tasksDate != "":
		d, err := civil.ParseDate(tasksDate)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", tasksDate, err)
		}
		filter = task.DueOn(d)
	default:
		filter = task.DueOn(today)
	}
	filter.ClientID = tasksClient
	filter.Limit = tasksLimit

	tasks, err := a.tasks.List(ctx, filter)
	if err != nil {
		return err
	}
	if tasksJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if tasks == nil {
			tasks = []*task.Task{}
		}
		return enc.Encode(tasks)
	}
	printTasks(cmd.OutOrStdout(), tasks)
	return nil
}

func printTasks(w io.Writer, tasks []*task.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "no tasks")
		return
	}
	fmt.Fprintf(w, "%-36s %-10s %-5s %-50s\n", "ID", "DUE", "DONE", "TITLE")
	fmt.Fprintln(w, strings.Repeat("-", 104))
	for _, t := range tasks {
		done := ""
		if t.Completed {
			done = "yes"
		}
		fmt.Fprintf(w, "%-36s %-10s %-5s %-50s\n", t.ID, t.DueDate, done, t.Title)
		if t.Message != "" {
			fmt.Fprintf(w, "    %s\n", strings.ReplaceAll(t.Message, "\n", "\n    "))
		}
	}
}

func completeTask(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := followup.CompleteTask(ctx, a.tasks, a.clients, args[0], time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "completed task %s for client %s\n", t.ID, t.ClientID)
	return nil
}

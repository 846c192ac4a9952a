package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Add and list the tasks of a day",
}

var tasksDate string

var tasksAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, a *app, day time.Time) error {
			now := time.Now()
			t := &core.Task{
				ID:        uuid.NewString(),
				UserID:    userID,
				Date:      core.DateKey(day),
				Title:     strings.Join(args, " "),
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := a.store.CreateTask(ctx, t); err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "added %s %q for %s\n", shortID(t.ID), t.Title, t.Date)
			return nil
		})
	},
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(c *cobra.Command, _ []string) error {
		return withStore(func(ctx context.Context, a *app, day time.Time) error {
			tasks, err := a.store.ListTasks(ctx, userID, day)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Fprintf(c.OutOrStdout(), "no tasks for %s\n", core.DateKey(day))
				return nil
			}
			printTasks(c.OutOrStdout(), tasks)
			return nil
		})
	},
}

var tasksDoneCmd = &cobra.Command{
	Use:   "done <id-prefix>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, a *app, day time.Time) error {
			tasks, err := a.store.ListTasks(ctx, userID, day)
			if err != nil {
				return err
			}
			t, err := findByPrefix(tasks, args[0])
			if err != nil {
				return err
			}
			t.Completed = true
			t.UpdatedAt = time.Now()
			if err := a.store.UpdateTask(ctx, t); err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "completed %q\n", t.Title)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksAddCmd, tasksListCmd, tasksDoneCmd)
	tasksCmd.PersistentFlags().StringVar(&tasksDate, "date", "", "day (YYYY-MM-DD, today, tomorrow)")
}

func withStore(fn func(context.Context, *app, time.Time) error) error {
	day, err := parseDay(tasksDate, time.Now())
	if err != nil {
		return err
	}
	a, err := newApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.close()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return fn(ctx, a, day)
}

// findByPrefix resolves an id prefix to exactly one task.
func findByPrefix(tasks []*core.Task, prefix string) (*core.Task, error) {
	var match *core.Task
	for _, t := range tasks {
		if !strings.HasPrefix(t.ID, prefix) {
			continue
		}
		if match != nil {
			return nil, core.ErrValidation(core.CodeInvalidInput, "task id prefix "+prefix+" is ambiguous")
		}
		match = t
	}
	if match == nil {
		return nil, core.ErrNotFound("task", prefix)
	}
	return match, nil
}

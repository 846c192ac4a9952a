package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/workflow"
)

var refineCmd = &cobra.Command{
	Use:   "refine",
	Short: "Run the refinement workflow over a day's tasks",
	Long: `Run the phase workflow (analyze, clarify, decompose, estimate,
prioritize, checklist) headlessly and save the refined tasks.

Examples:
  aiplanner refine
  aiplanner refine --date tomorrow --skip clarifying --max-steps 4
  aiplanner refine --task 3f2a --json`,
	RunE: runRefine,
}

var (
	refineDate     string
	refineTaskIDs  []string
	refineMaxSteps int
	refineSkip     []string
	refineModel    string
	refineJSON     bool
)

func init() {
	rootCmd.AddCommand(refineCmd)

	refineCmd.Flags().StringVar(&refineDate, "date", "", "day to refine (YYYY-MM-DD, today, tomorrow)")
	refineCmd.Flags().StringSliceVar(&refineTaskIDs, "task", nil, "only refine these task ids")
	refineCmd.Flags().IntVar(&refineMaxSteps, "max-steps", 0, "stop after this many steps (default from config)")
	refineCmd.Flags().StringSliceVar(&refineSkip, "skip", nil, "phases to skip, e.g. clarifying,prioritizing")
	refineCmd.Flags().StringVar(&refineModel, "model", "", "model to use instead of the primary")
	refineCmd.Flags().BoolVar(&refineJSON, "json", false, "print the full result as JSON")
}

func runRefine(c *cobra.Command, _ []string) error {
	day, err := parseDay(refineDate, time.Now())
	if err != nil {
		return err
	}
	skip := make([]core.WorkflowPhase, 0, len(refineSkip))
	for _, s := range refineSkip {
		p, err := core.ParsePhase(strings.TrimSpace(s))
		if err != nil {
			return err
		}
		skip = append(skip, p)
	}

	a, err := newApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := workflow.Refine(ctx, a.store, workflow.RefineRequest{
		UserID:  userID,
		Date:    day,
		TaskIDs: refineTaskIDs,
		Options: workflow.ExecuteOptions{MaxSteps: refineMaxSteps, SkipPhases: skip, Model: refineModel},
	}, a.workflowDeps())
	if err != nil {
		return err
	}

	out := c.OutOrStdout()
	if refineJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printRefineResult(out, res)
	if !res.Result.Success {
		return fmt.Errorf("workflow stopped in %s: %s", res.Result.Phase, res.Result.Error)
	}
	return nil
}

func printRefineResult(w io.Writer, res *workflow.RefineResult) {
	r := res.Result
	fmt.Fprintf(w, "Phase: %s  Steps: %s  (%s)\n", r.Phase, strings.Join(r.ExecutedSteps, ", "), r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Saved: %d new, %d updated\n\n", res.Created, res.Updated)
	if res.Context != nil {
		printTasks(w, res.Context.Tasks)
	}
}

func printTasks(w io.Writer, tasks []*core.Task) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tMINUTES\tPRIORITY\tQUADRANT\tPARENT")
	for _, t := range tasks {
		minutes := "-"
		if t.EstimatedMinutes > 0 {
			minutes = fmt.Sprint(t.EstimatedMinutes)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(t.ID), t.Title, minutes, orDash(string(t.Priority)), orDash(string(t.Quadrant)), orDash(shortID(t.ParentID)))
	}
	_ = tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

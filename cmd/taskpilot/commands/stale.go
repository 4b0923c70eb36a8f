package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/taskpilot/internal/stale"
	"github.com/marcus/taskpilot/internal/tasks"
)

var staleCmd = &cobra.Command{
	Use:   "stale",
	Short: "Find tasks nobody has touched for a while",
	Long: `List incomplete tasks untouched for at least the threshold (default from
config) and ask the oracle for a gentle nudge about each.

Use --history to show recorded scheduled checks (sqlite/postgres backends).`,
	RunE: runStale,
}

func init() {
	staleCmd.Flags().Bool("json", false, "Output as JSON")
	staleCmd.Flags().Int("threshold", 0, "Days without an update before a task is stale (default from config)")
	staleCmd.Flags().Int("history", 0, "Show the last N scheduled checks instead of running one")
	rootCmd.AddCommand(staleCmd)
}

func runStale(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	threshold, _ := cmd.Flags().GetInt("threshold")
	history, _ := cmd.Flags().GetInt("history")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmdContext(cmd)
	out := cmd.OutOrStdout()

	if history > 0 {
		if a.db == nil {
			return fmt.Errorf("stale check history needs the sqlite or postgres backend")
		}
		checks, err := a.db.StaleChecks(ctx, history)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(out, checks)
		}
		if len(checks) == 0 {
			fmt.Fprintln(out, "No stale checks recorded.")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "CHECKED\tTHRESHOLD\tSTALE\tRESULT")
		for _, c := range checks {
			result := c.Message
			if c.Error != "" {
				result = "error: " + c.Error
			}
			_, _ = fmt.Fprintf(w, "%s\t%dd\t%d\t%s\n", c.CheckedAt.Local().Format("2006-01-02 15:04"), c.Threshold, c.StaleCount, result)
		}
		return w.Flush()
	}

	if threshold <= 0 {
		threshold = a.cfg.Stale.ThresholdDays
	}
	if err := a.requireOracle(); err != nil {
		return err
	}

	list, err := a.store.List(ctx, tasks.Filter{})
	if err != nil {
		return err
	}

	report, err := stale.NewDetector(a.oracle, stale.WithThreshold(threshold)).Detect(ctx, list, time.Now())
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(out, report)
	}
	printStaleReport(out, report, threshold)
	return nil
}

func printStaleReport(out io.Writer, r *stale.Report, threshold int) {
	if r.Empty() {
		fmt.Fprintf(out, "%sNothing stale.%s No open task has gone %d days without an update.\n", colorGreen, colorReset, threshold)
		return
	}

	if r.OverallMessage != "" {
		fmt.Fprintf(out, "%s\n\n", r.OverallMessage)
	}
	for _, t := range r.StaleTasks {
		fmt.Fprintf(out, "%s%3dd%s  %s %s(%s)%s\n", colorYellow, t.DaysSinceUpdate, colorReset, t.Title, colorDim, shortID(t.ID), colorReset)
		if msg := r.TaskMessages[t.ID]; msg != "" {
			fmt.Fprintf(out, "      %s\n", msg)
		}
	}
	if r.ActionSuggestion != "" {
		fmt.Fprintf(out, "\n%sTry this:%s %s\n", colorCyan, colorReset, r.ActionSuggestion)
	}
}

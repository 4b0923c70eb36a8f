package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/taskpilot/internal/recommend"
	"github.com/marcus/taskpilot/internal/tasks"
)

var recommendCmd = &cobra.Command{
	Use:     "recommend",
	Aliases: []string{"next"},
	Short:   "Ask which tasks to do next",
	Long: `Send the task list to the oracle and print the tasks it suggests
working on next, best first, along with dependencies it noticed.`,
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().Bool("json", false, "Output as JSON")
	recommendCmd.Flags().Int("limit", recommend.DefaultLimit, "Maximum number of recommendations")
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireOracle(); err != nil {
		return err
	}

	ctx := cmdContext(cmd)
	list, err := a.store.List(ctx, tasks.Filter{})
	if err != nil {
		return err
	}

	set, err := recommend.New(a.oracle, recommend.WithLimit(limit)).Recommend(ctx, list)
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(cmd.OutOrStdout(), set)
	}
	printRecommendations(cmd.OutOrStdout(), set, list)
	return nil
}

func printRecommendations(out io.Writer, set *recommend.Set, list []tasks.Task) {
	if len(set.Recommendations) == 0 {
		fmt.Fprintln(out, "Nothing to recommend.")
		return
	}

	titles := make(map[string]string, len(list))
	for _, t := range list {
		titles[t.ID] = t.Title
	}
	name := func(ids []string) string {
		out := make([]string, len(ids))
		for i, id := range ids {
			out[i] = titles[id]
		}
		return strings.Join(out, ", ")
	}

	fmt.Fprintf(out, "%sNext up%s\n\n", colorBold, colorReset)
	for i, r := range set.Recommendations {
		fmt.Fprintf(out, "%2d. %s%3d%s  %s %s(%s)%s\n", i+1, colorCyan, r.Score, colorReset, r.Title, colorDim, shortID(r.TaskID), colorReset)
		if r.Reason != "" {
			fmt.Fprintf(out, "         %s\n", r.Reason)
		}
		if len(r.BlockedBy) > 0 {
			fmt.Fprintf(out, "         %sblocked by %s%s\n", colorYellow, name(r.BlockedBy), colorReset)
		}
	}

	if len(set.Dependencies) > 0 {
		fmt.Fprintf(out, "\n%sDependencies%s\n", colorBold, colorReset)
		for _, d := range set.Dependencies {
			fmt.Fprintf(out, "  %s  after  %s\n", titles[d.TaskID], name(d.DependsOn))
			if d.Reasoning != "" {
				fmt.Fprintf(out, "    %s%s%s\n", colorDim, d.Reasoning, colorReset)
			}
		}
	}

	if set.Insights != "" {
		fmt.Fprintf(out, "\n%s\n", set.Insights)
	}
}

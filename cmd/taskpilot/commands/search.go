package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/taskpilot/internal/assist"
	"github.com/marcus/taskpilot/internal/oracle"
	"github.com/marcus/taskpilot/internal/search"
	"github.com/marcus/taskpilot/internal/tasks"
)

var searchCmd = &cobra.Command{
	Use:   "search <id|title>",
	Short: "Search the web for help with a task",
	Long: `Turn a task into a search query and print the top web results.

The argument is a task id (or unique prefix); anything else is used as the
task title. Requires search.api_key and search.engine_id.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntP("num", "n", 0, "Number of results (default from config)")
	searchCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	num, _ := cmd.Flags().GetInt("num")
	asJSON, _ := cmd.Flags().GetBool("json")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	client := newSearchClient(a.cfg.Search)
	if !client.Configured() {
		return search.ErrNotConfigured
	}
	if num <= 0 {
		num = a.cfg.Search.NumResults
	}

	ctx := cmdContext(cmd)
	ref := strings.Join(args, " ")
	title, desc := ref, ""
	if t, err := findTask(ctx, a.store, ref); err == nil {
		title, desc = t.Title, t.Description
	} else if !errors.Is(err, tasks.ErrNotFound) {
		return err
	}

	query := title
	if oracle.Configured(a.cfg.Oracle) {
		query, _ = assist.New(a.oracle).SearchQuery(ctx, title, desc)
	}

	resp, err := client.Search(ctx, query, num)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, resp)
	}
	fmt.Fprintf(out, "%sQuery:%s %s\n\n", colorBold, colorReset, resp.Query)
	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}
	for i, r := range resp.Results {
		fmt.Fprintf(out, "%d. %s%s%s\n   %s%s%s\n", i+1, colorBold, r.Title, colorReset, colorCyan, r.Link, colorReset)
		if r.Snippet != "" {
			fmt.Fprintf(out, "   %s\n", r.Snippet)
		}
	}
	return nil
}

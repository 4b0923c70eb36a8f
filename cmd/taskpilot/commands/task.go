package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marcus/taskpilot/internal/assist"
	"github.com/marcus/taskpilot/internal/logging"
	"github.com/marcus/taskpilot/internal/oracle"
	"github.com/marcus/taskpilot/internal/tasks"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	Aliases: []string{"tasks", "t"},
	Short:   "Manage tasks",
	Long:    `Create, list, edit, complete, export and import tasks.`,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List tasks, newest first.

Use --open or --completed to filter by state, --category and --priority to
narrow further. Use --json to output as JSON for scripting.`,
	RunE: runTaskList,
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskAdd,
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a task",
	Long:  `Update a task. Only the flags you pass are changed.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskUpdate,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Toggle a task's completion",
	Long: `Mark a task completed, or reopen it if it already is.

When a task is completed and an oracle is configured, a short celebration
message is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskDone,
}

var taskRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE:    runTaskRm,
}

var taskExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export tasks as JSON or YAML",
	RunE:  runTaskExport,
}

var taskImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import tasks from a JSON or YAML export",
	Long: `Import tasks from a file written by 'taskpilot task export'.

Imported tasks get new ids. The format is taken from the file extension
unless --format is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskImport,
}

func init() {
	taskListCmd.Flags().Bool("open", false, "Only incomplete tasks")
	taskListCmd.Flags().Bool("completed", false, "Only completed tasks")
	taskListCmd.Flags().String("category", "", "Filter by category (work, personal, shopping, health, other)")
	taskListCmd.Flags().String("priority", "", "Filter by priority (low, medium, high, urgent)")
	taskListCmd.Flags().Bool("json", false, "Output as JSON")
	taskListCmd.MarkFlagsMutuallyExclusive("open", "completed")

	for _, c := range []*cobra.Command{taskAddCmd, taskUpdateCmd} {
		c.Flags().StringP("description", "d", "", "Task description")
		c.Flags().StringP("category", "c", "", "Category (work, personal, shopping, health, other)")
		c.Flags().StringP("priority", "p", "", "Priority (low, medium, high, urgent)")
		c.Flags().StringSliceP("tag", "t", nil, "Tag (repeatable)")
	}
	taskUpdateCmd.Flags().String("title", "", "New title")

	taskShowCmd.Flags().Bool("json", false, "Output as JSON")

	taskExportCmd.Flags().String("format", "json", "Output format (json, yaml)")
	taskExportCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	taskImportCmd.Flags().String("format", "", "Input format (json, yaml); default from extension")

	taskCmd.AddCommand(taskListCmd, taskAddCmd, taskShowCmd, taskUpdateCmd, taskDoneCmd, taskRmCmd, taskExportCmd, taskImportCmd)
	rootCmd.AddCommand(taskCmd)
}

func runTaskList(cmd *cobra.Command, args []string) error {
	openOnly, _ := cmd.Flags().GetBool("open")
	completedOnly, _ := cmd.Flags().GetBool("completed")
	categoryFilter, _ := cmd.Flags().GetString("category")
	priorityFilter, _ := cmd.Flags().GetString("priority")
	asJSON, _ := cmd.Flags().GetBool("json")

	var filter tasks.Filter
	switch {
	case openOnly:
		v := false
		filter.Completed = &v
	case completedOnly:
		v := true
		filter.Completed = &v
	}
	if categoryFilter != "" {
		c, err := parseCategoryFlag(categoryFilter)
		if err != nil {
			return err
		}
		filter.Category = c
	}
	if priorityFilter != "" {
		p, err := parsePriorityFlag(priorityFilter)
		if err != nil {
			return err
		}
		filter.Priority = p
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.store.List(cmdContext(cmd), filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, list)
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No tasks match the given filters.")
		return nil
	}
	printTaskTable(out, list, time.Now())
	return nil
}

func printTaskTable(out io.Writer, list []tasks.Task, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDONE\tPRIORITY\tCATEGORY\tUPDATED\tTITLE")
	for _, t := range list {
		done := " "
		if t.Completed {
			done = "x"
		}
		_, _ = fmt.Fprintf(w, "%s\t[%s]\t%s\t%s\t%s\t%s\n",
			shortID(t.ID), done, t.Priority, t.Category, formatAge(now.Sub(t.LastTouched())), t.Title)
	}
	_ = w.Flush()
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	f, err := fieldsFromFlags(cmd)
	if err != nil {
		return err
	}
	f.Title = tasks.StringPtr(strings.Join(args, " "))
	if err := f.Validate(true); err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.store.Create(cmdContext(cmd), f)
	if err != nil {
		return err
	}
	a.log.InfoCtx("task created", logging.Fields{"id": t.ID})
	fmt.Fprintf(cmd.OutOrStdout(), "%sCreated%s %s %s\n", colorGreen, colorReset, shortID(t.ID), t.Title)
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := findTask(cmdContext(cmd), a.store, args[0])
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(cmd.OutOrStdout(), t)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTaskCard(t))
	return nil
}

func renderTaskCard(t tasks.Task) string {
	label := lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#666", Dark: "#888"}).Width(10)
	title := lipgloss.NewStyle().Bold(true)

	state := "open"
	if t.Completed {
		state = "completed"
		if t.CompletedAt != nil {
			state += " " + t.CompletedAt.Local().Format("2006-01-02 15:04")
		}
	}

	lines := []string{
		title.Render(t.Title),
		"",
		label.Render("id") + t.ID,
		label.Render("state") + state,
		label.Render("priority") + string(t.Priority),
		label.Render("category") + string(t.Category),
	}
	if len(t.Tags) > 0 {
		lines = append(lines, label.Render("tags")+strings.Join(t.Tags, ", "))
	}
	lines = append(lines,
		label.Render("created")+t.CreatedAt.Local().Format("2006-01-02 15:04"),
		label.Render("updated")+t.UpdatedAt.Local().Format("2006-01-02 15:04"),
	)
	if t.Description != "" {
		lines = append(lines, "", t.Description)
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
	f, err := fieldsFromFlags(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("title") {
		title, _ := cmd.Flags().GetString("title")
		f.Title = &title
	}
	if err := f.Validate(false); err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmdContext(cmd)
	t, err := findTask(ctx, a.store, args[0])
	if err != nil {
		return err
	}
	t, err = a.store.Update(ctx, t.ID, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%sUpdated%s %s %s\n", colorGreen, colorReset, shortID(t.ID), t.Title)
	return nil
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmdContext(cmd)
	t, err := findTask(ctx, a.store, args[0])
	if err != nil {
		return err
	}
	t, err = a.store.ToggleComplete(ctx, t.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !t.Completed {
		fmt.Fprintf(out, "%sReopened%s %s %s\n", colorYellow, colorReset, shortID(t.ID), t.Title)
		return nil
	}
	fmt.Fprintf(out, "%sCompleted%s %s %s\n", colorGreen, colorReset, shortID(t.ID), t.Title)

	if !oracle.Configured(a.cfg.Oracle) {
		return nil
	}
	c, err := assist.New(a.oracle).CompletionMessage(ctx, t.Title, t.Description, t.Category)
	if err != nil {
		a.log.WarnCtx("celebration failed", logging.Fields{"id": t.ID, "error": err.Error()})
		return nil
	}
	fmt.Fprintln(out, renderCelebration(c))
	return nil
}

func renderCelebration(c *assist.Celebration) string {
	text := strings.TrimSpace(c.Emoji + " " + c.Message)
	if c.Encouragement != "" {
		text += "\n" + c.Encouragement
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.AdaptiveColor{Light: "#22863a", Dark: "#3fb950"}).
		Padding(0, 1).
		Render(text)
}

func runTaskRm(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmdContext(cmd)
	t, err := findTask(ctx, a.store, args[0])
	if err != nil {
		return err
	}
	if _, err := a.store.Delete(ctx, t.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%sDeleted%s %s %s\n", colorRed, colorReset, shortID(t.ID), t.Title)
	return nil
}

func runTaskExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.store.List(cmdContext(cmd), tasks.Filter{})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := encodeTasks(w, format, list); err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d tasks to %s\n", len(list), output)
	}
	return nil
}

func runTaskImport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		format = formatFromPath(args[0])
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	list, err := decodeTasks(data, format)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := tasks.Import(cmdContext(cmd), a.store, list)
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d tasks\n", n, len(list))
	return err
}

func encodeTasks(w io.Writer, format string, list []tasks.Task) error {
	switch strings.ToLower(format) {
	case "json":
		return printJSON(w, list)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(list); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (supported: json, yaml)", format)
	}
}

func decodeTasks(data []byte, format string) ([]tasks.Task, error) {
	var list []tasks.Task
	switch strings.ToLower(format) {
	case "json":
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decoding json: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown format %q (supported: json, yaml)", format)
	}
	return list, nil
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// fieldsFromFlags reads the shared add/update flags, setting only those passed.
func fieldsFromFlags(cmd *cobra.Command) (tasks.Fields, error) {
	var f tasks.Fields
	flags := cmd.Flags()
	if flags.Changed("description") {
		d, _ := flags.GetString("description")
		f.Description = &d
	}
	if flags.Changed("category") {
		s, _ := flags.GetString("category")
		c, err := parseCategoryFlag(s)
		if err != nil {
			return f, err
		}
		f.Category = &c
	}
	if flags.Changed("priority") {
		s, _ := flags.GetString("priority")
		p, err := parsePriorityFlag(s)
		if err != nil {
			return f, err
		}
		f.Priority = &p
	}
	if flags.Changed("tag") {
		tags, _ := flags.GetStringSlice("tag")
		f.Tags = &tags
	}
	return f, nil
}

func parseCategoryFlag(s string) (tasks.Category, error) {
	c, ok := tasks.ParseCategory(s)
	if !ok {
		return "", fmt.Errorf("unknown category: %s (valid: work, personal, shopping, health, other)", s)
	}
	return c, nil
}

func parsePriorityFlag(s string) (tasks.Priority, error) {
	p, ok := tasks.ParsePriority(s)
	if !ok {
		return "", fmt.Errorf("unknown priority: %s (valid: low, medium, high, urgent)", s)
	}
	return p, nil
}

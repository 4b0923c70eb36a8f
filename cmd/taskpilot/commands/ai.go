package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/marcus/taskpilot/internal/assist"
)

var aiCmd = &cobra.Command{
	Use:   "ai",
	Short: "Ask the assistant about tasks",
	Long:  `Generate, classify, prioritise and plan tasks with the configured oracle.`,
}

var aiGenerateCmd = &cobra.Command{
	Use:   "generate <goal>",
	Short: "Break a goal into tasks",
	Long: `Ask the oracle to break a goal into a handful of concrete tasks.

Use --add to save them to the task list.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAIGenerate,
}

var aiClassifyCmd = &cobra.Command{
	Use:   "classify <title>",
	Short: "Suggest a category and tags",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAIClassify,
}

var aiPriorityCmd = &cobra.Command{
	Use:   "priority <title>",
	Short: "Suggest a priority",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAIPriority,
}

var aiGuideCmd = &cobra.Command{
	Use:   "guide <id>",
	Short: "Show a step-by-step plan for a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runAIGuide,
}

func init() {
	aiGenerateCmd.Flags().Bool("add", false, "Save the generated tasks")
	aiClassifyCmd.Flags().StringP("description", "d", "", "Task description")
	aiPriorityCmd.Flags().StringP("description", "d", "", "Task description")
	aiPriorityCmd.Flags().String("deadline", "", "Deadline, in any form the model will understand")

	for _, c := range []*cobra.Command{aiGenerateCmd, aiClassifyCmd, aiPriorityCmd, aiGuideCmd} {
		c.Flags().Bool("json", false, "Output as JSON")
		aiCmd.AddCommand(c)
	}
	rootCmd.AddCommand(aiCmd)
}

// openAssistant opens the app and fails unless an oracle is configured.
func openAssistant(cmd *cobra.Command) (*app, *assist.Assistant, error) {
	a, err := openApp(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := a.requireOracle(); err != nil {
		_ = a.Close()
		return nil, nil, err
	}
	return a, assist.New(a.oracle), nil
}

func runAIGenerate(cmd *cobra.Command, args []string) error {
	add, _ := cmd.Flags().GetBool("add")
	asJSON, _ := cmd.Flags().GetBool("json")

	a, as, err := openAssistant(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmdContext(cmd)
	generated, err := as.GenerateTasks(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON && !add {
		return printJSON(out, generated)
	}
	for i, g := range generated {
		fmt.Fprintf(out, "%d. %s%s%s [%s/%s]\n", i+1, colorBold, g.Title, colorReset, g.EstimatedCategory, g.EstimatedPriority)
		if g.Description != "" {
			fmt.Fprintf(out, "   %s\n", g.Description)
		}
	}
	if !add {
		return nil
	}

	for _, g := range generated {
		if _, err := a.store.Create(ctx, g.Fields()); err != nil {
			return fmt.Errorf("saving %q: %w", g.Title, err)
		}
	}
	fmt.Fprintf(out, "\n%sAdded %d tasks%s\n", colorGreen, len(generated), colorReset)
	return nil
}

func runAIClassify(cmd *cobra.Command, args []string) error {
	desc, _ := cmd.Flags().GetString("description")
	asJSON, _ := cmd.Flags().GetBool("json")

	a, as, err := openAssistant(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := as.ClassifyTask(cmdContext(cmd), strings.Join(args, " "), desc)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, c)
	}
	fmt.Fprintf(out, "%sCategory:%s %s\n", colorBold, colorReset, c.Category)
	if len(c.Tags) > 0 {
		fmt.Fprintf(out, "%sTags:%s     %s\n", colorBold, colorReset, strings.Join(c.Tags, ", "))
	}
	if c.Reasoning != "" {
		fmt.Fprintf(out, "\n%s\n", c.Reasoning)
	}
	return nil
}

func runAIPriority(cmd *cobra.Command, args []string) error {
	desc, _ := cmd.Flags().GetString("description")
	deadline, _ := cmd.Flags().GetString("deadline")
	asJSON, _ := cmd.Flags().GetBool("json")

	a, as, err := openAssistant(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := as.SuggestPriority(cmdContext(cmd), strings.Join(args, " "), desc, deadline)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, p)
	}
	fmt.Fprintf(out, "%sPriority:%s %s\n", colorBold, colorReset, p.Priority)
	for _, f := range p.UrgencyFactors {
		fmt.Fprintf(out, "  - %s\n", f)
	}
	if p.Reasoning != "" {
		fmt.Fprintf(out, "\n%s\n", p.Reasoning)
	}
	return nil
}

func runAIGuide(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	a, as, err := openAssistant(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmdContext(cmd)
	t, err := findTask(ctx, a.store, args[0])
	if err != nil {
		return err
	}
	g, err := as.ExecutionGuide(ctx, t)
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(cmd.OutOrStdout(), g)
	}
	return renderMarkdown(cmd.OutOrStdout(), g.Markdown(t.Title))
}

// renderMarkdown prints md through glamour, falling back to the raw text.
func renderMarkdown(out io.Writer, md string) error {
	style := glamour.WithAutoStyle()
	if lipgloss.ColorProfile() == termenv.Ascii {
		style = glamour.WithStandardStyle("notty")
	}
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(80))
	if err != nil {
		_, err = io.WriteString(out, md)
		return err
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		_, err = io.WriteString(out, md)
		return err
	}
	_, err = io.WriteString(out, rendered)
	return err
}

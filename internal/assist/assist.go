// Package assist implements the single-shot oracle helpers around a task:
// generating tasks from a goal, classification, priority suggestion,
// execution guides, celebration messages and search query optimization.
package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/marcus/taskpilot/internal/logging"
	"github.com/marcus/taskpilot/internal/oracle"
	"github.com/marcus/taskpilot/internal/tasks"
)

// MaxGeneratedTasks caps GenerateTasks output.
const MaxGeneratedTasks = 7

// searchQueryTokens is the output budget for SearchQuery.
const searchQueryTokens = 100

// Assistant runs the helper prompts against an oracle.
type Assistant struct {
	oracle oracle.Oracle
	log    *logging.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLogger sets the assistant's logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Assistant) { a.log = l }
}

// New creates an Assistant backed by o.
func New(o oracle.Oracle, opts ...Option) *Assistant {
	a := &Assistant{oracle: o}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logging.Component("assist")
	}
	return a
}

// GeneratedTask is a task proposed for a goal. It is not stored.
type GeneratedTask struct {
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	EstimatedCategory tasks.Category `json:"estimatedCategory"`
	EstimatedPriority tasks.Priority `json:"estimatedPriority"`
}

// Fields converts the proposal into create fields.
func (g GeneratedTask) Fields() tasks.Fields {
	c, p := g.EstimatedCategory, g.EstimatedPriority
	return tasks.Fields{
		Title:       tasks.StringPtr(g.Title),
		Description: tasks.StringPtr(g.Description),
		Category:    &c,
		Priority:    &p,
	}
}

// Classification is the suggested category and tags for a task.
type Classification struct {
	Category  tasks.Category `json:"category"`
	Tags      []string       `json:"tags"`
	Reasoning string         `json:"reasoning"`
}

// PrioritySuggestion is the suggested priority for a task.
type PrioritySuggestion struct {
	Priority       tasks.Priority `json:"priority"`
	Reasoning      string         `json:"reasoning"`
	UrgencyFactors []string       `json:"urgencyFactors"`
}

// Step is one step of an execution guide.
type Step struct {
	StepNumber    int    `json:"stepNumber"`
	Instruction   string `json:"instruction"`
	EstimatedTime string `json:"estimatedTime"`
	Tips          string `json:"tips"`
}

// Guide is a step-by-step plan for finishing a task.
type Guide struct {
	Steps              []Step   `json:"steps"`
	TotalEstimatedTime string   `json:"totalEstimatedTime"`
	Prerequisites      []string `json:"prerequisites"`
	SuccessCriteria    string   `json:"successCriteria"`
}

// Celebration is the message shown when a task is completed.
type Celebration struct {
	Message       string `json:"message"`
	Encouragement string `json:"encouragement"`
	Emoji         string `json:"emoji"`
}

// GenerateTasks breaks goal into concrete tasks. Entries without a title are
// dropped; unknown categories and priorities fall back to other and medium.
func (a *Assistant) GenerateTasks(ctx context.Context, goal string) ([]GeneratedTask, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, tasks.Invalid("description", "description is required")
	}

	var raw []json.RawMessage
	if err := a.ask(ctx, "generate", generatePrompt(goal), generateSchema, &raw); err != nil {
		return nil, err
	}

	out := make([]GeneratedTask, 0, len(raw))
	for i, entry := range raw {
		var g struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Category    string `json:"estimatedCategory"`
			Priority    string `json:"estimatedPriority"`
		}
		if err := json.Unmarshal(entry, &g); err != nil {
			a.log.DebugCtx("dropped generated task", logging.Fields{"index": i, "reason": "malformed entry"})
			continue
		}
		title := truncate(strings.TrimSpace(g.Title), tasks.MaxTitleLen)
		if title == "" {
			a.log.DebugCtx("dropped generated task", logging.Fields{"index": i, "reason": "empty title"})
			continue
		}
		out = append(out, GeneratedTask{
			Title:             title,
			Description:       truncate(strings.TrimSpace(g.Description), tasks.MaxDescriptionLen),
			EstimatedCategory: tasks.NormalizeCategory(g.Category),
			EstimatedPriority: tasks.NormalizePriority(g.Priority),
		})
		if len(out) == MaxGeneratedTasks {
			break
		}
	}
	return out, nil
}

// ClassifyTask suggests a category and tags.
func (a *Assistant) ClassifyTask(ctx context.Context, title, description string) (*Classification, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, tasks.Invalid("title", "title is required")
	}

	var r struct {
		Category  string   `json:"category"`
		Tags      []string `json:"tags"`
		Reasoning string   `json:"reasoning"`
	}
	if err := a.ask(ctx, "classify", classifyPrompt(title, description), classifySchema, &r); err != nil {
		return nil, err
	}
	return &Classification{
		Category:  tasks.NormalizeCategory(r.Category),
		Tags:      cleanList(r.Tags),
		Reasoning: strings.TrimSpace(r.Reasoning),
	}, nil
}

// SuggestPriority suggests a priority, optionally considering a deadline.
func (a *Assistant) SuggestPriority(ctx context.Context, title, description, deadline string) (*PrioritySuggestion, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, tasks.Invalid("title", "title is required")
	}

	var r struct {
		Priority       string   `json:"priority"`
		Reasoning      string   `json:"reasoning"`
		UrgencyFactors []string `json:"urgencyFactors"`
	}
	if err := a.ask(ctx, "priority", priorityPrompt(title, description, deadline), prioritySchema, &r); err != nil {
		return nil, err
	}
	return &PrioritySuggestion{
		Priority:       tasks.NormalizePriority(r.Priority),
		Reasoning:      strings.TrimSpace(r.Reasoning),
		UrgencyFactors: cleanList(r.UrgencyFactors),
	}, nil
}

// ExecutionGuide writes a step-by-step plan for t. Steps are renumbered
// from 1 in the order the oracle returned them.
func (a *Assistant) ExecutionGuide(ctx context.Context, t tasks.Task) (*Guide, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return nil, tasks.Invalid("title", "title is required")
	}
	if !t.Category.Valid() {
		t.Category = tasks.CategoryOther
	}
	if !t.Priority.Valid() {
		t.Priority = tasks.PriorityMedium
	}

	var g Guide
	if err := a.ask(ctx, "guide", guidePrompt(t), guideSchema, &g); err != nil {
		return nil, err
	}

	steps := make([]Step, 0, len(g.Steps))
	for _, s := range g.Steps {
		s.Instruction = strings.TrimSpace(s.Instruction)
		if s.Instruction == "" {
			continue
		}
		s.StepNumber = len(steps) + 1
		steps = append(steps, s)
	}
	g.Steps = steps
	g.Prerequisites = cleanList(g.Prerequisites)
	return &g, nil
}

// CompletionMessage writes a short celebration for a finished task.
func (a *Assistant) CompletionMessage(ctx context.Context, title, description string, category tasks.Category) (*Celebration, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, tasks.Invalid("title", "title is required")
	}
	if !category.Valid() {
		category = tasks.CategoryOther
	}

	var c Celebration
	if err := a.ask(ctx, "celebrate", celebratePrompt(title, description, category), celebrateSchema, &c); err != nil {
		return nil, err
	}
	c.Message = strings.TrimSpace(c.Message)
	c.Encouragement = strings.TrimSpace(c.Encouragement)
	c.Emoji = strings.TrimSpace(c.Emoji)
	return &c, nil
}

// SearchQuery turns a task into a short web search query. Any oracle
// failure falls back to the title itself.
func (a *Assistant) SearchQuery(ctx context.Context, title, description string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", tasks.Invalid("title", "title is required")
	}

	o := oracle.WithMaxTokens(a.oracle, searchQueryTokens)
	reply, err := oracle.Call(ctx, o, searchQueryPrompt(title, description))
	if err != nil {
		a.log.WarnCtx("search query fallback", logging.Fields{"error": err.Error()})
		return title, nil
	}

	query := strings.TrimSpace(oracle.StripFences(reply))
	if i := strings.IndexByte(query, '\n'); i >= 0 {
		query = strings.TrimSpace(query[:i])
	}
	query = strings.Trim(query, "\"'「」")
	if query == "" {
		return title, nil
	}
	return query, nil
}

// ask runs one prompt and decodes the reply into v.
func (a *Assistant) ask(ctx context.Context, op, prompt string, schema *oracle.Schema, v any) error {
	reply, err := oracle.Call(ctx, a.oracle, prompt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := oracle.Decode(reply, schema, v); err != nil {
		a.log.WarnCtx("unparseable reply", logging.Fields{"op": op, "error": err.Error(), "reply_len": len(reply)})
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// cleanList trims entries and drops empties and duplicates.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

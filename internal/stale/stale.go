// Package stale finds incomplete tasks nobody has touched for a while and
// asks the oracle for a gentle nudge about them.
package stale

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/marcus/taskpilot/internal/logging"
	"github.com/marcus/taskpilot/internal/oracle"
	"github.com/marcus/taskpilot/internal/tasks"
)

// DefaultThresholdDays is used when no threshold is configured.
const DefaultThresholdDays = 7

const day = 24 * time.Hour

// Task is a task selected as stale.
type Task struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	DaysSinceUpdate int    `json:"daysSinceUpdate"`
}

// Report is the result of one detection run.
type Report struct {
	StaleTasks       []string          `json:"staleTasks"`
	OverallMessage   string            `json:"overallMessage"`
	TaskMessages     map[string]string `json:"taskMessages"`
	ActionSuggestion string            `json:"actionSuggestion"`
}

// Empty reports whether no task was selected.
func (r *Report) Empty() bool {
	return r == nil || len(r.StaleTasks) == 0
}

func emptyReport() *Report {
	return &Report{
		StaleTasks:   []string{},
		TaskMessages: map[string]string{},
	}
}

// Select returns the incomplete tasks whose last touch is at least
// thresholdDays before now. Elapsed time is compared as a duration, so
// 6 days 23 hours does not qualify for a 7 day threshold. Tasks without any
// timestamp are never selected.
func Select(list []tasks.Task, now time.Time, thresholdDays int) []Task {
	if thresholdDays <= 0 {
		thresholdDays = DefaultThresholdDays
	}
	threshold := time.Duration(thresholdDays) * day

	var out []Task
	for _, t := range list {
		if t.Completed || t.LastTouched().IsZero() {
			continue
		}
		elapsed := now.Sub(t.LastTouched())
		if elapsed < threshold {
			continue
		}
		out = append(out, Task{
			ID:              t.ID,
			Title:           t.Title,
			DaysSinceUpdate: int(elapsed / day),
		})
	}
	return out
}

// Detector pairs the deterministic selection with oracle-written messages.
type Detector struct {
	oracle    oracle.Oracle
	threshold int
	log       *logging.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithThreshold sets the number of idle days that makes a task stale.
func WithThreshold(days int) Option {
	return func(d *Detector) {
		if days > 0 {
			d.threshold = days
		}
	}
}

// WithLogger sets the detector's logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Detector) { d.log = l }
}

// NewDetector creates a Detector backed by o.
func NewDetector(o oracle.Oracle, opts ...Option) *Detector {
	d := &Detector{oracle: o, threshold: DefaultThresholdDays}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logging.Component("stale")
	}
	return d
}

// Threshold returns the configured idle days.
func (d *Detector) Threshold() int {
	return d.threshold
}

// Select runs the deterministic pass with the detector's threshold.
func (d *Detector) Select(list []tasks.Task, now time.Time) []Task {
	return Select(list, now, d.threshold)
}

// Detect selects stale tasks and, when there are any, asks the oracle for
// encouragement. The oracle is not called when nothing is stale. Any oracle
// failure is returned as an error with no partial report.
func (d *Detector) Detect(ctx context.Context, list []tasks.Task, now time.Time) (*Report, error) {
	selected := d.Select(list, now)
	if len(selected) == 0 {
		return emptyReport(), nil
	}

	prompt, err := buildPrompt(selected)
	if err != nil {
		return nil, err
	}
	reply, err := oracle.Call(ctx, d.oracle, prompt)
	if err != nil {
		return nil, fmt.Errorf("stale: %w", err)
	}

	var parsed struct {
		OverallMessage   string            `json:"overallMessage"`
		TaskMessages     map[string]string `json:"taskMessages"`
		ActionSuggestion string            `json:"actionSuggestion"`
	}
	if err := oracle.Decode(reply, replySchema, &parsed); err != nil {
		d.log.WarnCtx("unparseable stale reply", logging.Fields{"error": err.Error(), "reply_len": len(reply)})
		return nil, fmt.Errorf("stale: %w", err)
	}

	report := emptyReport()
	for _, t := range selected {
		report.StaleTasks = append(report.StaleTasks, t.ID)
		if msg, ok := parsed.TaskMessages[t.ID]; ok {
			report.TaskMessages[t.ID] = strings.TrimSpace(msg)
		}
	}
	for id := range parsed.TaskMessages {
		if _, ok := report.TaskMessages[id]; !ok {
			d.log.DebugCtx("dropped task message", logging.Fields{"task_id": id, "reason": "not a stale task"})
		}
	}
	report.OverallMessage = strings.TrimSpace(parsed.OverallMessage)
	report.ActionSuggestion = strings.TrimSpace(parsed.ActionSuggestion)

	d.log.InfoCtx("stale tasks detected", logging.Fields{"stale": len(selected), "threshold_days": d.threshold})
	return report, nil
}

var replySchema = oracle.MustCompileSchema("stale", `{
  "type": "object",
  "required": ["overallMessage", "taskMessages", "actionSuggestion"],
  "properties": {
    "overallMessage": {"type": "string"},
    "taskMessages": {"type": "object", "additionalProperties": {"type": "string"}},
    "actionSuggestion": {"type": "string"}
  }
}`)

func buildPrompt(selected []Task) (string, error) {
	data, err := json.MarshalIndent(selected, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding stale tasks: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("You are a kind, encouraging task management assistant. The tasks below have not been touched for a while. Write positive messages that help the user get moving again.\n\n")
	sb.WriteString("Stale tasks:\n")
	sb.Write(data)
	sb.WriteString("\n\nRespond with JSON in exactly this shape:\n")
	sb.WriteString(`{
  "overallMessage": "overall encouragement (2-3 sentences)",
  "taskMessages": {
    "task id": "encouragement specific to that task (1-2 sentences)"
  },
  "actionSuggestion": "one concrete next action (1-2 sentences)"
}`)
	sb.WriteString("\n\nRequirements:\n")
	sb.WriteString("- Never blame the user; keep the tone warm and friendly.\n")
	sb.WriteString("- Guess why each task stalled and include specific advice.\n")
	sb.WriteString("- Suggest starting with a small first step.\n")
	sb.WriteString("- Use only the task ids listed above as taskMessages keys.\n\n")
	sb.WriteString("Return only the JSON.")
	return sb.String(), nil
}

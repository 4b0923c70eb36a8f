package recommend

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/marcus/taskpilot/internal/tasks"
)

type snapshotTask struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    tasks.Category `json:"category"`
	Priority    tasks.Priority `json:"priority"`
	Completed   bool           `json:"completed"`
	CreatedAt   *time.Time     `json:"createdAt"`
	Tags        []string       `json:"tags"`
}

// BuildPrompt renders the task snapshot and the ranking rubric. The output
// depends only on list, so identical snapshots produce identical prompts.
func BuildPrompt(list []tasks.Task) (string, error) {
	snapshot := make([]snapshotTask, len(list))
	for i, t := range list {
		tags := t.Tags
		if tags == nil {
			tags = []string{}
		}
		var created *time.Time
		if !t.CreatedAt.IsZero() {
			at := t.CreatedAt.UTC()
			created = &at
		}
		snapshot[i] = snapshotTask{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Category:    t.Category,
			Priority:    t.Priority,
			Completed:   t.Completed,
			CreatedAt:   created,
			Tags:        tags,
		}
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("You are a task management assistant. Analyze the task list below, detect ordering dependencies between tasks, and recommend what to work on next.\n\n")
	sb.WriteString("Task list:\n")
	sb.Write(data)
	sb.WriteString("\n\nRespond with JSON in exactly this shape:\n")
	sb.WriteString(`{
  "recommendations": [
    {"taskId": "task id", "title": "task title", "score": 0, "reason": "why this task now", "blockedBy": ["task id"]}
  ],
  "dependencies": [
    {"taskId": "task id", "dependsOn": ["task id"], "reasoning": "why the order matters"}
  ],
  "insights": "overall analysis and advice"
}`)
	sb.WriteString("\n\nRules:\n")
	sb.WriteString("1. Dependencies: infer logical ordering from titles and descriptions. A completed task is never a dependency source, but it may appear in dependsOn.\n")
	fmt.Fprintf(&sb, "2. Scoring (0-100): priority weight (urgent=%d, high=%d, medium=%d, low=%d); +40 if unblocked (all dependencies completed); +15 if other tasks depend on it; +10 if it is old; completed tasks score -100 and are excluded.\n",
		tasks.PriorityUrgent.Weight(), tasks.PriorityHigh.Weight(), tasks.PriorityMedium.Weight(), tasks.PriorityLow.Weight())
	fmt.Fprintf(&sb, "3. Return at most %d recommendations, incomplete tasks only, sorted by score descending.\n", DefaultLimit)
	sb.WriteString("4. Use only task ids from the list.\n\n")
	sb.WriteString("Return only the JSON.")
	return sb.String(), nil
}

package assist

import (
	"fmt"
	"strings"

	"github.com/marcus/taskpilot/internal/oracle"
	"github.com/marcus/taskpilot/internal/tasks"
)

const categoryLegend = "Categories: work, personal, shopping, health, other"

var (
	generateSchema = oracle.MustCompileSchema("generate", `{
  "type": "array",
  "items": {"type": "object"}
}`)

	classifySchema = oracle.MustCompileSchema("classify", `{
  "type": "object",
  "required": ["category"],
  "properties": {
    "category": {"type": "string"},
    "tags": {"type": ["array", "null"], "items": {"type": "string"}},
    "reasoning": {"type": "string"}
  }
}`)

	prioritySchema = oracle.MustCompileSchema("priority", `{
  "type": "object",
  "required": ["priority"],
  "properties": {
    "priority": {"type": "string"},
    "reasoning": {"type": "string"},
    "urgencyFactors": {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`)

	guideSchema = oracle.MustCompileSchema("guide", `{
  "type": "object",
  "required": ["steps"],
  "properties": {
    "steps": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "stepNumber": {"type": "number"},
          "instruction": {"type": "string"},
          "estimatedTime": {"type": "string"},
          "tips": {"type": "string"}
        }
      }
    },
    "totalEstimatedTime": {"type": "string"},
    "prerequisites": {"type": ["array", "null"], "items": {"type": "string"}},
    "successCriteria": {"type": "string"}
  }
}`)

	celebrateSchema = oracle.MustCompileSchema("celebrate", `{
  "type": "object",
  "required": ["message"],
  "properties": {
    "message": {"type": "string"},
    "encouragement": {"type": "string"},
    "emoji": {"type": "string"}
  }
}`)
)

func generatePrompt(goal string) string {
	return fmt.Sprintf(`You are a helpful task management assistant. Based on the user's goal, produce a list of 3 to 7 concrete, actionable tasks.

User goal: %q

Respond with a JSON array in exactly this shape:
[
  {
    "title": "task title",
    "description": "short description",
    "estimatedCategory": "category",
    "estimatedPriority": "priority"
  }
]

%s
Priorities: low, medium, high, urgent

Return only the JSON array.`, goal, categoryLegend)
}

func classifyPrompt(title, description string) string {
	return fmt.Sprintf(`Analyze this task and suggest the most suitable category and related tags.

Task title: %q
Task description: %q

%s

Respond with JSON in exactly this shape:
{
  "category": "suggested category",
  "tags": ["tag1", "tag2", "tag3"],
  "reasoning": "short explanation"
}

Return only the JSON.`, title, strings.TrimSpace(description), categoryLegend)
}

func priorityPrompt(title, description, deadline string) string {
	var deadlineLine string
	if d := strings.TrimSpace(deadline); d != "" {
		deadlineLine = "Deadline: " + d + "\n"
	}
	return fmt.Sprintf(`Analyze this task and suggest an appropriate priority.

Task title: %q
Task description: %q
%s
Priority levels:
- urgent: important and needs immediate attention
- high: important and should be handled soon
- medium: should be handled fairly soon
- low: can be done any time

Respond with JSON in exactly this shape:
{
  "priority": "priority level",
  "reasoning": "short explanation of the choice",
  "urgencyFactors": ["factor1", "factor2"]
}

Return only the JSON.`, title, strings.TrimSpace(description), deadlineLine)
}

func guidePrompt(t tasks.Task) string {
	return fmt.Sprintf(`You are a practical task management assistant. Write concrete steps for completing the task below.

Task title: %q
Task description: %q
Category: %s
Priority: %s

Respond with JSON in exactly this shape:
{
  "steps": [
    {
      "stepNumber": 1,
      "instruction": "what to do",
      "estimatedTime": "estimated duration (e.g. 5 min, 30 min, 1 hour)",
      "tips": "a useful hint"
    }
  ],
  "totalEstimatedTime": "total estimated duration",
  "prerequisites": ["prerequisite 1", "prerequisite 2"],
  "successCriteria": "how to tell the task is done"
}

Requirements:
- Break the task into 3 to 7 steps.
- Each step must be concrete and actionable.
- Keep time estimates realistic.

Return only the JSON.`, t.Title, t.Description, t.Category, t.Priority)
}

func celebratePrompt(title, description string, category tasks.Category) string {
	return fmt.Sprintf(`You are an upbeat, motivating assistant. The user just completed a task. Write a heartfelt congratulation.

Task title: %q
Task description: %q
Category: %s

Respond with JSON in exactly this shape:
{
  "message": "short congratulation (1-2 sentences)",
  "encouragement": "motivation for what comes next (1-2 sentences)",
  "emoji": "exactly one fitting emoji"
}

Return only the JSON.`, title, strings.TrimSpace(description), category)
}

func searchQueryPrompt(title, description string) string {
	return fmt.Sprintf(`You are a search query optimization expert. From the task below, write the best web search query for finding relevant information.

Task title: %q
Task description: %q

Requirements:
- Keep only the essential keywords.
- Use 1 to 5 words.

Return only the search query. No JSON or other formatting.`, title, strings.TrimSpace(description))
}

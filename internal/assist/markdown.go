package assist

import (
	"fmt"
	"strings"
)

// Markdown renders the guide for terminal display.
func (g *Guide) Markdown(title string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	if g.TotalEstimatedTime != "" {
		fmt.Fprintf(&sb, "**Estimated time:** %s\n\n", g.TotalEstimatedTime)
	}
	if len(g.Prerequisites) > 0 {
		sb.WriteString("## Prerequisites\n\n")
		for _, p := range g.Prerequisites {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("## Steps\n\n")
	for _, s := range g.Steps {
		fmt.Fprintf(&sb, "%d. %s", s.StepNumber, s.Instruction)
		if s.EstimatedTime != "" {
			fmt.Fprintf(&sb, " _(%s)_", s.EstimatedTime)
		}
		sb.WriteString("\n")
		if s.Tips != "" {
			fmt.Fprintf(&sb, "   > %s\n", s.Tips)
		}
	}
	if g.SuccessCriteria != "" {
		fmt.Fprintf(&sb, "\n## Done when\n\n%s\n", g.SuccessCriteria)
	}
	return sb.String()
}

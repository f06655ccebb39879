package chat

import (
	"fmt"
	"strings"

	"github.com/taskpilot/internal/tools"
	"github.com/taskpilot/pkg/models"
)

// formatReply renders tool outcomes as a natural-language assistant reply.
// A disambiguation result becomes a clarifying question; failure text from a
// stopped chain is appended after whatever succeeded.
func formatReply(results []*tools.Result, failure string) string {
	var parts []string

	for _, result := range results {
		if result.NeedsClarification() {
			parts = append(parts, formatDisambiguation(result))
			continue
		}
		parts = append(parts, formatResult(result))
	}

	if failure != "" {
		parts = append(parts, failure)
	}

	if len(parts) == 0 {
		return FallbackReply
	}
	return strings.Join(parts, "\n\n")
}

func formatResult(result *tools.Result) string {
	if result.Tool != tools.ToolListTasks || len(result.Tasks) == 0 {
		return result.Summary
	}

	var b strings.Builder
	b.WriteString(result.Summary)
	for _, task := range result.Tasks {
		b.WriteString("\n- ")
		b.WriteString(describeTask(task))
	}
	return b.String()
}

func formatDisambiguation(result *tools.Result) string {
	var b strings.Builder
	b.WriteString("I found more than one matching task. Which one did you mean?")
	for i, task := range result.Candidates {
		b.WriteString(fmt.Sprintf("\n%d. %s", i+1, describeTask(task)))
	}
	return b.String()
}

func describeTask(task models.Task) string {
	var b strings.Builder
	b.WriteString(task.Title)
	b.WriteString(" [")
	b.WriteString(string(task.Status))
	b.WriteString(", ")
	b.WriteString(string(task.Priority))
	if task.DueDate != nil {
		b.WriteString(", due ")
		b.WriteString(task.DueDate.Format("2006-01-02"))
	}
	b.WriteString("]")
	return b.String()
}

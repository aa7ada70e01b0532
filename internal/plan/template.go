package plan

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// newPlanTemplate is the markdown skeleton written by "plan create".
const newPlanTemplate = `# {{.Title}}

completion_promise: {{.CompletionPhrase}}

## Overview

Describe the goal of this plan. The loop re-reads this file on every
iteration, so edits made here between iterations take effect immediately.

## Tasks

- [ ] **Example task**
  Replace this with the first real task. Indented lines become the
  task description shown to the agent.
`

// TemplateData holds the fields rendered into the new-plan skeleton.
type TemplateData struct {
	Title            string
	CompletionPhrase string
}

// RenderTemplate renders the new-plan markdown skeleton.
func RenderTemplate(data TemplateData) (string, error) {
	if data.Title == "" {
		data.Title = "Plan"
	}
	if data.CompletionPhrase == "" {
		data.CompletionPhrase = "ALL_TASKS_DONE"
	}

	tmpl, err := template.New("new-plan").Parse(newPlanTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse plan template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render plan template: %w", err)
	}
	return buf.String(), nil
}

// Render serializes a Document back to templated markdown. Re-parsing
// the result preserves task count, titles, statuses, and the completion
// phrase. Render is used when a plan is built programmatically; edits to
// an existing file always go through SetStatus instead, which keeps
// unrecognized content intact.
func Render(doc *Document) string {
	var sb strings.Builder

	title := doc.Title
	if title == "" {
		title = "Plan"
	}
	sb.WriteString("# " + title + "\n\n")

	if doc.CompletionPhrase != "" {
		sb.WriteString("completion_promise: " + doc.CompletionPhrase + "\n\n")
	}

	if doc.Overview != "" {
		sb.WriteString("## Overview\n\n")
		sb.WriteString(doc.Overview)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Tasks\n\n")
	for _, t := range doc.Tasks {
		box := "[ ]"
		if t.Status == StatusCompleted {
			box = "[x]"
		}
		sb.WriteString(fmt.Sprintf("- %s **%s**\n", box, t.Title))
		if t.Description != "" {
			for _, line := range strings.Split(t.Description, "\n") {
				sb.WriteString("  " + line + "\n")
			}
		}
	}

	return sb.String()
}

package loop

import (
	"fmt"
	"strings"

	"github.com/planloop/planloop/internal/plan"
)

// PromptForm selects between the full and compact task prompt.
type PromptForm int

const (
	// PromptFull carries the plan overview and working rules. Used when
	// a session first picks up a task.
	PromptFull PromptForm = iota

	// PromptCompact carries just enough to continue: used for loop
	// advances where the session already has the plan context.
	PromptCompact
)

// taskPromptTemplate is the full-form instructional text for one task.
const taskPromptTemplate = `## Task %d of %d: %s
%s
## Plan: %s
%s
## Instructions

- Work only on this task. Leave the other checkboxes alone.
- The plan lives at %s; the loop marks tasks done and commits for you.
- When the task is fully complete, finish your turn. Going idle is the
  signal that advances the loop.
%s`

// compactPromptTemplate is the short continuation form sent on advances.
const compactPromptTemplate = `Continue with task %d of %d: %s
%s
When it is fully complete, finish your turn and the loop will mark it
done, commit, and advance.`

// freeformPromptTemplate wraps a freeform prompt with the completion
// promise contract.
const freeformPromptTemplate = `%s

## Completion Promise

When the work is FULLY complete, output exactly:

<promise>%s</promise>

Only output the promise when everything is done; otherwise keep working.`

// PromptBuilder renders the instructional text shown to the external
// agent. It consumes a plan document and task and produces text only.
type PromptBuilder struct {
	// PlanPath is mentioned in full-form prompts so the agent knows
	// which file the loop manages.
	PlanPath string

	// ToolHint is an optional one-line note about the project's build
	// tooling, appended to full-form prompts.
	ToolHint string
}

// TaskPrompt renders the prompt for the task at the given 1-based
// ordinal.
func (b *PromptBuilder) TaskPrompt(doc *plan.Document, task plan.Task, ordinal int, form PromptForm) string {
	desc := ""
	if task.Description != "" {
		desc = "\n" + task.Description + "\n"
	}

	if form == PromptCompact {
		return fmt.Sprintf(compactPromptTemplate, ordinal, len(doc.Tasks), task.Title, desc)
	}

	title := doc.Title
	if title == "" {
		title = "(untitled)"
	}
	overview := ""
	if doc.Overview != "" {
		overview = "\n" + doc.Overview + "\n"
	}
	hint := ""
	if b.ToolHint != "" {
		hint = "- " + b.ToolHint + "\n"
	}

	return fmt.Sprintf(taskPromptTemplate,
		ordinal, len(doc.Tasks), task.Title, desc, title, overview, b.planPath(), hint)
}

// FreeformPrompt composes the initial freeform prompt, embedding the
// completion promise contract when a phrase is set.
func (b *PromptBuilder) FreeformPrompt(prompt, phrase string) string {
	if phrase == "" {
		return prompt
	}
	return fmt.Sprintf(freeformPromptTemplate, strings.TrimRight(prompt, "\n"), phrase)
}

// IterationBanner prefixes the stored freeform prompt with the current
// iteration count for re-injection. The prompt itself is sent verbatim.
func IterationBanner(iteration, maxIterations int, prompt string) string {
	bound := "unbounded"
	if maxIterations > 0 {
		bound = fmt.Sprintf("of %d", maxIterations)
	}
	return fmt.Sprintf("[loop iteration %d %s]\n\n%s", iteration, bound, prompt)
}

func (b *PromptBuilder) planPath() string {
	if b.PlanPath == "" {
		return plan.DefaultPath
	}
	return b.PlanPath
}

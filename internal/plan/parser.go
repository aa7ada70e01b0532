package plan

import (
	"regexp"
	"strings"
)

// Line classification patterns. The parser is a single top-to-bottom
// scan; each line matches at most one rule, checked in priority order.
var (
	// titleRe matches a level-1 heading: "# Title" but not "## Title".
	titleRe = regexp.MustCompile(`^#\s+(.+)$`)

	// promiseRe matches a completion phrase declaration. The key accepts
	// underscore, hyphen, and camel spellings, case-insensitively:
	// completion_promise, completion-promise, completionPromise, etc.
	promiseRe = regexp.MustCompile(`(?i)^\s*completion[_\- ]?promise\s*:\s*(.*)$`)

	// overviewHeadingRe opens overview-capture mode.
	overviewHeadingRe = regexp.MustCompile(`(?i)^##\s+Overview\s*$`)

	// tasksHeadingRe closes overview-capture mode.
	tasksHeadingRe = regexp.MustCompile(`(?i)^##\s+Tasks\s*$`)

	// checkboxRe matches a task line: an optional numbered-list marker,
	// a dash, then a checkbox. Group 1 is the bracket content, group 2
	// the remaining text.
	checkboxRe = regexp.MustCompile(`^\s*(?:\d+[.)]\s+)?-\s*\[([ xX])\]\s*(.*)$`)

	// descriptionRe matches a non-blank line indented by two or more
	// spaces, which continues the open task's description.
	descriptionRe = regexp.MustCompile(`^\s{2,}\S`)
)

// Parse converts raw markdown text into a Document. It never fails:
// malformed input degrades to empty fields rather than an error.
func Parse(rawText string) *Document {
	doc := &Document{RawText: rawText}

	var (
		overviewOpen  bool
		overviewLines []string

		// A checkbox line opens a task; its description accumulates until
		// the next checkbox or end of input.
		open     *Task
		openDesc []string
	)

	flushTask := func() {
		if open == nil {
			return
		}
		open.Description = strings.Join(openDesc, "\n")
		doc.Tasks = append(doc.Tasks, *open)
		open = nil
		openDesc = nil
	}

	lines := strings.Split(rawText, "\n")
	for i, line := range lines {
		if doc.Title == "" {
			if m := titleRe.FindStringSubmatch(line); m != nil {
				doc.Title = strings.TrimSpace(m[1])
				continue
			}
		}

		if m := promiseRe.FindStringSubmatch(line); m != nil {
			// Last declaration wins.
			doc.CompletionPhrase = strings.TrimSpace(stripQuotes(strings.TrimSpace(m[1])))
			continue
		}

		trimmed := strings.TrimSpace(line)
		if overviewHeadingRe.MatchString(trimmed) {
			overviewOpen = true
			continue
		}
		if tasksHeadingRe.MatchString(trimmed) {
			overviewOpen = false
			continue
		}

		// Checkbox detection takes precedence over overview capture so a
		// task line is never swallowed as overview text.
		if m := checkboxRe.FindStringSubmatch(line); m != nil {
			flushTask()
			status := StatusPending
			if m[1] == "x" || m[1] == "X" {
				status = StatusCompleted
			}
			ordinal := len(doc.Tasks) + 1
			open = &Task{
				ID:         TaskID(ordinal),
				Title:      stripBold(strings.TrimSpace(m[2])),
				Status:     status,
				LineNumber: i + 1,
			}
			continue
		}

		if open != nil && descriptionRe.MatchString(line) {
			openDesc = append(openDesc, trimmed)
			continue
		}

		if overviewOpen && trimmed != "" {
			overviewLines = append(overviewLines, line)
			continue
		}

		// Anything else is opaque pass-through text.
	}
	flushTask()

	doc.Overview = strings.TrimSpace(strings.Join(overviewLines, "\n"))
	return doc
}

// stripQuotes removes one layer of surrounding single or double quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// stripBold removes surrounding **...** markers from a task title.
func stripBold(s string) string {
	if strings.HasPrefix(s, "**") && strings.HasSuffix(s, "**") && len(s) > 4 {
		return strings.TrimSpace(s[2 : len(s)-2])
	}
	return s
}

package plan

import (
	"regexp"
	"strings"
)

// checkboxTokenRe matches the checkbox token itself within a task line.
// Only this token is rewritten; every other byte on the line survives.
var checkboxTokenRe = regexp.MustCompile(`\[[ xX]\]`)

// SetStatus returns a copy of rawText with the checkbox of the task
// identified by taskID rewritten to reflect newStatus. The task is
// located by its parse-time line number in knownTasks; an unknown ID is
// a no-op, not an error. All lines other than the targeted one are
// byte-identical to the input, which is what keeps re-parsing the
// result equivalent to the original document plus the one status change.
func SetStatus(rawText, taskID string, knownTasks []Task, newStatus TaskStatus) string {
	var target *Task
	for i := range knownTasks {
		if knownTasks[i].ID == taskID {
			target = &knownTasks[i]
			break
		}
	}
	if target == nil {
		return rawText
	}

	lines := strings.Split(rawText, "\n")
	idx := target.LineNumber - 1
	if idx < 0 || idx >= len(lines) {
		return rawText
	}

	token := "[ ]"
	if newStatus == StatusCompleted {
		token = "[x]"
	}

	replaced := false
	lines[idx] = checkboxTokenRe.ReplaceAllStringFunc(lines[idx], func(m string) string {
		if replaced {
			return m
		}
		replaced = true
		return token
	})

	return strings.Join(lines, "\n")
}

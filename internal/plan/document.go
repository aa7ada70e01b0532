// Package plan provides the markdown plan document model, a tolerant
// line-oriented parser, and a position-anchored mutator. The parser and
// mutator form a lossless round-trip pair: unrecognized lines are opaque
// pass-through text, and status changes rewrite exactly one checkbox
// token on a line recorded at parse time.
package plan

import "fmt"

// TaskStatus represents the lifecycle state of a single plan task.
type TaskStatus string

const (
	// StatusPending indicates the task has not been started.
	StatusPending TaskStatus = "pending"

	// StatusInProgress indicates the task is currently assigned to a session.
	StatusInProgress TaskStatus = "in_progress"

	// StatusCompleted indicates the task's checkbox is checked.
	StatusCompleted TaskStatus = "completed"

	// StatusSkipped indicates the task was deliberately passed over.
	StatusSkipped TaskStatus = "skipped"
)

// Task is one checkbox item in a plan.
type Task struct {
	// ID is the stable "task-N" ordinal identifier assigned at parse time.
	ID string `json:"id"`

	// Title is the checkbox text with surrounding bold markers stripped.
	Title string `json:"title"`

	// Description holds the indented lines directly below the checkbox,
	// trimmed and newline-joined.
	Description string `json:"description,omitempty"`

	// Status is the task's current state.
	Status TaskStatus `json:"status"`

	// LineNumber is the 1-based position of the checkbox line in the raw
	// document. It is the sole anchor used to rewrite status without
	// reparsing unrelated text, and is never recomputed by mutation.
	LineNumber int `json:"line_number"`
}

// IsCompleted returns true if the task's checkbox is checked.
func (t Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// Document is the in-memory representation of a parsed plan.
type Document struct {
	// Title is the first level-1 heading in the document.
	Title string `json:"title"`

	// Overview is the newline-joined text of the Overview section.
	Overview string `json:"overview,omitempty"`

	// Tasks preserves document order. Ordinals are 1-based and equal to
	// slice position + 1.
	Tasks []Task `json:"tasks"`

	// CompletionPhrase is the declared completion promise, if any.
	CompletionPhrase string `json:"completion_phrase,omitempty"`

	// RawText is the exact source the document was parsed from. It is
	// used only for safe mutation and is never mutated in place.
	RawText string `json:"-"`
}

// TaskByID returns the task with the given ID, or false if none matches.
func (d *Document) TaskByID(id string) (Task, bool) {
	for _, t := range d.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// FirstIncomplete returns the first task in document order whose status
// is not completed, with its 1-based ordinal, or false if every task is
// completed. A user may reorder tasks or re-open an earlier one between
// iterations, so this scans from the top rather than resuming from a
// remembered position.
func (d *Document) FirstIncomplete() (Task, int, bool) {
	for i, t := range d.Tasks {
		if t.Status != StatusCompleted {
			return t, i + 1, true
		}
	}
	return Task{}, 0, false
}

// AllCompleted returns true if no task has a non-completed status.
// An empty task list counts as completed: there is nothing left to do.
func (d *Document) AllCompleted() bool {
	for _, t := range d.Tasks {
		if t.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// CountByStatus returns the number of tasks with the given status.
func (d *Document) CountByStatus(status TaskStatus) int {
	n := 0
	for _, t := range d.Tasks {
		if t.Status == status {
			n++
		}
	}
	return n
}

// TaskID formats the stable identifier for a 1-based ordinal.
func TaskID(ordinal int) string {
	return fmt.Sprintf("task-%d", ordinal)
}

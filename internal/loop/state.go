// Package loop implements the agent work loop: a persisted LoopState, a
// store that guards its read-modify-write cycle with an advisory file
// lock, and the controller state machine driven by the host's
// session-idle notifications. The core transition logic is a pure
// function over (state, plan document, event); the controller is a thin
// shim that performs the side effects the decision calls for.
package loop

import (
	"time"

	"github.com/google/uuid"
)

// Mode distinguishes the loop variants. All modes share the iteration
// and limit bookkeeping; they differ only in how an idle notification
// advances them.
type Mode string

const (
	// ModePlanLoop advances through the plan's pending tasks in document
	// order, one task per iteration.
	ModePlanLoop Mode = "plan-loop"

	// ModeFreeformLoop re-sends the same original prompt verbatim every
	// iteration, with no plan awareness. Retained for compatibility.
	ModeFreeformLoop Mode = "freeform-loop"

	// ModeSingleTask runs exactly one task and stops, looping or
	// committing nothing.
	ModeSingleTask Mode = "single-task"
)

// State is the persisted record of an active loop. At most one State
// may exist per working directory; it is the system's single
// concurrency guard.
type State struct {
	// ID identifies this loop across log entries and status output.
	ID string `json:"id"`

	// Active is false only transiently; an inactive state is treated as
	// absent.
	Active bool `json:"active"`

	// Mode selects the loop variant.
	Mode Mode `json:"mode"`

	// Iteration is the 1-based count of advances so far.
	Iteration int `json:"iteration"`

	// MaxIterations bounds the loop; 0 means unbounded.
	MaxIterations int `json:"max_iterations"`

	// CompletionPhrase, when set, lets the agent stop a freeform loop by
	// emitting the phrase in a <promise> span.
	CompletionPhrase string `json:"completion_phrase,omitempty"`

	// SessionID is the host session the loop drives. May be empty until
	// the first idle notification resolves it.
	SessionID string `json:"session_id,omitempty"`

	// StartedAt is when the loop was started.
	StartedAt time.Time `json:"started_at"`

	// PlanPath is the plan file driving a plan loop or single task.
	PlanPath string `json:"plan_path,omitempty"`

	// Prompt is the original freeform prompt, re-sent verbatim each
	// iteration in freeform mode.
	Prompt string `json:"prompt,omitempty"`

	// CurrentTaskID and CurrentTaskOrdinal record the task assigned to
	// the session for the in-flight iteration.
	CurrentTaskID      string `json:"current_task_id,omitempty"`
	CurrentTaskOrdinal int    `json:"current_task_ordinal,omitempty"`
}

// NewState creates an active State in the given mode, starting at
// iteration 1.
func NewState(mode Mode) *State {
	return &State{
		ID:        uuid.NewString(),
		Active:    true,
		Mode:      mode,
		Iteration: 1,
		StartedAt: time.Now(),
	}
}

// HasTask returns true if a current task is recorded.
func (s *State) HasTask() bool {
	return s.CurrentTaskID != ""
}

// LimitReached returns true if a nonzero iteration bound has been hit.
func (s *State) LimitReached() bool {
	return s.MaxIterations > 0 && s.Iteration >= s.MaxIterations
}

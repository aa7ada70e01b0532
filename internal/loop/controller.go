package loop

import (
	"context"
	"fmt"

	"github.com/planloop/planloop/internal/git"
	"github.com/planloop/planloop/internal/host"
	"github.com/planloop/planloop/internal/logging"
	"github.com/planloop/planloop/internal/plan"
	"github.com/planloop/planloop/internal/promise"
)

// freeformLookback is how many recent assistant messages a freeform
// loop scans for the completion promise.
const freeformLookback = 5

// Event is one session-idle notification from the host.
type Event struct {
	// SessionID identifies the session that went idle. May be empty;
	// the stored state's session is used as a fallback.
	SessionID string

	// RecentOutput optionally carries the session's last assistant
	// output. When present it is scanned for the completion promise
	// before any history fetch.
	RecentOutput string
}

// ActionKind tags the decision a transition produced.
type ActionKind string

const (
	// ActionNoOp means the event required no state change.
	ActionNoOp ActionKind = "noop"

	// ActionSendPrompt means the loop advances and a prompt must be
	// re-injected into the session.
	ActionSendPrompt ActionKind = "send-prompt"

	// ActionStop means the loop reached a terminal transition and the
	// state must be cleared.
	ActionStop ActionKind = "stop"
)

// StopReason qualifies an ActionStop.
type StopReason string

const (
	// StopSuccess: every plan task is completed, or the completion
	// promise was found.
	StopSuccess StopReason = "success"

	// StopLimit: the iteration bound was reached with work remaining.
	StopLimit StopReason = "limit"

	// StopCancelled: the user cancelled the loop.
	StopCancelled StopReason = "cancelled"
)

// Action is the tagged outcome of a transition decision.
type Action struct {
	Kind    ActionKind
	Reason  StopReason
	Message string

	// Task and Ordinal carry the next assignment for ActionSendPrompt.
	Task    plan.Task
	Ordinal int
}

// DecidePlan is the pure transition function for a plan loop. It runs
// against the freshly re-parsed document, after the previous task has
// been marked complete, and decides whether to stop or advance. It
// never performs side effects; the returned state is nil on stop.
func DecidePlan(st *State, doc *plan.Document) (*State, Action) {
	if doc.AllCompleted() {
		return nil, Action{
			Kind:    ActionStop,
			Reason:  StopSuccess,
			Message: fmt.Sprintf("Plan complete: all %d tasks done after %d iterations", len(doc.Tasks), st.Iteration),
		}
	}

	if st.LimitReached() {
		return nil, Action{
			Kind:    ActionStop,
			Reason:  StopLimit,
			Message: fmt.Sprintf("Iteration limit reached (%d); pending tasks remain", st.MaxIterations),
		}
	}

	// The next assignment is the first non-completed task in document
	// order, not the next ordinal: the user may have reordered tasks or
	// re-opened an earlier one.
	task, ordinal, _ := doc.FirstIncomplete()

	next := *st
	if st.HasTask() {
		next.Iteration++
	}
	next.CurrentTaskID = task.ID
	next.CurrentTaskOrdinal = ordinal

	return &next, Action{Kind: ActionSendPrompt, Task: task, Ordinal: ordinal}
}

// DecideFreeform is the pure transition function for a freeform loop.
func DecideFreeform(st *State, promiseFound bool) (*State, Action) {
	if promiseFound {
		return nil, Action{
			Kind:    ActionStop,
			Reason:  StopSuccess,
			Message: fmt.Sprintf("Completion promise found after %d iterations", st.Iteration),
		}
	}

	if st.LimitReached() {
		return nil, Action{
			Kind:    ActionStop,
			Reason:  StopLimit,
			Message: fmt.Sprintf("Iteration limit reached (%d)", st.MaxIterations),
		}
	}

	next := *st
	next.Iteration++
	return &next, Action{Kind: ActionSendPrompt}
}

// TaskCommitter creates the per-task commits the loop requests.
type TaskCommitter interface {
	CommitTask(ordinal int, title string) (git.Result, error)
}

// Controller drives the loop from host idle notifications. Every state
// mutation runs under the store's advisory lock; each notification is
// handled to completion before the next.
type Controller struct {
	store     *Store
	builder   *PromptBuilder
	client    host.SessionClient
	notifier  host.Notifier
	committer TaskCommitter
	logger    *logging.Logger
}

// NewController creates a Controller. notifier and committer may be nil;
// a nil logger is replaced with a no-op one.
func NewController(store *Store, builder *PromptBuilder, client host.SessionClient, notifier host.Notifier, committer TaskCommitter, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Controller{
		store:     store,
		builder:   builder,
		client:    client,
		notifier:  notifier,
		committer: committer,
		logger:    logger,
	}
}

// StartOptions configures a plan loop start.
type StartOptions struct {
	PlanPath      string
	MaxIterations int
	SessionID     string
}

// StartPlanLoop begins a plan loop. It is rejected with ErrLoopActive
// if a loop already exists; the existing state is left untouched. When
// a session is known up front the first task is assigned and its
// full-form prompt injected immediately; otherwise the loop waits for
// the first idle notification to resolve a session.
func (c *Controller) StartPlanLoop(ctx context.Context, opts StartOptions) error {
	return c.store.WithLock(func() error {
		if existing, err := c.store.Load(); err != nil {
			return err
		} else if existing != nil {
			return ErrLoopActive
		}

		doc, err := plan.Load(opts.PlanPath)
		if err != nil {
			return err
		}
		task, ordinal, ok := doc.FirstIncomplete()
		if !ok {
			return fmt.Errorf("nothing to do: all %d tasks are already completed", len(doc.Tasks))
		}

		st := NewState(ModePlanLoop)
		st.PlanPath = opts.PlanPath
		st.MaxIterations = opts.MaxIterations
		st.SessionID = opts.SessionID

		if opts.SessionID != "" {
			st.CurrentTaskID = task.ID
			st.CurrentTaskOrdinal = ordinal
		}
		if err := c.store.Save(st); err != nil {
			return err
		}

		log := c.logger.WithLoop(st.ID)
		if opts.SessionID == "" {
			log.Info("plan loop started; waiting for first idle notification")
			return nil
		}

		prompt := c.builder.TaskPrompt(doc, task, ordinal, PromptFull)
		if err := c.client.InjectPrompt(ctx, opts.SessionID, prompt); err != nil {
			log.Warn("initial prompt injection failed; loop stays active", "error", err)
		}
		log.Info("plan loop started", "task", task.ID, "max_iterations", opts.MaxIterations)
		return nil
	})
}

// StartSingleTask runs exactly one task: a degenerate one-iteration
// loop with no committing.
func (c *Controller) StartSingleTask(ctx context.Context, planPath, selector, sessionID string) error {
	return c.store.WithLock(func() error {
		if existing, err := c.store.Load(); err != nil {
			return err
		} else if existing != nil {
			return ErrLoopActive
		}

		doc, err := plan.Load(planPath)
		if err != nil {
			return err
		}
		task, err := doc.Select(selector)
		if err != nil {
			return err
		}
		ordinal := 0
		for i, t := range doc.Tasks {
			if t.ID == task.ID {
				ordinal = i + 1
			}
		}

		st := NewState(ModeSingleTask)
		st.PlanPath = planPath
		st.SessionID = sessionID
		st.CurrentTaskID = task.ID
		st.CurrentTaskOrdinal = ordinal
		if err := c.store.Save(st); err != nil {
			return err
		}

		log := c.logger.WithLoop(st.ID).WithTask(task.ID)
		if sessionID == "" {
			log.Info("single task staged; waiting for idle notification")
			return nil
		}

		prompt := c.builder.TaskPrompt(doc, task, ordinal, PromptFull)
		if err := c.client.InjectPrompt(ctx, sessionID, prompt); err != nil {
			log.Warn("prompt injection failed", "error", err)
		}
		log.Info("single task started")
		return nil
	})
}

// StartFreeform begins a legacy freeform loop that re-sends one prompt
// verbatim every iteration. The completion promise contract is folded
// into the stored prompt so every re-send carries it.
func (c *Controller) StartFreeform(ctx context.Context, prompt, phrase string, maxIterations int, sessionID string) error {
	return c.store.WithLock(func() error {
		if existing, err := c.store.Load(); err != nil {
			return err
		} else if existing != nil {
			return ErrLoopActive
		}
		if prompt == "" {
			return fmt.Errorf("a freeform loop needs a prompt")
		}

		st := NewState(ModeFreeformLoop)
		st.Prompt = c.builder.FreeformPrompt(prompt, phrase)
		st.CompletionPhrase = phrase
		st.MaxIterations = maxIterations
		st.SessionID = sessionID
		if err := c.store.Save(st); err != nil {
			return err
		}

		log := c.logger.WithLoop(st.ID)
		if sessionID == "" {
			log.Info("freeform loop started; waiting for first idle notification")
			return nil
		}

		text := IterationBanner(st.Iteration, st.MaxIterations, st.Prompt)
		if err := c.client.InjectPrompt(ctx, sessionID, text); err != nil {
			log.Warn("initial prompt injection failed; loop stays active", "error", err)
		}
		log.Info("freeform loop started", "max_iterations", maxIterations)
		return nil
	})
}

// Cancel deletes the loop state unconditionally and returns the
// iteration count at cancellation time.
func (c *Controller) Cancel() (int, error) {
	var iterations int
	err := c.store.WithLock(func() error {
		st, err := c.store.Load()
		if err != nil {
			return err
		}
		if st == nil {
			return ErrNoActiveLoop
		}
		iterations = st.Iteration
		c.logger.WithLoop(st.ID).Info("loop cancelled", "iteration", iterations)
		return c.store.Clear()
	})
	return iterations, err
}

// Status returns the current state, or nil when the loop is Idle.
func (c *Controller) Status() (*State, error) {
	return c.store.Load()
}

// HandleSessionIdle processes one session-idle notification. It never
// returns an error for conditions the loop can absorb: recoverable
// failures are logged and the state transitions exactly as it would
// have on success.
func (c *Controller) HandleSessionIdle(ctx context.Context, ev Event) error {
	return c.store.WithLock(func() error {
		st, err := c.store.Load()
		if err != nil {
			return err
		}
		if st == nil {
			c.logger.Debug("idle notification with no active loop; ignoring")
			return nil
		}

		log := c.logger.WithLoop(st.ID)

		sessionID := ev.SessionID
		if sessionID == "" {
			sessionID = st.SessionID
		}
		if sessionID == "" {
			// A recoverable stall, not a fatal error: a later event may
			// carry a session identifier.
			log.Warn("idle notification with no resolvable session; ignoring")
			return nil
		}
		st.SessionID = sessionID

		switch st.Mode {
		case ModeSingleTask:
			return c.handleSingleTask(st, log)
		case ModeFreeformLoop:
			return c.handleFreeform(ctx, st, ev, log)
		default:
			return c.handlePlanLoop(ctx, st, log)
		}
	})
}

// handleSingleTask finishes a single-task run: mark the task complete,
// then clear the state unconditionally. A marking failure is logged but
// never leaves the loop stuck, and no commit is requested.
func (c *Controller) handleSingleTask(st *State, log *logging.Logger) error {
	if st.HasTask() {
		if _, err := c.markCurrentComplete(st); err != nil {
			log.Error("failed to mark task complete", "task", st.CurrentTaskID, "error", err)
		} else {
			c.notify(fmt.Sprintf("Task %d complete", st.CurrentTaskOrdinal), "success")
		}
	}
	return c.store.Clear()
}

// handlePlanLoop runs one plan-loop transition: mark and commit the
// finished task, re-parse the plan from disk, then stop or advance.
func (c *Controller) handlePlanLoop(ctx context.Context, st *State, log *logging.Logger) error {
	if st.HasTask() {
		title, err := c.markCurrentComplete(st)
		if err != nil {
			log.Error("failed to mark task complete", "task", st.CurrentTaskID, "error", err)
		} else if c.committer != nil {
			// Commit failure never blocks progression: the work is in the
			// tree and the next iteration matters more than the commit.
			res, err := c.committer.CommitTask(st.CurrentTaskOrdinal, title)
			switch {
			case err != nil:
				log.Warn("commit failed; continuing", "task", st.CurrentTaskID, "error", err)
			case res.Skipped:
				log.Info("commit skipped: no staged changes", "task", st.CurrentTaskID)
			default:
				log.Info("task committed", "task", st.CurrentTaskID, "subject", res.Subject)
			}
		}
	}

	// Fresh read, not the in-memory copy: the user may have edited the
	// plan since the last iteration.
	doc, err := plan.Load(st.PlanPath)
	if err != nil {
		log.Error("plan unreadable during active loop; stopping", "path", st.PlanPath, "error", err)
		return c.store.Clear()
	}

	next, action := DecidePlan(st, doc)
	switch action.Kind {
	case ActionStop:
		variant := "success"
		if action.Reason != StopSuccess {
			variant = "warning"
		}
		c.notify(action.Message, variant)
		log.Info("loop stopped", "reason", string(action.Reason), "iteration", st.Iteration)
		return c.store.Clear()

	case ActionSendPrompt:
		if err := c.store.Save(next); err != nil {
			return err
		}
		prompt := c.builder.TaskPrompt(doc, action.Task, action.Ordinal, PromptCompact)
		if err := c.client.InjectPrompt(ctx, next.SessionID, prompt); err != nil {
			// State stays active; the next idle notification retries from
			// the same task since it is still the first incomplete one.
			log.Warn("prompt injection failed; loop stays active", "task", action.Task.ID, "error", err)
			return nil
		}
		log.Info("advanced to next task", "task", action.Task.ID, "iteration", next.Iteration)
		return nil
	}
	return nil
}

// handleFreeform runs one freeform-loop transition: scan recent
// assistant output for the completion promise, then stop or re-send the
// stored prompt verbatim behind an iteration banner.
func (c *Controller) handleFreeform(ctx context.Context, st *State, ev Event, log *logging.Logger) error {
	found := false
	if st.CompletionPhrase != "" {
		found = promise.Matches(ev.RecentOutput, st.CompletionPhrase)
		if !found {
			msgs, err := c.client.RecentMessages(ctx, st.SessionID, freeformLookback)
			if err != nil {
				// Recoverable: treat as no match and keep looping.
				log.Warn("failed to fetch session messages", "error", err)
			}
			for _, msg := range msgs {
				if promise.Matches(msg, st.CompletionPhrase) {
					found = true
					break
				}
			}
		}
	}

	next, action := DecideFreeform(st, found)
	switch action.Kind {
	case ActionStop:
		variant := "success"
		if action.Reason != StopSuccess {
			variant = "warning"
		}
		c.notify(action.Message, variant)
		log.Info("freeform loop stopped", "reason", string(action.Reason), "iteration", st.Iteration)
		return c.store.Clear()

	case ActionSendPrompt:
		if err := c.store.Save(next); err != nil {
			return err
		}
		text := IterationBanner(next.Iteration, next.MaxIterations, st.Prompt)
		if err := c.client.InjectPrompt(ctx, next.SessionID, text); err != nil {
			log.Warn("prompt injection failed; loop stays active", "error", err)
			return nil
		}
		log.Info("freeform iteration sent", "iteration", next.Iteration)
		return nil
	}
	return nil
}

// markCurrentComplete rewrites the current task's checkbox in the plan
// file and returns the task's title from the fresh parse.
func (c *Controller) markCurrentComplete(st *State) (string, error) {
	doc, err := plan.Load(st.PlanPath)
	if err != nil {
		return "", err
	}

	task, ok := doc.TaskByID(st.CurrentTaskID)
	if !ok {
		// The user removed or renumbered the task; nothing to mark.
		return "", fmt.Errorf("task %s no longer present in plan", st.CurrentTaskID)
	}

	updated := plan.SetStatus(doc.RawText, st.CurrentTaskID, doc.Tasks, plan.StatusCompleted)
	if err := plan.Save(st.PlanPath, updated); err != nil {
		return "", err
	}
	return task.Title, nil
}

// notify surfaces a user-facing message through the host when a
// notifier is wired.
func (c *Controller) notify(message, variant string) {
	if c.notifier != nil {
		c.notifier.Toast(message, variant)
	}
}

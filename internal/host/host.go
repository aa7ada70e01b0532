// Package host defines the boundary to the agent host runtime. The host
// owns the live session: planloop only asks it to re-inject prompts,
// fetch recent assistant output, and surface toasts. Implementations
// must treat every call as best-effort; the loop never rolls back state
// because a host call failed.
package host

import "context"

// SessionClient is the host-side session surface the loop depends on.
type SessionClient interface {
	// InjectPrompt re-injects text into the running session, which wakes
	// the agent for another iteration.
	InjectPrompt(ctx context.Context, sessionID, text string) error

	// RecentMessages returns up to limit of the session's most recent
	// assistant messages, newest last.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]string, error)
}

// Notifier surfaces user-facing notifications through the host UI.
type Notifier interface {
	// Toast shows a transient notification. Variant is "info", "success",
	// "warning", or "error".
	Toast(message, variant string)
}

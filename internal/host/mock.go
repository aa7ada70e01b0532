package host

import (
	"context"
	"sync"
)

// Mock implements SessionClient and Notifier for tests. It records
// every call and replays scripted responses.
type Mock struct {
	mu sync.Mutex

	// InjectErr, when set, is returned from every InjectPrompt call.
	InjectErr error

	// Messages is returned from RecentMessages.
	Messages []string

	// MessagesErr, when set, is returned from RecentMessages.
	MessagesErr error

	Injected []InjectedPrompt
	Toasts   []ToastCall
}

// InjectedPrompt records an InjectPrompt call.
type InjectedPrompt struct {
	SessionID string
	Text      string
}

// ToastCall records a Toast call.
type ToastCall struct {
	Message string
	Variant string
}

// InjectPrompt records the call and returns InjectErr.
func (m *Mock) InjectPrompt(_ context.Context, sessionID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InjectErr != nil {
		return m.InjectErr
	}
	m.Injected = append(m.Injected, InjectedPrompt{SessionID: sessionID, Text: text})
	return nil
}

// RecentMessages returns the scripted messages, truncated to limit.
func (m *Mock) RecentMessages(_ context.Context, _ string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MessagesErr != nil {
		return nil, m.MessagesErr
	}
	msgs := m.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// Toast records the call.
func (m *Mock) Toast(message, variant string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Toasts = append(m.Toasts, ToastCall{Message: message, Variant: variant})
}

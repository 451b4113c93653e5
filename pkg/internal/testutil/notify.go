package testutil

import (
	"context"
	"sync"
)

// MockNotifier records sent notifications and can be configured to fail.
type MockNotifier struct {
	Err   error
	sends []Notification
	mu    sync.RWMutex
}

// Notification is one recorded Send call.
type Notification struct {
	Channel string
	Text    string
}

// Send records the notification.
func (m *MockNotifier) Send(_ context.Context, channel, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sends = append(m.sends, Notification{Channel: channel, Text: text})
	return nil
}

// Sent returns all recorded notifications.
func (m *MockNotifier) Sent() []Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Notification, len(m.sends))
	copy(out, m.sends)
	return out
}

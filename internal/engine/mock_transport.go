package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/Veraticus/invoice-chaser/internal/model"
)

// SentMessage records an outbound message handed to MockTransport.
type SentMessage struct {
	To       string
	ThreadID string
	Subject  string
	Body     string
}

// MockTransport is an in-memory mailbox for tests. FetchUnread returns the
// queued messages that have not been marked consumed.
type MockTransport struct {
	FetchErr    error
	ReplyErr    error
	SendErr     error
	ConsumeErr  map[string]error
	Messages    []model.InboundMessage
	Replies     []SentMessage
	Sent        []SentMessage
	Consumed    []string
	FetchLimits []int
	consumed    map[string]bool
	nextThread  int
	mu          sync.Mutex
}

// NewMockTransport creates a mailbox holding messages.
func NewMockTransport(messages ...model.InboundMessage) *MockTransport {
	return &MockTransport{
		Messages:   messages,
		ConsumeErr: make(map[string]error),
		consumed:   make(map[string]bool),
	}
}

// Deliver queues more unread messages.
func (m *MockTransport) Deliver(messages ...model.InboundMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, messages...)
}

// FetchUnread returns up to limit unconsumed messages in delivery order.
func (m *MockTransport) FetchUnread(_ context.Context, limit int) ([]model.InboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FetchLimits = append(m.FetchLimits, limit)
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}

	var out []model.InboundMessage
	for _, msg := range m.Messages {
		if m.consumed[msg.ID] {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, msg)
	}
	return out, nil
}

// Reply records a reply on threadID.
func (m *MockTransport) Reply(_ context.Context, threadID, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReplyErr != nil {
		return m.ReplyErr
	}
	m.Replies = append(m.Replies, SentMessage{To: to, ThreadID: threadID, Body: body})
	return nil
}

// SendNew records a new message and returns a fresh thread id.
func (m *MockTransport) SendNew(_ context.Context, to, subject, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendErr != nil {
		return "", m.SendErr
	}
	m.nextThread++
	threadID := fmt.Sprintf("thread-new-%d", m.nextThread)
	m.Sent = append(m.Sent, SentMessage{To: to, ThreadID: threadID, Subject: subject, Body: body})
	return threadID, nil
}

// MarkConsumed hides a message from later fetches.
func (m *MockTransport) MarkConsumed(_ context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ConsumeErr[messageID]; err != nil {
		return err
	}
	if m.consumed == nil {
		m.consumed = make(map[string]bool)
	}
	m.consumed[messageID] = true
	m.Consumed = append(m.Consumed, messageID)
	return nil
}

package messaging

import (
	"context"
	"sync"

	"github.com/gymbro/gymbot/internal/models"
)

// SentMessage records one outbound message captured by the MockService.
// Buttons is nil for plain text sends.
type SentMessage struct {
	To      string
	Body    string
	Buttons []models.Button
}

// MockService implements Service for tests. It records every send in order
// and exposes the inbound channel for tests to push events through.
// In tests, use messaging.NewMockService() instead of a real transport.
type MockService struct {
	mu      sync.Mutex
	sent    []SentMessage
	read    []string
	inbound chan models.InboundMessage
	sendErr error
	stopped bool
}

func NewMockService() *MockService {
	return &MockService{inbound: make(chan models.InboundMessage, 16)}
}

// FailSendsWith makes subsequent sends return err. Pass nil to restore.
func (m *MockService) FailSendsWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

func (m *MockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptySender
	}
	return recipient, nil
}

func (m *MockService) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, SentMessage{To: to, Body: body})
	return nil
}

func (m *MockService) SendButtons(ctx context.Context, to string, body string, buttons []models.Button) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, SentMessage{To: to, Body: body, Buttons: buttons})
	return nil
}

func (m *MockService) MarkRead(ctx context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.read = append(m.read, messageID)
	return nil
}

func (m *MockService) Start(ctx context.Context) error { return nil }

func (m *MockService) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stopped {
		m.stopped = true
		close(m.inbound)
	}
	return nil
}

func (m *MockService) Responses() <-chan models.InboundMessage {
	return m.inbound
}

// Inject pushes an inbound message into the Responses channel.
func (m *MockService) Inject(msg models.InboundMessage) {
	m.inbound <- msg
}

// Sent returns a copy of the recorded outbound messages in send order.
func (m *MockService) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// MarkedRead returns the message ids marked as read, in order.
func (m *MockService) MarkedRead() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.read))
	copy(out, m.read)
	return out
}

// Reset clears the recorded sends and read receipts.
func (m *MockService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
	m.read = nil
}

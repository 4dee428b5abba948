package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gymbro/gymbot/internal/models"
	"github.com/gymbro/gymbot/internal/twiliowhatsapp"
)

// TwilioService implements the Service interface using the Twilio API.
//
// Twilio's Go SDK has no native WhatsApp reply buttons, so button messages are
// emulated: the body is sent with a numbered option list appended, the option
// set is remembered per recipient, and a numeric reply on the webhook is
// translated back into the corresponding button id.
type TwilioService struct {
	client    twiliowhatsapp.Sender
	responses chan models.InboundMessage
	done      chan struct{}

	mu      sync.RWMutex
	stopped bool
	pending map[string][]models.Button // recipient -> last offered buttons
}

// NewTwilioService creates a new TwilioService wrapping the given Sender.
func NewTwilioService(client twiliowhatsapp.Sender) *TwilioService {
	return &TwilioService{
		client:    client,
		responses: make(chan models.InboundMessage, DefaultChannelBufferSize),
		done:      make(chan struct{}),
		pending:   make(map[string][]models.Button),
	}
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp phone number.
// It removes all non-numeric characters and validates the result has at least 6 digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}

	if recipient != canonical {
		slog.Debug("TwilioService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Start is a no-op for Twilio (inbound arrives via webhook).
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes channels and stops the service.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.responses)
	}()

	return nil
}

// SendMessage sends a plain text message via Twilio.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}
	return s.client.SendMessage(ctx, canonicalTo, body)
}

// SendButtons emulates reply buttons with a numbered option list.
func (s *TwilioService) SendButtons(ctx context.Context, to string, body string, buttons []models.Button) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendButtons validation error", "error", err, "to", to)
		return err
	}
	if len(buttons) == 0 {
		return models.ErrNoButtons
	}

	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n")
	for i, btn := range buttons {
		fmt.Fprintf(&b, "\n%d. %s", i+1, btn.Label)
	}
	b.WriteString("\n\nResponde con el número de la opción.")

	if err := s.client.SendMessage(ctx, canonicalTo, b.String()); err != nil {
		return err
	}

	s.mu.Lock()
	s.pending[canonicalTo] = buttons
	s.mu.Unlock()
	return nil
}

// MarkRead is a no-op: the Twilio API offers no read receipts for inbound messages.
func (s *TwilioService) MarkRead(ctx context.Context, messageID string) error {
	return nil
}

// Responses returns the channel of inbound message events.
func (s *TwilioService) Responses() <-chan models.InboundMessage {
	return s.responses
}

// WebhookHandler handles inbound Twilio webhook requests. It parses incoming
// messages, resolves numeric replies against the last offered button set, and
// emits them as InboundMessage events.
func (s *TwilioService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	from := r.FormValue("From")
	body := r.FormValue("Body")
	messageSID := r.FormValue("MessageSid")
	if from == "" || body == "" {
		slog.Warn("Twilio webhook missing fields", "from", from)
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	canonicalFrom, err := s.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		slog.Error("Twilio webhook invalid sender", "error", err, "from", from)
		http.Error(w, "Invalid sender", http.StatusBadRequest)
		return
	}

	msg := models.InboundMessage{
		Sender:    canonicalFrom,
		Type:      models.MessageTypeText,
		Text:      body,
		MessageID: messageSID,
		Timestamp: time.Now().Unix(),
	}

	// A numeric reply while a button set is pending selects that button.
	if id, ok := s.resolveButtonReply(canonicalFrom, body); ok {
		msg.Type = models.MessageTypeInteractive
		msg.ButtonID = id
		msg.Text = ""
	}

	s.safeEmit(msg)

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// resolveButtonReply maps a numeric reply onto the pending button set for the
// sender, consuming the set on a successful match.
func (s *TwilioService) resolveButtonReply(sender, body string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(body))
	if err != nil {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	buttons, ok := s.pending[sender]
	if !ok || n < 1 || n > len(buttons) {
		return "", false
	}
	delete(s.pending, sender)
	return buttons[n-1].ID, true
}

// safeEmit safely pushes an inbound message into the responses channel.
func (s *TwilioService) safeEmit(msg models.InboundMessage) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("TwilioService dropping inbound message (service stopped)", "from", msg.Sender)
		return
	}

	select {
	case s.responses <- msg:
		slog.Debug("TwilioService emitted inbound message", "from", msg.Sender)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService responses channel blocked, dropping message", "from", msg.Sender)
	}
}

package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/gymbro/gymbot/internal/models"
	"github.com/gymbro/gymbot/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// Constants for WhatsAppService configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for the inbound channel
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
	// maxTrackedChats bounds the messageID->chat map used for read receipts
	maxTrackedChats = 4096
)

// phoneNumberRegex matches everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`\D`)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp client.
type WhatsAppService struct {
	client    whatsapp.Sender
	waClient  *whatsapp.Client // access to underlying client for event handling
	responses chan models.InboundMessage
	done      chan struct{}

	mu      sync.RWMutex
	stopped bool
	chats   map[string]string // message id -> chat, for read receipts
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given Sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	service := &WhatsAppService{
		client:    client,
		responses: make(chan models.InboundMessage, DefaultChannelBufferSize),
		done:      make(chan struct{}),
		chats:     make(map[string]string),
	}

	// If the client is a full Client (not just an interface), store it for event handling
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}

	return service
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp phone number.
// It removes all non-numeric characters and validates the result has at least 6 digits.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
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
		slog.Debug("WhatsAppService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Start begins background event processing.
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService Start invoked")

	if s.waClient != nil {
		go s.handleEvents(ctx)
		slog.Debug("WhatsAppService event handler started")
	} else {
		slog.Debug("WhatsAppService no full client available, skipping event handling (likely mock)")
	}

	return nil
}

// Stop stops background processing and closes the inbound channel.
func (s *WhatsAppService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)
	close(s.responses)
	slog.Info("WhatsAppService stopped")
	return nil
}

// SendMessage sends a plain text message.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService SendMessage validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", canonicalTo)
		return err
	}
	slog.Debug("WhatsAppService message sent", "to", canonicalTo, "body_length", len(body))
	return nil
}

// SendButtons sends a text message with reply buttons.
func (s *WhatsAppService) SendButtons(ctx context.Context, to string, body string, buttons []models.Button) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService SendButtons validation error", "error", err, "to", to)
		return err
	}
	if len(buttons) == 0 {
		return models.ErrNoButtons
	}
	if err := s.client.SendButtonsMessage(ctx, canonicalTo, body, buttons); err != nil {
		slog.Error("WhatsAppService SendButtons error", "error", err, "to", canonicalTo)
		return err
	}
	slog.Debug("WhatsAppService buttons sent", "to", canonicalTo, "buttons", len(buttons))
	return nil
}

// MarkRead marks an inbound message as read. The chat is resolved from the
// message id recorded when the message arrived; unknown ids are a no-op.
func (s *WhatsAppService) MarkRead(ctx context.Context, messageID string) error {
	s.mu.Lock()
	chat, ok := s.chats[messageID]
	if ok {
		delete(s.chats, messageID)
	}
	s.mu.Unlock()
	if !ok {
		slog.Debug("WhatsAppService MarkRead skipped, unknown message id", "message_id", messageID)
		return nil
	}
	return s.client.MarkRead(ctx, messageID, chat)
}

// Responses returns a channel of inbound message events.
func (s *WhatsAppService) Responses() <-chan models.InboundMessage {
	return s.responses
}

// handleEvents registers the whatsmeow event handler and runs until the
// context is cancelled.
func (s *WhatsAppService) handleEvents(ctx context.Context) {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Error("WhatsAppService handleEvents: no client available")
		return
	}

	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			s.handleIncomingMessage(v)
		default:
			// Receipts, presence and connection events are not part of the
			// dialog flow.
		}
	})

	slog.Debug("WhatsAppService event handler registered")
	<-ctx.Done()
	slog.Debug("WhatsAppService handleEvents stopping due to context cancellation")
}

// handleIncomingMessage converts a whatsmeow message event into an
// InboundMessage and forwards it.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil {
		return
	}

	msg := models.InboundMessage{
		Sender:     evt.Info.Sender.User,
		SenderName: evt.Info.PushName,
		MessageID:  evt.Info.ID,
		Timestamp:  evt.Info.Timestamp.Unix(),
	}

	m := evt.Message
	switch {
	case m.ButtonsResponseMessage != nil:
		msg.Type = models.MessageTypeInteractive
		msg.ButtonID = m.ButtonsResponseMessage.GetSelectedButtonID()
	case m.TemplateButtonReplyMessage != nil:
		msg.Type = models.MessageTypeInteractive
		msg.ButtonID = m.TemplateButtonReplyMessage.GetSelectedID()
	case m.ListResponseMessage != nil:
		msg.Type = models.MessageTypeInteractive
		msg.ButtonID = m.ListResponseMessage.GetSingleSelectReply().GetSelectedRowID()
	case m.Conversation != nil:
		msg.Type = models.MessageTypeText
		msg.Text = m.GetConversation()
	case m.ExtendedTextMessage != nil:
		msg.Type = models.MessageTypeText
		msg.Text = m.ExtendedTextMessage.GetText()
	case m.ImageMessage != nil, m.AudioMessage != nil, m.VideoMessage != nil, m.DocumentMessage != nil:
		msg.Type = models.MessageTypeMedia
	default:
		msg.Type = models.MessageTypeUnsupported
	}

	s.rememberChat(msg.MessageID, evt.Info.Chat.User)
	s.safeEmit(msg)
}

// rememberChat records the chat for a message id so MarkRead can resolve it.
func (s *WhatsAppService) rememberChat(messageID, chat string) {
	if messageID == "" || chat == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chats) >= maxTrackedChats {
		// Unbounded growth only happens if nothing ever gets marked read.
		s.chats = make(map[string]string)
	}
	s.chats[messageID] = chat
}

// safeEmit pushes an inbound message into the responses channel without
// blocking the whatsmeow event loop.
func (s *WhatsAppService) safeEmit(msg models.InboundMessage) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("WhatsAppService dropping inbound message (service stopped)", "from", msg.Sender)
		return
	}

	select {
	case s.responses <- msg:
		slog.Debug("WhatsAppService inbound message forwarded", "from", msg.Sender, "type", msg.Type)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService responses channel blocked, dropping message", "from", msg.Sender)
	}
}

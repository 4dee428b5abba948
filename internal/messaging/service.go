package messaging

import (
	"context"
	"errors"

	"github.com/gymbro/gymbot/internal/models"
)

// ErrServiceStopped is returned when a send is attempted after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

// Service defines a pluggable message delivery abstraction.
// It supports sending text and interactive button messages, best-effort read
// receipts, and provides a channel of inbound message events.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient identifier.
	// Returns the canonicalized recipient and an error if validation fails.
	// This allows each service to implement its own recipient validation rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a plain text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// SendButtons sends a text message with an ordered set of reply buttons.
	SendButtons(ctx context.Context, to string, body string, buttons []models.Button) error

	// MarkRead marks an inbound message as read. Best-effort: failures are
	// logged by implementations and must not abort the caller's turn.
	MarkRead(ctx context.Context, messageID string) error

	// Start begins any background processing (e.g., polling for events).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of inbound message events.
	Responses() <-chan models.InboundMessage
}

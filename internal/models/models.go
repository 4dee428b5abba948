// Package models defines the core data structures for GymBot.
//
// It includes inbound message events, outbound button descriptors, and the
// persistent records (bookings, pause requests, memberships) shared across modules.
package models

import (
	"errors"
	"math"
	"time"
)

// MessageType classifies an inbound message event.
type MessageType string

const (
	// MessageTypeText is a plain text message from the user.
	MessageTypeText MessageType = "text"
	// MessageTypeInteractive is a button reply from an interactive message.
	MessageTypeInteractive MessageType = "interactive"
	// MessageTypeMedia covers image, audio, video and document messages.
	MessageTypeMedia MessageType = "media"
	// MessageTypeUnsupported covers everything else (reactions, stickers, system events).
	MessageTypeUnsupported MessageType = "unsupported"
)

// Button identifiers recognized by the flow engine. IDs are opaque tokens
// matched literally; labels are display-only and never parsed.
const (
	ButtonOption1        = "opcion_1"
	ButtonOption2        = "opcion_2"
	ButtonOption3        = "opcion_3"
	ButtonConfirm        = "confirmar"
	ButtonCancel         = "cancelar"
	ButtonEndChat        = "finalizar_chat"
	ButtonBackToMenu     = "volver_menu"
	ButtonAnotherConsult = "consulta_otra"
	ButtonEndConsult     = "consulta_finalizar"
)

// Validation constants shared by the flow handlers.
const (
	// MinBookingAge is the youngest age accepted for a class booking.
	MinBookingAge = 9
	// MaxBookingAge is the oldest age accepted for a class booking.
	MaxBookingAge = 60
	// MaxMessageLength is the longest single outbound message segment; longer
	// answers are chunked before delivery.
	MaxMessageLength = 4000
)

// Error variables for better error handling and testability
var (
	ErrEmptySender        = errors.New("sender cannot be empty")
	ErrEmptyBody          = errors.New("message body cannot be empty")
	ErrNoButtons          = errors.New("interactive message requires at least one button")
	ErrMembershipNotFound = errors.New("no membership found for card id")
	ErrUnknownStep        = errors.New("no handler registered for step")
)

// InboundMessage is one inbound event from the messaging transport.
// Exactly one of Text or ButtonID is meaningful depending on Type.
type InboundMessage struct {
	Sender     string      `json:"sender"`
	SenderName string      `json:"sender_name,omitempty"`
	Type       MessageType `json:"type"`
	Text       string      `json:"text,omitempty"`
	ButtonID   string      `json:"button_id,omitempty"`
	MessageID  string      `json:"message_id,omitempty"`
	Timestamp  int64       `json:"timestamp,omitempty"`
}

// Button is one selectable reply option on an interactive message.
type Button struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Booking is a confirmed class reservation.
type Booking struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Day       string    `json:"day"`
	Reason    string    `json:"reason"`
	Hour      string    `json:"hour"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks that a booking record is complete before persistence.
func (b *Booking) Validate() error {
	if b.Sender == "" {
		return ErrEmptySender
	}
	if b.Name == "" || b.Day == "" || b.Reason == "" || b.Hour == "" {
		return errors.New("booking record is missing required fields")
	}
	if b.Age < MinBookingAge || b.Age > MaxBookingAge {
		return errors.New("booking age out of range")
	}
	return nil
}

// PauseRequest is a membership pause solicitation awaiting manual review.
// Status is intentionally left empty on creation; staff fill it in later.
type PauseRequest struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	CardID    string    `json:"card_id"`
	Name      string    `json:"name"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MembershipStatus is the stored status of a membership row.
type MembershipStatus string

const (
	// MembershipActive is a paid-up membership.
	MembershipActive MembershipStatus = "activo"
	// MembershipExpired is a membership past its end date.
	MembershipExpired MembershipStatus = "vencido"
	// MembershipPaused is a membership under an approved pause.
	MembershipPaused MembershipStatus = "pausado"
)

// Membership is one row of the membership base, keyed by national card id.
// The most recent row per card id is authoritative.
type Membership struct {
	CardID    string           `json:"card_id"`
	Sender    string           `json:"sender,omitempty"`
	Name      string           `json:"name"`
	Plan      string           `json:"plan"`
	StartDate time.Time        `json:"start_date"`
	EndDate   time.Time        `json:"end_date"`
	Status    MembershipStatus `json:"status"`
}

// MembershipSnapshot is the evaluated state of a membership at a point in time.
type MembershipSnapshot struct {
	Name          string
	Plan          string
	Status        MembershipStatus
	StartDate     time.Time
	EndDate       time.Time
	DaysRemaining int
}

// EvaluateAt derives the current status and remaining days of a membership.
// A stored "activo" row whose end date has passed reads as "vencido".
func (m *Membership) EvaluateAt(now time.Time) MembershipSnapshot {
	days := int(math.Ceil(m.EndDate.Sub(now).Hours() / 24))
	status := m.Status
	if days <= 0 && status == MembershipActive {
		status = MembershipExpired
	}
	return MembershipSnapshot{
		Name:          m.Name,
		Plan:          m.Plan,
		Status:        status,
		StartDate:     m.StartDate,
		EndDate:       m.EndDate,
		DaysRemaining: days,
	}
}

// Package store provides storage backends for GymBot.
//
// It defines the Store interface covering conversation state, the finalized
// set, booking and pause records, the membership base, and inbound message
// deduplication, with in-memory, SQLite, and PostgreSQL implementations.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gymbro/gymbot/internal/models"
)

// Store is the persistence contract consumed by the flow engine and API.
type Store interface {
	// Conversation state, keyed by sender. Get returns nil when no flow is active.
	GetConversationState(sender string) (*models.ConversationState, error)
	SaveConversationState(state models.ConversationState) error
	DeleteConversationState(sender string) error

	// Finalized set: senders who explicitly ended the conversation.
	MarkFinalized(sender string) error
	ClearFinalized(sender string) error
	IsFinalized(sender string) (bool, error)

	// Records.
	AddBooking(b models.Booking) error
	ListBookings() ([]models.Booking, error)
	AddPauseRequest(p models.PauseRequest) error
	ListPauseRequests() ([]models.PauseRequest, error)

	// Membership base. GetMembership returns the most recent row for the card id,
	// or models.ErrMembershipNotFound.
	GetMembership(cardID string) (*models.Membership, error)
	UpsertMembership(m models.Membership) error

	// CheckAndRecordInbound records a message id and reports whether it was seen
	// for the first time. Used to drop webhook redeliveries.
	CheckAndRecordInbound(messageID string) (bool, error)

	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else (treated as a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a mutex-guarded in-memory Store, used in tests and in
// deployments without a database DSN.
type InMemoryStore struct {
	mu            sync.RWMutex
	states        map[string]models.ConversationState
	finalized     map[string]bool
	bookings      []models.Booking
	pauseRequests []models.PauseRequest
	memberships   map[string][]models.Membership
	seenInbound   map[string]time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		states:      make(map[string]models.ConversationState),
		finalized:   make(map[string]bool),
		memberships: make(map[string][]models.Membership),
		seenInbound: make(map[string]time.Time),
	}
}

func (s *InMemoryStore) GetConversationState(sender string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[sender]
	if !ok {
		return nil, nil
	}
	// Copy the fields map so callers cannot mutate stored state in place.
	copied := state
	if state.Fields != nil {
		copied.Fields = make(map[models.FieldKey]string, len(state.Fields))
		for k, v := range state.Fields {
			copied.Fields[k] = v
		}
	}
	return &copied, nil
}

func (s *InMemoryStore) SaveConversationState(state models.ConversationState) error {
	if state.Sender == "" {
		return models.ErrEmptySender
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.Sender] = state
	return nil
}

func (s *InMemoryStore) DeleteConversationState(sender string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sender)
	return nil
}

func (s *InMemoryStore) MarkFinalized(sender string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized[sender] = true
	return nil
}

func (s *InMemoryStore) ClearFinalized(sender string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.finalized, sender)
	return nil
}

func (s *InMemoryStore) IsFinalized(sender string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finalized[sender], nil
}

func (s *InMemoryStore) AddBooking(b models.Booking) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings = append(s.bookings, b)
	return nil
}

func (s *InMemoryStore) ListBookings() ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Booking, len(s.bookings))
	copy(out, s.bookings)
	return out, nil
}

func (s *InMemoryStore) AddPauseRequest(p models.PauseRequest) error {
	if p.Sender == "" {
		return models.ErrEmptySender
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauseRequests = append(s.pauseRequests, p)
	return nil
}

func (s *InMemoryStore) ListPauseRequests() ([]models.PauseRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PauseRequest, len(s.pauseRequests))
	copy(out, s.pauseRequests)
	return out, nil
}

func (s *InMemoryStore) GetMembership(cardID string) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.memberships[cardID]
	if len(rows) == 0 {
		return nil, models.ErrMembershipNotFound
	}
	// Most recent row per card id is authoritative.
	sorted := make([]models.Membership, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartDate.Before(sorted[j].StartDate) })
	latest := sorted[len(sorted)-1]
	return &latest, nil
}

func (s *InMemoryStore) UpsertMembership(m models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships[m.CardID] = append(s.memberships[m.CardID], m)
	return nil
}

func (s *InMemoryStore) CheckAndRecordInbound(messageID string) (bool, error) {
	if messageID == "" {
		return true, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.seenInbound[messageID]; seen {
		return false, nil
	}
	s.seenInbound[messageID] = time.Now()
	return true, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

// Package store provides storage backends for GymBot.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/gymbro/gymbot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetConversationState(sender string) (*models.ConversationState, error) {
	row := s.db.QueryRow(`SELECT sender, step, fields, created_at, updated_at FROM conversation_states WHERE sender = $1`, sender)
	state, err := scanConversationState(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversationState failed", "error", err, "sender", sender)
		return nil, fmt.Errorf("failed to query conversation state for %s: %w", sender, err)
	}
	return state, nil
}

func (s *PostgresStore) SaveConversationState(state models.ConversationState) error {
	if state.Sender == "" {
		return models.ErrEmptySender
	}
	fieldsJSON, err := marshalFields(state.Fields)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO conversation_states (sender, step, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sender) DO UPDATE SET step=EXCLUDED.step, fields=EXCLUDED.fields, updated_at=EXCLUDED.updated_at`,
		state.Sender, string(state.Step), fieldsJSON, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConversationState failed", "error", err, "sender", state.Sender)
		return fmt.Errorf("failed to save conversation state for %s: %w", state.Sender, err)
	}
	return nil
}

func (s *PostgresStore) DeleteConversationState(sender string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_states WHERE sender = $1`, sender)
	if err != nil {
		slog.Error("PostgresStore DeleteConversationState failed", "error", err, "sender", sender)
		return fmt.Errorf("failed to delete conversation state for %s: %w", sender, err)
	}
	return nil
}

func (s *PostgresStore) MarkFinalized(sender string) error {
	_, err := s.db.Exec(`INSERT INTO finalized_senders (sender, finalized_at) VALUES ($1, $2)
		ON CONFLICT (sender) DO UPDATE SET finalized_at=EXCLUDED.finalized_at`, sender, time.Now())
	if err != nil {
		slog.Error("PostgresStore MarkFinalized failed", "error", err, "sender", sender)
		return fmt.Errorf("failed to mark %s finalized: %w", sender, err)
	}
	return nil
}

func (s *PostgresStore) ClearFinalized(sender string) error {
	_, err := s.db.Exec(`DELETE FROM finalized_senders WHERE sender = $1`, sender)
	if err != nil {
		slog.Error("PostgresStore ClearFinalized failed", "error", err, "sender", sender)
		return fmt.Errorf("failed to clear finalized flag for %s: %w", sender, err)
	}
	return nil
}

func (s *PostgresStore) IsFinalized(sender string) (bool, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM finalized_senders WHERE sender = $1`, sender).Scan(&count); err != nil {
		slog.Error("PostgresStore IsFinalized failed", "error", err, "sender", sender)
		return false, fmt.Errorf("failed to check finalized flag for %s: %w", sender, err)
	}
	return count > 0, nil
}

func (s *PostgresStore) AddBooking(b models.Booking) error {
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO bookings (id, sender, name, age, day, reason, hour, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, b.Sender, b.Name, b.Age, b.Day, b.Reason, b.Hour, b.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddBooking failed", "error", err, "sender", b.Sender)
		return fmt.Errorf("failed to insert booking for %s: %w", b.Sender, err)
	}
	return nil
}

func (s *PostgresStore) ListBookings() ([]models.Booking, error) {
	rows, err := s.db.Query(`SELECT id, sender, name, age, day, reason, hour, created_at FROM bookings ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore ListBookings query failed", "error", err)
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(&b.ID, &b.Sender, &b.Name, &b.Age, &b.Day, &b.Reason, &b.Hour, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan booking row: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate booking rows: %w", err)
	}
	return bookings, nil
}

func (s *PostgresStore) AddPauseRequest(p models.PauseRequest) error {
	if p.Sender == "" {
		return models.ErrEmptySender
	}
	_, err := s.db.Exec(`INSERT INTO pause_requests (id, sender, card_id, name, reason, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Sender, p.CardID, p.Name, p.Reason, nilIfEmpty(p.Status), p.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddPauseRequest failed", "error", err, "sender", p.Sender)
		return fmt.Errorf("failed to insert pause request for %s: %w", p.Sender, err)
	}
	return nil
}

func (s *PostgresStore) ListPauseRequests() ([]models.PauseRequest, error) {
	rows, err := s.db.Query(`SELECT id, sender, card_id, name, reason, status, created_at FROM pause_requests ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pause requests: %w", err)
	}
	defer rows.Close()

	var requests []models.PauseRequest
	for rows.Next() {
		p, err := scanPauseRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pause request rows: %w", err)
	}
	return requests, nil
}

func (s *PostgresStore) GetMembership(cardID string) (*models.Membership, error) {
	row := s.db.QueryRow(`SELECT card_id, sender, name, plan, start_date, end_date, status FROM memberships
		WHERE card_id = $1 ORDER BY start_date DESC LIMIT 1`, cardID)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrMembershipNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetMembership failed", "error", err, "card_id", cardID)
		return nil, fmt.Errorf("failed to query membership for %s: %w", cardID, err)
	}
	return m, nil
}

func (s *PostgresStore) UpsertMembership(m models.Membership) error {
	_, err := s.db.Exec(`INSERT INTO memberships (card_id, sender, name, plan, start_date, end_date, status) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.CardID, nilIfEmpty(m.Sender), m.Name, m.Plan, m.StartDate, m.EndDate, string(m.Status))
	if err != nil {
		slog.Error("PostgresStore UpsertMembership failed", "error", err, "card_id", m.CardID)
		return fmt.Errorf("failed to insert membership for %s: %w", m.CardID, err)
	}
	return nil
}

func (s *PostgresStore) CheckAndRecordInbound(messageID string) (bool, error) {
	if messageID == "" {
		return true, nil
	}
	res, err := s.db.Exec(`INSERT INTO inbound_dedup (message_id, seen_at) VALUES ($1, $2) ON CONFLICT (message_id) DO NOTHING`, messageID, time.Now())
	if err != nil {
		slog.Error("PostgresStore CheckAndRecordInbound failed", "error", err, "message_id", messageID)
		return false, fmt.Errorf("failed to record inbound message %s: %w", messageID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read dedup result for %s: %w", messageID, err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Package store provides storage backends for GymBot.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/gymbro/gymbot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetConversationState(sender string) (*models.ConversationState, error) {
	row := s.db.QueryRow(`SELECT sender, step, fields, created_at, updated_at FROM conversation_states WHERE sender = ?`, sender)
	state, err := scanConversationState(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversationState failed", "error", err, "sender", sender)
		return nil, fmt.Errorf("failed to query conversation state for %s: %w", sender, err)
	}
	return state, nil
}

func (s *SQLiteStore) SaveConversationState(state models.ConversationState) error {
	if state.Sender == "" {
		return models.ErrEmptySender
	}
	fieldsJSON, err := marshalFields(state.Fields)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO conversation_states (sender, step, fields, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(sender) DO UPDATE SET step=excluded.step, fields=excluded.fields, updated_at=excluded.updated_at`,
		state.Sender, string(state.Step), fieldsJSON, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConversationState failed", "error", err, "sender", state.Sender)
		return fmt.Errorf("failed to save conversation state for %s: %w", state.Sender, err)
	}
	slog.Debug("SQLiteStore SaveConversationState succeeded", "sender", state.Sender, "step", state.Step)
	return nil
}

func (s *SQLiteStore) DeleteConversationState(sender string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_states WHERE sender = ?`, sender)
	if err != nil {
		slog.Error("SQLiteStore DeleteConversationState failed", "error", err, "sender", sender)
		return fmt.Errorf("failed to delete conversation state for %s: %w", sender, err)
	}
	return nil
}

func (s *SQLiteStore) MarkFinalized(sender string) error {
	_, err := s.db.Exec(`INSERT INTO finalized_senders (sender, finalized_at) VALUES (?, ?)
		ON CONFLICT(sender) DO UPDATE SET finalized_at=excluded.finalized_at`, sender, time.Now())
	if err != nil {
		slog.Error("SQLiteStore MarkFinalized failed", "error", err, "sender", sender)
		return fmt.Errorf("failed to mark %s finalized: %w", sender, err)
	}
	return nil
}

func (s *SQLiteStore) ClearFinalized(sender string) error {
	_, err := s.db.Exec(`DELETE FROM finalized_senders WHERE sender = ?`, sender)
	if err != nil {
		slog.Error("SQLiteStore ClearFinalized failed", "error", err, "sender", sender)
		return fmt.Errorf("failed to clear finalized flag for %s: %w", sender, err)
	}
	return nil
}

func (s *SQLiteStore) IsFinalized(sender string) (bool, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM finalized_senders WHERE sender = ?`, sender).Scan(&count); err != nil {
		slog.Error("SQLiteStore IsFinalized failed", "error", err, "sender", sender)
		return false, fmt.Errorf("failed to check finalized flag for %s: %w", sender, err)
	}
	return count > 0, nil
}

func (s *SQLiteStore) AddBooking(b models.Booking) error {
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO bookings (id, sender, name, age, day, reason, hour, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Sender, b.Name, b.Age, b.Day, b.Reason, b.Hour, b.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddBooking failed", "error", err, "sender", b.Sender)
		return fmt.Errorf("failed to insert booking for %s: %w", b.Sender, err)
	}
	slog.Debug("SQLiteStore AddBooking succeeded", "sender", b.Sender, "day", b.Day, "reason", b.Reason)
	return nil
}

func (s *SQLiteStore) ListBookings() ([]models.Booking, error) {
	rows, err := s.db.Query(`SELECT id, sender, name, age, day, reason, hour, created_at FROM bookings ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore ListBookings query failed", "error", err)
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

func (s *SQLiteStore) AddPauseRequest(p models.PauseRequest) error {
	if p.Sender == "" {
		return models.ErrEmptySender
	}
	_, err := s.db.Exec(`INSERT INTO pause_requests (id, sender, card_id, name, reason, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Sender, p.CardID, p.Name, p.Reason, nilIfEmpty(p.Status), p.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddPauseRequest failed", "error", err, "sender", p.Sender)
		return fmt.Errorf("failed to insert pause request for %s: %w", p.Sender, err)
	}
	return nil
}

func (s *SQLiteStore) ListPauseRequests() ([]models.PauseRequest, error) {
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

func (s *SQLiteStore) GetMembership(cardID string) (*models.Membership, error) {
	row := s.db.QueryRow(`SELECT card_id, sender, name, plan, start_date, end_date, status FROM memberships
		WHERE card_id = ? ORDER BY start_date DESC LIMIT 1`, cardID)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrMembershipNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetMembership failed", "error", err, "card_id", cardID)
		return nil, fmt.Errorf("failed to query membership for %s: %w", cardID, err)
	}
	return m, nil
}

func (s *SQLiteStore) UpsertMembership(m models.Membership) error {
	_, err := s.db.Exec(`INSERT INTO memberships (card_id, sender, name, plan, start_date, end_date, status) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.CardID, nilIfEmpty(m.Sender), m.Name, m.Plan, m.StartDate, m.EndDate, string(m.Status))
	if err != nil {
		slog.Error("SQLiteStore UpsertMembership failed", "error", err, "card_id", m.CardID)
		return fmt.Errorf("failed to insert membership for %s: %w", m.CardID, err)
	}
	return nil
}

func (s *SQLiteStore) CheckAndRecordInbound(messageID string) (bool, error) {
	if messageID == "" {
		return true, nil
	}
	res, err := s.db.Exec(`INSERT OR IGNORE INTO inbound_dedup (message_id, seen_at) VALUES (?, ?)`, messageID, time.Now())
	if err != nil {
		slog.Error("SQLiteStore CheckAndRecordInbound failed", "error", err, "message_id", messageID)
		return false, fmt.Errorf("failed to record inbound message %s: %w", messageID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read dedup result for %s: %w", messageID, err)
	}
	return affected > 0, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// marshalFields serializes the collected-fields map for the fields column.
func marshalFields(fields map[models.FieldKey]string) (interface{}, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state fields: %w", err)
	}
	return string(data), nil
}

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/gymbro/gymbot/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanConversationState scans a ConversationState from a single sql.Row.
func scanConversationState(row *sql.Row) (*models.ConversationState, error) {
	var state models.ConversationState
	var step string
	var fieldsJSON sql.NullString
	err := row.Scan(&state.Sender, &step, &fieldsJSON, &state.CreatedAt, &state.UpdatedAt)
	if err != nil {
		return nil, err
	}
	state.Step = models.Step(step)
	if fieldsJSON.Valid && fieldsJSON.String != "" {
		if err := json.Unmarshal([]byte(fieldsJSON.String), &state.Fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state fields: %w", err)
		}
	}
	return &state, nil
}

// scanPauseRequest scans a PauseRequest from sql.Rows.
func scanPauseRequest(rows *sql.Rows) (models.PauseRequest, error) {
	var p models.PauseRequest
	var status sql.NullString
	err := rows.Scan(&p.ID, &p.Sender, &p.CardID, &p.Name, &p.Reason, &status, &p.CreatedAt)
	if err != nil {
		return p, fmt.Errorf("scan pause request failed: %w", err)
	}
	p.Status = status.String
	return p, nil
}

// scanMembership scans a Membership from a single sql.Row.
func scanMembership(row *sql.Row) (*models.Membership, error) {
	var m models.Membership
	var sender sql.NullString
	var status string
	err := row.Scan(&m.CardID, &sender, &m.Name, &m.Plan, &m.StartDate, &m.EndDate, &status)
	if err != nil {
		return nil, err
	}
	m.Sender = sender.String
	m.Status = models.MembershipStatus(status)
	return &m, nil
}

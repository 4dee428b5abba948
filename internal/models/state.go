// Package models defines conversation state structures for GymBot flows.
package models

import "time"

// Step is a position within the conversation state machine. Using a closed
// typed enum (instead of raw strings) lets the flow dispatch table be checked
// against the full set of steps.
type Step string

// Step constants for the conversation flow.
const (
	// StepName through StepConfirmation belong to the class booking flow.
	StepName             Step = "name"
	StepAge              Step = "age"
	StepAwaitingDayInput Step = "awaitingDayInput"
	StepHour             Step = "hour"
	StepReason           Step = "reason"
	StepTrainerSelection Step = "trainerSelection"
	StepConfirmation     Step = "confirmation"

	// StepConsultList is the numbered service-consultation menu; StepAwaitingCardID
	// is its membership-lookup sub-step.
	StepConsultList    Step = "consultas_lista"
	StepAwaitingCardID Step = "esperando_cedula"

	// StepAwaitingAIQuestion is the open AI consultation loop.
	StepAwaitingAIQuestion Step = "esperando_pregunta_ia"

	// StepPauseName, StepPauseCardID and StepPauseReason form the membership
	// pause sub-flow.
	StepPauseName   Step = "pausar_nombre"
	StepPauseCardID Step = "pausar_cedula"
	StepPauseReason Step = "pausar_motivo"
)

// IsValidStep checks if the given step belongs to the conversation flow.
func IsValidStep(s Step) bool {
	switch s {
	case StepName, StepAge, StepAwaitingDayInput, StepHour, StepReason,
		StepTrainerSelection, StepConfirmation, StepConsultList,
		StepAwaitingCardID, StepAwaitingAIQuestion, StepPauseName,
		StepPauseCardID, StepPauseReason:
		return true
	default:
		return false
	}
}

// FieldKey identifies one collected field inside a conversation state.
type FieldKey string

// Field key constants for collected flow data.
const (
	FieldName   FieldKey = "name"
	FieldAge    FieldKey = "age"
	FieldDay    FieldKey = "day"
	FieldHour   FieldKey = "hour"
	FieldReason FieldKey = "reason"
	FieldCardID FieldKey = "cardID"
)

// ConversationState is the per-sender record of an active flow. Absence of a
// record means no active flow. Fields accumulate as steps are accepted and the
// whole record is discarded on completion or cancellation.
type ConversationState struct {
	Sender    string              `json:"sender"`
	Step      Step                `json:"step"`
	Fields    map[FieldKey]string `json:"fields,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Field returns a collected field value, or "" if unset.
func (c *ConversationState) Field(key FieldKey) string {
	if c.Fields == nil {
		return ""
	}
	return c.Fields[key]
}

// SetField stores a collected field value, allocating the map on first use.
func (c *ConversationState) SetField(key FieldKey, value string) {
	if c.Fields == nil {
		c.Fields = make(map[FieldKey]string)
	}
	c.Fields[key] = value
}

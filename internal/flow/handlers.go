package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gymbro/gymbot/internal/models"
	"github.com/gymbro/gymbot/internal/util"
)

// stepHandler processes one input for a conversation sitting at a given step.
// Handlers mutate and persist state themselves; input is trimmed text or a
// lowercased button id.
type stepHandler func(e *Engine, ctx context.Context, state *models.ConversationState, input, messageID string) error

// stepHandlers is the dispatch table for active flows. Every step a state can
// persist with must have an entry here.
var stepHandlers = map[models.Step]stepHandler{
	models.StepName:               (*Engine).handleName,
	models.StepAge:                (*Engine).handleAge,
	models.StepAwaitingDayInput:   (*Engine).handleDay,
	models.StepHour:               (*Engine).handleHour,
	models.StepReason:             (*Engine).handleReason,
	models.StepTrainerSelection:   (*Engine).handleTrainerSelection,
	models.StepConfirmation:       (*Engine).handleConfirmation,
	models.StepConsultList:        (*Engine).handleConsultList,
	models.StepAwaitingCardID:     (*Engine).handleAwaitingCardID,
	models.StepAwaitingAIQuestion: (*Engine).handleAIQuestion,
	models.StepPauseName:          (*Engine).handlePauseName,
	models.StepPauseCardID:        (*Engine).handlePauseCardID,
	models.StepPauseReason:        (*Engine).handlePauseReason,
}

func (e *Engine) handleName(ctx context.Context, state *models.ConversationState, input, messageID string) error {
	if !validName(input) {
		return e.msg.SendMessage(ctx, state.Sender, msgInvalidName)
	}
	state.SetField(models.FieldName, input)
	state.Step = models.StepAge
	if err := e.states.Save(ctx, state); err != nil {
		return err
	}
	return e.msg.SendMessage(ctx, state.Sender, msgAskAge)
}

func (e *Engine) handleAge(ctx context.Context, state *models.ConversationState, input, messageID string) error {
	age, numeric, inRange := parseAge(input)
	if !numeric {
		return e.msg.SendMessage(ctx, state.Sender, msgInvalidAge)
	}
	if !inRange {
		return e.msg.SendMessage(ctx, state.Sender, msgAgeOutOfRange)
	}
	state.SetField(models.FieldAge, strconv.Itoa(age))
	state.Step = models.StepAwaitingDayInput
	if err := e.states.Save(ctx, state); err != nil {
		return err
	}
	return e.msg.SendMessage(ctx, state.Sender, msgAskDay)
}

func (e *Engine) handleDay(ctx context.Context, state *models.ConversationState, input, messageID string) error {
	day := canonicalDay(input)
	if day == "" {
		return e.msg.SendMessage(ctx, state.Sender, msgInvalidDay)
	}
	state.SetField(models.FieldDay, day)
	state.Step = models.StepHour
	if err := e.states.Save(ctx, state); err != nil {
		return err
	}
	return e.msg.SendMessage(ctx, state.Sender, msgAskHour)
}

func (e *Engine) handleHour(ctx context.Context, state *models.ConversationState, input, messageID string) error {
	wellFormed, inWindow := validateHour(input)
	if !wellFormed {
		return e.msg.SendMessage(ctx, state.Sender, msgInvalidHour)
	}
	if !inWindow {
		return e.msg.SendMessage(ctx, state.Sender, msgHourOutOfRange)
	}
	state.SetField(models.FieldHour, input)
	state.Step = models.StepReason
	if err := e.states.Save(ctx, state); err != nil {
		return err
	}
	return e.msg.SendMessage(ctx, state.Sender, msgAskClass)
}

func (e *Engine) handleReason(ctx context.Context, state *models.ConversationState, input, messageID string) error {
	class := matchClass(input)
	if class == "" {
		return e.msg.SendMessage(ctx, state.Sender, msgInvalidClass)
	}
	if class == ClassPersonalTraining {
		state.Step = models.StepTrainerSelection
		if err := e.states.Save(ctx, state); err != nil {
			return err
		}
		return e.msg.SendMessage(ctx, state.Sender, msgAskTrainer)
	}
	state.SetField(models.FieldReason, class)
	return e.moveToConfirmation(ctx, state)
}

func (e *Engine) handleTrainerSelection(ctx context.Context, state *models.ConversationState, input, messageID string) error {
	trainer := matchTrainer(input)
	if trainer == "" {
		return e.msg.SendMessage(ctx, state.Sender, msgInvalidTrainer)
	}
	state.SetField(models.FieldReason, fmt.Sprintf("Entrenador Personal con %s", trainer))
	return e.moveToConfirmation(ctx, state)
}

// moveToConfirmation persists the confirmation step and shows the recap plus
// confirm/cancel buttons.
func (e *Engine) moveToConfirmation(ctx context.Context, state *models.ConversationState) error {
	state.Step = models.StepConfirmation
	if err := e.states.Save(ctx, state); err != nil {
		return err
	}
	if err := e.msg.SendMessage(ctx, state.Sender, bookingSummary(state)); err != nil {
		return err
	}
	return e.msg.SendButtons(ctx, state.Sender, msgConfirmPrompt, confirmButtons)
}

func (e *Engine) handleConfirmation(ctx context.Context, state *models.ConversationState, input, messageID string) error {
	switch input {
	case models.ButtonConfirm:
		if err := e.msg.SendMessage(ctx, state.Sender, e.registerBooking(ctx, state)); err != nil {
			return err
		}
	case models.ButtonCancel:
		if err := e.msg.SendMessage(ctx, state.Sender, msgBookingCanceled); err != nil {
			return err
		}
	default:
		return e.msg.SendMessage(ctx, state.Sender, msgInvalidConfirm)
	}

	// Confirm and cancel both end the flow and offer the closing buttons.
	if err := e.states.Clear(ctx, state.Sender); err != nil {
		return err
	}
	return e.msg.SendButtons(ctx, state.Sender, msgWhatNow, closingButtons)
}

// registerBooking stores the booking unless an identical one (same name, day
// and class) already exists. It returns the user-facing outcome message.
func (e *Engine) registerBooking(ctx context.Context, state *models.ConversationState) string {
	name := state.Field(models.FieldName)
	day := state.Field(models.FieldDay)
	reason := state.Field(models.FieldReason)

	existing, err := e.store.ListBookings()
	if err != nil {
		slog.Error("Engine booking duplicate check failed", "error", err, "sender", state.Sender)
		return msgBookingFailed
	}
	for _, b := range existing {
		if b.Name == name && b.Day == day && b.Reason == reason {
			slog.Info("Engine rejected duplicate booking", "sender", state.Sender, "name", name, "day", day)
			return msgBookingDup
		}
	}

	age, _ := strconv.Atoi(state.Field(models.FieldAge))
	booking := models.Booking{
		ID:        util.GenerateBookingID(),
		Sender:    state.Sender,
		Name:      name,
		Age:       age,
		Day:       day,
		Reason:    reason,
		Hour:      state.Field(models.FieldHour),
		CreatedAt: time.Now(),
	}
	if err := e.store.AddBooking(booking); err != nil {
		slog.Error("Engine booking insert failed", "error", err, "sender", state.Sender)
		return msgBookingFailed
	}
	slog.Info("Engine booking registered", "sender", state.Sender, "booking_id", booking.ID, "day", day, "class", reason)
	return msgBookingSaved
}

func (e *Engine) handleConsultList(ctx context.Context, state *models.ConversationState, input, messageID string) error {
	var response string
	switch matchConsultTopic(input) {
	case TopicPrices:
		response = msgPrices
	case TopicSchedule:
		response = msgSchedule
	case TopicLocation:
		response = msgLocation
	case TopicAdvisor:
		response = msgAdvisor
	case TopicMembership:
		state.Step = models.StepAwaitingCardID
		if err := e.states.Save(ctx, state); err != nil {
			return err
		}
		return e.msg.SendMessage(ctx, state.Sender, msgAskCardID)
	case TopicPause:
		state.Step = models.StepPauseName
		if err := e.states.Save(ctx, state); err != nil {
			return err
		}
		return e.msg.SendMessage(ctx, state.Sender, msgPauseIntro)
	default:
		response = msgInvalidConsultTopic
	}

	if err := e.msg.SendMessage(ctx, state.Sender, response); err != nil {
		return err
	}
	return e.msg.SendButtons(ctx, state.Sender, msgConsultAgain, consultButtons)
}

func (e *Engine) handleAwaitingCardID(ctx context.Context, state *models.ConversationState, input, messageID string) error {
	if !validCardID(input) {
		return e.msg.SendMessage(ctx, state.Sender, msgInvalidCardID)
	}
	if err := e.msg.SendMessage(ctx, state.Sender, msgLookingUp); err != nil {
		return err
	}

	var response string
	membership, err := e.store.GetMembership(input)
	switch {
	case err == models.ErrMembershipNotFound:
		response = msgMembershipNotFound
	case err != nil:
		slog.Error("Engine membership lookup failed", "error", err, "sender", state.Sender)
		response = msgMembershipError
	default:
		response = membershipMessage(membership.EvaluateAt(time.Now()))
	}
	if err := e.msg.SendMessage(ctx, state.Sender, response); err != nil {
		return err
	}

	// Lookup done; drop back to the consultation list so the buttons below
	// (and any typed topic) keep working.
	state.Step = models.StepConsultList
	if err := e.states.Save(ctx, state); err != nil {
		return err
	}
	return e.msg.SendButtons(ctx, state.Sender, msgConsultAgain, consultButtons)
}

func (e *Engine) handleAIQuestion(ctx context.Context, state *models.ConversationState, input, messageID string) error {
	if err := e.msg.SendMessage(ctx, state.Sender, msgAIThinking); err != nil {
		return err
	}

	answer := msgAIFailed
	if e.ai == nil {
		slog.Warn("Engine AI question received but no assistant configured", "sender", state.Sender)
	} else if got, err := e.ai.Answer(ctx, input); err != nil {
		slog.Error("Engine AI answer failed", "error", err, "sender", state.Sender)
	} else {
		answer = got
	}
	for _, chunk := range ChunkMessage(answer, models.MaxMessageLength) {
		if err := e.msg.SendMessage(ctx, state.Sender, chunk); err != nil {
			return err
		}
	}

	// Stay in AI mode; the user leaves via the close button or a greeting.
	return e.msg.SendButtons(ctx, state.Sender, msgAIClosePrompt, aiCloseButtons)
}

func (e *Engine) handlePauseName(ctx context.Context, state *models.ConversationState, input, messageID string) error {
	if !validName(input) {
		return e.msg.SendMessage(ctx, state.Sender, msgPauseInvalidName)
	}
	state.SetField(models.FieldName, input)
	state.Step = models.StepPauseCardID
	if err := e.states.Save(ctx, state); err != nil {
		return err
	}
	return e.msg.SendMessage(ctx, state.Sender, msgPauseAskCardID)
}

func (e *Engine) handlePauseCardID(ctx context.Context, state *models.ConversationState, input, messageID string) error {
	if !validCardID(input) {
		return e.msg.SendMessage(ctx, state.Sender, msgPauseInvalidCardID)
	}
	state.SetField(models.FieldCardID, input)
	state.Step = models.StepPauseReason
	if err := e.states.Save(ctx, state); err != nil {
		return err
	}
	return e.msg.SendMessage(ctx, state.Sender, msgPauseAskReason)
}

func (e *Engine) handlePauseReason(ctx context.Context, state *models.ConversationState, input, messageID string) error {
	request := models.PauseRequest{
		ID:        util.GeneratePauseRequestID(),
		Sender:    state.Sender,
		CardID:    state.Field(models.FieldCardID),
		Name:      state.Field(models.FieldName),
		Reason:    input,
		CreatedAt: time.Now(),
	}

	response := pauseConfirmation(request.Name, request.CardID)
	if err := e.store.AddPauseRequest(request); err != nil {
		slog.Error("Engine pause request insert failed", "error", err, "sender", state.Sender)
		response = msgPauseSaveFailed
	} else {
		slog.Info("Engine pause request registered", "sender", state.Sender, "request_id", request.ID)
	}

	if err := e.states.Clear(ctx, state.Sender); err != nil {
		return err
	}
	if err := e.msg.SendMessage(ctx, state.Sender, response); err != nil {
		return err
	}
	return e.msg.SendButtons(ctx, state.Sender, msgWhatNow, pauseClosingButtons)
}

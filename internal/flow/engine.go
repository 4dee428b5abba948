package flow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gymbro/gymbot/internal/classify"
	"github.com/gymbro/gymbot/internal/messaging"
	"github.com/gymbro/gymbot/internal/models"
	"github.com/gymbro/gymbot/internal/store"
)

// Answerer produces a free-form answer to a user question. Satisfied by
// genai.Client; tests plug in a canned implementation.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Engine routes inbound messages through the conversation state machine. One
// Engine instance serves all senders; per-sender serialization comes from the
// StateManager.
type Engine struct {
	states *StateManager
	store  store.Store
	msg    messaging.Service
	ai     Answerer
}

// NewEngine creates the dialog engine with its collaborators.
func NewEngine(states *StateManager, st store.Store, msgService messaging.Service, ai Answerer) *Engine {
	slog.Debug("Creating flow Engine")
	return &Engine{
		states: states,
		store:  st,
		msg:    msgService,
		ai:     ai,
	}
}

// HandleMessage processes one inbound message end to end: read receipt,
// finalized-gate, greeting detection, button routing and step dispatch. It is
// safe to call concurrently; messages from the same sender are serialized.
func (e *Engine) HandleMessage(ctx context.Context, msg models.InboundMessage) error {
	if msg.Sender == "" {
		return models.ErrEmptySender
	}
	if msg.Type == models.MessageTypeUnsupported {
		slog.Debug("Engine ignoring unsupported message", "sender", msg.Sender)
		return nil
	}

	// Read receipts are best-effort; a failure never aborts the turn.
	if msg.MessageID != "" {
		if err := e.msg.MarkRead(ctx, msg.MessageID); err != nil {
			slog.Warn("Engine MarkRead failed", "error", err, "message_id", msg.MessageID)
		}
	}

	return e.states.WithSenderLock(msg.Sender, func() error {
		switch msg.Type {
		case models.MessageTypeText:
			return e.handleText(ctx, msg)
		case models.MessageTypeInteractive:
			return e.handleButton(ctx, msg)
		default:
			// Media messages are acknowledged (read receipt above) but drive
			// no flow transition.
			slog.Debug("Engine ignoring media message", "sender", msg.Sender)
			return nil
		}
	})
}

// zeroWidthReplacer strips zero-width characters that some clients embed in
// otherwise empty messages.
var zeroWidthReplacer = strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "")

// visibleContent reports whether a text body has any visible content after
// stripping whitespace and zero-width characters.
func visibleContent(s string) bool {
	stripped := zeroWidthReplacer.Replace(s)
	return strings.TrimSpace(stripped) != ""
}

func (e *Engine) handleText(ctx context.Context, msg models.InboundMessage) error {
	raw := strings.TrimSpace(msg.Text)
	lower := strings.ToLower(raw)

	if !visibleContent(raw) {
		slog.Debug("Engine ignoring empty text message", "sender", msg.Sender)
		return nil
	}

	// The finalized gate swallows text until the user says "hola" again.
	finalized, err := e.states.IsFinalized(ctx, msg.Sender)
	if err != nil {
		return err
	}
	if finalized && !strings.Contains(lower, "hola") {
		slog.Debug("Engine ignoring text from finalized sender", "sender", msg.Sender)
		return nil
	}

	state, err := e.states.Get(ctx, msg.Sender)
	if err != nil {
		return err
	}
	isGreeting := classify.IsGreeting(raw)

	if !isGreeting && state == nil {
		slog.Debug("Engine ignoring text with no active flow", "sender", msg.Sender)
		return nil
	}

	// A greeting always restarts from the welcome menu, even mid-flow.
	if isGreeting {
		if err := e.states.ClearFinalized(ctx, msg.Sender); err != nil {
			return err
		}
		return e.sendWelcome(ctx, msg.Sender, msg.SenderName)
	}

	return e.dispatchFlow(ctx, state, raw, msg.MessageID)
}

func (e *Engine) handleButton(ctx context.Context, msg models.InboundMessage) error {
	option := strings.ToLower(strings.TrimSpace(msg.ButtonID))
	if option == "" {
		return models.ErrEmptyBody
	}

	// Cross-cutting buttons work regardless of flow state.
	switch option {
	case models.ButtonEndChat:
		if err := e.states.MarkFinalized(ctx, msg.Sender); err != nil {
			return err
		}
		if err := e.states.Clear(ctx, msg.Sender); err != nil {
			return err
		}
		return e.msg.SendMessage(ctx, msg.Sender, msgChatFinalized)

	case models.ButtonBackToMenu:
		if err := e.states.ClearFinalized(ctx, msg.Sender); err != nil {
			return err
		}
		return e.sendWelcome(ctx, msg.Sender, msg.SenderName)

	case models.ButtonOption3:
		if _, err := e.states.Begin(ctx, msg.Sender, models.StepAwaitingAIQuestion); err != nil {
			return err
		}
		return e.msg.SendMessage(ctx, msg.Sender, msgAIReady)
	}

	state, err := e.states.Get(ctx, msg.Sender)
	if err != nil {
		return err
	}
	if state != nil {
		return e.dispatchFlow(ctx, state, option, msg.MessageID)
	}

	switch option {
	case models.ButtonOption1:
		if _, err := e.states.Begin(ctx, msg.Sender, models.StepName); err != nil {
			return err
		}
		return e.msg.SendMessage(ctx, msg.Sender, msgAskName)
	case models.ButtonOption2:
		if _, err := e.states.Begin(ctx, msg.Sender, models.StepConsultList); err != nil {
			return err
		}
		return e.msg.SendMessage(ctx, msg.Sender, msgConsultMenu)
	}

	slog.Debug("Engine ignoring unrecognized button", "sender", msg.Sender, "button", option)
	return nil
}

// sendWelcome greets the sender by name and shows the main menu.
func (e *Engine) sendWelcome(ctx context.Context, sender, senderName string) error {
	name := senderName
	if name == "" {
		name = sender
	}
	if err := e.msg.SendMessage(ctx, sender, welcomeMessage(name, time.Now())); err != nil {
		return err
	}
	return e.msg.SendButtons(ctx, sender, "Elige una opción", welcomeMenuButtons)
}

// dispatchFlow routes input for an active flow: in-flow cross-cutting buttons
// first, then the handler registered for the current step.
func (e *Engine) dispatchFlow(ctx context.Context, state *models.ConversationState, input, messageID string) error {
	slog.Debug("Engine dispatching flow input", "sender", state.Sender, "step", state.Step)

	switch input {
	case models.ButtonAnotherConsult:
		state.Step = models.StepConsultList
		if err := e.states.Save(ctx, state); err != nil {
			return err
		}
		return e.msg.SendMessage(ctx, state.Sender, msgConsultMenu)
	case models.ButtonEndConsult:
		if err := e.states.Clear(ctx, state.Sender); err != nil {
			return err
		}
		return e.msg.SendMessage(ctx, state.Sender, msgConsultClosed)
	}

	handler, ok := stepHandlers[state.Step]
	if !ok {
		slog.Error("Engine has no handler for step", "sender", state.Sender, "step", state.Step)
		return models.ErrUnknownStep
	}
	return handler(e, ctx, state, input, messageID)
}

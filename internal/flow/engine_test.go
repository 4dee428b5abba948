package flow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gymbro/gymbot/internal/messaging"
	"github.com/gymbro/gymbot/internal/models"
	"github.com/gymbro/gymbot/internal/store"
)

const testSender = "573110000001"

// mockAnswerer is a canned Answerer recording every question it receives.
type mockAnswerer struct {
	answer    string
	err       error
	questions []string
}

func (m *mockAnswerer) Answer(ctx context.Context, question string) (string, error) {
	m.questions = append(m.questions, question)
	return m.answer, m.err
}

func newTestEngine() (*Engine, *messaging.MockService, store.Store, *mockAnswerer) {
	st := store.NewInMemoryStore()
	svc := messaging.NewMockService()
	ai := &mockAnswerer{answer: "respuesta del gimnasio"}
	engine := NewEngine(NewStateManager(st), st, svc, ai)
	return engine, svc, st, ai
}

func sendText(t *testing.T, e *Engine, body string) {
	t.Helper()
	err := e.HandleMessage(context.Background(), models.InboundMessage{
		Sender:     testSender,
		SenderName: "Juan",
		Type:       models.MessageTypeText,
		Text:       body,
	})
	if err != nil {
		t.Fatalf("HandleMessage(%q): %v", body, err)
	}
}

func pressButton(t *testing.T, e *Engine, id string) {
	t.Helper()
	err := e.HandleMessage(context.Background(), models.InboundMessage{
		Sender:     testSender,
		SenderName: "Juan",
		Type:       models.MessageTypeInteractive,
		ButtonID:   id,
	})
	if err != nil {
		t.Fatalf("HandleMessage(button %q): %v", id, err)
	}
}

func lastSent(t *testing.T, svc *messaging.MockService) messaging.SentMessage {
	t.Helper()
	sent := svc.Sent()
	if len(sent) == 0 {
		t.Fatal("expected at least one outbound message")
	}
	return sent[len(sent)-1]
}

func requireStep(t *testing.T, st store.Store, want models.Step) *models.ConversationState {
	t.Helper()
	state, err := st.GetConversationState(testSender)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state == nil {
		t.Fatalf("expected active state at step %s, got none", want)
	}
	if state.Step != want {
		t.Fatalf("expected step %s, got %s", want, state.Step)
	}
	return state
}

func requireNoState(t *testing.T, st store.Store) {
	t.Helper()
	state, err := st.GetConversationState(testSender)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state != nil {
		t.Fatalf("expected no active state, got step %s", state.Step)
	}
}

func TestGreetingSendsWelcomeAndMenu(t *testing.T) {
	engine, svc, _, _ := newTestEngine()

	sendText(t, engine, "Hola")

	sent := svc.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected welcome + menu, got %d messages", len(sent))
	}
	if !strings.Contains(sent[0].Body, "Juan") || !strings.Contains(sent[0].Body, "GymBro") {
		t.Errorf("unexpected welcome body: %q", sent[0].Body)
	}
	if len(sent[1].Buttons) != 3 || sent[1].Buttons[0].ID != models.ButtonOption1 {
		t.Errorf("unexpected menu buttons: %+v", sent[1].Buttons)
	}
}

func TestTextWithoutFlowOrGreetingIgnored(t *testing.T) {
	engine, svc, _, _ := newTestEngine()

	sendText(t, engine, "cuánto cuesta el plan mensual")
	sendText(t, engine, "   ")
	sendText(t, engine, "\u200b\u200b")

	if sent := svc.Sent(); len(sent) != 0 {
		t.Fatalf("expected no outbound messages, got %+v", sent)
	}
}

func TestBookingHappyPath(t *testing.T) {
	engine, svc, st, _ := newTestEngine()

	pressButton(t, engine, models.ButtonOption1)
	if got := lastSent(t, svc).Body; got != msgAskName {
		t.Fatalf("expected name prompt, got %q", got)
	}

	sendText(t, engine, "Juan Perez")
	if got := lastSent(t, svc).Body; got != msgAskAge {
		t.Fatalf("expected age prompt, got %q", got)
	}

	sendText(t, engine, "25")
	if got := lastSent(t, svc).Body; got != msgAskDay {
		t.Fatalf("expected day prompt, got %q", got)
	}

	sendText(t, engine, "1")
	if got := lastSent(t, svc).Body; got != msgAskHour {
		t.Fatalf("expected hour prompt, got %q", got)
	}

	sendText(t, engine, "14:30")
	if got := lastSent(t, svc).Body; got != msgAskClass {
		t.Fatalf("expected class prompt, got %q", got)
	}

	svc.Reset()
	sendText(t, engine, "1")
	sent := svc.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected summary + confirm buttons, got %d messages", len(sent))
	}
	if !strings.Contains(sent[0].Body, "Juan Perez") || !strings.Contains(sent[0].Body, "Yoga") {
		t.Errorf("unexpected summary: %q", sent[0].Body)
	}
	if len(sent[1].Buttons) != 2 || sent[1].Buttons[0].ID != models.ButtonConfirm {
		t.Errorf("unexpected confirm buttons: %+v", sent[1].Buttons)
	}

	svc.Reset()
	pressButton(t, engine, models.ButtonConfirm)
	sent = svc.Sent()
	if len(sent) != 2 || sent[0].Body != msgBookingSaved {
		t.Fatalf("expected success + closing buttons, got %+v", sent)
	}
	if sent[1].Buttons[0].ID != models.ButtonEndChat || sent[1].Buttons[1].ID != models.ButtonBackToMenu {
		t.Errorf("unexpected closing buttons: %+v", sent[1].Buttons)
	}

	requireNoState(t, st)

	bookings, err := st.ListBookings()
	if err != nil || len(bookings) != 1 {
		t.Fatalf("expected one stored booking, got %d err %v", len(bookings), err)
	}
	b := bookings[0]
	if b.Name != "Juan Perez" || b.Age != 25 || b.Day != "Lunes" || b.Hour != "14:30" || b.Reason != "Yoga" || b.Sender != testSender {
		t.Errorf("unexpected booking record: %+v", b)
	}
}

func TestAgeValidation(t *testing.T) {
	engine, svc, st, _ := newTestEngine()

	pressButton(t, engine, models.ButtonOption1)
	sendText(t, engine, "Juan Perez")

	for input, want := range map[string]string{
		"abc": msgInvalidAge,
		"8":   msgAgeOutOfRange,
		"61":  msgAgeOutOfRange,
	} {
		sendText(t, engine, input)
		if got := lastSent(t, svc).Body; got != want {
			t.Errorf("age %q: expected %q, got %q", input, want, got)
		}
		requireStep(t, st, models.StepAge)
	}

	sendText(t, engine, "25")
	state := requireStep(t, st, models.StepAwaitingDayInput)
	if state.Field(models.FieldAge) != "25" {
		t.Errorf("expected stored age 25, got %q", state.Field(models.FieldAge))
	}
}

func TestHourValidation(t *testing.T) {
	engine, svc, st, _ := newTestEngine()

	pressButton(t, engine, models.ButtonOption1)
	sendText(t, engine, "Juan Perez")
	sendText(t, engine, "25")
	sendText(t, engine, "miercoles")

	for input, want := range map[string]string{
		"24:00": msgInvalidHour,
		"7:65":  msgInvalidHour,
		"04:59": msgHourOutOfRange,
		"21:01": msgHourOutOfRange,
	} {
		sendText(t, engine, input)
		if got := lastSent(t, svc).Body; got != want {
			t.Errorf("hour %q: expected %q, got %q", input, want, got)
		}
		requireStep(t, st, models.StepHour)
	}

	sendText(t, engine, "14:30")
	state := requireStep(t, st, models.StepReason)
	if state.Field(models.FieldDay) != "Miércoles" {
		t.Errorf("expected canonical day Miércoles, got %q", state.Field(models.FieldDay))
	}
}

func TestTrainerSelection(t *testing.T) {
	engine, svc, st, _ := newTestEngine()

	pressButton(t, engine, models.ButtonOption1)
	sendText(t, engine, "Ana Gomez")
	sendText(t, engine, "30")
	sendText(t, engine, "viernes")
	sendText(t, engine, "06:00")

	sendText(t, engine, "4")
	if got := lastSent(t, svc).Body; got != msgAskTrainer {
		t.Fatalf("expected trainer prompt, got %q", got)
	}

	sendText(t, engine, "no conozco ninguno")
	if got := lastSent(t, svc).Body; got != msgInvalidTrainer {
		t.Fatalf("expected trainer rejection, got %q", got)
	}

	svc.Reset()
	sendText(t, engine, "laura")
	state := requireStep(t, st, models.StepConfirmation)
	if state.Field(models.FieldReason) != "Entrenador Personal con Laura" {
		t.Errorf("unexpected reason: %q", state.Field(models.FieldReason))
	}
	if sent := svc.Sent(); !strings.Contains(sent[0].Body, "Entrenador Personal con Laura") {
		t.Errorf("summary missing trainer: %q", sent[0].Body)
	}
}

func TestDuplicateBookingRejected(t *testing.T) {
	engine, svc, st, _ := newTestEngine()

	if err := st.AddBooking(models.Booking{
		ID: "b_seed", Sender: "573110009999", Name: "Juan Perez", Age: 25,
		Day: "Lunes", Reason: "Yoga", Hour: "10:00", CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	pressButton(t, engine, models.ButtonOption1)
	sendText(t, engine, "Juan Perez")
	sendText(t, engine, "25")
	sendText(t, engine, "lunes")
	sendText(t, engine, "14:30")
	sendText(t, engine, "yoga")

	svc.Reset()
	pressButton(t, engine, models.ButtonConfirm)
	if got := svc.Sent()[0].Body; got != msgBookingDup {
		t.Fatalf("expected duplicate message, got %q", got)
	}

	bookings, _ := st.ListBookings()
	if len(bookings) != 1 {
		t.Errorf("expected no second booking, got %d", len(bookings))
	}
	// State is cleared regardless of outcome.
	requireNoState(t, st)
}

func TestCancelBooking(t *testing.T) {
	engine, svc, st, _ := newTestEngine()

	pressButton(t, engine, models.ButtonOption1)
	sendText(t, engine, "Juan Perez")
	sendText(t, engine, "25")
	sendText(t, engine, "sabado")
	sendText(t, engine, "09:00")
	sendText(t, engine, "crossfit")

	svc.Reset()
	pressButton(t, engine, models.ButtonCancel)
	sent := svc.Sent()
	if sent[0].Body != msgBookingCanceled {
		t.Fatalf("expected cancellation message, got %q", sent[0].Body)
	}
	requireNoState(t, st)

	bookings, _ := st.ListBookings()
	if len(bookings) != 0 {
		t.Errorf("expected no booking after cancel, got %d", len(bookings))
	}
}

func TestConfirmationRejectsFreeText(t *testing.T) {
	engine, svc, st, _ := newTestEngine()

	pressButton(t, engine, models.ButtonOption1)
	sendText(t, engine, "Juan Perez")
	sendText(t, engine, "25")
	sendText(t, engine, "martes")
	sendText(t, engine, "18:00")
	sendText(t, engine, "funcional")

	sendText(t, engine, "si claro")
	if got := lastSent(t, svc).Body; got != msgInvalidConfirm {
		t.Fatalf("expected confirmation rejection, got %q", got)
	}
	requireStep(t, st, models.StepConfirmation)
}

func TestFinalizedGate(t *testing.T) {
	engine, svc, st, _ := newTestEngine()

	pressButton(t, engine, models.ButtonEndChat)
	if got := lastSent(t, svc).Body; got != msgChatFinalized {
		t.Fatalf("expected finalized message, got %q", got)
	}
	requireNoState(t, st)

	// Text that is not a greeting is swallowed while finalized.
	svc.Reset()
	sendText(t, engine, "gracias")
	sendText(t, engine, "y mis clases?")
	if sent := svc.Sent(); len(sent) != 0 {
		t.Fatalf("expected silence while finalized, got %+v", sent)
	}

	// A greeting clears the flag and restarts the welcome sequence.
	sendText(t, engine, "hola")
	sent := svc.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected welcome sequence, got %d messages", len(sent))
	}
	finalized, _ := st.IsFinalized(testSender)
	if finalized {
		t.Error("expected finalized flag cleared after greeting")
	}
}

func TestBackToMenuButton(t *testing.T) {
	engine, svc, _, _ := newTestEngine()

	pressButton(t, engine, models.ButtonEndChat)
	svc.Reset()
	pressButton(t, engine, models.ButtonBackToMenu)

	sent := svc.Sent()
	if len(sent) != 2 || len(sent[1].Buttons) != 3 {
		t.Fatalf("expected welcome + menu after volver_menu, got %+v", sent)
	}
}

func TestConsultListTopics(t *testing.T) {
	engine, svc, st, _ := newTestEngine()

	pressButton(t, engine, models.ButtonOption2)
	if got := lastSent(t, svc).Body; got != msgConsultMenu {
		t.Fatalf("expected consult menu, got %q", got)
	}
	requireStep(t, st, models.StepConsultList)

	cases := map[string]string{
		"1":        msgPrices,
		"horarios": msgSchedule,
		"3":        msgLocation,
		"asesor":   msgAdvisor,
		"zumba":    msgInvalidConsultTopic,
	}
	for input, want := range cases {
		svc.Reset()
		sendText(t, engine, input)
		sent := svc.Sent()
		if len(sent) != 2 || sent[0].Body != want {
			t.Errorf("topic %q: expected %q + consult buttons, got %+v", input, want, sent)
			continue
		}
		if sent[1].Buttons[0].ID != models.ButtonAnotherConsult || sent[1].Buttons[1].ID != models.ButtonEndConsult {
			t.Errorf("topic %q: unexpected buttons %+v", input, sent[1].Buttons)
		}
		requireStep(t, st, models.StepConsultList)
	}

	// Finalizing the consult clears the state.
	svc.Reset()
	pressButton(t, engine, models.ButtonEndConsult)
	if got := lastSent(t, svc).Body; got != msgConsultClosed {
		t.Fatalf("expected consult closed message, got %q", got)
	}
	requireNoState(t, st)
}

func TestMembershipLookup(t *testing.T) {
	engine, svc, st, _ := newTestEngine()

	end := time.Now().Add(12 * 24 * time.Hour)
	if err := st.UpsertMembership(models.Membership{
		CardID:    "1032456789",
		Name:      "Carlos Ruiz",
		Plan:      "Mensual",
		StartDate: time.Now().Add(-18 * 24 * time.Hour),
		EndDate:   end,
		Status:    models.MembershipActive,
	}); err != nil {
		t.Fatalf("seed membership: %v", err)
	}

	pressButton(t, engine, models.ButtonOption2)
	sendText(t, engine, "4")
	if got := lastSent(t, svc).Body; got != msgAskCardID {
		t.Fatalf("expected card id prompt, got %q", got)
	}
	requireStep(t, st, models.StepAwaitingCardID)

	sendText(t, engine, "12a")
	if got := lastSent(t, svc).Body; got != msgInvalidCardID {
		t.Fatalf("expected card id rejection, got %q", got)
	}
	requireStep(t, st, models.StepAwaitingCardID)

	svc.Reset()
	sendText(t, engine, "1032456789")
	sent := svc.Sent()
	if len(sent) != 3 || sent[0].Body != msgLookingUp {
		t.Fatalf("expected lookup + result + buttons, got %+v", sent)
	}
	if !strings.Contains(sent[1].Body, "Carlos Ruiz") || !strings.Contains(sent[1].Body, "Estado: Activo") {
		t.Errorf("unexpected membership result: %q", sent[1].Body)
	}
	requireStep(t, st, models.StepConsultList)

	// Unknown card id reports not found.
	svc.Reset()
	sendText(t, engine, "4")
	sendText(t, engine, "999999")
	sent = svc.Sent()
	if got := sent[len(sent)-2].Body; got != msgMembershipNotFound {
		t.Errorf("expected not-found message, got %q", got)
	}
}

func TestPauseFlow(t *testing.T) {
	engine, svc, st, _ := newTestEngine()

	pressButton(t, engine, models.ButtonOption2)
	sendText(t, engine, "5")
	if got := lastSent(t, svc).Body; got != msgPauseIntro {
		t.Fatalf("expected pause intro, got %q", got)
	}

	sendText(t, engine, "1234")
	if got := lastSent(t, svc).Body; got != msgPauseInvalidName {
		t.Fatalf("expected pause name rejection, got %q", got)
	}

	sendText(t, engine, "Carlos Ruiz")
	if got := lastSent(t, svc).Body; got != msgPauseAskCardID {
		t.Fatalf("expected pause card id prompt, got %q", got)
	}

	sendText(t, engine, "no tengo")
	if got := lastSent(t, svc).Body; got != msgPauseInvalidCardID {
		t.Fatalf("expected pause card id rejection, got %q", got)
	}

	sendText(t, engine, "1032456789")
	if got := lastSent(t, svc).Body; got != msgPauseAskReason {
		t.Fatalf("expected pause reason prompt, got %q", got)
	}

	svc.Reset()
	sendText(t, engine, "viaje de trabajo por dos meses")
	sent := svc.Sent()
	if len(sent) != 2 || !strings.Contains(sent[0].Body, "Carlos Ruiz") || !strings.Contains(sent[0].Body, "1032456789") {
		t.Fatalf("expected pause confirmation, got %+v", sent)
	}
	if sent[1].Buttons[0].ID != models.ButtonBackToMenu {
		t.Errorf("unexpected pause closing buttons: %+v", sent[1].Buttons)
	}
	requireNoState(t, st)

	requests, err := st.ListPauseRequests()
	if err != nil || len(requests) != 1 {
		t.Fatalf("expected one pause request, got %d err %v", len(requests), err)
	}
	p := requests[0]
	if p.Name != "Carlos Ruiz" || p.CardID != "1032456789" || p.Reason != "viaje de trabajo por dos meses" || p.Status != "" {
		t.Errorf("unexpected pause request: %+v", p)
	}
}

func TestAIFlow(t *testing.T) {
	engine, svc, st, ai := newTestEngine()
	ai.answer = strings.Repeat("x", 9000)

	pressButton(t, engine, models.ButtonOption3)
	if got := lastSent(t, svc).Body; got != msgAIReady {
		t.Fatalf("expected AI ready message, got %q", got)
	}
	requireStep(t, st, models.StepAwaitingAIQuestion)

	svc.Reset()
	sendText(t, engine, "¿qué suplementos recomiendan?")

	if len(ai.questions) != 1 || ai.questions[0] != "¿qué suplementos recomiendan?" {
		t.Fatalf("expected exactly one AI call with the question, got %+v", ai.questions)
	}

	sent := svc.Sent()
	// thinking + 3 chunks + close button prompt
	if len(sent) != 5 {
		t.Fatalf("expected 5 outbound messages, got %d", len(sent))
	}
	if sent[0].Body != msgAIThinking {
		t.Errorf("expected thinking message first, got %q", sent[0].Body)
	}
	if strings.Join([]string{sent[1].Body, sent[2].Body, sent[3].Body}, "") != ai.answer {
		t.Error("chunks do not reassemble the answer in order")
	}
	if sent[4].Buttons[0].ID != models.ButtonEndChat {
		t.Errorf("expected close button, got %+v", sent[4].Buttons)
	}

	// Still in AI mode: a second question triggers a second call.
	requireStep(t, st, models.StepAwaitingAIQuestion)
	sendText(t, engine, "¿y horarios de spinning?")
	if len(ai.questions) != 2 {
		t.Errorf("expected second AI call, got %d", len(ai.questions))
	}
}

func TestAIFlowAnswerError(t *testing.T) {
	engine, svc, st, ai := newTestEngine()
	ai.err = errors.New("model unavailable")

	pressButton(t, engine, models.ButtonOption3)
	svc.Reset()
	sendText(t, engine, "¿cuál es el mejor plan?")

	sent := svc.Sent()
	if len(sent) < 2 || sent[1].Body != msgAIFailed {
		t.Fatalf("expected AI failure message, got %+v", sent)
	}
	requireStep(t, st, models.StepAwaitingAIQuestion)
}

func TestGreetingRestartsMidFlow(t *testing.T) {
	engine, svc, st, _ := newTestEngine()

	pressButton(t, engine, models.ButtonOption1)
	sendText(t, engine, "Juan Perez")
	requireStep(t, st, models.StepAge)

	svc.Reset()
	sendText(t, engine, "hola de nuevo")
	sent := svc.Sent()
	if len(sent) != 2 || len(sent[1].Buttons) != 3 {
		t.Fatalf("expected welcome sequence mid-flow, got %+v", sent)
	}
}

func TestMediaAndUnsupportedIgnored(t *testing.T) {
	engine, svc, _, _ := newTestEngine()

	for _, typ := range []models.MessageType{models.MessageTypeMedia, models.MessageTypeUnsupported} {
		err := engine.HandleMessage(context.Background(), models.InboundMessage{
			Sender: testSender,
			Type:   typ,
			Text:   "payload",
		})
		if err != nil {
			t.Fatalf("HandleMessage(%s): %v", typ, err)
		}
	}
	if sent := svc.Sent(); len(sent) != 0 {
		t.Fatalf("expected no outbound messages, got %+v", sent)
	}
}

func TestInboundMarkedRead(t *testing.T) {
	engine, svc, _, _ := newTestEngine()

	err := engine.HandleMessage(context.Background(), models.InboundMessage{
		Sender:    testSender,
		Type:      models.MessageTypeText,
		Text:      "hola",
		MessageID: "wamid.abc",
	})
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	read := svc.MarkedRead()
	if len(read) != 1 || read[0] != "wamid.abc" {
		t.Errorf("expected read receipt for wamid.abc, got %+v", read)
	}
}

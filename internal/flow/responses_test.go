package flow

import (
	"strings"
	"testing"
	"time"

	"github.com/gymbro/gymbot/internal/models"
)

func TestChunkMessage(t *testing.T) {
	short := "respuesta corta"
	if got := ChunkMessage(short, models.MaxMessageLength); len(got) != 1 || got[0] != short {
		t.Fatalf("expected single chunk, got %d", len(got))
	}

	long := strings.Repeat("a", 9000)
	chunks := ChunkMessage(long, models.MaxMessageLength)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 4000 || len(chunks[1]) != 4000 || len(chunks[2]) != 1000 {
		t.Errorf("unexpected chunk sizes: %d %d %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
	if strings.Join(chunks, "") != long {
		t.Error("chunks do not reassemble to the original answer")
	}
}

func TestChunkMessageRuneSafe(t *testing.T) {
	// Multibyte characters must never be split mid-rune.
	long := strings.Repeat("ñ", 4001)
	chunks := ChunkMessage(long, 4000)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if !strings.HasPrefix(chunk, "ñ") || !strings.HasSuffix(chunk, "ñ") {
			t.Errorf("chunk %d split a multibyte character", i)
		}
	}
	if strings.Join(chunks, "") != long {
		t.Error("chunks do not reassemble to the original answer")
	}
}

func TestWelcomeMessageSalutation(t *testing.T) {
	cases := []struct {
		hour int
		want string
	}{
		{8, "¡Buenos días!"},
		{14, "¡Buenas tardes!"},
		{20, "¡Buenas noches!"},
	}
	for _, c := range cases {
		now := time.Date(2025, 6, 1, c.hour, 0, 0, 0, time.Local)
		msg := welcomeMessage("Juan", now)
		if !strings.Contains(msg, c.want) {
			t.Errorf("hour %d: expected salutation %q in %q", c.hour, c.want, msg)
		}
		if !strings.Contains(msg, "Juan") || !strings.Contains(msg, "GymBro") {
			t.Errorf("hour %d: welcome missing name or brand: %q", c.hour, msg)
		}
	}
}

func TestMembershipMessage(t *testing.T) {
	base := models.MembershipSnapshot{
		Name:      "Carlos Ruiz",
		Plan:      "Mensual",
		StartDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}

	active := base
	active.Status = models.MembershipActive
	active.DaysRemaining = 12
	msg := membershipMessage(active)
	if !strings.Contains(msg, "Estado: Activo") || !strings.Contains(msg, "Días restantes: 12") || !strings.Contains(msg, "Plan: Mensual") {
		t.Errorf("unexpected active message: %q", msg)
	}

	expired := base
	expired.Status = models.MembershipExpired
	msg = membershipMessage(expired)
	if !strings.Contains(msg, "Estado: Vencido") || !strings.Contains(msg, "Renueva tu membresía") {
		t.Errorf("unexpected expired message: %q", msg)
	}

	paused := base
	paused.Status = models.MembershipPaused
	msg = membershipMessage(paused)
	if !strings.Contains(msg, "Estado: pausado") {
		t.Errorf("unexpected paused message: %q", msg)
	}
}

func TestBookingSummary(t *testing.T) {
	state := &models.ConversationState{Sender: "573110000001"}
	state.SetField(models.FieldName, "Juan Perez")
	state.SetField(models.FieldAge, "25")
	state.SetField(models.FieldDay, "Miércoles")
	state.SetField(models.FieldHour, "14:30")
	state.SetField(models.FieldReason, "Yoga")

	summary := bookingSummary(state)
	for _, want := range []string{"Juan Perez", "25", "Miércoles", "14:30", "Yoga", "¿Deseas confirmar tu cita?"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q: %q", want, summary)
		}
	}
}

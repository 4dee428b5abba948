package messaging

import (
	"context"
	"testing"

	"github.com/gymbro/gymbot/internal/models"
	"github.com/gymbro/gymbot/internal/whatsapp"
)

func TestWhatsAppServiceValidateAndCanonicalizeRecipient(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())

	cases := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"573110000001", "573110000001", false},
		{"+57 311 000-0001", "573110000001", false},
		{"", "", true},
		{"abc", "", true},
		{"12345", "", true},
	}
	for _, c := range cases {
		got, err := svc.ValidateAndCanonicalizeRecipient(c.input)
		if (err != nil) != c.wantErr {
			t.Errorf("%q: unexpected error state: %v", c.input, err)
			continue
		}
		if !c.wantErr && got != c.want {
			t.Errorf("%q: got %q, want %q", c.input, got, c.want)
		}
	}
}

func TestWhatsAppServiceSendMessage(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)

	if err := svc.SendMessage(context.Background(), "+573110000001", "hola"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mock.Messages) != 1 || mock.Messages[0].To != "573110000001" {
		t.Errorf("unexpected recorded send: %+v", mock.Messages)
	}
}

func TestWhatsAppServiceSendButtons(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)

	buttons := []models.Button{
		{ID: models.ButtonConfirm, Label: "✅ Confirmar"},
		{ID: models.ButtonCancel, Label: "❌ Cancelar"},
	}
	if err := svc.SendButtons(context.Background(), "573110000001", "Confirma tu cita:", buttons); err != nil {
		t.Fatalf("send buttons: %v", err)
	}
	if len(mock.Messages) != 1 || len(mock.Messages[0].Buttons) != 2 {
		t.Fatalf("unexpected recorded send: %+v", mock.Messages)
	}

	if err := svc.SendButtons(context.Background(), "573110000001", "sin botones", nil); err != models.ErrNoButtons {
		t.Errorf("expected ErrNoButtons, got %v", err)
	}
}

func TestWhatsAppServiceStopRejectsSends(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	// Stop is idempotent.
	if err := svc.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if err := svc.SendMessage(context.Background(), "573110000001", "hola"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}

func TestWhatsAppServiceMarkReadUnknownID(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)

	// Unknown ids are skipped without error.
	if err := svc.MarkRead(context.Background(), "wamid.unknown"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if len(mock.Read) != 0 {
		t.Errorf("expected no read receipt for unknown id, got %+v", mock.Read)
	}

	svc.rememberChat("wamid.known", "573110000001")
	if err := svc.MarkRead(context.Background(), "wamid.known"); err != nil {
		t.Fatalf("mark read known: %v", err)
	}
	if len(mock.Read) != 1 || mock.Read[0] != "wamid.known" {
		t.Errorf("expected read receipt, got %+v", mock.Read)
	}
}

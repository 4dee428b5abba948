package models

import (
	"testing"
	"time"
)

func TestBookingValidate(t *testing.T) {
	valid := Booking{
		ID:     "b_1",
		Sender: "573110000001",
		Name:   "Carlos Pérez",
		Age:    25,
		Day:    "Lunes",
		Reason: "Yoga",
		Hour:   "10:30",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid booking, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Booking)
	}{
		{"empty sender", func(b *Booking) { b.Sender = "" }},
		{"missing name", func(b *Booking) { b.Name = "" }},
		{"missing day", func(b *Booking) { b.Day = "" }},
		{"missing reason", func(b *Booking) { b.Reason = "" }},
		{"missing hour", func(b *Booking) { b.Hour = "" }},
		{"age too young", func(b *Booking) { b.Age = MinBookingAge - 1 }},
		{"age too old", func(b *Booking) { b.Age = MaxBookingAge + 1 }},
	}
	for _, c := range cases {
		b := valid
		c.mutate(&b)
		if err := b.Validate(); err == nil {
			t.Errorf("%s: expected validation error", c.name)
		}
	}
}

func TestMembershipEvaluateAt(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	m := Membership{
		Name:    "Carlos Pérez",
		Plan:    "Mensualidad",
		Status:  MembershipActive,
		EndDate: now.AddDate(0, 0, 10),
	}
	snap := m.EvaluateAt(now)
	if snap.Status != MembershipActive {
		t.Errorf("expected active status, got %q", snap.Status)
	}
	if snap.DaysRemaining != 10 {
		t.Errorf("expected 10 days remaining, got %d", snap.DaysRemaining)
	}

	// Partial days round up.
	m.EndDate = now.Add(36 * time.Hour)
	if got := m.EvaluateAt(now).DaysRemaining; got != 2 {
		t.Errorf("expected partial day to round up to 2, got %d", got)
	}

	// A stored active row past its end date reads as expired.
	m.EndDate = now.AddDate(0, 0, -1)
	snap = m.EvaluateAt(now)
	if snap.Status != MembershipExpired {
		t.Errorf("expected expired status, got %q", snap.Status)
	}
	if snap.DaysRemaining != -1 {
		t.Errorf("expected -1 days remaining, got %d", snap.DaysRemaining)
	}

	// Non-active stored statuses are reported as stored even when past due.
	m.Status = MembershipPaused
	if got := m.EvaluateAt(now).Status; got != MembershipPaused {
		t.Errorf("expected paused status preserved, got %q", got)
	}
}

func TestConversationStateFields(t *testing.T) {
	state := ConversationState{Sender: "573110000001", Step: StepName}

	if got := state.Field(FieldName); got != "" {
		t.Errorf("expected empty field before set, got %q", got)
	}
	state.SetField(FieldName, "Carlos Pérez")
	if got := state.Field(FieldName); got != "Carlos Pérez" {
		t.Errorf("expected stored field value, got %q", got)
	}
}

func TestIsValidStep(t *testing.T) {
	if !IsValidStep(StepAwaitingAIQuestion) {
		t.Error("expected known step to be valid")
	}
	if IsValidStep(Step("paso_inexistente")) {
		t.Error("expected unknown step to be invalid")
	}
}

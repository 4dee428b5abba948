package flow

import "testing"

func TestParseAge(t *testing.T) {
	cases := []struct {
		input   string
		numeric bool
		inRange bool
	}{
		{"25", true, true},
		{"9", true, true},
		{"60", true, true},
		{"8", true, false},
		{"61", true, false},
		{"abc", false, false},
		{"25a", false, false},
		{"-5", false, false},
		{"", false, false},
	}
	for _, c := range cases {
		_, numeric, inRange := parseAge(c.input)
		if numeric != c.numeric || inRange != c.inRange {
			t.Errorf("parseAge(%q) = numeric %v inRange %v, want %v %v", c.input, numeric, inRange, c.numeric, c.inRange)
		}
	}
}

func TestValidateHour(t *testing.T) {
	cases := []struct {
		input    string
		ok       bool
		inWindow bool
	}{
		{"14:30", true, true},
		{"05:00", true, true},
		{"21:00", true, true},
		{"04:59", true, false},
		{"21:01", true, false},
		{"24:00", false, false},
		{"7:65", false, false},
		{"14.30", false, false},
		{"noon", false, false},
	}
	for _, c := range cases {
		ok, inWindow := validateHour(c.input)
		if ok != c.ok || inWindow != c.inWindow {
			t.Errorf("validateHour(%q) = ok %v inWindow %v, want %v %v", c.input, ok, inWindow, c.ok, c.inWindow)
		}
	}
}

func TestCanonicalDay(t *testing.T) {
	// Digit, unaccented name and accented name all resolve to the same value.
	for _, input := range []string{"3", "miercoles", "Miércoles", " miércoles "} {
		if got := canonicalDay(input); got != "Miércoles" {
			t.Errorf("canonicalDay(%q) = %q, want Miércoles", input, got)
		}
	}
	if got := canonicalDay("domingo"); got != "" {
		t.Errorf("expected no match for domingo, got %q", got)
	}
	if got := canonicalDay("7"); got != "" {
		t.Errorf("expected no match for 7, got %q", got)
	}
}

func TestValidName(t *testing.T) {
	valid := []string{"Juan Perez", "María José Gómez", "Ñoño Ibáñez"}
	for _, name := range valid {
		if !validName(name) {
			t.Errorf("expected %q to be a valid name", name)
		}
	}
	invalid := []string{"Juan123", "Juan_Perez", "", "Juan!"}
	for _, name := range invalid {
		if validName(name) {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}

func TestValidCardID(t *testing.T) {
	valid := []string{"123456", "1032456789"}
	for _, id := range valid {
		if !validCardID(id) {
			t.Errorf("expected %q to be valid", id)
		}
	}
	invalid := []string{"12345", "12345678901", "12a456", ""}
	for _, id := range invalid {
		if validCardID(id) {
			t.Errorf("expected %q to be rejected", id)
		}
	}
}

func TestMatchClass(t *testing.T) {
	cases := map[string]string{
		"1":                  "Yoga",
		"yoga":               "Yoga",
		"quiero yoga please": "Yoga",
		"2":                  "Crossfit",
		"crossfit":           "Crossfit",
		"3":                  "Funcional",
		"funcional":          "Funcional",
		"4":                  ClassPersonalTraining,
		"entrenador":         ClassPersonalTraining,
		"personal":           ClassPersonalTraining,
		"natacion":           "",
	}
	for input, want := range cases {
		if got := matchClass(input); got != want {
			t.Errorf("matchClass(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMatchTrainer(t *testing.T) {
	cases := map[string]string{
		"1":       "Mateo",
		"mateo":   "Mateo",
		"2":       "Laura",
		"laura":   "Laura",
		"3":       "Andrés",
		"andres":  "Andrés",
		"andrés":  "Andrés",
		"ricardo": "",
	}
	for input, want := range cases {
		if got := matchTrainer(input); got != want {
			t.Errorf("matchTrainer(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMatchConsultTopic(t *testing.T) {
	cases := map[string]ConsultTopic{
		"1":                     TopicPrices,
		"precios":               TopicPrices,
		"2":                     TopicSchedule,
		"Horarios":              TopicSchedule,
		"3":                     TopicLocation,
		"ubicación":             TopicLocation,
		"ubicacion":             TopicLocation,
		"4":                     TopicMembership,
		"consultar mensualidad": TopicMembership,
		"5":                     TopicPause,
		"pausar membresia":      TopicPause,
		"6":                     TopicAdvisor,
		"asesor":                TopicAdvisor,
		"otra cosa":             TopicUnknown,
	}
	for input, want := range cases {
		if got := matchConsultTopic(input); got != want {
			t.Errorf("matchConsultTopic(%q) = %q, want %q", input, got, want)
		}
	}
}

package flow

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gymbro/gymbot/internal/classify"
	"github.com/gymbro/gymbot/internal/models"
)

var (
	nameRegex   = regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚñÑ\s]+$`)
	digitsRegex = regexp.MustCompile(`^\d+$`)
	hourRegex   = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)
	cardIDRegex = regexp.MustCompile(`^\d{6,10}$`)
)

// Class hours accepted for bookings, inclusive on both ends.
const (
	minBookingMinutes = 5 * 60  // 05:00
	maxBookingMinutes = 21 * 60 // 21:00
)

// validName accepts letters (including Spanish accented ones) and spaces only.
func validName(s string) bool {
	return nameRegex.MatchString(s)
}

// parseAge validates an age reply. The two failure modes carry distinct user
// messages, so they are reported separately: ok=false means not a number,
// inRange=false means a number outside the accepted band.
func parseAge(s string) (age int, ok bool, inRange bool) {
	if !digitsRegex.MatchString(s) {
		return 0, false, false
	}
	age, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, false
	}
	if age < models.MinBookingAge || age > models.MaxBookingAge {
		return age, true, false
	}
	return age, true, true
}

// validateHour checks a 24h HH:MM reply against the class schedule.
// ok=false means the text is not a valid hour at all; inWindow=false means a
// well-formed hour outside opening hours.
func validateHour(s string) (ok bool, inWindow bool) {
	if !hourRegex.MatchString(s) {
		return false, false
	}
	parts := strings.SplitN(s, ":", 2)
	hour, _ := strconv.Atoi(parts[0])
	minute, _ := strconv.Atoi(parts[1])
	total := hour*60 + minute
	if total < minBookingMinutes || total > maxBookingMinutes {
		return true, false
	}
	return true, true
}

// validCardID accepts a Colombian cédula: 6 to 10 digits.
func validCardID(s string) bool {
	return cardIDRegex.MatchString(s)
}

// dayAliases maps accepted day replies (digits or names, accented or not) to
// their canonical accented form.
var dayAliases = map[string]string{
	"1":         "Lunes",
	"2":         "Martes",
	"3":         "Miércoles",
	"4":         "Jueves",
	"5":         "Viernes",
	"6":         "Sábado",
	"lunes":     "Lunes",
	"martes":    "Martes",
	"miércoles": "Miércoles",
	"miercoles": "Miércoles",
	"jueves":    "Jueves",
	"viernes":   "Viernes",
	"sábado":    "Sábado",
	"sabado":    "Sábado",
}

// canonicalDay resolves a day reply to its canonical form, or "" when the
// reply matches no known day.
func canonicalDay(s string) string {
	return dayAliases[strings.ToLower(strings.TrimSpace(s))]
}

// classMatchers pair fuzzy input tokens with the canonical class name. Order
// matters: the first matching entry wins. Matching is by substring, so "yog"
// inside a longer reply still selects Yoga.
var classMatchers = []struct {
	tokens []string
	class  string
}{
	{[]string{"1", "yoga", "yog"}, "Yoga"},
	{[]string{"2", "crossfit", "cross"}, "Crossfit"},
	{[]string{"3", "funcional", "funcion"}, "Funcional"},
	{[]string{"4", "entrenador", "personal"}, "Entrenador Personalizado"},
}

// ClassPersonalTraining is the class choice that branches into trainer selection.
const ClassPersonalTraining = "Entrenador Personalizado"

// matchClass resolves a class reply to a canonical class name, or "" when no
// class matches.
func matchClass(s string) string {
	input := strings.ToLower(strings.TrimSpace(s))
	for _, m := range classMatchers {
		for _, tok := range m.tokens {
			if strings.Contains(input, tok) {
				return m.class
			}
		}
	}
	return ""
}

// trainerMatchers follow the same shape as classMatchers.
var trainerMatchers = []struct {
	tokens  []string
	trainer string
}{
	{[]string{"1", "mateo", "mat"}, "Mateo"},
	{[]string{"2", "laura", "lau"}, "Laura"},
	{[]string{"3", "andres", "andrés", "andr"}, "Andrés"},
}

// matchTrainer resolves a trainer reply to a trainer name, or "" when no
// trainer matches.
func matchTrainer(s string) string {
	input := strings.ToLower(strings.TrimSpace(s))
	for _, m := range trainerMatchers {
		for _, tok := range m.tokens {
			if strings.Contains(input, tok) {
				return m.trainer
			}
		}
	}
	return ""
}

// ConsultTopic identifies one entry of the consultation list.
type ConsultTopic string

const (
	TopicPrices     ConsultTopic = "prices"
	TopicSchedule   ConsultTopic = "schedule"
	TopicLocation   ConsultTopic = "location"
	TopicMembership ConsultTopic = "membership"
	TopicPause      ConsultTopic = "pause"
	TopicAdvisor    ConsultTopic = "advisor"
	TopicUnknown    ConsultTopic = ""
)

// consultKeywords map normalized menu tokens to topics. Unlike classes,
// matching here is by exact equality after normalization.
var consultKeywords = map[string]ConsultTopic{
	"1":                    TopicPrices,
	"precios":              TopicPrices,
	"membresia":            TopicPrices,
	"membresías":           TopicPrices,
	"2":                    TopicSchedule,
	"horarios":             TopicSchedule,
	"horario":              TopicSchedule,
	"3":                    TopicLocation,
	"ubicacion":            TopicLocation,
	"ubicación":            TopicLocation,
	"contacto":             TopicLocation,
	"direccion":            TopicLocation,
	"dirección":            TopicLocation,
	"4":                    TopicMembership,
	"estado":               TopicMembership,
	"miestado":             TopicMembership,
	"estadomembresia":      TopicMembership,
	"consultarmensualidad": TopicMembership,
	"5":                    TopicPause,
	"pausar":               TopicPause,
	"pausarmembresia":      TopicPause,
	"6":                    TopicAdvisor,
	"asesor":               TopicAdvisor,
	"hablarasesor":         TopicAdvisor,
	"ayuda":                TopicAdvisor,
	"asesoria":             TopicAdvisor,
}

// matchConsultTopic resolves a consultation-menu reply to a topic.
func matchConsultTopic(s string) ConsultTopic {
	return consultKeywords[classify.NormalizeMenuToken(s)]
}

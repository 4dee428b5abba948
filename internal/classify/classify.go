// Package classify provides the fixed phrase tables and normalization used to
// route inbound text: greeting detection, closure-phrase detection, and menu
// token normalization.
//
// Matching is deliberately fuzzy (substring containment against short phrase
// lists) so common variations still match; callers that need stricter matching
// should swap this package rather than patch flow logic.
package classify

import "strings"

// greetingPhrases is the hard-coded set of salutations that (re)start the
// welcome flow. Matching is contains-or-starts-with after normalization.
var greetingPhrases = []string{
	"hola", "hello", "hi", "hol", "ola",
	"buenas tardes", "buenos dias", "buenas noches",
	"buenas", "buen dia", "que tal", "saludos",
	"hola buenos", "hola buenas", "hey", "holis",
	"hola que tal", "como estas", "como va",
	"hola necesito ayuda", "hola quisiera consultar",
}

// closurePhrases is the hard-coded set of acknowledgements treated as a
// conversational close where a flow step explicitly checks for one.
var closurePhrases = []string{
	"gracias", "muchas gracias", "mil gracias",
	"todo claro", "perfecto", "genial", "excelente",
	"ok", "listo", "entendido", "vale", "de acuerdo",
}

// punctuation stripped before phrase matching.
const punctuation = "¿?!¡.,-"

// diacritics maps accented runes to their base form for greeting matching.
var diacritics = map[rune]rune{
	'á': 'a', 'é': 'e', 'í': 'i', 'ó': 'o', 'ú': 'u',
	'Á': 'a', 'É': 'e', 'Í': 'i', 'Ó': 'o', 'Ú': 'u',
	'ü': 'u', 'Ü': 'u',
}

// IsGreeting reports whether text reads as a salutation. Normalization
// lowercases, strips diacritics and punctuation, and trims whitespace; the
// result is matched by containment or prefix against the greeting table.
func IsGreeting(text string) bool {
	normalized := strings.TrimSpace(stripPunctuation(StripDiacritics(strings.ToLower(text))))
	if normalized == "" {
		return false
	}
	for _, phrase := range greetingPhrases {
		if strings.Contains(normalized, phrase) || strings.HasPrefix(normalized, phrase) {
			return true
		}
	}
	return false
}

// IsClosurePhrase reports whether text reads as a thanks/acknowledgement.
// Unlike greeting matching, diacritics are preserved here; only punctuation
// is stripped before substring containment.
func IsClosurePhrase(text string) bool {
	normalized := stripPunctuation(strings.ToLower(text))
	for _, phrase := range closurePhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

// NormalizeMenuToken lowercases text and removes every rune outside the
// letter/digit allow-list, producing the compact token matched against the
// consultation menu keyword sets (e.g. "Pausar membresía" -> "pausarmembresía").
func NormalizeMenuToken(text string) string {
	lowered := strings.ToLower(text)
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || isAllowedAccent(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StripDiacritics replaces accented vowels (and ü) with their base form.
func StripDiacritics(text string) string {
	return strings.Map(func(r rune) rune {
		if base, ok := diacritics[r]; ok {
			return base
		}
		return r
	}, text)
}

func stripPunctuation(text string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, text)
}

func isAllowedAccent(r rune) bool {
	switch r {
	case 'á', 'é', 'í', 'ó', 'ú', 'ñ', 'ü':
		return true
	default:
		return false
	}
}

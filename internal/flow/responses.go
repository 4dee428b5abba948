package flow

import (
	"fmt"
	"time"

	"github.com/gymbro/gymbot/internal/models"
)

// User-facing copy. All strings are Spanish; the bot serves a Colombian gym.
const (
	msgChatFinalized   = "✅ Chat finalizado. Si necesitas algo más, escribe *Hola*."
	msgAIReady         = "🧠 Estoy listo para responder tu consulta. ¡Escribe tu pregunta!"
	msgAIThinking      = "🤖 Pensando... un momento por favor."
	msgAIFailed        = "❌ Ocurrió un error al procesar tu pregunta. Intenta más tarde."
	msgAskName         = "Por favor, Ingresa tu nombre y apellido"
	msgInvalidName     = "Por favor ingresa solo tu nombre y apellido, sin números ni caracteres especiales."
	msgAskAge          = "¿Cuál es tu edad?"
	msgInvalidAge      = "Por favor ingresa solo tu edad en números. Ej: 25"
	msgAgeOutOfRange   = "🧍‍♂️ La edad debe estar entre *9 y 60 años*. Si tienes dudas, contáctanos directamente 💬."
	msgAskDay          = "📅 ¿Para qué día quieres agendar tu clase?\n\n1. Lunes\n2. Martes\n3. Miércoles\n4. Jueves\n5. Viernes\n6. Sábado"
	msgInvalidDay      = "❗ Por favor responde con el *número* o *nombre del día* (Ej: 1, lunes, sábado)."
	msgAskHour         = "⏰ ¿A qué hora quieres agendar tu clase? (formato 24h, ej: *14:30*)"
	msgInvalidHour     = "⏰ Por favor ingresa una hora válida en formato 24 horas. Ejemplo: *14:30*"
	msgHourOutOfRange  = "🕔 El horario disponible para clases es de *05:00 a 21:00*. Por favor ingresa una hora dentro de ese rango."
	msgAskClass        = "¿Qué tipo de clase deseas?\n\n1. Yoga 🧘‍♂️\n2. Crossfit 🏋️‍♂️\n3. Funcional 🔥\n4. Entrenamiento personalizado 💪"
	msgInvalidClass    = "Por favor selecciona una opción válida (1-4 o escribe el nombre de la clase)."
	msgAskTrainer      = "¿Con qué entrenador quieres agendar?\n\n1. Mateo 🔥\n2. Laura 🧘‍♀️\n3. Andrés 🦾"
	msgInvalidTrainer  = "Por favor selecciona un entrenador válido (1, 2, 3 o su nombre). Ej: Mateo, Laura o Andrés."
	msgConfirmPrompt   = "Confirma tu cita:"
	msgInvalidConfirm  = "Por favor elige una opción válida para confirmar o cancelar."
	msgBookingSaved    = "✅ ¡Tu clase ha sido agendada y registrada! Nos pondremos en contacto contigo en un momento para confirmar la fecha y hora. ¡Nos vemos pronto! 💪"
	msgBookingDup      = "📌 Ya tienes una clase agendada con esos datos. Si necesitas cambiarla, responde con *cancelar* y vuelve a intentarlo."
	msgBookingFailed   = "⚠️ Ocurrió un error al guardar los datos. Por favor, inténtalo de nuevo más tarde o contacta a un asesor."
	msgBookingCanceled = "❌ Tu cita ha sido cancelada."
	msgWhatNow         = "¿Qué deseas hacer ahora?"
	msgConsultAgain    = "¿Deseas realizar otra consulta o finalizar?"
	msgConsultClosed   = "✅ Consulta finalizada. ¡Gracias por comunicarte con *GymBro*! Si deseas volver a consultar, escribe *Hola* 💬."
	msgAIClosePrompt   = "Si has terminado, puedes finalizar la consulta:"

	msgConsultMenu = "📋 *Opciones de consulta:*\n\n1. Precios 💰\n2. Horarios 🕒\n3. Ubicación y contacto 📍\n4. Consultar mensualidad 🧾\n5. Pausar membresía ⏸️\n6. Contactar asesor 🤝"

	msgPrices   = "💰 *Precios y membresías:*\n\n- Mensual: $60.000 COP\n- Quincenal: $35.000 COP\n- Día: $10.000 COP\n\nIncluye acceso completo a todas las zonas del gimnasio, y orientación de los entrenadores."
	msgSchedule = "🕒 *Horarios del Gym:*\n\nLunes a Viernes: 5:00am - 9:00pm\nSábados: 6:00am - 12:00m\nDomingos y festivos: Cerrado."
	msgLocation = "📍 *Ubicación y contacto:*\n\n📌 Dirección: Calle 123 #45-67, Zarzal\n📞 Tel: +57 3116561249\n📧 Email: @gymbro@gmail.com\n🕘 Atención: Lun-Sáb en el horario establecido"
	msgAdvisor  = "Puedes contactar directamente a nuestro asesor *Daniel Feria* 🧑‍💼:\n\n📞 Teléfono: +573116561249\n\nPuedes agregarlo a tus contactos o iniciar un chat directamente con él."

	msgAskCardID          = "🧾 Para consultar tu estado de membresía, por favor responde con tu número de cédula."
	msgInvalidCardID      = "⚠️ Por favor ingresa un número de cédula válido (entre 6 y 10 dígitos)."
	msgLookingUp          = "Consultando tu membresía... ⏳"
	msgMembershipNotFound = "❌ No se encontró ninguna membresía asociada a esta cédula."
	msgMembershipError    = "❌ Ocurrió un error al consultar la membresía. Por favor, intenta más tarde."

	msgPauseIntro          = "📝 Para solicitar una pausa de tu membresía, primero necesito algunos datos.\n\nPor favor, escribe tu nombre y apellido:"
	msgPauseInvalidName    = "⚠️ Por favor ingresa un nombre válido (solo letras y espacios)."
	msgPauseAskCardID      = "⏸️ Ahora, por favor ingresa tu número de cédula:"
	msgPauseInvalidCardID  = "⚠️ Por favor ingresa un número de cédula válido para pausar tu membresía. Ej: 1032456789"
	msgPauseAskReason      = "📝 Por favor cuéntanos brevemente el motivo por el cual deseas pausar tu membresía:"
	msgPauseSaveFailed     = "❌ Ocurrió un error al guardar tu solicitud. Intenta más tarde."
	msgInvalidConsultTopic = "❓ Opción no válida. Por favor escribe el número o nombre de la consulta:\n\n1. Precios 💰\n2. Horarios 🕒\n3. Ubicación y contacto 📍\n4. Consultar mensualidad 🧾\n5. Pausar membresía ⏸️\n6. Contactar asesor 🤝"
)

// Button sets reused across flows.
var (
	welcomeMenuButtons = []models.Button{
		{ID: models.ButtonOption1, Label: "Agendar clases"},
		{ID: models.ButtonOption2, Label: "Consultar servicios"},
		{ID: models.ButtonOption3, Label: "Consulta abierta IA🤖"},
	}
	confirmButtons = []models.Button{
		{ID: models.ButtonConfirm, Label: "✅ Confirmar"},
		{ID: models.ButtonCancel, Label: "❌ Cancelar"},
	}
	closingButtons = []models.Button{
		{ID: models.ButtonEndChat, Label: "✅ Finalizar chat"},
		{ID: models.ButtonBackToMenu, Label: "🏠 Volver al menú"},
	}
	pauseClosingButtons = []models.Button{
		{ID: models.ButtonBackToMenu, Label: "🏠 Volver al menú"},
		{ID: models.ButtonEndChat, Label: "✅ Finalizar chat"},
	}
	consultButtons = []models.Button{
		{ID: models.ButtonAnotherConsult, Label: "🔁 Otra consulta"},
		{ID: models.ButtonEndConsult, Label: "❌ Finalizar"},
	}
	aiCloseButtons = []models.Button{
		{ID: models.ButtonEndChat, Label: "❌ Finalizar consulta"},
	}
)

// welcomeMessage builds the greeting for a sender. The salutation follows the
// local hour: morning before 12, afternoon before 19, evening after.
func welcomeMessage(name string, now time.Time) string {
	var timeGreeting string
	switch hour := now.Hour(); {
	case hour < 12:
		timeGreeting = "¡Buenos días!"
	case hour < 19:
		timeGreeting = "¡Buenas tardes!"
	default:
		timeGreeting = "¡Buenas noches!"
	}
	return fmt.Sprintf("Hola,%s %s 👋\n¡Bienvenido a *GymBro*!💪🏋️‍♂️🔥\nSomos tu aliado para alcanzar tus objetivos fitness. 💯\n¿En qué puedo ayudarte hoy?📌\n", timeGreeting, name)
}

// bookingSummary renders the pre-confirmation recap of a class reservation.
func bookingSummary(state *models.ConversationState) string {
	return fmt.Sprintf("📝 *Resumen de tu clase agendada:*\n\n👤 Nombre: %s\n🎂 Edad: %s\n📅 Día: %s\n🕒 Hora: %s\n🏋️ Clase: %s\n\n¿Deseas confirmar tu cita?",
		state.Field(models.FieldName),
		state.Field(models.FieldAge),
		state.Field(models.FieldDay),
		state.Field(models.FieldHour),
		state.Field(models.FieldReason))
}

// pauseConfirmation renders the acknowledgement after a pause request is stored.
func pauseConfirmation(name, cardID string) string {
	return fmt.Sprintf("⏸️ Tu solicitud de pausa ha sido registrada con éxito.\n\n*Datos registrados:*\n👤 Nombre: %s\n📋 Cédula: %s\n\nUn asesor revisará tu caso y te contactará pronto. ¡Gracias por informarnos!", name, cardID)
}

const dateLayout = "02/01/2006"

// membershipMessage renders a membership snapshot for the user. Active rows
// get the full detail; expired rows a renewal nudge; anything else (paused,
// custom statuses) a terse status line.
func membershipMessage(snap models.MembershipSnapshot) string {
	header := fmt.Sprintf("👤 *Membresía de %s*\n\n", snap.Name)
	switch snap.Status {
	case models.MembershipActive:
		return header + fmt.Sprintf("✅ Estado: Activo\n📅 Fecha inicio: %s\n📅 Fecha fin: %s\n⏳ Días restantes: %d\n💰 Plan: %s",
			snap.StartDate.Format(dateLayout), snap.EndDate.Format(dateLayout), snap.DaysRemaining, snap.Plan)
	case models.MembershipExpired:
		return header + fmt.Sprintf("❌ Estado: Vencido\n📅 Última membresía finalizó: %s\n💭 ¡Renueva tu membresía para seguir entrenando!",
			snap.EndDate.Format(dateLayout))
	default:
		return header + fmt.Sprintf("⚠️ Estado: %s\n📅 Última actualización: %s", snap.Status, snap.EndDate.Format(dateLayout))
	}
}

// ChunkMessage splits a long answer into segments of at most maxLen runes,
// preserving order. Splitting is rune-safe so multibyte characters are never
// cut in half. A short answer comes back as a single segment.
func ChunkMessage(s string, maxLen int) []string {
	if maxLen <= 0 {
		return []string{s}
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return []string{s}
	}
	var chunks []string
	for start := 0; start < len(runes); start += maxLen {
		end := start + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gymbro/gymbot/internal/models"
)

// WhatsApp Cloud API webhook payload. Only the fields the dialog flow needs
// are decoded; everything else is ignored.
type webhookPayload struct {
	Entry []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	Changes []webhookChange `json:"changes"`
}

type webhookChange struct {
	Value webhookValue `json:"value"`
}

type webhookValue struct {
	Contacts []webhookContact  `json:"contacts"`
	Messages []webhookMessage  `json:"messages"`
	Statuses []json.RawMessage `json:"statuses"`
}

type webhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type webhookMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply"`
	} `json:"interactive"`
	Button *struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button"`
}

// webhookHandler serves the WhatsApp Cloud API webhook: GET for subscription
// verification, POST for inbound events.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.verifyWebhookHandler(w, r)
	case http.MethodPost:
		s.receiveWebhookHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// verifyWebhookHandler answers the Cloud API subscription handshake: it echoes
// hub.challenge when the verify token matches.
func (s *Server) verifyWebhookHandler(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || s.verifyToken == "" || token != s.verifyToken {
		slog.Warn("Server.verifyWebhookHandler: verification rejected", "mode", mode)
		w.WriteHeader(http.StatusForbidden)
		return
	}

	slog.Info("Server.verifyWebhookHandler: webhook verified")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, challenge)
}

// receiveWebhookHandler decodes inbound Cloud API events and dispatches each
// message through the flow engine. Duplicate deliveries (Meta retries) are
// filtered via the store before dispatch. The endpoint always acknowledges
// with 200 once the payload parses, so processing errors do not trigger
// endless redelivery.
func (s *Server) receiveWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server.receiveWebhookHandler: failed to decode payload", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	for _, msg := range collectInboundMessages(payload) {
		fresh, err := s.st.CheckAndRecordInbound(msg.MessageID)
		if err != nil {
			slog.Error("Server.receiveWebhookHandler: dedup check failed", "error", err, "message_id", msg.MessageID)
		} else if !fresh {
			slog.Debug("Server.receiveWebhookHandler: duplicate delivery skipped", "message_id", msg.MessageID)
			continue
		}

		if err := s.engine.HandleMessage(r.Context(), msg); err != nil {
			slog.Error("Server.receiveWebhookHandler: message handling failed", "error", err, "from", msg.Sender)
		}
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "EVENT_RECEIVED")
}

// collectInboundMessages flattens a webhook payload into InboundMessage
// events. Status-only payloads (delivery and read receipts) yield nothing.
func collectInboundMessages(payload webhookPayload) []models.InboundMessage {
	var out []models.InboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, m := range change.Value.Messages {
				out = append(out, toInboundMessage(m, names[m.From]))
			}
		}
	}
	return out
}

func toInboundMessage(m webhookMessage, senderName string) models.InboundMessage {
	ts, _ := strconv.ParseInt(m.Timestamp, 10, 64)
	msg := models.InboundMessage{
		Sender:     m.From,
		SenderName: senderName,
		MessageID:  m.ID,
		Timestamp:  ts,
	}

	switch m.Type {
	case "text":
		msg.Type = models.MessageTypeText
		if m.Text != nil {
			msg.Text = m.Text.Body
		}
	case "interactive":
		msg.Type = models.MessageTypeInteractive
		if m.Interactive != nil {
			switch {
			case m.Interactive.ButtonReply != nil:
				msg.ButtonID = m.Interactive.ButtonReply.ID
			case m.Interactive.ListReply != nil:
				msg.ButtonID = m.Interactive.ListReply.ID
			}
		}
	case "button":
		// Template quick-reply button: the payload carries the button id.
		msg.Type = models.MessageTypeInteractive
		if m.Button != nil {
			msg.ButtonID = m.Button.Payload
		}
	case "image", "audio", "video", "document", "sticker":
		msg.Type = models.MessageTypeMedia
	default:
		msg.Type = models.MessageTypeUnsupported
	}

	return msg
}

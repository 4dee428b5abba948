package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gymbro/gymbot/internal/api"
)

func TestNewTestServerWebhookRoundTrip(t *testing.T) {
	ts := NewTestServer(api.WithVerifyToken("token"))
	handler := ts.Server.Handler()

	payload := map[string]interface{}{
		"entry": []map[string]interface{}{{
			"changes": []map[string]interface{}{{
				"value": map[string]interface{}{
					"contacts": []map[string]interface{}{{
						"wa_id":   "573110000001",
						"profile": map[string]string{"name": "Ana"},
					}},
					"messages": []map[string]interface{}{{
						"from":      "573110000001",
						"id":        "wamid.rt",
						"timestamp": "1700000000",
						"type":      "text",
						"text":      map[string]string{"body": "hola"},
					}},
				},
			}},
		}},
	}

	req := CreateHTTPRequest(t, http.MethodPost, "/webhook", payload)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	AssertHTTPStatus(t, http.StatusOK, rr.Code, "webhook delivery")

	sent := ts.Msg.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected welcome and menu sent, got %d messages", len(sent))
	}
	if !strings.Contains(sent[0].Body, "Ana") {
		t.Errorf("expected greeting by profile name, got %q", sent[0].Body)
	}
}

func TestNewTestServerHealthEnvelope(t *testing.T) {
	ts := NewTestServer()
	handler := ts.Server.Handler()

	req := CreateHTTPRequest(t, http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	AssertHTTPStatus(t, http.StatusOK, rr.Code, "health check")
	AssertJSONResponse(t, rr, "ok")
}

func TestSeedMembership(t *testing.T) {
	ts := NewTestServer()
	SeedMembership(t, ts.Store, "12345678", 10)

	m, err := ts.Store.GetMembership("12345678")
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if m.Name != "Socio de Prueba" {
		t.Errorf("unexpected membership name %q", m.Name)
	}
}

func TestMustMarshalRoundTrip(t *testing.T) {
	in := map[string]string{"clave": "valor"}
	data := MustMarshalJSON(t, in)

	var out map[string]string
	MustUnmarshalJSON(t, data, &out)
	if out["clave"] != "valor" {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

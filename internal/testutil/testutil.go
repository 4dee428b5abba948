// Package testutil provides common test utilities and helpers for GymBot tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gymbro/gymbot/internal/api"
	"github.com/gymbro/gymbot/internal/flow"
	"github.com/gymbro/gymbot/internal/messaging"
	"github.com/gymbro/gymbot/internal/models"
	"github.com/gymbro/gymbot/internal/store"
)

// TestServer bundles a test API server with the in-memory dependencies behind
// it so tests can inspect outbound messages and stored records.
type TestServer struct {
	Server  *api.Server
	Msg     *messaging.MockService
	Store   *store.InMemoryStore
	Engine  *flow.Engine
	Options []api.Option
}

// NewTestServer creates a test API server with in-memory dependencies.
// This centralizes the test server creation logic used across multiple test files.
func NewTestServer(opts ...api.Option) *TestServer {
	msgService := messaging.NewMockService()
	st := store.NewInMemoryStore()
	engine := flow.NewEngine(flow.NewStateManager(st), st, msgService, nil)

	return &TestServer{
		Server:  api.NewServer(msgService, engine, st, opts...),
		Msg:     msgService,
		Store:   st,
		Engine:  engine,
		Options: opts,
	}
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// SeedMembership adds a sample membership record to the store for testing.
func SeedMembership(t *testing.T, st store.Store, cardID string, daysRemaining int) {
	t.Helper()
	m := models.Membership{
		CardID:    cardID,
		Name:      "Socio de Prueba",
		Plan:      "Mensualidad",
		Status:    models.MembershipActive,
		StartDate: time.Now().AddDate(0, -1, 0),
		EndDate:   time.Now().AddDate(0, 0, daysRemaining),
	}
	if err := st.UpsertMembership(m); err != nil {
		t.Fatalf("failed to seed membership: %v", err)
	}
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"bsky-notifier/internal/application"
	"bsky-notifier/internal/domain"
	"bsky-notifier/internal/infrastructure/memory"
)

type fakeProfiles struct {
	profiles map[string]*domain.Profile
}

func (f *fakeProfiles) GetProfile(_ context.Context, handle string) (*domain.Profile, error) {
	if p, ok := f.profiles[handle]; ok {
		return p, nil
	}
	return nil, domain.ErrProfileNotFound
}

func newTestHandler() (*Handler, *echo.Echo) {
	store := memory.NewAccountStore()
	ledger := memory.NewLedger()
	profiles := &fakeProfiles{profiles: map[string]*domain.Profile{
		"alice.example": {DID: "did:plc:alice", Handle: "alice.example", DisplayName: "Alice"},
	}}
	svc := application.NewService(store, ledger, profiles)
	h := NewHandler(svc, NewHub(), func() string { return "running" })
	return h, echo.New()
}

func doRequest(e *echo.Echo, method, target, body string, handler echo.HandlerFunc, pathParams ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for i := 0; i+1 < len(pathParams); i += 2 {
		c.SetParamNames(pathParams[i])
		c.SetParamValues(pathParams[i+1])
	}
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestAddAccount(t *testing.T) {
	h, e := newTestHandler()

	rec := doRequest(e, http.MethodPost, "/api/accounts", `{"handle":"alice.example"}`, h.AddAccount)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data domain.Account `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.DID != "did:plc:alice" {
		t.Errorf("did = %q", resp.Data.DID)
	}
	if !resp.Data.Preferences[domain.ChannelDesktop] {
		t.Error("desktop preference should default on")
	}
}

func TestAddAccount_MissingHandle(t *testing.T) {
	h, e := newTestHandler()

	rec := doRequest(e, http.MethodPost, "/api/accounts", `{}`, h.AddAccount)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAddAccount_UnknownProfile(t *testing.T) {
	h, e := newTestHandler()

	rec := doRequest(e, http.MethodPost, "/api/accounts", `{"handle":"nobody.example"}`, h.AddAccount)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAddAccount_Duplicate(t *testing.T) {
	h, e := newTestHandler()

	doRequest(e, http.MethodPost, "/api/accounts", `{"handle":"alice.example"}`, h.AddAccount)
	rec := doRequest(e, http.MethodPost, "/api/accounts", `{"handle":"alice.example"}`, h.AddAccount)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestListAccounts_EmptyIsArray(t *testing.T) {
	h, e := newTestHandler()

	rec := doRequest(e, http.MethodGet, "/api/accounts", "", h.ListAccounts)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"accounts":[]`) {
		t.Errorf("empty list should serialize as [], got %s", rec.Body.String())
	}
}

func TestRemoveAccount(t *testing.T) {
	h, e := newTestHandler()

	doRequest(e, http.MethodPost, "/api/accounts", `{"handle":"alice.example"}`, h.AddAccount)
	rec := doRequest(e, http.MethodDelete, "/api/accounts/alice.example", "", h.RemoveAccount, "handle", "alice.example")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	rec = doRequest(e, http.MethodDelete, "/api/accounts/alice.example", "", h.RemoveAccount, "handle", "alice.example")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

func TestUpdatePreferences(t *testing.T) {
	h, e := newTestHandler()

	doRequest(e, http.MethodPost, "/api/accounts", `{"handle":"alice.example"}`, h.AddAccount)
	rec := doRequest(e, http.MethodPatch, "/api/accounts/alice.example/preferences",
		`{"email":true}`, h.UpdatePreferences, "handle", "alice.example")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data domain.Account `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Data.Preferences[domain.ChannelEmail] {
		t.Error("email preference not enabled")
	}
	if !resp.Data.Preferences[domain.ChannelDesktop] {
		t.Error("partial update clobbered desktop preference")
	}
}

func TestUpdatePreferences_UnknownChannel(t *testing.T) {
	h, e := newTestHandler()

	doRequest(e, http.MethodPost, "/api/accounts", `{"handle":"alice.example"}`, h.AddAccount)
	rec := doRequest(e, http.MethodPatch, "/api/accounts/alice.example/preferences",
		`{"pager":true}`, h.UpdatePreferences, "handle", "alice.example")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestToggleAccount(t *testing.T) {
	h, e := newTestHandler()

	doRequest(e, http.MethodPost, "/api/accounts", `{"handle":"alice.example"}`, h.AddAccount)
	rec := doRequest(e, http.MethodPost, "/api/accounts/alice.example/toggle", "", h.ToggleAccount, "handle", "alice.example")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Data domain.Account `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.IsActive {
		t.Error("expected inactive after toggle")
	}
}

func TestHealth(t *testing.T) {
	h, e := newTestHandler()

	rec := doRequest(e, http.MethodGet, "/health", "", h.Health)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["poller"] != "running" {
		t.Errorf("poller = %v", resp["poller"])
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()

	fast := make(chan []byte, 1)
	full := make(chan []byte) // unbuffered, nobody reading
	c1 := hub.Register(fast)
	c2 := hub.Register(full)
	defer hub.Unregister(c1)
	defer hub.Unregister(c2)

	n := &domain.Notification{Title: "Alice posted", Message: "hi", URL: "https://bsky.app/profile/alice.example/post/p1"}
	if delivered := hub.Broadcast(n); delivered != 1 {
		t.Fatalf("delivered = %d, want 1 (slow client skipped)", delivered)
	}

	msg := <-fast
	s := string(msg)
	if !strings.HasPrefix(s, "event: notification\ndata: ") || !strings.HasSuffix(s, "\n\n") {
		t.Errorf("malformed SSE frame: %q", s)
	}
	if !strings.Contains(s, "Alice posted") {
		t.Errorf("payload missing title: %q", s)
	}
}

func TestHubBroadcast_NoClients(t *testing.T) {
	hub := NewHub()
	if delivered := hub.Broadcast(&domain.Notification{Title: "x"}); delivered != 0 {
		t.Fatalf("delivered = %d, want 0", delivered)
	}
}

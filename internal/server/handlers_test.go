package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/deckray/internal/deckcache"
	"github.com/mohammad-safakhou/deckray/internal/search"
	"github.com/mohammad-safakhou/deckray/models"
)

var testSecret = []byte("test-secret")

func newTestAPI(t *testing.T, store deckcache.Store, index *search.Index) *echo.Echo {
	t.Helper()
	e := echo.New()
	e.HideBanner = true
	ah := &AuthHandler{Secret: testSecret, IntakeSecret: "intake-pass", TokenTTL: time.Hour}
	api := e.Group("/api")
	ah.Register(api.Group("/auth"))
	dh := &DecksHandler{Store: store, Index: index}
	dh.Register(api, testSecret)
	return e
}

func bearer(t *testing.T) string {
	t.Helper()
	tok, err := SignJWT("intake", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + tok
}

func TestTokenExchange(t *testing.T) {
	e := newTestAPI(t, deckcache.NewMemory(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(`{"intake_secret":"intake-pass"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["token"] == "" {
		t.Fatalf("no token in response")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(`{"intake_secret":"wrong"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad secret, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newTestAPI(t, deckcache.NewMemory(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/decks/abc", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/decks/abc", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", rec.Code)
	}
}

func TestGetDeck(t *testing.T) {
	store := deckcache.NewMemory()
	result := models.DeckResult{Fingerprint: "fp-1", ProcessedPages: 2, Success: true, AssembledText: "Slide A"}
	if _, err := store.PutIfAbsent(t.Context(), "fp-1", result, time.Hour); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	e := newTestAPI(t, store, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/decks/fp-1", nil)
	req.Header.Set("Authorization", bearer(t))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got models.DeckResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if got.Fingerprint != "fp-1" || got.ProcessedPages != 2 {
		t.Fatalf("unexpected result %+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/decks/missing", nil)
	req.Header.Set("Authorization", bearer(t))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown fingerprint, got %d", rec.Code)
	}
}

func TestIngestRejectsMissingAddress(t *testing.T) {
	e := newTestAPI(t, deckcache.NewMemory(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(`{"identity_email":"a@b.example"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", bearer(t))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without address, got %d", rec.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	index, err := search.NewMemOnly()
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	defer index.Close()
	if err := index.Add(models.DeckResult{Fingerprint: "fp-1", ProcessedPages: 1, AssembledText: "quarterly revenue grew"}); err != nil {
		t.Fatalf("seed index: %v", err)
	}
	e := newTestAPI(t, deckcache.NewMemory(), index)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=revenue", nil)
	req.Header.Set("Authorization", bearer(t))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Hits []search.Hit `json:"hits"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode hits: %v", err)
	}
	if len(body.Hits) != 1 || body.Hits[0].Fingerprint != "fp-1" {
		t.Fatalf("unexpected hits %+v", body.Hits)
	}

	// Disabled index answers 503 instead of pretending an empty corpus.
	e = newTestAPI(t, deckcache.NewMemory(), nil)
	req = httptest.NewRequest(http.MethodGet, "/api/search?q=revenue", nil)
	req.Header.Set("Authorization", bearer(t))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with search disabled, got %d", rec.Code)
	}
}

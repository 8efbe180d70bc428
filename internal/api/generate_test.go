package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sqlpilot/sqlpilot/internal/nl2sql"
	"github.com/sqlpilot/sqlpilot/internal/session"
)

func TestGenerateSQLReturnsCandidate(t *testing.T) {
	translator := &fakeTranslator{result: nl2sql.Result{
		SQL:      "SELECT name FROM products",
		Provider: "openai",
		Model:    "gpt-4o",
	}}
	h := NewHandler(testConfig(t, nil), Dependencies{Translator: translator})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postJSON("/generate-sql", `{"query":"show product names"}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var body generateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if body.SQL != "SELECT name FROM products" {
		t.Fatalf("sql = %q", body.SQL)
	}
	if body.Provider != "openai" || body.Model != "gpt-4o" {
		t.Fatalf("provider/model = %q/%q", body.Provider, body.Model)
	}
	if translator.lastRequest.Prompt != "show product names" {
		t.Fatalf("prompt = %q", translator.lastRequest.Prompt)
	}
}

func TestGenerateSQLRequiresQuery(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{Translator: &fakeTranslator{}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postJSON("/generate-sql", `{"query":"  "}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	assertErrorCode(t, rr, "QUERY_REQUIRED")
}

func TestGenerateSQLRejectsInvalidJSON(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{Translator: &fakeTranslator{}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postJSON("/generate-sql", `{"query":`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	assertErrorCode(t, rr, "INVALID_JSON")
}

func TestGenerateSQLUnknownSessionReturns404BeforeUpstream(t *testing.T) {
	translator := &fakeTranslator{}
	h := NewHandler(testConfig(t, nil), Dependencies{
		Translator: translator,
		Sessions:   session.NewMemoryStore(session.MemoryConfig{}),
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postJSON("/generate-sql", `{"query":"anything","session_id":"missing"}`))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	assertErrorCode(t, rr, "SESSION_NOT_FOUND")
	if translator.calls != 0 {
		t.Fatalf("translator called %d times for unknown session", translator.calls)
	}
}

func TestGenerateSQLMapsUpstreamErrors(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{nl2sql.ErrUpstreamTimeout, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT"},
		{nl2sql.ErrUpstreamRateLimited, http.StatusTooManyRequests, "UPSTREAM_RATE_LIMITED"},
		{nl2sql.ErrUpstream, http.StatusBadGateway, "UPSTREAM_ERROR"},
	}
	for _, tc := range cases {
		h := NewHandler(testConfig(t, nil), Dependencies{Translator: &fakeTranslator{err: tc.err}})

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, postJSON("/generate-sql", `{"query":"count users"}`))

		if rr.Code != tc.wantStatus {
			t.Fatalf("%v: status = %d, want %d", tc.err, rr.Code, tc.wantStatus)
		}
		assertErrorCode(t, rr, tc.wantCode)
	}
}

func TestGenerateSQLRecordsHistory(t *testing.T) {
	store := session.NewMemoryStore(session.MemoryConfig{})
	created, err := store.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	translator := &fakeTranslator{result: nl2sql.Result{SQL: "SELECT 1", Provider: "openai", Model: "gpt-4o"}}
	h := NewHandler(testConfig(t, nil), Dependencies{Translator: translator, Sessions: store})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postJSON("/generate-sql", `{"query":"one","session_id":"`+created.ID+`"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	records, err := store.History(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].Kind != session.RecordGenerate || records[0].Prompt != "one" || records[0].SQL != "SELECT 1" {
		t.Fatalf("record = %+v", records[0])
	}
}

func TestGenerateSQLRecordsFailureInHistory(t *testing.T) {
	store := session.NewMemoryStore(session.MemoryConfig{})
	created, err := store.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	h := NewHandler(testConfig(t, nil), Dependencies{
		Translator: &fakeTranslator{err: nl2sql.ErrUpstreamRateLimited},
		Sessions:   store,
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postJSON("/generate-sql", `{"query":"one","session_id":"`+created.ID+`"}`))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rr.Code)
	}

	records, err := store.History(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].ErrorKind != "upstream_rate_limited" {
		t.Fatalf("error kind = %q", records[0].ErrorKind)
	}
	if records[0].SQL != "" {
		t.Fatalf("failed generate should not record sql, got %q", records[0].SQL)
	}
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func assertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if body["error_code"] != want {
		t.Fatalf("error_code = %v, want %q", body["error_code"], want)
	}
}

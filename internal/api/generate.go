package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sqlpilot/sqlpilot/internal/nl2sql"
	"github.com/sqlpilot/sqlpilot/internal/observability"
	"github.com/sqlpilot/sqlpilot/internal/session"
)

type generateRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type generateResponse struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func handleGenerateSQL(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "sql generation is not configured", false, nil)
		return
	}
	if err := requireRole(r, "sql_reader"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request generateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid generate request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Query) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_REQUIRED", "query is required", false, nil)
		return
	}

	sessionID, err := validateSession(deps, r, request.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session was not found", false, map[string]any{"session_id": strings.TrimSpace(request.SessionID)})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_LOOKUP_FAILED", "failed to resolve session", true, map[string]any{"details": err.Error()})
		return
	}

	start := time.Now()
	result, err := deps.Translator.Translate(r.Context(), nl2sql.Request{
		Prompt:    request.Query,
		SessionID: sessionID,
	})
	elapsed := time.Since(start)
	if err != nil {
		status, code, retryable := mapTranslateError(err)
		observability.ObserveTranslation("error", elapsed)
		recordHistory(deps, r, sessionID, session.QueryRecord{
			Kind:        session.RecordGenerate,
			Prompt:      request.Query,
			DurationMs:  elapsed.Milliseconds(),
			ErrorKind:   strings.ToLower(code),
			ErrorDetail: err.Error(),
		})
		writeError(r.Context(), w, status, code, "sql generation failed", retryable, map[string]any{"details": err.Error()})
		return
	}

	observability.ObserveTranslation("ok", elapsed)
	recordHistory(deps, r, sessionID, session.QueryRecord{
		Kind:       session.RecordGenerate,
		Prompt:     request.Query,
		SQL:        result.SQL,
		DurationMs: elapsed.Milliseconds(),
	})

	writeJSON(w, http.StatusOK, generateResponse{
		SQL:      result.SQL,
		Provider: result.Provider,
		Model:    result.Model,
	})
}

func mapTranslateError(err error) (status int, code string, retryable bool) {
	switch {
	case errors.Is(err, nl2sql.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", true
	case errors.Is(err, nl2sql.ErrUpstreamRateLimited):
		return http.StatusTooManyRequests, "UPSTREAM_RATE_LIMITED", true
	default:
		return http.StatusBadGateway, "UPSTREAM_ERROR", true
	}
}

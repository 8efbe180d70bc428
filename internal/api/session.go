package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sqlpilot/sqlpilot/internal/auth"
	"github.com/sqlpilot/sqlpilot/internal/observability"
	"github.com/sqlpilot/sqlpilot/internal/session"
)

type historyRecord struct {
	Kind        string    `json:"kind"`
	Prompt      string    `json:"prompt,omitempty"`
	SQL         string    `json:"sql,omitempty"`
	Columns     []string  `json:"columns,omitempty"`
	RowCount    int64     `json:"row_count"`
	DurationMs  int64     `json:"duration_ms"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	ErrorDetail string    `json:"error_detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func handleNewSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session store is not configured", false, nil)
		return
	}
	if err := requireRole(r, "sql_reader"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	created, err := deps.Sessions.CreateSession(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_CREATE_FAILED", "failed to create session", true, map[string]any{"details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": created.ID,
		"created_at": created.CreatedAt,
	})
}

func handleSessionHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session store is not configured", false, nil)
		return
	}
	if err := requireRole(r, "sql_reader"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	sessionID := strings.TrimSpace(r.PathValue("session"))
	if sessionID == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SESSION_REQUIRED", "session id is required", false, nil)
		return
	}

	records, err := deps.Sessions.History(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session was not found", false, map[string]any{"session_id": sessionID})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_FETCH_FAILED", "failed to load session history", true, map[string]any{"details": err.Error()})
		return
	}

	out := make([]historyRecord, 0, len(records))
	for _, record := range records {
		out = append(out, historyRecord{
			Kind:        string(record.Kind),
			Prompt:      record.Prompt,
			SQL:         record.SQL,
			Columns:     record.Columns,
			RowCount:    record.RowCount,
			DurationMs:  record.DurationMs,
			ErrorKind:   record.ErrorKind,
			ErrorDetail: record.ErrorDetail,
			CreatedAt:   record.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"records":    out,
	})
}

// validateSession resolves the optional session id in a request body. A
// missing id means the call is session-less and nothing is recorded.
func validateSession(deps Dependencies, r *http.Request, sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || deps.Sessions == nil {
		return "", nil
	}
	if _, err := deps.Sessions.GetSession(r.Context(), sessionID); err != nil {
		return "", err
	}
	return sessionID, nil
}

// recordHistory appends best-effort: the response is already decided by the
// time history is written, so append failures are only logged.
func recordHistory(deps Dependencies, r *http.Request, sessionID string, record session.QueryRecord) {
	if sessionID == "" || deps.Sessions == nil {
		return
	}
	if err := deps.Sessions.Append(r.Context(), sessionID, record); err != nil && deps.Logger != nil {
		deps.Logger.WarnContext(r.Context(), "history append failed",
			slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
}

func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	if identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("missing required role %q", role)
}

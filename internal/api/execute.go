package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sqlpilot/sqlpilot/internal/observability"
	"github.com/sqlpilot/sqlpilot/internal/session"
	"github.com/sqlpilot/sqlpilot/internal/sqlexec"
)

type executeRequest struct {
	SQL       string `json:"sql"`
	SessionID string `json:"session_id"`
	RowLimit  int    `json:"row_limit"`
}

type executeResponse struct {
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
	RowCount   int64    `json:"row_count"`
	DurationMs int64    `json:"duration_ms"`
}

func handleExecuteSQL(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Executor == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXECUTE_NOT_CONFIGURED", "sql execution is not configured", false, nil)
		return
	}
	if err := requireRole(r, "sql_reader"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request executeRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid execute request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	if deps.MutationsEnabled && !sqlexec.IsReadOnly(request.SQL) {
		if err := requireRole(r, "sql_writer"); err != nil {
			writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
			return
		}
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
	result, err := deps.Executor.Execute(r.Context(), sqlexec.Request{
		SQL:      request.SQL,
		RowLimit: request.RowLimit,
	})
	elapsed := time.Since(start)
	if err != nil {
		status, code, retryable := mapExecuteError(err)
		if errors.Is(err, sqlexec.ErrUnsafeStatement) {
			observability.IncrementUnsafeStatement()
		}
		observability.ObserveExecution("error", elapsed)
		recordHistory(deps, r, sessionID, session.QueryRecord{
			Kind:        session.RecordExecute,
			SQL:         request.SQL,
			DurationMs:  elapsed.Milliseconds(),
			ErrorKind:   strings.ToLower(code),
			ErrorDetail: err.Error(),
		})
		writeError(r.Context(), w, status, code, "sql execution failed", retryable, map[string]any{"details": err.Error()})
		return
	}

	observability.ObserveExecution("ok", elapsed)
	recordHistory(deps, r, sessionID, session.QueryRecord{
		Kind:       session.RecordExecute,
		SQL:        request.SQL,
		Columns:    result.Columns,
		RowCount:   result.RowCount,
		DurationMs: result.Duration.Milliseconds(),
	})

	writeJSON(w, http.StatusOK, executeResponse{
		Columns:    result.Columns,
		Rows:       result.Rows,
		RowCount:   result.RowCount,
		DurationMs: result.Duration.Milliseconds(),
	})
}

func mapExecuteError(err error) (status int, code string, retryable bool) {
	switch {
	case errors.Is(err, sqlexec.ErrUnsafeStatement):
		return http.StatusForbidden, "UNSAFE_STATEMENT", false
	case errors.Is(err, sqlexec.ErrSyntax):
		return http.StatusBadRequest, "SQL_SYNTAX", false
	case errors.Is(err, sqlexec.ErrPermission):
		return http.StatusForbidden, "SQL_PERMISSION", false
	case errors.Is(err, sqlexec.ErrTimeout):
		return http.StatusGatewayTimeout, "SQL_TIMEOUT", true
	default:
		return http.StatusInternalServerError, "SQL_EXECUTION_FAILED", true
	}
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sqlpilot/sqlpilot/internal/export"
	"github.com/sqlpilot/sqlpilot/internal/observability"
	"github.com/sqlpilot/sqlpilot/internal/session"
	"github.com/sqlpilot/sqlpilot/internal/sqlexec"
)

type exportRequest struct {
	SQL       string `json:"sql"`
	SessionID string `json:"session_id"`
	RowLimit  int    `json:"row_limit"`
}

func handleExportResult(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Executor == nil || deps.Exporter == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_NOT_CONFIGURED", "result export is not configured", false, nil)
		return
	}
	if err := requireRole(r, "sql_writer"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request exportRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid export request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
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

	result, err := deps.Executor.Execute(r.Context(), sqlexec.Request{
		SQL:      request.SQL,
		RowLimit: request.RowLimit,
	})
	if err != nil {
		status, code, retryable := mapExecuteError(err)
		if errors.Is(err, sqlexec.ErrUnsafeStatement) {
			observability.IncrementUnsafeStatement()
		}
		observability.ObserveExport("execute_error")
		writeError(r.Context(), w, status, code, "sql execution failed", retryable, map[string]any{"details": err.Error()})
		return
	}

	info, err := deps.Exporter.Export(r.Context(), export.Input{
		SessionID: sessionID,
		Result:    result,
	})
	if err != nil {
		observability.ObserveExport("upload_error")
		writeError(r.Context(), w, http.StatusBadGateway, "EXPORT_FAILED", "failed to export result", true, map[string]any{"details": err.Error()})
		return
	}

	observability.ObserveExport("ok")
	recordHistory(deps, r, sessionID, session.QueryRecord{
		Kind:       session.RecordExecute,
		SQL:        request.SQL,
		Columns:    result.Columns,
		RowCount:   result.RowCount,
		DurationMs: result.Duration.Milliseconds(),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"object_key":   info.Key,
		"record_count": info.RecordCount,
		"size_bytes":   info.SizeBytes,
	})
}

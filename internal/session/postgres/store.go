package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sqlpilot/sqlpilot/internal/session"
)

// Store is the durable variant of the session store. History written here
// survives process restarts.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

// EnsureSchema creates the session tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS query_session (
    session_id   TEXT PRIMARY KEY,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_seen_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`
CREATE TABLE IF NOT EXISTS query_record (
    record_id    BIGSERIAL PRIMARY KEY,
    session_id   TEXT NOT NULL REFERENCES query_session(session_id) ON DELETE CASCADE,
    kind         TEXT NOT NULL,
    prompt       TEXT NOT NULL DEFAULT '',
    sql_text     TEXT NOT NULL DEFAULT '',
    columns_json JSONB NOT NULL DEFAULT '[]'::jsonb,
    row_count    BIGINT NOT NULL DEFAULT 0,
    duration_ms  BIGINT NOT NULL DEFAULT 0,
    error_kind   TEXT NOT NULL DEFAULT '',
    error_detail TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`
CREATE INDEX IF NOT EXISTS query_record_session_idx
    ON query_record (session_id, record_id)`,
	}
	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("ensure history schema: %w", err)
		}
	}
	return nil
}

func (s *Store) CreateSession(ctx context.Context) (session.Session, error) {
	query := `
INSERT INTO query_session (session_id)
VALUES ($1)
RETURNING created_at, last_seen_at`

	id := uuid.NewString()
	var createdAt, lastSeenAt time.Time
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&createdAt, &lastSeenAt); err != nil {
		return session.Session{}, fmt.Errorf("create session: %w", err)
	}
	return session.Session{ID: id, CreatedAt: createdAt, LastSeenAt: lastSeenAt}, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (session.Session, error) {
	query := `
SELECT session_id, created_at, last_seen_at
FROM query_session
WHERE session_id = $1`

	var meta session.Session
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&meta.ID, &meta.CreatedAt, &meta.LastSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, session.ErrSessionNotFound
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("get session: %w", err)
	}
	return meta, nil
}

func (s *Store) Append(ctx context.Context, sessionID string, record session.QueryRecord) error {
	columnsJSON, err := json.Marshal(record.Columns)
	if err != nil {
		return fmt.Errorf("marshal record columns: %w", err)
	}

	query := `
INSERT INTO query_record (session_id, kind, prompt, sql_text, columns_json, row_count, duration_ms, error_kind, error_detail)
SELECT session_id, $2, $3, $4, $5::jsonb, $6, $7, $8, $9
FROM query_session
WHERE session_id = $1
RETURNING record_id`

	var recordID int64
	err = s.db.QueryRowContext(ctx, query,
		sessionID, string(record.Kind), record.Prompt, record.SQL, string(columnsJSON),
		record.RowCount, record.DurationMs, record.ErrorKind, record.ErrorDetail,
	).Scan(&recordID)
	if errors.Is(err, sql.ErrNoRows) {
		return session.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}

	touch := `
UPDATE query_session SET last_seen_at = now() WHERE session_id = $1`
	if _, err := s.db.ExecContext(ctx, touch, sessionID); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *Store) History(ctx context.Context, sessionID string) ([]session.QueryRecord, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	query := `
SELECT kind, prompt, sql_text, columns_json, row_count, duration_ms, error_kind, error_detail, created_at
FROM query_record
WHERE session_id = $1
ORDER BY record_id`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]session.QueryRecord, 0)
	for rows.Next() {
		var record session.QueryRecord
		var kind string
		var columnsJSON []byte
		if err := rows.Scan(&kind, &record.Prompt, &record.SQL, &columnsJSON,
			&record.RowCount, &record.DurationMs, &record.ErrorKind, &record.ErrorDetail, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		record.Kind = session.RecordKind(kind)
		if len(columnsJSON) > 0 {
			if err := json.Unmarshal(columnsJSON, &record.Columns); err != nil {
				return nil, fmt.Errorf("decode record columns: %w", err)
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

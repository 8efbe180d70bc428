package session

import (
	"context"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("session: not found")

// RecordKind distinguishes generate attempts from execute attempts.
type RecordKind string

const (
	RecordGenerate RecordKind = "generate"
	RecordExecute  RecordKind = "execute"
)

type Session struct {
	ID         string
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// QueryRecord is one logged generate-or-execute attempt. Records are
// append-only; insertion order is chronological order.
type QueryRecord struct {
	Kind        RecordKind
	Prompt      string
	SQL         string
	Columns     []string
	RowCount    int64
	DurationMs  int64
	ErrorKind   string
	ErrorDetail string
	CreatedAt   time.Time
}

type Store interface {
	CreateSession(ctx context.Context) (Session, error)
	GetSession(ctx context.Context, sessionID string) (Session, error)
	Append(ctx context.Context, sessionID string, record QueryRecord) error
	History(ctx context.Context, sessionID string) ([]QueryRecord, error)
}

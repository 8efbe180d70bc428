package sqlexec

import (
	"context"
	"errors"
	"time"
)

// Execution failure kinds. Every failure maps to exactly one of these so
// callers can surface a machine-readable code.
var (
	ErrUnsafeStatement = errors.New("sqlexec: statement rejected by read-only policy")
	ErrSyntax          = errors.New("sqlexec: statement rejected by database")
	ErrPermission      = errors.New("sqlexec: insufficient database privilege")
	ErrTimeout         = errors.New("sqlexec: execution timeout")
)

type Request struct {
	SQL      string
	RowLimit int
}

type Result struct {
	Columns  []string
	Rows     [][]any
	RowCount int64
	Duration time.Duration
}

type Executor interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

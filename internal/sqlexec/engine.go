package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
)

const (
	DriverPostgres = "postgres"
	DriverDuckDB   = "duckdb"
)

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// Open connects the executor database. The duckdb driver takes a file path
// as its DSN; an empty path opens an in-memory database.
func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	var driverName string
	switch cfg.Driver {
	case DriverPostgres:
		driverName = "pgx"
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres dsn is required")
		}
	case DriverDuckDB:
		driverName = "duckdb"
	default:
		return nil, fmt.Errorf("unsupported executor driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open executor db: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping executor db: %w", err)
	}

	return db, nil
}

type EngineConfig struct {
	Guard   Guard
	Timeout time.Duration
	MaxRows int
}

// Engine runs guarded statements against a live database. The statement
// text goes to the driver verbatim, never interpolated into another query.
type Engine struct {
	db      *sql.DB
	guard   Guard
	timeout time.Duration
	maxRows int
}

func NewEngine(db *sql.DB, cfg EngineConfig) *Engine {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = 1000
	}
	return &Engine{db: db, guard: cfg.Guard, timeout: timeout, maxRows: maxRows}
}

func (e *Engine) HealthCheck(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping executor db: %w", err)
	}
	return nil
}

func (e *Engine) Execute(ctx context.Context, request Request) (Result, error) {
	sqlText := Normalize(request.SQL)
	if sqlText == "" {
		return Result{}, fmt.Errorf("sql is required")
	}
	if err := e.guard.Check(request.SQL); err != nil {
		return Result{}, err
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	if !isReadOnly(sqlText) {
		// Mutations only reach this path when the guard allows them.
		execResult, err := e.db.ExecContext(execCtx, sqlText)
		if err != nil {
			return Result{}, classifyDBError(err)
		}
		affected, err := execResult.RowsAffected()
		if err != nil {
			affected = 0
		}
		return Result{RowCount: affected, Duration: time.Since(start)}, nil
	}

	query := sqlText
	if supportsRowLimit(sqlText) {
		rowLimit := request.RowLimit
		if rowLimit <= 0 || rowLimit > e.maxRows {
			rowLimit = e.maxRows
		}
		query = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", sqlText, rowLimit)
	}

	rows, err := e.db.QueryContext(execCtx, query)
	if err != nil {
		return Result{}, classifyDBError(err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, classifyDBError(err)
	}

	return Result{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: int64(len(resultRows)),
		Duration: time.Since(start),
	}, nil
}

func classifyDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "42501" || strings.HasPrefix(pgErr.Code, "28"):
			return fmt.Errorf("%w: %s", ErrPermission, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, "42"):
			return fmt.Errorf("%w: %s", ErrSyntax, pgErr.Message)
		}
	}

	// DuckDB surfaces classification only through the message text.
	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "syntax error"), strings.Contains(message, "parser error"),
		strings.Contains(message, "binder error"), strings.Contains(message, "catalog error"):
		return fmt.Errorf("%w: %v", ErrSyntax, err)
	case strings.Contains(message, "permission denied"), strings.Contains(message, "read-only"):
		return fmt.Errorf("%w: %v", ErrPermission, err)
	}
	return fmt.Errorf("execute query: %w", err)
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

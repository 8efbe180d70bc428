package nl2sql

import (
	"context"
	"errors"
)

// Upstream failure kinds. The adapter never retries; callers decide.
var (
	ErrUpstreamTimeout     = errors.New("nl2sql: upstream timeout")
	ErrUpstreamRateLimited = errors.New("nl2sql: upstream rate limited")
	ErrUpstream            = errors.New("nl2sql: upstream error")
)

type Request struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`
	Schema    string `json:"schema"`
}

// Result carries candidate SQL. Verified is always false when produced by a
// translator: the generator never asserts syntactic correctness.
type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Verified bool   `json:"verified"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

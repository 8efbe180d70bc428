package storage

import (
	"testing"
	"time"
)

func TestBuildExportPath(t *testing.T) {
	ts := time.Date(2026, time.February, 19, 4, 5, 6, 0, time.FixedZone("x", -5*3600))
	key, err := BuildExportPath("sess-1", ts, "abc123")
	if err != nil {
		t.Fatalf("BuildExportPath() error = %v", err)
	}
	want := "exports/date=2026-02-19/sess-1/result-090506-abc123.parquet"
	if key != want {
		t.Fatalf("BuildExportPath() = %q, want %q", key, want)
	}
}

func TestBuildExportPathDefaultsSession(t *testing.T) {
	key, err := BuildExportPath("", time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), "tok")
	if err != nil {
		t.Fatalf("BuildExportPath() error = %v", err)
	}
	want := "exports/date=2026-03-01/adhoc/result-000000-tok.parquet"
	if key != want {
		t.Fatalf("BuildExportPath() = %q, want %q", key, want)
	}
}

func TestBuildExportPathRejectsInvalidComponent(t *testing.T) {
	if _, err := BuildExportPath("../oops", time.Now(), "tok"); err == nil {
		t.Fatal("expected invalid component error")
	}
	if _, err := BuildExportPath("sess-1", time.Now(), "a/b"); err == nil {
		t.Fatal("expected invalid token error")
	}
}

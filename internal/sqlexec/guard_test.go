package sqlexec

import (
	"errors"
	"testing"
)

func TestGuardAllowsReadOnlyStatements(t *testing.T) {
	guard := Guard{}
	cases := []string{
		"SELECT 1",
		"select name from products",
		"  WITH t AS (SELECT 1) SELECT * FROM t",
		"SELECT 1;",
		"(SELECT 1)",
		"-- top sellers\nSELECT name FROM products",
		"/* report */ SELECT 1",
		"EXPLAIN SELECT 1",
		"SHOW TABLES",
		"VALUES (1), (2)",
	}
	for _, sqlText := range cases {
		if err := guard.Check(sqlText); err != nil {
			t.Fatalf("Check(%q) error = %v", sqlText, err)
		}
	}
}

func TestGuardRejectsMutations(t *testing.T) {
	guard := Guard{}
	cases := []string{
		"DROP TABLE users",
		"DELETE FROM products",
		"INSERT INTO t VALUES (1)",
		"UPDATE t SET a = 1",
		"CREATE TABLE t (a int)",
		"TRUNCATE t",
		"-- harmless comment\nDROP TABLE users",
		"/* SELECT */ DROP TABLE users",
		"",
		"   ;  ",
	}
	for _, sqlText := range cases {
		err := guard.Check(sqlText)
		if !errors.Is(err, ErrUnsafeStatement) {
			t.Fatalf("Check(%q) error = %v, want %v", sqlText, err, ErrUnsafeStatement)
		}
	}
}

func TestGuardRejectsMultipleStatements(t *testing.T) {
	guard := Guard{}
	err := guard.Check("SELECT 1; DROP TABLE users")
	if !errors.Is(err, ErrUnsafeStatement) {
		t.Fatalf("error = %v, want %v", err, ErrUnsafeStatement)
	}
	// Even with mutations enabled, statement batches stay rejected.
	permissive := Guard{AllowMutations: true}
	if err := permissive.Check("SELECT 1; SELECT 2"); !errors.Is(err, ErrUnsafeStatement) {
		t.Fatalf("error = %v, want %v", err, ErrUnsafeStatement)
	}
}

func TestGuardAllowMutationsPermitsDML(t *testing.T) {
	guard := Guard{AllowMutations: true}
	if err := guard.Check("DELETE FROM products WHERE id = 1"); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
}

func TestGuardIgnoresCommentMarkersInsideLiterals(t *testing.T) {
	guard := Guard{}
	if err := guard.Check("SELECT '--not a comment' AS c"); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if err := guard.Check("SELECT 'a;b' AS c"); err != nil {
		t.Fatalf("Check() with literal semicolon error = %v", err)
	}
}

func TestNormalizeStripsDecorations(t *testing.T) {
	got := Normalize("  /* header */ (SELECT 1);; ")
	if got != "(SELECT 1)" {
		t.Fatalf("Normalize() = %q", got)
	}
}

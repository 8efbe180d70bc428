package sqlexec

import (
	"fmt"
	"strings"
)

var readOnlyPrefixes = []string{"select", "with", "show", "explain", "describe", "values"}

var limitWrappablePrefixes = []string{"select", "with", "values"}

// Guard enforces the read-only statement policy. The statement text is
// attacker-influenced free text, so the guard works on a normalized form:
// comments stripped and trailing semicolons dropped.
type Guard struct {
	AllowMutations bool
}

// Check returns ErrUnsafeStatement for statements the policy rejects.
func (g Guard) Check(sqlText string) error {
	normalized := Normalize(sqlText)
	if normalized == "" {
		return fmt.Errorf("%w: empty statement", ErrUnsafeStatement)
	}
	if containsBareSemicolon(normalized) {
		return fmt.Errorf("%w: multiple statements are not allowed", ErrUnsafeStatement)
	}
	if g.AllowMutations {
		return nil
	}
	if !isReadOnly(normalized) {
		return fmt.Errorf("%w: only read-only queries are allowed", ErrUnsafeStatement)
	}
	return nil
}

// IsReadOnly reports whether the normalized statement is a read-only query.
func IsReadOnly(sqlText string) bool {
	return isReadOnly(Normalize(sqlText))
}

func isReadOnly(normalized string) bool {
	return hasAnyPrefix(normalized, readOnlyPrefixes)
}

// supportsRowLimit reports whether the statement can sit inside a derived
// table for the row cap. SHOW, EXPLAIN, and DESCRIBE are valid top-level
// statements but not valid subqueries, so they run unwrapped.
func supportsRowLimit(normalized string) bool {
	return hasAnyPrefix(normalized, limitWrappablePrefixes)
}

func hasAnyPrefix(normalized string, prefixes []string) bool {
	// Parens only matter for prefix detection, e.g. "(SELECT 1) UNION ...".
	lowered := strings.ToLower(normalized)
	lowered = strings.TrimLeft(lowered, "( \t\r\n")
	for _, prefix := range prefixes {
		if lowered == prefix || strings.HasPrefix(lowered, prefix+" ") || strings.HasPrefix(lowered, prefix+"(") {
			return true
		}
	}
	return false
}

// Normalize strips SQL comments and trailing semicolons. The result is
// still runnable statement text.
func Normalize(sqlText string) string {
	stripped := stripComments(sqlText)
	trimmed := strings.TrimSpace(stripped)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

// containsBareSemicolon reports semicolons outside string literals.
func containsBareSemicolon(sqlText string) bool {
	inLiteral := false
	for _, r := range sqlText {
		switch {
		case r == '\'':
			inLiteral = !inLiteral
		case r == ';' && !inLiteral:
			return true
		}
	}
	return false
}

func stripComments(sqlText string) string {
	var out strings.Builder
	runes := []rune(sqlText)
	for i := 0; i < len(runes); {
		// String literals pass through untouched, including '--' inside them.
		if runes[i] == '\'' {
			out.WriteRune(runes[i])
			i++
			for i < len(runes) {
				out.WriteRune(runes[i])
				if runes[i] == '\'' {
					i++
					break
				}
				i++
			}
			continue
		}
		if runes[i] == '-' && i+1 < len(runes) && runes[i+1] == '-' {
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			continue
		}
		if runes[i] == '/' && i+1 < len(runes) && runes[i+1] == '*' {
			i += 2
			for i+1 < len(runes) && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			i += 2
			out.WriteRune(' ')
			continue
		}
		out.WriteRune(runes[i])
		i++
	}
	return out.String()
}

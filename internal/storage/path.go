package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildExportPath places result exports under a date partition so object
// lifecycle rules can expire them in bulk. An empty session id files the
// export under "adhoc".
func BuildExportPath(sessionID string, at time.Time, token string) (string, error) {
	if sessionID == "" {
		sessionID = "adhoc"
	}
	if err := validatePathComponent(sessionID, "session id"); err != nil {
		return "", err
	}
	if err := validatePathComponent(token, "export token"); err != nil {
		return "", err
	}

	ts := at.UTC()
	return path.Join(
		"exports",
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		sessionID,
		fmt.Sprintf("result-%02d%02d%02d-%s.parquet", ts.Hour(), ts.Minute(), ts.Second(), token),
	), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}

package services

import (
	"fmt"
	"strings"
	"time"
)

// ParseReportDate tries an ordered list of layouts and returns the first
// match, truncated to midnight UTC. Sources declare their own layout lists;
// an unparseable date rejects the row.
func ParseReportDate(raw string, layouts []string) (time.Time, error) {
	cleaned := strings.Trim(strings.TrimSpace(raw), `"'`)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range layouts {
		t, err := time.Parse(layout, cleaned)
		if err == nil {
			return DateOnly(t), nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", raw)
}

// DateOnly truncates a timestamp to its calendar day in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

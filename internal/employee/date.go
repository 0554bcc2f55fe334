package employee

import (
	"fmt"
	"strings"
	"time"
)

const displayDateLayout = "Jan 2, 2006"

// ParseHireDate accepts an RFC 3339 timestamp (fractional seconds allowed)
// or a plain YYYY-MM-DD date. Plain dates are taken as midnight UTC.
func ParseHireDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("employee: hire date is empty")
	}
	if parsed, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		return parsed.UTC(), nil
	}
	parsed, err := time.Parse(time.DateOnly, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("employee: invalid hire date %q", trimmed)
	}
	return parsed, nil
}

// FormatHireDate renders t the way the store expects it on the wire.
func FormatHireDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// DisplayDate renders a hire date for people. Hire dates are calendar days
// stored as midnight UTC, so they are shown in UTC to match InputDate in
// every time zone.
func DisplayDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(displayDateLayout)
}

// InputDate renders a draft hire date as YYYY-MM-DD for editing. Values that
// do not parse are returned unchanged so the user can correct them.
func InputDate(value string) string {
	parsed, err := ParseHireDate(value)
	if err != nil {
		return value
	}
	return parsed.Format(time.DateOnly)
}

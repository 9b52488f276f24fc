package types

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Accepted ISO-8601 layouts. Layouts without a zone are interpreted as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime converts a wire value into an offset-aware UTC time. It accepts
// ISO-8601 strings (naive values are read as UTC) and POSIX seconds as JSON
// numbers or numeric strings.
func ParseTime(v interface{}) (time.Time, error) {
	switch tv := v.(type) {
	case time.Time:
		return tv.UTC(), nil
	case string:
		return ParseTimeString(tv)
	case float64:
		return posixTime(tv), nil
	case float32:
		return posixTime(float64(tv)), nil
	case int64:
		return time.Unix(tv, 0).UTC(), nil
	case int:
		return time.Unix(int64(tv), 0).UTC(), nil
	case nil:
		return time.Time{}, fmt.Errorf("timestamp is required")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

// ParseTimeString parses an ISO-8601 string, falling back to POSIX seconds
// for bare numbers.
func ParseTimeString(s string) (time.Time, error) {
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return posixTime(secs), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q (expected ISO-8601 or POSIX seconds)", s)
}

// FormatTime serializes to ISO-8601 in UTC with a fixed six-digit fraction.
// The fixed width keeps lexicographic order equal to chronological order, so
// SQL string comparisons on stored timestamps are safe.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z07:00")
}

func posixTime(secs float64) time.Time {
	sec, frac := math.Modf(secs)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}

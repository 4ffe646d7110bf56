// Package util holds small parsing helpers shared by the CLI and HTTP layers.
package util

import (
	"strconv"
	"time"
)

var layouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// ParseTime accepts a calendar day, a bar timestamp, RFC3339 or unix seconds.
// Zone-less inputs are taken as UTC.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// EndOfDay moves a midnight timestamp to the last second of that day so a
// day-granular upper bound includes the whole day.
func EndOfDay(t time.Time) time.Time {
	if t.IsZero() || !t.Equal(t.Truncate(24*time.Hour)) {
		return t
	}
	return t.Add(24*time.Hour - time.Second)
}

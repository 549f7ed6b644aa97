package database

import (
	"fmt"
	"time"
)

// TimestampLayout is the fixed-width UTC layout used for every TEXT
// timestamp column. Fixed width keeps lexical and chronological order equal.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// zonelessLayouts are accepted when a stored value carries no zone.
// Such values are read as UTC.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// FormatTime renders t in UTC using TimestampLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTime reads a stored timestamp and returns it in UTC.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q", s)
}

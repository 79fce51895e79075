package feed

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Timing-link runtimes come as a restricted ISO-8601 duration of the form
// PT[nM][nS], with at least one component present.
var runtimePattern = regexp.MustCompile(`^PT(?:(\d+)M)?(?:(\d+)S)?$`)

// ParseRuntimeSeconds parses a PT[nM][nS] runtime string into seconds.
func ParseRuntimeSeconds(s string) (int, error) {
	m := runtimePattern.FindStringSubmatch(s)
	if m == nil || (m[1] == "" && m[2] == "") {
		return 0, fmt.Errorf("unparseable runtime %q", s)
	}

	seconds := 0
	if m[1] != "" {
		minutes, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("unparseable runtime %q: %w", s, err)
		}
		seconds += minutes * 60
	}
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return 0, fmt.Errorf("unparseable runtime %q: %w", s, err)
		}
		seconds += n
	}

	return seconds, nil
}

// ParseDepartureSeconds parses an HH:MM:SS departure time into seconds
// since midnight.
func ParseDepartureSeconds(s string) (int, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return 0, fmt.Errorf("unparseable departure time %q: %w", s, err)
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second(), nil
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable date %q: %w", s, err)
	}
	return t, nil
}

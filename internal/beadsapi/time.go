package beadsapi

import "time"

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errEmptyTime
	}
	return time.Parse(time.RFC3339, s)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

var errEmptyTime = timeErr("empty timestamp")

type timeErr string

func (e timeErr) Error() string { return string(e) }

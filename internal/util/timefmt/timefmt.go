package timefmt

import "time"

// ISO8601 is the format used for timestamps in machine-readable output.
const ISO8601 = "2006-01-02T15:04:05.000Z"

// Clock is the wall-clock format used in the chat transcript.
const Clock = time.TimeOnly

// Format formats t in UTC as ISO8601.
func Format(t time.Time) string {
	return t.UTC().Format(ISO8601)
}

// FormatClock formats t in its own location as HH:MM:SS.
func FormatClock(t time.Time) string {
	return t.Format(Clock)
}

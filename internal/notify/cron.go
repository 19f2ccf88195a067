package notify

import (
	"fmt"
	"regexp"
	"strings"
)

// Strict zero-padded 24-hour clock. "9:30" or "25:00" are rejected.
var hhmmRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

var freqDOW = map[string]string{
	"daily":    "*",
	"weekdays": "1-5",
	"weekends": "0,6",
	"sun":      "0",
	"mon":      "1",
	"tue":      "2",
	"wed":      "3",
	"thu":      "4",
	"fri":      "5",
	"sat":      "6",
}

// HHMMToCron converts a time-of-day plus a frequency keyword into a
// five-field cron expression. ok is false when either input is malformed;
// callers treat that as "skip", never as an error to surface.
func HHMMToCron(at, freq string) (spec string, ok bool) {
	m := hhmmRe.FindStringSubmatch(strings.TrimSpace(at))
	if m == nil {
		return "", false
	}
	dow, found := freqDOW[strings.ToLower(strings.TrimSpace(freq))]
	if !found {
		return "", false
	}
	hour := strings.TrimPrefix(m[1], "0")
	if hour == "" {
		hour = "0"
	}
	minute := strings.TrimPrefix(m[2], "0")
	if minute == "" {
		minute = "0"
	}
	return fmt.Sprintf("%s %s * * %s", minute, hour, dow), true
}

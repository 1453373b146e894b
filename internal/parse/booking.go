package parse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalid is returned for any booking field that cannot be parsed.
var ErrInvalid = errors.New("invalid booking field")

var clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// Clock parses a 24-hour "HH:MM" time of day.
func Clock(raw string) (hour, minute int, err error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, 0, fmt.Errorf("%w: time of day %q", ErrInvalid, raw)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: time of day %q out of range", ErrInvalid, raw)
	}
	return hour, minute, nil
}

// BookingDate returns midnight of the calendar day named by raw, in loc.
// The backend sends either a bare date ("2006-01-02") or a full RFC 3339
// timestamp; for the latter the day is taken after converting to loc.
func BookingDate(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: booking date is missing", ErrInvalid)
	}

	if d, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return d, nil
	}

	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: booking date %q", ErrInvalid, raw)
	}
	y, m, d := ts.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
}

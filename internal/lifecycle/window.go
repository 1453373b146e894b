// Package lifecycle derives the time window, lifecycle state and overstay
// penalty of a parking booking. Everything here is pure: the caller supplies
// the booking, the zone it is expressed in and the current instant.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"parking-lifecycle-backend/internal/model"
	"parking-lifecycle-backend/internal/parse"
)

const (
	// UpcomingLead is how long before start a booking counts as upcoming.
	UpcomingLead = 10 * time.Minute
	// GracePeriod follows the scheduled end; no penalty accrues inside it.
	GracePeriod = 15 * time.Minute
)

// ErrMalformedWindow is returned when a booking's date or times cannot be parsed.
var ErrMalformedWindow = errors.New("malformed booking window")

// Window is the absolute time span of a booking.
// End and GraceEnd are zero for open-ended bookings.
type Window struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end,omitzero"`
	GraceEnd time.Time `json:"graceEnd,omitzero"`
}

// HasEnd reports whether the window is closed.
func (w Window) HasEnd() bool {
	return !w.End.IsZero()
}

// ComputeWindow combines the booking date with its start and end times.
// An end at or before the start (a slot crossing midnight) is clamped to
// the last millisecond of the booking date instead of rolling over.
func ComputeWindow(b model.Booking, loc *time.Location) (Window, error) {
	day, err := parse.BookingDate(b.BookingDate, loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: booking %s: %w", ErrMalformedWindow, b.BookingID, err)
	}

	start, err := atClock(day, b.StartTime)
	if err != nil {
		return Window{}, fmt.Errorf("%w: booking %s start: %w", ErrMalformedWindow, b.BookingID, err)
	}

	w := Window{Start: start}
	if !b.HasEndTime() {
		return w, nil
	}

	end, err := atClock(day, b.EndTime.String)
	if err != nil {
		return Window{}, fmt.Errorf("%w: booking %s end: %w", ErrMalformedWindow, b.BookingID, err)
	}
	if !end.After(start) {
		end = endOfDay(day)
	}

	w.End = end
	w.GraceEnd = end.Add(GracePeriod)
	return w, nil
}

func atClock(day time.Time, clock string) (time.Time, error) {
	hour, minute, err := parse.Clock(clock)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, day.Location()), nil
}

func endOfDay(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), day.Location())
}

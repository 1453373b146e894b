package lifecycle

import (
	"time"

	"parking-lifecycle-backend/internal/model"
)

// State is the derived lifecycle classification of a booking.
type State string

const (
	StatePendingConfirmation State = "PENDING_CONFIRMATION"
	// StateScheduled is a confirmed booking that is not yet close to its start.
	StateScheduled     State = "SCHEDULED"
	StateUpcoming      State = "UPCOMING"
	StateActive        State = "ACTIVE"
	StateInGracePeriod State = "IN_GRACE_PERIOD"
	StateOverstayed    State = "OVERSTAYED"
	StateExpired       State = "EXPIRED"
	StateCheckedOut    State = "CHECKED_OUT"
)

// Classify maps a booking and the current instant to a lifecycle state.
// The first matching rule wins; a recorded check-out overrides any
// time-based state.
func Classify(b model.Booking, w Window, now time.Time) State {
	if b.ParkingStatus == model.ParkingUnparked {
		return StateCheckedOut
	}

	if w.HasEnd() {
		if now.After(w.GraceEnd) {
			if b.ParkingStatus == model.ParkingParked {
				return StateOverstayed
			}
			// Never checked in.
			return StateExpired
		}
		if now.After(w.End) {
			return StateInGracePeriod
		}
	}

	if !now.Before(w.Start) {
		return StateActive
	}

	if w.Start.Sub(now) <= UpcomingLead {
		return StateUpcoming
	}

	if b.BookingStatus == model.BookingPending {
		return StatePendingConfirmation
	}
	return StateScheduled
}

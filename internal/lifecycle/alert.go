package lifecycle

// AlertKind is a one-shot notification category tied to a lifecycle transition.
type AlertKind string

const (
	AlertConfirmed AlertKind = "confirmed"
	AlertUpcoming  AlertKind = "upcoming"
	AlertArrived   AlertKind = "arrived"
	AlertCompleted AlertKind = "completed"
	AlertExpired   AlertKind = "expired"
)

// AlertFor returns the alert a booking in state s should raise.
// Grace and overstay both mean the reserved window has ended, so they share
// the completed alert; a booking that never checked in expires instead.
func AlertFor(s State) (AlertKind, bool) {
	switch s {
	case StateUpcoming:
		return AlertUpcoming, true
	case StateActive:
		return AlertArrived, true
	case StateInGracePeriod, StateOverstayed:
		return AlertCompleted, true
	case StateExpired:
		return AlertExpired, true
	}
	return "", false
}

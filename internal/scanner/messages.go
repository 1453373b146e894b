package scanner

import (
	"fmt"

	"parking-lifecycle-backend/internal/lifecycle"
)

// compose returns the user-facing title and body for an alert.
func compose(kind lifecycle.AlertKind, station string) (title, message string) {
	switch kind {
	case lifecycle.AlertConfirmed:
		return "Booking Confirmed", fmt.Sprintf("Your booking at %s has been confirmed.", station)
	case lifecycle.AlertUpcoming:
		return "Upcoming Booking", fmt.Sprintf("Your booking at %s starts in less than 10 minutes!", station)
	case lifecycle.AlertArrived:
		return "Booking Started", fmt.Sprintf("Welcome to %s! Your parking session has started.", station)
	case lifecycle.AlertCompleted:
		return "Booking Completed", fmt.Sprintf("Your booking at %s has ended. Thank you for using our service!", station)
	case lifecycle.AlertExpired:
		return "Booking Expired", fmt.Sprintf("Your booking at %s has expired.", station)
	}
	return "Booking Update", fmt.Sprintf("Your booking at %s has been updated.", station)
}

package lifecycle

import (
	"time"

	"parking-lifecycle-backend/internal/model"
)

// Evaluation is the full derived view of one booking at one instant.
type Evaluation struct {
	Window   Window   `json:"window"`
	State    State    `json:"state"`
	Overtime Overtime `json:"overtime"`
}

// Evaluate computes the window, state and overtime of b at now.
func Evaluate(b model.Booking, loc *time.Location, now time.Time, rates RateTable) (Evaluation, error) {
	w, err := ComputeWindow(b, loc)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{
		Window:   w,
		State:    Classify(b, w, now),
		Overtime: ComputeOvertime(b, w, now, rates),
	}, nil
}

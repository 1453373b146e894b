package lifecycle

import (
	"strings"
	"time"

	"parking-lifecycle-backend/internal/model"
)

// DefaultVehicleType is the rate used for vehicle types missing from a table.
const DefaultVehicleType = "car"

const fallbackCarRate = 25

// RateTable maps a lower-case vehicle type to its hourly overstay penalty.
type RateTable map[string]float64

// DefaultRates returns the stock penalty table.
func DefaultRates() RateTable {
	return RateTable{
		"car":        25,
		"motorcycle": 15,
		"bus":        50,
		"truck":      45,
		"bicycle":    10,
		"van":        35,
	}
}

// WithOverrides returns a copy of t with the given entries replaced.
func (t RateTable) WithOverrides(overrides map[string]float64) RateTable {
	out := make(RateTable, len(t)+len(overrides))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range overrides {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

// Rate looks up the hourly penalty for a vehicle type, case-insensitively.
func (t RateTable) Rate(vehicleType string) float64 {
	if r, ok := t[strings.ToLower(strings.TrimSpace(vehicleType))]; ok {
		return r
	}
	if r, ok := t[DefaultVehicleType]; ok {
		return r
	}
	return fallbackCarRate
}

// Overtime is the chargeable overstay of a booking.
type Overtime struct {
	Minutes int64   `json:"minutes"`
	Hours   int64   `json:"hours"`
	Rate    float64 `json:"rate"`
	Amount  float64 `json:"amount"`
}

// ComputeOvertime bills every started hour past the grace period.
// The result is zero unless the booking is overstayed.
func ComputeOvertime(b model.Booking, w Window, now time.Time, rates RateTable) Overtime {
	if Classify(b, w, now) != StateOverstayed {
		return Overtime{}
	}

	over := now.Sub(w.GraceEnd)
	minutes := int64((over + time.Minute - 1) / time.Minute)
	hours := (minutes + 59) / 60
	rate := rates.Rate(b.VehicleType)

	return Overtime{
		Minutes: minutes,
		Hours:   hours,
		Rate:    rate,
		Amount:  float64(hours) * rate,
	}
}

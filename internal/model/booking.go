package model

import "gopkg.in/guregu/null.v4"

// BookingStatus is the reservation status set by the parking backend.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
)

// ParkingStatus reflects the physical check-in/out of a vehicle.
// An empty value means no check-in has been recorded yet.
type ParkingStatus string

const (
	ParkingParked   ParkingStatus = "parked"
	ParkingUnparked ParkingStatus = "unparked"
)

// Booking is a read-only copy of a reservation owned by the parking backend.
type Booking struct {
	BookingID       string        `json:"bookingId"`
	UserID          string        `json:"userId"`
	StationName     string        `json:"stationName"`
	ParkingSpaceRef string        `json:"parkingSpaceRef"`
	VehicleType     string        `json:"vehicleType"`
	NumberPlate     string        `json:"numberPlate,omitempty"`
	BookingDate     string        `json:"bookingDate"`
	StartTime       string        `json:"startTime"`
	EndTime         null.String   `json:"endTime"`
	BookingStatus   BookingStatus `json:"bookingStatus"`
	ParkingStatus   ParkingStatus `json:"parkingStatus"`
	TotalAmount     float64       `json:"totalAmount"`
}

// HasEndTime reports whether the booking has a scheduled end.
func (b Booking) HasEndTime() bool {
	return b.EndTime.Valid && b.EndTime.String != ""
}

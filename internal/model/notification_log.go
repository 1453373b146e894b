package model

import "time"

// NotificationLog is an append-only record of a booking alert that was
// handed to the notifiers. It is never read back for deduplication.
type NotificationLog struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	UserID      string     `gorm:"index;size:64;not null" json:"userId"`
	BookingID   string     `gorm:"index;size:64;not null" json:"bookingId"`
	Kind        string     `gorm:"size:16;not null" json:"kind"`
	StationName string     `gorm:"size:256" json:"stationName"`
	Title       string     `gorm:"size:128;not null" json:"title"`
	Message     string     `gorm:"not null" json:"message"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	SentAt      time.Time  `gorm:"not null;index" json:"sentAt"`
}

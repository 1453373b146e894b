package api

import (
	"context"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"parking-lifecycle-backend/internal/lifecycle"
	"parking-lifecycle-backend/internal/model"
	"parking-lifecycle-backend/internal/notification"
	"parking-lifecycle-backend/internal/scanner"
	"parking-lifecycle-backend/internal/store"
)

// BookingSource fetches a user's bookings from the parking backend.
type BookingSource interface {
	FetchActiveBookings(ctx context.Context, userID string) ([]model.Booking, error)
}

// Scanner runs on-demand scans and exposes how bookings are evaluated.
type Scanner interface {
	ScanUser(ctx context.Context, userID string) (scanner.Report, error)
	Location() *time.Location
	Rates() lifecycle.RateTable
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	source  BookingSource
	scanner Scanner
	hub     *notification.Hub
	webpush *webpush.Options
	now     func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, src BookingSource, sc Scanner, hub *notification.Hub, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		source:  src,
		scanner: sc,
		hub:     hub,
		webpush: webpushOptions,
		now:     time.Now,
	}
}

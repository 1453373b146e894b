// Package scanner periodically sweeps users' bookings and dispatches the
// lifecycle alerts that are due.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"parking-lifecycle-backend/config"
	"parking-lifecycle-backend/internal/ledger"
	"parking-lifecycle-backend/internal/lifecycle"
	"parking-lifecycle-backend/internal/model"
	"parking-lifecycle-backend/internal/notification"
)

// BookingSource supplies the current bookings of a user.
type BookingSource interface {
	FetchActiveBookings(ctx context.Context, userID string) ([]model.Booking, error)
}

// Report summarises one user's scan.
type Report struct {
	UserID     string `json:"userId"`
	Evaluated  int    `json:"evaluated"`
	Skipped    int    `json:"skipped"`
	Dispatched int    `json:"dispatched"`
	Failed     int    `json:"failed"`
}

// Service orchestrates booking scans. Scans may run concurrently (the
// periodic tick and on-demand requests); the ledger's Claim is the only
// guard against duplicate alerts.
type Service struct {
	cfg      config.ScannerConfig
	source   BookingSource
	notifier notification.Notifier
	ledger   ledger.Ledger
	rates    lifecycle.RateTable
	loc      *time.Location
	now      func() time.Time
	triggers chan string

	mu          sync.Mutex
	seenPending map[string]struct{}
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces the wall clock used to evaluate bookings.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a scanner. It fails only if the configured timezone is unknown.
func NewService(cfg config.ScannerConfig, source BookingSource, notifier notification.Notifier, l ledger.Ledger, rates lifecycle.RateTable, opts ...Option) (*Service, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
	}
	s := &Service{
		cfg:         cfg,
		source:      source,
		notifier:    notifier,
		ledger:      l,
		rates:       rates,
		loc:         loc,
		now:         time.Now,
		triggers:    make(chan string, 16),
		seenPending: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Location is the zone booking dates and times are interpreted in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Rates is the overstay rate table in use.
func (s *Service) Rates() lifecycle.RateTable {
	return s.rates
}

// Run scans all configured users on a fixed interval and whenever Trigger
// is called, until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Scanner is disabled. Not starting.")
		return
	}
	log.Println("Starting lifecycle scanner...")

	s.ScanOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Scanner shutting down.")
			return
		case <-timer.C:
			s.ScanOnce(ctx)
			timer.Reset(s.cfg.Interval)
		case userID := <-s.triggers:
			if _, err := s.ScanUser(ctx, userID); err != nil {
				log.Printf("On-demand scan for user %s failed: %v", userID, err)
			}
		}
	}
}

// Trigger requests an out-of-band scan of one user. It never blocks; if
// the queue is full the request is dropped, as a scan is already due.
func (s *Service) Trigger(userID string) {
	select {
	case s.triggers <- userID:
	default:
		log.Printf("Scan queue full; dropping on-demand scan for user %s", userID)
	}
}

// ScanOnce performs a single sweep over every configured user.
func (s *Service) ScanOnce(ctx context.Context) {
	log.Println("Executing scan cycle...")
	for _, userID := range s.cfg.UserIDs {
		if ctx.Err() != nil {
			return
		}
		report, err := s.ScanUser(ctx, userID)
		if err != nil {
			log.Printf("Scan for user %s aborted: %v", userID, err)
			continue
		}
		if report.Dispatched > 0 || report.Failed > 0 || report.Skipped > 0 {
			log.Printf("Scan for user %s: %d evaluated, %d skipped, %d dispatched, %d failed",
				userID, report.Evaluated, report.Skipped, report.Dispatched, report.Failed)
		}
	}
	log.Println("Scan cycle finished.")
}

// ScanUser fetches and evaluates one user's bookings. A fetch failure
// aborts the scan before any alert is claimed; a malformed booking is
// skipped; a failed delivery is released for the next scan.
func (s *Service) ScanUser(ctx context.Context, userID string) (Report, error) {
	report := Report{UserID: userID}

	bookings, err := s.source.FetchActiveBookings(ctx, userID)
	if err != nil {
		return report, fmt.Errorf("fetching bookings: %w", err)
	}

	now := s.now()
	for _, b := range bookings {
		if ctx.Err() != nil {
			break
		}
		if b.UserID == "" {
			b.UserID = userID
		}
		s.scanBooking(ctx, b, now, &report)
	}
	return report, nil
}

func (s *Service) scanBooking(ctx context.Context, b model.Booking, now time.Time, report *Report) {
	ev, err := lifecycle.Evaluate(b, s.loc, now, s.rates)
	if err != nil {
		if errors.Is(err, lifecycle.ErrMalformedWindow) {
			log.Printf("Skipping booking %s: %v", b.BookingID, err)
		} else {
			log.Printf("Skipping booking %s: unexpected error: %v", b.BookingID, err)
		}
		report.Skipped++
		return
	}
	report.Evaluated++

	switch b.BookingStatus {
	case model.BookingPending:
		s.markPending(b.BookingID)
		return
	case model.BookingConfirmed:
		if s.wasPending(b.BookingID) {
			s.dispatch(ctx, b, lifecycle.AlertConfirmed, nil, report)
		}
	default:
		return
	}

	if kind, ok := lifecycle.AlertFor(ev.State); ok {
		s.dispatch(ctx, b, kind, nil, report)
		return
	}

	if s.cfg.ScheduleUpcoming && ev.State == lifecycle.StateScheduled {
		at := ev.Window.Start.Add(-lifecycle.UpcomingLead)
		s.dispatch(ctx, b, lifecycle.AlertUpcoming, &at, report)
	}
}

// dispatch claims the alert, sends it and releases the claim on failure.
func (s *Service) dispatch(ctx context.Context, b model.Booking, kind lifecycle.AlertKind, scheduledAt *time.Time, report *Report) {
	if !s.ledger.Claim(b.BookingID, kind) {
		return
	}

	title, message := compose(kind, b.StationName)
	n := notification.New(b.UserID, b.BookingID, kind, b.StationName, title, message)
	n.ScheduledAt = scheduledAt

	if err := s.notifier.Notify(ctx, n); err != nil {
		s.ledger.Release(b.BookingID, kind)
		log.Printf("Error sending %s alert for booking %s: %v", kind, b.BookingID, err)
		report.Failed++
		return
	}
	report.Dispatched++
}

func (s *Service) markPending(bookingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seenPending[bookingID] = struct{}{}
}

func (s *Service) wasPending(bookingID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seenPending[bookingID]
	return ok
}

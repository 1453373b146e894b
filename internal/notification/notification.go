// Package notification delivers booking alerts to users.
package notification

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"parking-lifecycle-backend/internal/lifecycle"
	"parking-lifecycle-backend/internal/model"
)

// Notification is a single booking alert addressed to a user.
// A nil ScheduledAt means deliver immediately.
type Notification struct {
	ID          string              `json:"id"`
	UserID      string              `json:"userId"`
	BookingID   string              `json:"bookingId"`
	Kind        lifecycle.AlertKind `json:"kind"`
	StationName string              `json:"stationName"`
	Title       string              `json:"title"`
	Message     string              `json:"message"`
	ScheduledAt *time.Time          `json:"scheduledAt,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// New builds a notification with a fresh ID.
func New(userID, bookingID string, kind lifecycle.AlertKind, stationName, title, message string) Notification {
	return Notification{
		ID:          uuid.NewString(),
		UserID:      userID,
		BookingID:   bookingID,
		Kind:        kind,
		StationName: stationName,
		Title:       title,
		Message:     message,
		CreatedAt:   time.Now().UTC(),
	}
}

// Notifier delivers a notification. A returned error means the alert was
// not delivered and may be retried.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogRecorder persists delivered notifications.
type LogRecorder interface {
	RecordNotification(ctx context.Context, entry model.NotificationLog) error
}

// Recorded wraps a notifier and logs every successful delivery.
type Recorded struct {
	next  Notifier
	store LogRecorder
	now   func() time.Time

	deferred timerSet
}

// WithRecorder returns a notifier that records deliveries made by next.
func WithRecorder(next Notifier, store LogRecorder) *Recorded {
	return &Recorded{next: next, store: store, now: time.Now}
}

// Notify delivers through the wrapped notifier. A scheduled alert is
// recorded when it falls due rather than when it is handed over, so SentAt
// never precedes the delivery. A failure to write the log entry is only
// logged; the alert itself went out.
func (r *Recorded) Notify(ctx context.Context, n Notification) error {
	if err := r.next.Notify(ctx, n); err != nil {
		return err
	}

	if delay := delayUntil(n, r.now()); delay > 0 {
		r.deferred.after(n.ID, delay, func() { r.record(context.Background(), n) })
		return nil
	}
	r.record(ctx, n)
	return nil
}

// Pending reports how many scheduled alerts have not been recorded yet.
func (r *Recorded) Pending() int {
	return r.deferred.len()
}

// Stop drops the log entries of scheduled alerts that are not yet due.
func (r *Recorded) Stop() {
	r.deferred.stop()
}

func (r *Recorded) record(ctx context.Context, n Notification) {
	entry := model.NotificationLog{
		ID:          n.ID,
		UserID:      n.UserID,
		BookingID:   n.BookingID,
		Kind:        string(n.Kind),
		StationName: n.StationName,
		Title:       n.Title,
		Message:     n.Message,
		ScheduledAt: n.ScheduledAt,
		SentAt:      r.now().UTC(),
	}
	if err := r.store.RecordNotification(ctx, entry); err != nil {
		log.Printf("Error recording notification %s: %v", n.ID, err)
	}
}

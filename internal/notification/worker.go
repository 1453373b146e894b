package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"parking-lifecycle-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SubscriptionStore is the part of the store the worker pool needs.
type SubscriptionStore interface {
	SubscriptionsForUser(ctx context.Context, userID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

var errSubscriptionGone = errors.New("subscription gone")

// pushPayload is the JSON document the service worker receives.
type pushPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

// WorkerPool sends web push notifications. Immediate notifications are sent
// on the caller's goroutine so failures reach the caller; scheduled ones are
// parked on a timer and handed to the pool's workers when due.
type WorkerPool struct {
	size    int
	jobs    chan Notification
	done    chan struct{}
	store   SubscriptionStore
	webpush *webpush.Options
	sender  NotificationSender
	now     func() time.Time

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, store SubscriptionStore, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Notification, size), // Buffered channel
		done:    make(chan struct{}),
		store:   store,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		now:     time.Now,
		pending: make(map[string]*time.Timer),
	}
}

// Start launches the worker goroutines. Cancelling ctx stops the workers
// and drops every notification still waiting for its scheduled time.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
	go func() {
		<-ctx.Done()
		close(wp.done)
		wp.mu.Lock()
		defer wp.mu.Unlock()
		for id, t := range wp.pending {
			t.Stop()
			delete(wp.pending, id)
		}
	}()
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case n := <-wp.jobs:
			log.Printf("Worker %d delivering %s alert for booking %s", id, n.Kind, n.BookingID)
			if err := wp.deliver(ctx, n); err != nil {
				log.Printf("Worker %d: scheduled alert %s not delivered: %v", id, n.ID, err)
			}
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Notify implements Notifier.
func (wp *WorkerPool) Notify(ctx context.Context, n Notification) error {
	if n.ScheduledAt != nil {
		if delay := n.ScheduledAt.Sub(wp.now()); delay > 0 {
			wp.schedule(n, delay)
			return nil
		}
	}
	return wp.deliver(ctx, n)
}

// Dispatch sends a job to the worker pool.
func (wp *WorkerPool) Dispatch(n Notification) {
	select {
	case wp.jobs <- n:
	case <-wp.done:
		log.Printf("Worker pool stopped; dropping alert %s", n.ID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Notification {
	return wp.jobs
}

// Pending reports how many scheduled notifications are waiting.
func (wp *WorkerPool) Pending() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return len(wp.pending)
}

func (wp *WorkerPool) schedule(n Notification, delay time.Duration) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if _, exists := wp.pending[n.ID]; exists {
		return
	}
	wp.pending[n.ID] = time.AfterFunc(delay, func() {
		wp.mu.Lock()
		delete(wp.pending, n.ID)
		wp.mu.Unlock()
		wp.Dispatch(n)
	})
	log.Printf("Scheduled %s alert for booking %s at %s", n.Kind, n.BookingID, n.ScheduledAt.Format(time.RFC3339))
}

// deliver sends n to every subscription of its user. It fails only when no
// live subscription accepted the message.
func (wp *WorkerPool) deliver(ctx context.Context, n Notification) error {
	subscriptions, err := wp.store.SubscriptionsForUser(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("fetching subscriptions for user %s: %w", n.UserID, err)
	}

	if len(subscriptions) == 0 {
		return nil
	}

	payload, err := json.Marshal(pushPayload{
		Title: n.Title,
		Body:  n.Message,
		Data: map[string]string{
			"notificationId": n.ID,
			"bookingId":      n.BookingID,
			"type":           string(n.Kind),
			"location":       n.StationName,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	log.Printf("Sending %d notifications for booking %s", len(subscriptions), n.BookingID)

	var delivered int
	var errs []error
	for _, sub := range subscriptions {
		err := wp.sendNotification(ctx, sub, payload)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, errSubscriptionGone):
		default:
			errs = append(errs, err)
		}
	}

	if delivered == 0 && len(errs) > 0 {
		return fmt.Errorf("web push failed for booking %s: %w", n.BookingID, errors.Join(errs...))
	}
	return nil
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) error {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		return fmt.Errorf("sending to %s: %w", sub.Endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
		return errSubscriptionGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service rejected %s with status %d", sub.Endpoint, resp.StatusCode)
	}
	return nil
}

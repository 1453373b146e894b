package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"parking-lifecycle-backend/config"
)

// AlertEvent is the message published for every booking alert.
type AlertEvent struct {
	NotificationID string  `json:"notification_id"`
	UserID         string  `json:"user_id"`
	BookingID      string  `json:"booking_id"`
	Kind           string  `json:"kind"`
	StationName    string  `json:"station_name"`
	Title          string  `json:"title"`
	Message        string  `json:"message"`
	ScheduledAt    *string `json:"scheduled_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

func newAlertEvent(n Notification) AlertEvent {
	ev := AlertEvent{
		NotificationID: n.ID,
		UserID:         n.UserID,
		BookingID:      n.BookingID,
		Kind:           string(n.Kind),
		StationName:    n.StationName,
		Title:          n.Title,
		Message:        n.Message,
		CreatedAt:      n.CreatedAt.UTC().Format(time.RFC3339),
	}
	if n.ScheduledAt != nil {
		s := n.ScheduledAt.UTC().Format(time.RFC3339)
		ev.ScheduledAt = &s
	}
	return ev
}

// BrokerNotifier publishes alerts to a durable RabbitMQ queue for
// downstream consumers.
type BrokerNotifier struct {
	url   string
	queue string
}

// NewBrokerNotifier creates a publisher for the configured broker.
func NewBrokerNotifier(cfg config.BrokerConfig) *BrokerNotifier {
	return &BrokerNotifier{url: cfg.URL, queue: cfg.Queue}
}

// Notify publishes n as a persistent message. Scheduled alerts are published
// right away; consumers honour scheduled_at.
func (b *BrokerNotifier) Notify(ctx context.Context, n Notification) error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		b.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		return fmt.Errorf("rabbitmq: queue declare: %w", err)
	}

	body, err := json.Marshal(newAlertEvent(n))
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", b.queue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"
	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/video-rental/internal/queue"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AMQPPublisher publishes rental events to RabbitMQ. Each publish opens its
// own connection, so the publisher holds no long-lived broker state and a
// broker outage only affects the events emitted while it lasts.
type AMQPPublisher struct {
	URL    string
	Logger *slog.Logger
}

// NewAMQPPublisher returns a publisher for the broker at url.
func NewAMQPPublisher(url string, logger *slog.Logger) *AMQPPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPPublisher{URL: url, Logger: logger}
}

// PublishRentalEvent sends event to the durable rental.events queue as a
// persistent message. Errors are logged and returned so the caller can
// choose to ignore them.
func (p *AMQPPublisher) PublishRentalEvent(ctx context.Context, event q.RentalEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		p.Logger.Warn("rabbitmq: dial failed", "err", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Logger.Warn("rabbitmq: channel open failed", "err", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		q.RentalQueueName, // name
		true,              // durable
		false,             // autoDelete
		false,             // exclusive
		false,             // noWait
		nil,               // args
	); err != nil {
		p.Logger.Warn("rabbitmq: queue declare failed", "err", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.Logger.Warn("rabbitmq: marshal event failed", "err", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    event.EventID,
		Type:         event.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",                // default exchange
		q.RentalQueueName, // routing key = queue name
		false,             // mandatory
		false,             // immediate
		pub,
	); err != nil {
		p.Logger.Warn("rabbitmq: publish failed", "err", err)
		return err
	}
	return nil
}

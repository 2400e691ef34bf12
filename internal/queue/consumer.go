package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RentalQueueName is the durable queue both rental event types go to.
const RentalQueueName = "rental.events"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StartRentalConsumer connects to RabbitMQ, declares the rental.events queue
// (durable) and appends every delivered event to <logDir>/rental.log as a
// single line. It reconnects with exponential backoff and returns only once
// ctx is cancelled.
func StartRentalConsumer(ctx context.Context, url, logDir string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("rental-consumer: dial failed", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, logDir, logger)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("rental-consumer: consume loop ended, reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logDir string, logger *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("rental-consumer: set QoS failed", "err", err)
	}

	if _, err := ch.QueueDeclare(RentalQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(RentalQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(d.Body, logDir); err != nil {
				logger.Error("rental-consumer: handle message failed", "err", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleMessage(body []byte, logDir string) error {
	var ev RentalEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type != EventRentalOpened && ev.Type != EventRentalClosed {
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(logDir, "rental.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatLine(ev RentalEvent) string {
	switch ev.Type {
	case EventRentalClosed:
		return fmt.Sprintf("[%s] Rental returned | rental_id=%d | customer_id=%d | title_id=%d | opened_at=%s | closed_at=%s | event_id=%s\n",
			ev.OccurredAt, ev.RentalID, ev.CustomerID, ev.TitleID, ev.OpenedAt, ev.ClosedAt, ev.EventID)
	default:
		return fmt.Sprintf("[%s] Rental opened | rental_id=%d | customer_id=%d | title_id=%d | opened_at=%s | event_id=%s\n",
			ev.OccurredAt, ev.RentalID, ev.CustomerID, ev.TitleID, ev.OpenedAt, ev.EventID)
	}
}

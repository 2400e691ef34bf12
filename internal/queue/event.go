// Package queue defines the rental event payloads exchanged over the message
// broker and the consumer that records them.
package queue

// Rental event types. They double as routing information inside the single
// rental.events queue.
const (
	EventRentalOpened = "rental.opened"
	EventRentalClosed = "rental.closed"
)

// RentalEvent is published after a rental is opened or closed and the
// transaction has committed. It carries enough detail for downstream
// consumers to log or notify without querying the store.
type RentalEvent struct {
	EventID    string `json:"event_id"`
	Type       string `json:"type"`
	RentalID   uint64 `json:"rental_id"`
	CustomerID uint64 `json:"customer_id"`
	TitleID    uint64 `json:"title_id"`
	OpenedAt   string `json:"opened_at"`
	ClosedAt   string `json:"closed_at,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

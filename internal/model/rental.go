package model

import "time"

// Rental is one loan event binding a customer to a title. A rental is open
// while ClosedAt is nil. OpenedAt never changes after creation and ClosedAt
// is set exactly once, when the title is returned.
//
// Fields:
//  ID         – primary key identifier.
//  CustomerID – customer who took the title.
//  TitleID    – title being rented.
//  OpenedAt   – UTC time the rental was opened.
//  ClosedAt   – UTC time the title came back (null while open).
type Rental struct {
	ID         uint64     `json:"id"`                  // rentals.id
	CustomerID uint64     `json:"customer_id"`         // rentals.customer_id
	TitleID    uint64     `json:"title_id"`            // rentals.title_id
	OpenedAt   time.Time  `json:"opened_at"`           // rentals.opened_at
	ClosedAt   *time.Time `json:"closed_at,omitempty"` // rentals.closed_at (nullable)
}

// Open reports whether the rental has not been returned yet.
func (r Rental) Open() bool { return r.ClosedAt == nil }

// RentalReturn is the result of closing a rental: the rental id and the
// timestamp that was recorded.
type RentalReturn struct {
	ID       uint64    `json:"id"`
	TitleID  uint64    `json:"title_id"`
	ClosedAt time.Time `json:"closed_at"`
}

// RentalView is a rental joined with the customer and title it references.
// Customer fields are omitted from a single customer's history.
type RentalView struct {
	ID              uint64     `json:"id"`
	CustomerID      uint64     `json:"customer_id"`
	CustomerName    string     `json:"customer_name,omitempty"`
	CustomerContact string     `json:"customer_contact,omitempty"`
	TitleID         uint64     `json:"title_id"`
	TitleName       string     `json:"title_name"`
	TitleCategory   *string    `json:"title_category,omitempty"`
	OpenedAt        time.Time  `json:"opened_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
}

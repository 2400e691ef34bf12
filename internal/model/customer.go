package model

// Customer is a renter. Contact is the customer's e-mail address and is
// unique across all customers.
type Customer struct {
	ID      uint64 `json:"id"`      // customers.id
	Name    string `json:"name"`    // customers.name
	Contact string `json:"contact"` // customers.contact
}

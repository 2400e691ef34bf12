package model

// Title is a rentable catalog entry (a movie). Available is derived state:
// it is false exactly while an open Rental references the title, and only
// the rental ledger flips it.
//
// Fields:
//  ID        – primary key identifier, assigned by the store.
//  Name      – display name; required.
//  Category  – genre or shelf category (nullable).
//  Year      – release year (nullable).
//  Available – true when no open rental references this title.
type Title struct {
	ID        uint64  `json:"id"`                 // titles.id
	Name      string  `json:"name"`               // titles.name
	Category  *string `json:"category,omitempty"` // titles.category (nullable)
	Year      *int    `json:"year,omitempty"`     // titles.year (nullable)
	Available bool    `json:"available"`          // titles.available
}

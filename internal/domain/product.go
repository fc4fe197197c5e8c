package domain

import "time"

// Product is a catalog entry. The Firestore document id is the authoritative
// key; SKU and the alternate external code are merchant-facing aliases that
// cart payloads may use interchangeably.
type Product struct {
	ID     string
	Name   string
	Price  float64
	Active bool
	Stock  int64
	SKU    string
	// AltCode is the alternate external code stored under the document's
	// "id" field. Historic imports wrote it as either a string or a number;
	// it is normalized to its string form on read.
	AltCode   string
	Offer     bool
	ImageURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductFilter narrows a catalog listing. Nil pointers mean "no filter".
type ProductFilter struct {
	Active *bool
	Offer  *bool
	Limit  int
}

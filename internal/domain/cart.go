package domain

// CartItem is a single line as submitted by the client. Key may be a product
// document id, a SKU, or the alternate external code; the catalog lookup
// disambiguates it.
type CartItem struct {
	Key      string
	Quantity int64
}

// CartLine is a resolved, priced line. UnitPrice is in whole currency units;
// the order total is the only value expressed in minor units.
type CartLine struct {
	ProductID string  `firestore:"id" json:"id"`
	Name      string  `firestore:"name" json:"name"`
	UnitPrice float64 `firestore:"price" json:"price"`
	Quantity  int64   `firestore:"quantity" json:"quantity"`
}

// ResolvedCart is the outcome of pricing a cart against the catalog.
// Missing and Inactive carry the offending client keys; a cart with either
// non-empty is priced but not chargeable.
type ResolvedCart struct {
	AmountCents int64
	Lines       []CartLine
	Missing     []string
	Inactive    []string
}

// Chargeable reports whether every requested line resolved to an active
// product.
func (c ResolvedCart) Chargeable() bool {
	return len(c.Missing) == 0 && len(c.Inactive) == 0
}

package domain

import "time"

// Order lifecycle statuses.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusFailed    = "failed"
	OrderStatusCancelled = "cancelled"
)

// Payment providers.
const (
	ProviderCulqi = "culqi"
	ProviderYape  = "yape"
)

// Delivery methods.
const (
	DeliveryPickup   = "pickup"
	DeliveryDelivery = "delivery"
)

// Shipping statuses an admin may set.
const (
	ShippingNone      = "none"
	ShippingPreparing = "preparing"
	ShippingShipped   = "shipped"
	ShippingDelivered = "delivered"
	ShippingCancelled = "cancelled"
)

// ValidShippingStatus reports whether status is one an admin may assign.
func ValidShippingStatus(status string) bool {
	switch status {
	case ShippingNone, ShippingPreparing, ShippingShipped, ShippingDelivered, ShippingCancelled:
		return true
	}
	return false
}

// Delivery captures the buyer's fulfilment choice at order time.
type Delivery struct {
	Method  string `firestore:"method" json:"method"`
	Address string `firestore:"address,omitempty" json:"address,omitempty"`
}

// Shipping is the fulfilment sub-record an admin maintains after payment.
type Shipping struct {
	Status    string    `firestore:"status" json:"status"`
	Carrier   string    `firestore:"carrier,omitempty" json:"carrier,omitempty"`
	Tracking  string    `firestore:"tracking,omitempty" json:"tracking,omitempty"`
	Address   string    `firestore:"address,omitempty" json:"address,omitempty"`
	UpdatedAt time.Time `firestore:"updatedAt" json:"updatedAt"`
}

// YapeDetails records the payer's claim for a manual transfer alongside a
// snapshot of the receiving account it was directed to.
type YapeDetails struct {
	PayerName    string `firestore:"payerName,omitempty" json:"payerName,omitempty"`
	PayerPhone   string `firestore:"payerPhone,omitempty" json:"payerPhone,omitempty"`
	Reference    string `firestore:"reference,omitempty" json:"reference,omitempty"`
	ProofURL     string `firestore:"proofUrl,omitempty" json:"proofUrl,omitempty"`
	TargetPhone  string `firestore:"targetPhone,omitempty" json:"targetPhone,omitempty"`
	TargetHolder string `firestore:"targetHolder,omitempty" json:"targetHolder,omitempty"`
}

// PaymentState mirrors the verification outcome for manual transfers.
type PaymentState struct {
	Status string `firestore:"status" json:"status"`
	Method string `firestore:"method" json:"method"`
}

// Order is the ledger record for a purchase. Amount is in integer minor
// units; line unit prices remain in whole currency units.
type Order struct {
	ID       string     `firestore:"-" json:"id"`
	UserID   string     `firestore:"userId" json:"userId"`
	Email    string     `firestore:"email,omitempty" json:"email,omitempty"`
	Items    []CartLine `firestore:"items" json:"items"`
	Amount   int64      `firestore:"amount" json:"amount"`
	Currency string     `firestore:"currency" json:"currency"`
	Status   string     `firestore:"status" json:"status"`
	Provider string     `firestore:"provider" json:"provider"`

	Delivery *Delivery `firestore:"delivery,omitempty" json:"delivery,omitempty"`
	Shipping *Shipping `firestore:"shipping,omitempty" json:"shipping,omitempty"`

	ChargeID  string `firestore:"chargeId,omitempty" json:"chargeId,omitempty"`
	ErrorCode string `firestore:"errorCode,omitempty" json:"errorCode,omitempty"`
	ErrorMsg  string `firestore:"errorMsg,omitempty" json:"errorMsg,omitempty"`

	Yape             *YapeDetails  `firestore:"yape,omitempty" json:"yape,omitempty"`
	Payment          *PaymentState `firestore:"payment,omitempty" json:"payment,omitempty"`
	VerificationNote string        `firestore:"verificationNote,omitempty" json:"verificationNote,omitempty"`

	VerifiedAt  time.Time `firestore:"verifiedAt,omitempty" json:"verifiedAt,omitempty"`
	CancelledAt time.Time `firestore:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt" json:"updatedAt"`
}

// OrderFilter narrows an order listing.
type OrderFilter struct {
	UserID   string
	Statuses []string
	Provider string
	Limit    int
}

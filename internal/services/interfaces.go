package services

import (
	"context"

	domain "github.com/m2l-store/api/internal/domain"
)

// ProductListQuery narrows the public product listing.
type ProductListQuery struct {
	Active *bool
	Offer  *bool
	Limit  int
}

// CatalogService resolves heterogeneous product keys and serves the public
// catalog listing.
type CatalogService interface {
	// ListProducts returns catalog entries sorted by collated name.
	ListProducts(ctx context.Context, query ProductListQuery) ([]domain.Product, error)
	// ResolveProducts maps each client key (document id, SKU, or alternate
	// code) to its product. Unmatched keys are simply absent; resolution
	// never fails on unknown keys.
	ResolveProducts(ctx context.Context, keys []string) (map[string]domain.Product, error)
}

// CartService prices a cart against the catalog.
type CartService interface {
	// Resolve consolidates, resolves and prices the items. With
	// requireActive set, inactive products are reported in the result
	// instead of priced. Resolution is a pure read.
	Resolve(ctx context.Context, items []domain.CartItem, requireActive bool) (domain.ResolvedCart, error)
}

// DeliveryInput is the buyer's fulfilment choice on order creation.
type DeliveryInput struct {
	Method  string
	Address string
}

// CardChargeCommand drives the synchronous card-charge order flow.
type CardChargeCommand struct {
	UserID string
	Email  string
	Items  []domain.CartItem
	// SourceID is the one-time card token created client-side.
	SourceID string
	// ExpectedAmount optionally echoes the client-computed total in minor
	// units; a mismatch aborts before any charge.
	ExpectedAmount *int64
	Delivery       *DeliveryInput
}

// CardChargeResult is the successful outcome of a card charge.
type CardChargeResult struct {
	OrderID  string `json:"orderId"`
	ChargeID string `json:"chargeId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// YapeOrderCommand drives the manual-transfer pending-order flow.
type YapeOrderCommand struct {
	UserID         string
	Email          string
	Items          []domain.CartItem
	ExpectedAmount *int64
	PayerName      string
	PayerPhone     string
	Reference      string
	ProofURL       string
	Delivery       *DeliveryInput
}

// YapeOrderResult tells the buyer where to send the transfer.
type YapeOrderResult struct {
	OrderID      string `json:"orderId"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	TargetPhone  string `json:"targetPhone,omitempty"`
	TargetHolder string `json:"targetHolder,omitempty"`
}

// AdminOrderQuery narrows the admin order listing.
type AdminOrderQuery struct {
	Statuses []string
	Provider string
	Limit    int
}

// Verify-yape actions.
const (
	VerifyActionApprove = "approve"
	VerifyActionReject  = "reject"
)

// VerifyYapeCommand settles or cancels a manual-transfer order.
type VerifyYapeCommand struct {
	OrderID string
	Action  string
	// Note is free text from the admin, sanitised before persisting.
	Note string
}

// ShippingUpdateCommand updates the shipping sub-record of a paid order.
type ShippingUpdateCommand struct {
	OrderID  string
	Status   string
	Carrier  string
	Tracking string
	Address  string
}

// OrderService owns the order ledger flows.
type OrderService interface {
	ChargeCard(ctx context.Context, cmd CardChargeCommand) (CardChargeResult, error)
	CreateYapeOrder(ctx context.Context, cmd YapeOrderCommand) (YapeOrderResult, error)

	ListOwnOrders(ctx context.Context, userID string, statuses []string) ([]domain.Order, error)
	GetOrder(ctx context.Context, userID string, admin bool, orderID string) (domain.Order, error)

	AdminListOrders(ctx context.Context, query AdminOrderQuery) ([]domain.Order, error)
	VerifyYape(ctx context.Context, cmd VerifyYapeCommand) (domain.Order, error)
	UpdateShipping(ctx context.Context, cmd ShippingUpdateCommand) (domain.Order, error)
}

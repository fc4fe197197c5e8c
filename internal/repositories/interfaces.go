package repositories

import (
	"context"
	"time"

	domain "github.com/m2l-store/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Orders() OrderRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// HealthRepository evaluates the readiness of the service's dependencies.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// ProductRepository reads the catalog. Products are written out-of-band by
// merchandising tooling; the API only ever decrements stock through order
// settlement.
type ProductRepository interface {
	// GetByIDs fetches products by document id, batching the lookup as
	// needed. Unknown ids are silently absent from the result.
	GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
	// ListByFieldValues fetches products whose named field matches any of
	// the provided values. Values may mix strings and numbers; the caller
	// controls which representation each pass queries with.
	ListByFieldValues(ctx context.Context, field string, values []any) ([]domain.Product, error)
	// List returns catalog entries for the storefront listing.
	List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
}

// OrderSettleRequest finalises payment for an order inside one atomic unit:
// stock is re-validated and decremented, and the order marked paid.
type OrderSettleRequest struct {
	OrderID string
	// Provider the invoking flow expects the order to carry.
	Provider string
	// ChargeID is recorded for card settlements.
	ChargeID string
	// Note is an optional verification note merged onto the order.
	Note string
	Now  time.Time
}

// OrderRejectRequest cancels a manual-transfer order after admin review.
type OrderRejectRequest struct {
	OrderID string
	Note    string
	Now     time.Time
}

// OrderFailure records a gateway decline against a pending order.
type OrderFailure struct {
	OrderID   string
	ErrorCode string
	ErrorMsg  string
	Now       time.Time
}

// OrderRepository persists the order ledger.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) (domain.Order, error)
	Get(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)

	// Settle atomically re-validates stock for every order line, decrements
	// it, and marks the order paid. Settling an already-paid order is a
	// successful no-op. The provider on the order must match the request.
	Settle(ctx context.Context, req OrderSettleRequest) (domain.Order, error)

	// Reject unconditionally marks a pending manual-transfer order
	// cancelled. It is a plain update, not a transaction.
	Reject(ctx context.Context, req OrderRejectRequest) (domain.Order, error)

	// MarkFailed records a gateway decline on a pending order.
	MarkFailed(ctx context.Context, failure OrderFailure) (domain.Order, error)

	// UpdateShipping merges the shipping sub-record.
	UpdateShipping(ctx context.Context, orderID string, shipping domain.Shipping) (domain.Order, error)
}

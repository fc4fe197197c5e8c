// Package memory provides mutex-serialised in-memory repositories. They back
// unit tests and local development runs where no Firestore project exists,
// and mirror the transactional semantics of the Firestore implementations.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/m2l-store/api/internal/domain"
	"github.com/m2l-store/api/internal/repositories"
)

// Store holds catalog and ledger state behind one mutex so settlement is
// atomic with respect to concurrent callers.
type Store struct {
	mu       sync.Mutex
	products map[string]domain.Product
	orders   map[string]domain.Order
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		products: make(map[string]domain.Product),
		orders:   make(map[string]domain.Order),
	}
}

// SeedProducts loads catalog entries, keyed by product id.
func (s *Store) SeedProducts(products ...domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		s.products[p.ID] = p
	}
}

// Product returns a copy of the stored product, for test assertions.
func (s *Store) Product(id string) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

// Products returns the catalog view over this store.
func (s *Store) Products() *ProductRepository { return &ProductRepository{store: s} }

// Orders returns the ledger view over this store.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{store: s} }

// ProductRepository is the in-memory catalog implementation.
type ProductRepository struct {
	store *Store
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

func (r *ProductRepository) GetByIDs(_ context.Context, ids []string) ([]domain.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []domain.Product
	seen := make(map[string]struct{})
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if p, ok := r.store.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *ProductRepository) ListByFieldValues(_ context.Context, field string, values []any) ([]domain.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	wanted := make(map[string]struct{}, len(values))
	for _, v := range values {
		wanted[domain.NormalizeCode(v)] = struct{}{}
	}

	match := func(p domain.Product) string {
		switch field {
		case "sku":
			return p.SKU
		case "id":
			return p.AltCode
		default:
			return ""
		}
	}

	var out []domain.Product
	for _, p := range sortedProducts(r.store.products) {
		if _, ok := wanted[match(p)]; ok && match(p) != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *ProductRepository) List(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []domain.Product
	for _, p := range sortedProducts(r.store.products) {
		if filter.Active != nil && p.Active != *filter.Active {
			continue
		}
		if filter.Offer != nil && p.Offer != *filter.Offer {
			continue
		}
		out = append(out, p)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func sortedProducts(products map[string]domain.Product) []domain.Product {
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OrderRepository is the in-memory ledger implementation.
type OrderRepository struct {
	store *Store
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

func (r *OrderRepository) Create(_ context.Context, order domain.Order) (domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorUnknown, "order id is required", nil)
	}
	if _, exists := r.store.orders[orderID]; exists {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorInvalidState, fmt.Sprintf("order %s already exists", orderID), nil)
	}

	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	r.store.orders[orderID] = cloneOrder(order)
	return order, nil
}

func (r *OrderRepository) Get(_ context.Context, orderID string) (domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.getLocked(orderID)
}

func (r *OrderRepository) getLocked(orderID string) (domain.Order, error) {
	order, ok := r.store.orders[strings.TrimSpace(orderID)]
	if !ok {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorNotFound, fmt.Sprintf("order %s not found", orderID), nil)
	}
	return cloneOrder(order), nil
}

func (r *OrderRepository) List(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []domain.Order
	for _, order := range r.store.orders {
		if uid := strings.TrimSpace(filter.UserID); uid != "" && order.UserID != uid {
			continue
		}
		if provider := strings.TrimSpace(filter.Provider); provider != "" && !strings.EqualFold(order.Provider, provider) {
			continue
		}
		if len(filter.Statuses) == 1 && order.Status != filter.Statuses[0] {
			continue
		}
		out = append(out, cloneOrder(order))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *OrderRepository) Settle(_ context.Context, req repositories.OrderSettleRequest) (domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	order, err := r.getLocked(req.OrderID)
	if err != nil {
		return domain.Order{}, err
	}
	if req.Provider != "" && !strings.EqualFold(order.Provider, req.Provider) {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorProviderMismatch, fmt.Sprintf("order %s belongs to provider %s", order.ID, order.Provider), nil)
	}
	if order.Status == domain.OrderStatusPaid {
		return order, nil
	}
	if order.Status != domain.OrderStatusPending {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorInvalidState, fmt.Sprintf("order %s is %s", order.ID, order.Status), nil)
	}

	// Validate every line before touching any stock.
	for _, line := range order.Items {
		product, ok := r.store.products[line.ProductID]
		if !ok {
			return domain.Order{}, &repositories.OrderError{
				Code:      repositories.OrderErrorProductNotFound,
				Message:   fmt.Sprintf("product %s no longer exists", line.ProductID),
				ProductID: line.ProductID,
			}
		}
		if product.Stock < line.Quantity {
			return domain.Order{}, &repositories.OrderError{
				Code:      repositories.OrderErrorInsufficientStock,
				Message:   fmt.Sprintf("insufficient stock for %s", line.ProductID),
				ProductID: line.ProductID,
			}
		}
	}

	now := req.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}
	for _, line := range order.Items {
		product := r.store.products[line.ProductID]
		product.Stock -= line.Quantity
		product.UpdatedAt = now
		r.store.products[line.ProductID] = product
	}

	order.Status = domain.OrderStatusPaid
	order.UpdatedAt = now
	if chargeID := strings.TrimSpace(req.ChargeID); chargeID != "" {
		order.ChargeID = chargeID
	}
	if note := strings.TrimSpace(req.Note); note != "" {
		order.VerificationNote = note
	}
	if strings.EqualFold(order.Provider, domain.ProviderYape) {
		order.Payment = &domain.PaymentState{Status: "approved", Method: domain.ProviderYape}
		order.VerifiedAt = now
	}
	r.store.orders[order.ID] = cloneOrder(order)
	return order, nil
}

func (r *OrderRepository) Reject(_ context.Context, req repositories.OrderRejectRequest) (domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	order, err := r.getLocked(req.OrderID)
	if err != nil {
		return domain.Order{}, err
	}

	now := req.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}
	order.Status = domain.OrderStatusCancelled
	order.Payment = &domain.PaymentState{Status: "rejected", Method: domain.ProviderYape}
	order.CancelledAt = now
	order.UpdatedAt = now
	if note := strings.TrimSpace(req.Note); note != "" {
		order.VerificationNote = note
	}
	r.store.orders[order.ID] = cloneOrder(order)
	return order, nil
}

func (r *OrderRepository) MarkFailed(_ context.Context, failure repositories.OrderFailure) (domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	order, err := r.getLocked(failure.OrderID)
	if err != nil {
		return domain.Order{}, err
	}

	now := failure.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}
	order.Status = domain.OrderStatusFailed
	order.ErrorCode = strings.TrimSpace(failure.ErrorCode)
	order.ErrorMsg = strings.TrimSpace(failure.ErrorMsg)
	order.UpdatedAt = now
	r.store.orders[order.ID] = cloneOrder(order)
	return order, nil
}

func (r *OrderRepository) UpdateShipping(_ context.Context, orderID string, shipping domain.Shipping) (domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	order, err := r.getLocked(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	if shipping.UpdatedAt.IsZero() {
		shipping.UpdatedAt = time.Now().UTC()
	}
	order.Shipping = &shipping
	order.UpdatedAt = shipping.UpdatedAt
	r.store.orders[order.ID] = cloneOrder(order)
	return order, nil
}

func cloneOrder(order domain.Order) domain.Order {
	dup := order
	if order.Items != nil {
		dup.Items = make([]domain.CartLine, len(order.Items))
		copy(dup.Items, order.Items)
	}
	if order.Delivery != nil {
		d := *order.Delivery
		dup.Delivery = &d
	}
	if order.Shipping != nil {
		s := *order.Shipping
		dup.Shipping = &s
	}
	if order.Yape != nil {
		y := *order.Yape
		dup.Yape = &y
	}
	if order.Payment != nil {
		p := *order.Payment
		dup.Payment = &p
	}
	return dup
}

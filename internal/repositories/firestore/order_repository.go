package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/m2l-store/api/internal/domain"
	pfirestore "github.com/m2l-store/api/internal/platform/firestore"
	"github.com/m2l-store/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists the order ledger in Firestore. Settlement runs as
// a single transaction so stock decrements and the paid flip commit together.
type OrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[domain.Order]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[domain.Order](provider, ordersCollection, nil, decodeOrder)
	return &OrderRepository{provider: provider, base: base}, nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// Create persists a new order document under the pre-assigned order id.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	ref, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return domain.Order{}, wrapOrderError("orders.create", err)
	}
	if _, err := ref.Create(ctx, order); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorInvalidState, fmt.Sprintf("order %s already exists", orderID), err)
		}
		return domain.Order{}, wrapOrderError("orders.create", err)
	}
	return order, nil
}

// Get loads an order by id.
func (r *OrderRepository) Get(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorNotFound, fmt.Sprintf("order %s not found", orderID), err)
		}
		return domain.Order{}, wrapOrderError("orders.get", err)
	}
	return doc.Data, nil
}

// List returns orders matching the filter, newest first. Single-status
// filters are pushed to the query; anything broader is filtered by callers.
// When the ordered query fails, typically for a missing composite index, the
// unordered result is sorted in memory instead.
func (r *OrderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}

	build := func(ordered bool) pfirestore.QueryBuilder {
		return func(query firestore.Query) firestore.Query {
			if uid := strings.TrimSpace(filter.UserID); uid != "" {
				query = query.Where("userId", "==", uid)
			}
			if provider := strings.TrimSpace(filter.Provider); provider != "" {
				query = query.Where("provider", "==", provider)
			}
			if len(filter.Statuses) == 1 {
				query = query.Where("status", "==", filter.Statuses[0])
			}
			if ordered {
				query = query.OrderBy("createdAt", firestore.Desc)
			}
			if filter.Limit > 0 {
				query = query.Limit(filter.Limit)
			}
			return query
		}
	}

	docs, err := r.base.Query(ctx, build(true))
	if err != nil {
		docs, err = r.base.Query(ctx, build(false))
		if err != nil {
			return nil, wrapOrderError("orders.list", err)
		}
		sort.SliceStable(docs, func(i, j int) bool {
			return docs[i].Data.CreatedAt.After(docs[j].Data.CreatedAt)
		})
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.Data)
	}
	return orders, nil
}

// Settle marks the order paid and decrements stock for every line in one
// transaction. A second settle of the same order is a no-op returning the
// already-paid record. Stock is re-validated inside the transaction; any
// missing product or shortfall aborts the whole settlement.
func (r *OrderRepository) Settle(ctx context.Context, req repositories.OrderSettleRequest) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order settle: order id is required")
	}

	now := req.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var settled domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.base.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		orderSnap, err := tx.Get(orderRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewOrderError(repositories.OrderErrorNotFound, fmt.Sprintf("order %s not found", orderID), err)
			}
			return err
		}
		order, err := decodeOrder(ctx, orderSnap)
		if err != nil {
			return err
		}

		if req.Provider != "" && !strings.EqualFold(order.Provider, req.Provider) {
			return repositories.NewOrderError(repositories.OrderErrorProviderMismatch, fmt.Sprintf("order %s belongs to provider %s", orderID, order.Provider), nil)
		}
		if order.Status == domain.OrderStatusPaid {
			settled = order
			return nil
		}
		if order.Status != domain.OrderStatusPending {
			return repositories.NewOrderError(repositories.OrderErrorInvalidState, fmt.Sprintf("order %s is %s", orderID, order.Status), nil)
		}

		client, err := r.provider.Client(ctx)
		if err != nil {
			return err
		}

		// All reads happen before any write.
		type stockUpdate struct {
			ref       *firestore.DocumentRef
			remaining int64
		}
		updates := make([]stockUpdate, 0, len(order.Items))
		for _, line := range order.Items {
			productRef := client.Collection(productsCollection).Doc(line.ProductID)
			snap, err := tx.Get(productRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return &repositories.OrderError{
						Code:      repositories.OrderErrorProductNotFound,
						Message:   fmt.Sprintf("product %s no longer exists", line.ProductID),
						ProductID: line.ProductID,
						Err:       err,
					}
				}
				return err
			}
			stock := domain.ParseCount(snap.Data()["stock"])
			if stock < line.Quantity {
				return &repositories.OrderError{
					Code:      repositories.OrderErrorInsufficientStock,
					Message:   fmt.Sprintf("insufficient stock for %s", line.ProductID),
					ProductID: line.ProductID,
				}
			}
			updates = append(updates, stockUpdate{ref: productRef, remaining: stock - line.Quantity})
		}

		for _, update := range updates {
			if err := tx.Update(update.ref, []firestore.Update{
				{Path: "stock", Value: update.remaining},
				{Path: "updatedAt", Value: now},
			}); err != nil {
				return err
			}
		}

		orderUpdates := []firestore.Update{
			{Path: "status", Value: domain.OrderStatusPaid},
			{Path: "updatedAt", Value: now},
		}
		order.Status = domain.OrderStatusPaid
		order.UpdatedAt = now
		if chargeID := strings.TrimSpace(req.ChargeID); chargeID != "" {
			orderUpdates = append(orderUpdates, firestore.Update{Path: "chargeId", Value: chargeID})
			order.ChargeID = chargeID
		}
		if note := strings.TrimSpace(req.Note); note != "" {
			orderUpdates = append(orderUpdates, firestore.Update{Path: "verificationNote", Value: note})
			order.VerificationNote = note
		}
		if strings.EqualFold(order.Provider, domain.ProviderYape) {
			payment := domain.PaymentState{Status: "approved", Method: domain.ProviderYape}
			orderUpdates = append(orderUpdates,
				firestore.Update{Path: "payment", Value: payment},
				firestore.Update{Path: "verifiedAt", Value: now},
			)
			order.Payment = &payment
			order.VerifiedAt = now
		}
		if err := tx.Update(orderRef, orderUpdates); err != nil {
			return err
		}

		settled = order
		return nil
	})
	if err != nil {
		return domain.Order{}, wrapOrderError("orders.settle", err)
	}
	return settled, nil
}

// Reject cancels a manual-transfer order after admin review. Stock was never
// taken for pending transfers, so this is a plain update.
func (r *OrderRepository) Reject(ctx context.Context, req repositories.OrderRejectRequest) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order reject: order id is required")
	}

	now := req.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	order, err := r.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	payment := domain.PaymentState{Status: "rejected", Method: domain.ProviderYape}
	updates := []firestore.Update{
		{Path: "status", Value: domain.OrderStatusCancelled},
		{Path: "payment", Value: payment},
		{Path: "cancelledAt", Value: now},
		{Path: "updatedAt", Value: now},
	}
	order.Status = domain.OrderStatusCancelled
	order.Payment = &payment
	order.CancelledAt = now
	order.UpdatedAt = now
	if note := strings.TrimSpace(req.Note); note != "" {
		updates = append(updates, firestore.Update{Path: "verificationNote", Value: note})
		order.VerificationNote = note
	}

	if _, err := r.base.Update(ctx, orderID, updates); err != nil {
		return domain.Order{}, wrapOrderError("orders.reject", err)
	}
	return order, nil
}

// MarkFailed records a gateway decline against a pending order.
func (r *OrderRepository) MarkFailed(ctx context.Context, failure repositories.OrderFailure) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(failure.OrderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order mark failed: order id is required")
	}

	now := failure.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	order, err := r.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	updates := []firestore.Update{
		{Path: "status", Value: domain.OrderStatusFailed},
		{Path: "errorCode", Value: strings.TrimSpace(failure.ErrorCode)},
		{Path: "errorMsg", Value: strings.TrimSpace(failure.ErrorMsg)},
		{Path: "updatedAt", Value: now},
	}
	order.Status = domain.OrderStatusFailed
	order.ErrorCode = strings.TrimSpace(failure.ErrorCode)
	order.ErrorMsg = strings.TrimSpace(failure.ErrorMsg)
	order.UpdatedAt = now

	if _, err := r.base.Update(ctx, orderID, updates); err != nil {
		return domain.Order{}, wrapOrderError("orders.markFailed", err)
	}
	return order, nil
}

// UpdateShipping replaces the shipping sub-record.
func (r *OrderRepository) UpdateShipping(ctx context.Context, orderID string, shipping domain.Shipping) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order update shipping: order id is required")
	}

	if shipping.UpdatedAt.IsZero() {
		shipping.UpdatedAt = time.Now().UTC()
	}

	order, err := r.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	updates := []firestore.Update{
		{Path: "shipping", Value: shipping},
		{Path: "updatedAt", Value: shipping.UpdatedAt},
	}
	order.Shipping = &shipping
	order.UpdatedAt = shipping.UpdatedAt

	if _, err := r.base.Update(ctx, orderID, updates); err != nil {
		return domain.Order{}, wrapOrderError("orders.updateShipping", err)
	}
	return order, nil
}

func decodeOrder(_ context.Context, snap *firestore.DocumentSnapshot) (domain.Order, error) {
	var order domain.Order
	if err := snap.DataTo(&order); err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
	}
	order.ID = snap.Ref.ID
	return order, nil
}

func wrapOrderError(op string, err error) error {
	if err == nil {
		return nil
	}
	var orderErr *repositories.OrderError
	if errors.As(err, &orderErr) {
		if orderErr.Op == "" {
			orderErr.Op = op
		}
		return orderErr
	}
	return pfirestore.WrapError(op, err)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	domain "github.com/m2l-store/api/internal/domain"
	"github.com/m2l-store/api/internal/payments"
	"github.com/m2l-store/api/internal/repositories"
)

const (
	defaultOwnOrderLimit   = 100
	defaultAdminOrderLimit = 100
	maxAdminOrderLimit     = 200

	defaultCurrency = "PEN"
)

// YapeSettings is the receiving-account snapshot and ceiling for manual
// transfers.
type YapeSettings struct {
	Phone  string
	Holder string
	// MaxCents is the per-order ceiling in minor units.
	MaxCents int64
}

// OrderServiceDeps bundles constructor inputs for the order service.
type OrderServiceDeps struct {
	Orders   repositories.OrderRepository
	Cart     CartService
	Charger  payments.CardCharger
	Events   OrderEventPublisher
	Logger   *zap.Logger
	Yape     YapeSettings
	Currency string
	Clock    func() time.Time
	// NewOrderID overrides order id generation, primarily for tests.
	NewOrderID func() string
}

type orderService struct {
	orders     repositories.OrderRepository
	cart       CartService
	charger    payments.CardCharger
	events     OrderEventPublisher
	logger     *zap.Logger
	yape       YapeSettings
	currency   string
	clock      func() time.Time
	newOrderID func() string
	sanitizer  *bluemonday.Policy
}

// NewOrderService constructs the order service with the supplied dependencies.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, fmt.Errorf("order service: order repository is required")
	}
	if deps.Cart == nil {
		return nil, fmt.Errorf("order service: cart service is required")
	}
	if deps.Charger == nil {
		return nil, fmt.Errorf("order service: card charger is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newOrderID := deps.NewOrderID
	if newOrderID == nil {
		newOrderID = func() string { return "ord_" + ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	return &orderService{
		orders:     deps.Orders,
		cart:       deps.Cart,
		charger:    deps.Charger,
		events:     deps.Events,
		logger:     logger,
		yape:       deps.Yape,
		currency:   currency,
		clock:      func() time.Time { return clock().UTC() },
		newOrderID: newOrderID,
		sanitizer:  bluemonday.StrictPolicy(),
	}, nil
}

func (s *orderService) ChargeCard(ctx context.Context, cmd CardChargeCommand) (CardChargeResult, error) {
	if strings.TrimSpace(cmd.UserID) == "" {
		return CardChargeResult{}, validationError("user is required")
	}
	if strings.TrimSpace(cmd.SourceID) == "" {
		return CardChargeResult{}, validationError("token is required")
	}

	cart, err := s.priceCart(ctx, cmd.Items, cmd.ExpectedAmount)
	if err != nil {
		return CardChargeResult{}, err
	}

	now := s.clock()
	order := domain.Order{
		ID:       s.newOrderID(),
		UserID:   strings.TrimSpace(cmd.UserID),
		Email:    strings.TrimSpace(cmd.Email),
		Items:    cart.Lines,
		Amount:   cart.AmountCents,
		Currency: s.currency,
		Status:   domain.OrderStatusPending,
		Provider: domain.ProviderCulqi,
	}
	if err := s.applyDelivery(&order, cmd.Delivery, now); err != nil {
		return CardChargeResult{}, err
	}

	created, err := s.orders.Create(ctx, order)
	if err != nil {
		return CardChargeResult{}, mapOrderRepoError(err)
	}
	s.publish(ctx, OrderEventCreated, created)

	result, err := s.charger.Charge(ctx, payments.ChargeRequest{
		Amount:       created.Amount,
		CurrencyCode: created.Currency,
		Email:        created.Email,
		SourceID:     strings.TrimSpace(cmd.SourceID),
		Description:  "Pedido " + created.ID,
		OrderID:      created.ID,
	})
	if err != nil {
		failed, markErr := s.orders.MarkFailed(ctx, repositories.OrderFailure{
			OrderID:   created.ID,
			ErrorCode: "gateway_error",
			ErrorMsg:  err.Error(),
			Now:       s.clock(),
		})
		if markErr != nil {
			s.logger.Error("mark order failed after gateway error",
				zap.String("orderId", created.ID), zap.Error(markErr))
		} else {
			s.publish(ctx, OrderEventFailed, failed)
		}
		return CardChargeResult{}, internalError("order service: card charge", err)
	}

	if !result.OK {
		failed, markErr := s.orders.MarkFailed(ctx, repositories.OrderFailure{
			OrderID:   created.ID,
			ErrorCode: result.Code,
			ErrorMsg:  result.MerchantMessage,
			Now:       s.clock(),
		})
		if markErr != nil {
			s.logger.Error("mark order failed after decline",
				zap.String("orderId", created.ID), zap.Error(markErr))
		} else {
			s.publish(ctx, OrderEventFailed, failed)
		}

		message := result.UserMessage
		if message == "" {
			message = "payment declined"
		}
		declineErr := NewError(CodePaymentDeclined, message, http.StatusBadRequest)
		declineErr.WithInfo("orderId", created.ID)
		if result.Code != "" {
			declineErr.WithInfo("code", result.Code)
		}
		if result.MerchantMessage != "" {
			declineErr.WithInfo("merchantMessage", result.MerchantMessage)
		}
		return CardChargeResult{}, declineErr
	}

	settled, err := s.orders.Settle(ctx, repositories.OrderSettleRequest{
		OrderID:  created.ID,
		Provider: domain.ProviderCulqi,
		ChargeID: result.ChargeID,
		Now:      s.clock(),
	})
	if err != nil {
		// The buyer has been charged at this point; surface the settlement
		// failure loudly so the operator can reconcile.
		s.logger.Error("settlement failed after successful charge",
			zap.String("orderId", created.ID),
			zap.String("chargeId", result.ChargeID),
			zap.Error(err))
		return CardChargeResult{}, mapOrderRepoError(err)
	}
	s.publish(ctx, OrderEventPaid, settled)

	return CardChargeResult{
		OrderID:  settled.ID,
		ChargeID: settled.ChargeID,
		Amount:   settled.Amount,
		Currency: settled.Currency,
	}, nil
}

func (s *orderService) CreateYapeOrder(ctx context.Context, cmd YapeOrderCommand) (YapeOrderResult, error) {
	if strings.TrimSpace(cmd.UserID) == "" {
		return YapeOrderResult{}, validationError("user is required")
	}

	cart, err := s.priceCart(ctx, cmd.Items, cmd.ExpectedAmount)
	if err != nil {
		return YapeOrderResult{}, err
	}

	if s.yape.MaxCents > 0 && cart.AmountCents > s.yape.MaxCents {
		limitErr := NewError(CodeYapeLimitExceeded, "order total exceeds the transfer limit", http.StatusBadRequest)
		limitErr.WithInfo("limit", s.yape.MaxCents)
		limitErr.WithInfo("amount", cart.AmountCents)
		return YapeOrderResult{}, limitErr
	}

	now := s.clock()
	order := domain.Order{
		ID:       s.newOrderID(),
		UserID:   strings.TrimSpace(cmd.UserID),
		Email:    strings.TrimSpace(cmd.Email),
		Items:    cart.Lines,
		Amount:   cart.AmountCents,
		Currency: s.currency,
		Status:   domain.OrderStatusPending,
		Provider: domain.ProviderYape,
		Yape: &domain.YapeDetails{
			PayerName:    s.sanitize(cmd.PayerName),
			PayerPhone:   s.sanitize(cmd.PayerPhone),
			Reference:    s.sanitize(cmd.Reference),
			ProofURL:     strings.TrimSpace(cmd.ProofURL),
			TargetPhone:  s.yape.Phone,
			TargetHolder: s.yape.Holder,
		},
	}
	if err := s.applyDelivery(&order, cmd.Delivery, now); err != nil {
		return YapeOrderResult{}, err
	}

	created, err := s.orders.Create(ctx, order)
	if err != nil {
		return YapeOrderResult{}, mapOrderRepoError(err)
	}
	s.publish(ctx, OrderEventCreated, created)

	return YapeOrderResult{
		OrderID:      created.ID,
		Amount:       created.Amount,
		Currency:     created.Currency,
		Status:       created.Status,
		TargetPhone:  s.yape.Phone,
		TargetHolder: s.yape.Holder,
	}, nil
}

func (s *orderService) ListOwnOrders(ctx context.Context, userID string, statuses []string) ([]domain.Order, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, validationError("user is required")
	}

	statuses = normalizeStatuses(statuses)
	filter := domain.OrderFilter{UserID: userID, Limit: defaultOwnOrderLimit}
	if len(statuses) == 1 {
		filter.Statuses = statuses
	}

	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, mapOrderRepoError(err)
	}
	if len(statuses) > 1 {
		orders = filterByStatus(orders, statuses)
	}
	return orders, nil
}

func (s *orderService) GetOrder(ctx context.Context, userID string, admin bool, orderID string) (domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, mapOrderRepoError(err)
	}
	if !admin && order.UserID != strings.TrimSpace(userID) {
		return domain.Order{}, NewError(CodeForbidden, "order belongs to another user", http.StatusForbidden)
	}
	return order, nil
}

func (s *orderService) AdminListOrders(ctx context.Context, query AdminOrderQuery) ([]domain.Order, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultAdminOrderLimit
	}
	if limit > maxAdminOrderLimit {
		limit = maxAdminOrderLimit
	}

	statuses := normalizeStatuses(query.Statuses)
	filter := domain.OrderFilter{
		Provider: strings.ToLower(strings.TrimSpace(query.Provider)),
		Limit:    limit,
	}
	if len(statuses) == 1 {
		filter.Statuses = statuses
	}

	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, mapOrderRepoError(err)
	}
	if len(statuses) > 1 {
		orders = filterByStatus(orders, statuses)
	}
	return orders, nil
}

func (s *orderService) VerifyYape(ctx context.Context, cmd VerifyYapeCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, validationError("order id is required")
	}
	note := s.sanitize(cmd.Note)

	switch strings.ToLower(strings.TrimSpace(cmd.Action)) {
	case VerifyActionApprove:
		settled, err := s.orders.Settle(ctx, repositories.OrderSettleRequest{
			OrderID:  orderID,
			Provider: domain.ProviderYape,
			Note:     note,
			Now:      s.clock(),
		})
		if err != nil {
			return domain.Order{}, mapOrderRepoError(err)
		}
		s.publish(ctx, OrderEventPaid, settled)
		return settled, nil
	case VerifyActionReject:
		rejected, err := s.orders.Reject(ctx, repositories.OrderRejectRequest{
			OrderID: orderID,
			Note:    note,
			Now:     s.clock(),
		})
		if err != nil {
			return domain.Order{}, mapOrderRepoError(err)
		}
		s.publish(ctx, OrderEventCancelled, rejected)
		return rejected, nil
	default:
		return domain.Order{}, validationError("action must be approve or reject")
	}
}

func (s *orderService) UpdateShipping(ctx context.Context, cmd ShippingUpdateCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, validationError("order id is required")
	}
	shippingStatus := strings.ToLower(strings.TrimSpace(cmd.Status))
	if !domain.ValidShippingStatus(shippingStatus) {
		return domain.Order{}, validationError("invalid shipping status")
	}

	updated, err := s.orders.UpdateShipping(ctx, orderID, domain.Shipping{
		Status:    shippingStatus,
		Carrier:   strings.TrimSpace(cmd.Carrier),
		Tracking:  strings.TrimSpace(cmd.Tracking),
		Address:   strings.TrimSpace(cmd.Address),
		UpdatedAt: s.clock(),
	})
	if err != nil {
		return domain.Order{}, mapOrderRepoError(err)
	}
	return updated, nil
}

// priceCart resolves and validates the cart shared by both creation flows.
func (s *orderService) priceCart(ctx context.Context, items []domain.CartItem, expected *int64) (domain.ResolvedCart, error) {
	cart, err := s.cart.Resolve(ctx, items, true)
	if err != nil {
		return domain.ResolvedCart{}, err
	}
	if !cart.Chargeable() {
		unavailable := NewError(CodeProductNotFound, "some products are unavailable", http.StatusBadRequest)
		unavailable.WithInfo("missing", cart.Missing)
		unavailable.WithInfo("inactive", cart.Inactive)
		return domain.ResolvedCart{}, unavailable
	}
	if cart.AmountCents <= 0 {
		return domain.ResolvedCart{}, NewError(CodeInvalidAmount, "order total must be positive", http.StatusBadRequest)
	}
	// A zero echoed amount means the client sent none.
	if expected != nil && *expected != 0 && *expected != cart.AmountCents {
		mismatch := NewError(CodeAmountMismatch, "cart total changed", http.StatusConflict)
		mismatch.WithInfo("expected", cart.AmountCents)
		mismatch.WithInfo("received", *expected)
		return domain.ResolvedCart{}, mismatch
	}
	return cart, nil
}

func (s *orderService) applyDelivery(order *domain.Order, input *DeliveryInput, now time.Time) error {
	if input == nil {
		return nil
	}
	method := strings.ToLower(strings.TrimSpace(input.Method))
	address := strings.TrimSpace(input.Address)
	switch method {
	case domain.DeliveryPickup:
		order.Delivery = &domain.Delivery{Method: domain.DeliveryPickup}
		order.Shipping = &domain.Shipping{Status: domain.ShippingNone, UpdatedAt: now}
	case domain.DeliveryDelivery:
		if address == "" {
			return validationError("delivery address is required")
		}
		order.Delivery = &domain.Delivery{Method: domain.DeliveryDelivery, Address: address}
		order.Shipping = &domain.Shipping{Status: domain.ShippingPreparing, Address: address, UpdatedAt: now}
	default:
		return validationError("delivery method must be pickup or delivery")
	}
	return nil
}

func (s *orderService) sanitize(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

func (s *orderService) publish(ctx context.Context, eventType string, order domain.Order) {
	if s.events == nil {
		return
	}
	_, err := s.events.PublishOrderEvent(ctx, OrderEvent{
		Type:       eventType,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Provider:   order.Provider,
		Status:     order.Status,
		Amount:     order.Amount,
		Currency:   order.Currency,
		OccurredAt: s.clock(),
	})
	if err != nil {
		s.logger.Warn("order event publish failed",
			zap.String("event", eventType),
			zap.String("orderId", order.ID),
			zap.Error(err))
	}
}

func normalizeStatuses(statuses []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, status := range statuses {
		status = strings.ToLower(strings.TrimSpace(status))
		if status == "" {
			continue
		}
		if _, dup := seen[status]; dup {
			continue
		}
		seen[status] = struct{}{}
		out = append(out, status)
	}
	return out
}

func filterByStatus(orders []domain.Order, statuses []string) []domain.Order {
	allowed := make(map[string]struct{}, len(statuses))
	for _, status := range statuses {
		allowed[status] = struct{}{}
	}
	out := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		if _, ok := allowed[order.Status]; ok {
			out = append(out, order)
		}
	}
	return out
}

func mapOrderRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr *repositories.OrderError
	if errors.As(err, &repoErr) {
		switch repoErr.Code {
		case repositories.OrderErrorNotFound:
			return NewError(CodeOrderNotFound, "order not found", http.StatusNotFound)
		case repositories.OrderErrorProviderMismatch:
			return NewError(CodeValidation, repoErr.Message, http.StatusBadRequest)
		case repositories.OrderErrorInvalidState:
			return NewError(CodeValidation, repoErr.Message, http.StatusConflict)
		case repositories.OrderErrorProductNotFound:
			e := NewError(CodeProductNotFound, repoErr.Message, http.StatusConflict)
			return e.WithInfo("productId", repoErr.ProductID)
		case repositories.OrderErrorInsufficientStock:
			e := NewError(CodeInsufficientStock, repoErr.Message, http.StatusConflict)
			return e.WithInfo("productId", repoErr.ProductID)
		}
	}
	return internalError("order service: ledger operation failed", err)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	domain "github.com/m2l-store/api/internal/domain"
	"github.com/m2l-store/api/internal/payments"
	"github.com/m2l-store/api/internal/repositories"
	"github.com/m2l-store/api/internal/repositories/memory"
)

type stubCharger struct {
	charge func(ctx context.Context, req payments.ChargeRequest) (payments.ChargeResult, error)
	calls  []payments.ChargeRequest
}

func (s *stubCharger) Charge(ctx context.Context, req payments.ChargeRequest) (payments.ChargeResult, error) {
	s.calls = append(s.calls, req)
	if s.charge == nil {
		return payments.ChargeResult{OK: true, ChargeID: "chr_stub"}, nil
	}
	return s.charge(ctx, req)
}

type recordingPublisher struct {
	events []OrderEvent
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) (string, error) {
	p.events = append(p.events, event)
	return fmt.Sprintf("msg-%d", len(p.events)), nil
}

type orderFixture struct {
	store     *memory.Store
	charger   *stubCharger
	publisher *recordingPublisher
	svc       OrderService
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()

	store := memory.NewStore()
	store.SeedProducts(
		domain.Product{ID: "p1", Name: "Mate Cup", Price: 10.50, Active: true, Stock: 5, SKU: "CUP-1"},
		domain.Product{ID: "p2", Name: "Thermos", Price: 300, Active: true, Stock: 2, SKU: "THE-2"},
		domain.Product{ID: "off", Name: "Retired", Price: 9, Active: false, Stock: 9},
	)

	catalog, err := NewCatalogService(CatalogServiceDeps{Products: store.Products()})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}
	cart, err := NewCartService(CartServiceDeps{Catalog: catalog})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	charger := &stubCharger{}
	publisher := &recordingPublisher{}

	var seq int
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:  store.Orders(),
		Cart:    cart,
		Charger: charger,
		Events:  publisher,
		Yape:    YapeSettings{Phone: "999888777", Holder: "M2L Store", MaxCents: 50000},
		Clock:   func() time.Time { return time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC) },
		NewOrderID: func() string {
			seq++
			return fmt.Sprintf("ord_%d", seq)
		},
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	return &orderFixture{store: store, charger: charger, publisher: publisher, svc: svc}
}

func (f *orderFixture) eventTypes() []string {
	var out []string
	for _, e := range f.publisher.events {
		out = append(out, e.Type)
	}
	return out
}

func TestChargeCardSuccess(t *testing.T) {
	f := newOrderFixture(t)
	f.charger.charge = func(_ context.Context, req payments.ChargeRequest) (payments.ChargeResult, error) {
		return payments.ChargeResult{OK: true, ChargeID: "chr_ok"}, nil
	}

	result, err := f.svc.ChargeCard(context.Background(), CardChargeCommand{
		UserID:   "user-1",
		Email:    "buyer@example.com",
		Items:    []domain.CartItem{{Key: "p1", Quantity: 2}},
		SourceID: "tkn_abc",
	})
	if err != nil {
		t.Fatalf("ChargeCard: %v", err)
	}
	if result.Amount != 2100 {
		t.Fatalf("expected 2100 cents, got %d", result.Amount)
	}
	if result.ChargeID != "chr_ok" {
		t.Fatalf("expected charge id chr_ok, got %q", result.ChargeID)
	}

	if len(f.charger.calls) != 1 {
		t.Fatalf("expected one gateway call, got %d", len(f.charger.calls))
	}
	call := f.charger.calls[0]
	if call.Amount != 2100 || call.CurrencyCode != "PEN" || call.OrderID != result.OrderID {
		t.Fatalf("unexpected charge request %+v", call)
	}

	order, err := f.store.Orders().Get(context.Background(), result.OrderID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if order.Status != domain.OrderStatusPaid {
		t.Fatalf("expected paid order, got %s", order.Status)
	}
	if product, _ := f.store.Product("p1"); product.Stock != 3 {
		t.Fatalf("expected stock 3, got %d", product.Stock)
	}

	types := f.eventTypes()
	if len(types) != 2 || types[0] != OrderEventCreated || types[1] != OrderEventPaid {
		t.Fatalf("expected created+paid events, got %v", types)
	}
}

func TestChargeCardDecline(t *testing.T) {
	f := newOrderFixture(t)
	f.charger.charge = func(_ context.Context, req payments.ChargeRequest) (payments.ChargeResult, error) {
		return payments.ChargeResult{
			OK:              false,
			Code:            "insufficient_funds",
			UserMessage:     "Fondos insuficientes",
			MerchantMessage: "The card has insufficient funds",
		}, nil
	}

	_, err := f.svc.ChargeCard(context.Background(), CardChargeCommand{
		UserID:   "user-1",
		Items:    []domain.CartItem{{Key: "p1", Quantity: 1}},
		SourceID: "tkn_abc",
	})
	svcErr, ok := AsServiceError(err)
	if !ok || svcErr.Code != CodePaymentDeclined {
		t.Fatalf("expected PAYMENT_DECLINED, got %v", err)
	}
	if svcErr.Info["code"] != "insufficient_funds" {
		t.Fatalf("expected decline code in info, got %v", svcErr.Info)
	}
	orderID, _ := svcErr.Info["orderId"].(string)
	if orderID == "" {
		t.Fatalf("expected order id in info, got %v", svcErr.Info)
	}

	order, err := f.store.Orders().Get(context.Background(), orderID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if order.Status != domain.OrderStatusFailed {
		t.Fatalf("expected failed order, got %s", order.Status)
	}
	if order.ErrorCode != "insufficient_funds" {
		t.Fatalf("expected provider code recorded, got %q", order.ErrorCode)
	}
	if product, _ := f.store.Product("p1"); product.Stock != 5 {
		t.Fatalf("expected stock untouched, got %d", product.Stock)
	}

	types := f.eventTypes()
	if len(types) != 2 || types[1] != OrderEventFailed {
		t.Fatalf("expected created+failed events, got %v", types)
	}
}

func TestChargeCardAmountMismatch(t *testing.T) {
	f := newOrderFixture(t)

	wrong := int64(999)
	_, err := f.svc.ChargeCard(context.Background(), CardChargeCommand{
		UserID:         "user-1",
		Items:          []domain.CartItem{{Key: "p1", Quantity: 2}},
		SourceID:       "tkn_abc",
		ExpectedAmount: &wrong,
	})
	svcErr, ok := AsServiceError(err)
	if !ok || svcErr.Code != CodeAmountMismatch {
		t.Fatalf("expected AMOUNT_MISMATCH, got %v", err)
	}
	if svcErr.Status != 409 {
		t.Fatalf("expected status 409, got %d", svcErr.Status)
	}
	if svcErr.Info["expected"] != int64(2100) || svcErr.Info["received"] != int64(999) {
		t.Fatalf("expected amounts in info, got %v", svcErr.Info)
	}
	if len(f.charger.calls) != 0 {
		t.Fatal("gateway must not be called on mismatch")
	}
}

func TestChargeCardZeroEchoedAmountIgnored(t *testing.T) {
	f := newOrderFixture(t)

	zero := int64(0)
	result, err := f.svc.ChargeCard(context.Background(), CardChargeCommand{
		UserID:         "user-1",
		Items:          []domain.CartItem{{Key: "p1", Quantity: 2}},
		SourceID:       "tkn_abc",
		ExpectedAmount: &zero,
	})
	if err != nil {
		t.Fatalf("ChargeCard: %v", err)
	}
	if result.Amount != 2100 {
		t.Fatalf("expected 2100 cents, got %d", result.Amount)
	}
	if len(f.charger.calls) != 1 {
		t.Fatalf("expected one gateway call, got %d", len(f.charger.calls))
	}
}

func TestChargeCardRequiresToken(t *testing.T) {
	f := newOrderFixture(t)
	_, err := f.svc.ChargeCard(context.Background(), CardChargeCommand{
		UserID: "user-1",
		Items:  []domain.CartItem{{Key: "p1", Quantity: 1}},
	})
	svcErr, ok := AsServiceError(err)
	if !ok || svcErr.Code != CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestChargeCardUnavailableProducts(t *testing.T) {
	f := newOrderFixture(t)
	_, err := f.svc.ChargeCard(context.Background(), CardChargeCommand{
		UserID:   "user-1",
		Items:    []domain.CartItem{{Key: "ghost", Quantity: 1}, {Key: "off", Quantity: 1}},
		SourceID: "tkn_abc",
	})
	svcErr, ok := AsServiceError(err)
	if !ok || svcErr.Code != CodeProductNotFound {
		t.Fatalf("expected PRODUCT_NOT_FOUND, got %v", err)
	}
	missing, _ := svcErr.Info["missing"].([]string)
	inactive, _ := svcErr.Info["inactive"].([]string)
	if len(missing) != 1 || missing[0] != "ghost" {
		t.Fatalf("expected missing ghost, got %v", missing)
	}
	if len(inactive) != 1 || inactive[0] != "off" {
		t.Fatalf("expected inactive off, got %v", inactive)
	}
}

func TestChargeCardGatewayErrorMarksFailed(t *testing.T) {
	f := newOrderFixture(t)
	f.charger.charge = func(context.Context, payments.ChargeRequest) (payments.ChargeResult, error) {
		return payments.ChargeResult{}, errors.New("connection reset")
	}

	_, err := f.svc.ChargeCard(context.Background(), CardChargeCommand{
		UserID:   "user-1",
		Items:    []domain.CartItem{{Key: "p1", Quantity: 1}},
		SourceID: "tkn_abc",
	})
	svcErr, ok := AsServiceError(err)
	if !ok || svcErr.Code != CodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}

	orders, err := f.svc.AdminListOrders(context.Background(), AdminOrderQuery{})
	if err != nil {
		t.Fatalf("AdminListOrders: %v", err)
	}
	if len(orders) != 1 || orders[0].Status != domain.OrderStatusFailed {
		t.Fatalf("expected one failed order, got %+v", orders)
	}
}

func TestCreateYapeOrderStaysPending(t *testing.T) {
	f := newOrderFixture(t)

	result, err := f.svc.CreateYapeOrder(context.Background(), YapeOrderCommand{
		UserID:    "user-1",
		Items:     []domain.CartItem{{Key: "p1", Quantity: 2}},
		PayerName: "Maria <script>alert(1)</script>Lopez",
		Reference: "op-123",
	})
	if err != nil {
		t.Fatalf("CreateYapeOrder: %v", err)
	}
	if result.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending, got %s", result.Status)
	}
	if result.TargetPhone != "999888777" || result.TargetHolder != "M2L Store" {
		t.Fatalf("expected payment target snapshot, got %+v", result)
	}

	order, err := f.store.Orders().Get(context.Background(), result.OrderID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if order.Yape == nil {
		t.Fatal("expected yape details persisted")
	}
	if order.Yape.PayerName != "Maria Lopez" {
		t.Fatalf("expected sanitised payer name, got %q", order.Yape.PayerName)
	}
	if order.Yape.TargetPhone != "999888777" {
		t.Fatalf("expected target snapshot on order, got %q", order.Yape.TargetPhone)
	}
	if product, _ := f.store.Product("p1"); product.Stock != 5 {
		t.Fatalf("pending transfer must not touch stock, got %d", product.Stock)
	}
}

func TestCreateYapeOrderCeiling(t *testing.T) {
	f := newOrderFixture(t)

	// 2 x 300.00 = 60000 cents, over the 50000 ceiling.
	_, err := f.svc.CreateYapeOrder(context.Background(), YapeOrderCommand{
		UserID: "user-1",
		Items:  []domain.CartItem{{Key: "p2", Quantity: 2}},
	})
	svcErr, ok := AsServiceError(err)
	if !ok || svcErr.Code != CodeYapeLimitExceeded {
		t.Fatalf("expected YAPE_LIMIT_EXCEEDED, got %v", err)
	}
	if svcErr.Info["limit"] != int64(50000) || svcErr.Info["amount"] != int64(60000) {
		t.Fatalf("expected limit and amount in info, got %v", svcErr.Info)
	}
}

func TestVerifyYapeApprove(t *testing.T) {
	f := newOrderFixture(t)
	created, err := f.svc.CreateYapeOrder(context.Background(), YapeOrderCommand{
		UserID: "user-1",
		Items:  []domain.CartItem{{Key: "p1", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("CreateYapeOrder: %v", err)
	}

	order, err := f.svc.VerifyYape(context.Background(), VerifyYapeCommand{
		OrderID: created.OrderID,
		Action:  "approve",
		Note:    "<b>transfer</b> confirmed",
	})
	if err != nil {
		t.Fatalf("VerifyYape: %v", err)
	}
	if order.Status != domain.OrderStatusPaid {
		t.Fatalf("expected paid, got %s", order.Status)
	}
	if order.Payment == nil || order.Payment.Status != "approved" || order.Payment.Method != domain.ProviderYape {
		t.Fatalf("expected approved payment state, got %+v", order.Payment)
	}
	if order.VerificationNote != "transfer confirmed" {
		t.Fatalf("expected sanitised note, got %q", order.VerificationNote)
	}
	if product, _ := f.store.Product("p1"); product.Stock != 3 {
		t.Fatalf("expected stock decremented on approval, got %d", product.Stock)
	}
}

func TestVerifyYapeReject(t *testing.T) {
	f := newOrderFixture(t)
	created, err := f.svc.CreateYapeOrder(context.Background(), YapeOrderCommand{
		UserID: "user-1",
		Items:  []domain.CartItem{{Key: "p1", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateYapeOrder: %v", err)
	}

	order, err := f.svc.VerifyYape(context.Background(), VerifyYapeCommand{
		OrderID: created.OrderID,
		Action:  "reject",
		Note:    "no transfer received",
	})
	if err != nil {
		t.Fatalf("VerifyYape: %v", err)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", order.Status)
	}
	if order.Payment == nil || order.Payment.Status != "rejected" {
		t.Fatalf("expected rejected payment state, got %+v", order.Payment)
	}

	types := f.eventTypes()
	if types[len(types)-1] != OrderEventCancelled {
		t.Fatalf("expected cancelled event last, got %v", types)
	}
}

func TestVerifyYapeRejectsCardOrders(t *testing.T) {
	f := newOrderFixture(t)
	result, err := f.svc.ChargeCard(context.Background(), CardChargeCommand{
		UserID:   "user-1",
		Items:    []domain.CartItem{{Key: "p1", Quantity: 1}},
		SourceID: "tkn_abc",
	})
	if err != nil {
		t.Fatalf("ChargeCard: %v", err)
	}

	_, err = f.svc.VerifyYape(context.Background(), VerifyYapeCommand{OrderID: result.OrderID, Action: "approve"})
	svcErr, ok := AsServiceError(err)
	if !ok || svcErr.Code != CodeValidation {
		t.Fatalf("expected validation error for provider mismatch, got %v", err)
	}
}

func TestVerifyYapeUnknownAction(t *testing.T) {
	f := newOrderFixture(t)
	_, err := f.svc.VerifyYape(context.Background(), VerifyYapeCommand{OrderID: "ord_x", Action: "maybe"})
	svcErr, ok := AsServiceError(err)
	if !ok || svcErr.Code != CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetOrderOwnerOnly(t *testing.T) {
	f := newOrderFixture(t)
	created, err := f.svc.CreateYapeOrder(context.Background(), YapeOrderCommand{
		UserID: "user-1",
		Items:  []domain.CartItem{{Key: "p1", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateYapeOrder: %v", err)
	}

	if _, err := f.svc.GetOrder(context.Background(), "user-1", false, created.OrderID); err != nil {
		t.Fatalf("owner read: %v", err)
	}

	_, err = f.svc.GetOrder(context.Background(), "intruder", false, created.OrderID)
	svcErr, ok := AsServiceError(err)
	if !ok || svcErr.Code != CodeForbidden {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}

	if _, err := f.svc.GetOrder(context.Background(), "someone-else", true, created.OrderID); err != nil {
		t.Fatalf("admin read: %v", err)
	}

	_, err = f.svc.GetOrder(context.Background(), "user-1", false, "ord_missing")
	svcErr, ok = AsServiceError(err)
	if !ok || svcErr.Code != CodeOrderNotFound {
		t.Fatalf("expected ORDER_NOT_FOUND, got %v", err)
	}
}

func TestListOwnOrdersMultiStatusFilter(t *testing.T) {
	f := newOrderFixture(t)

	for i := 0; i < 3; i++ {
		if _, err := f.svc.CreateYapeOrder(context.Background(), YapeOrderCommand{
			UserID: "user-1",
			Items:  []domain.CartItem{{Key: "p1", Quantity: 1}},
		}); err != nil {
			t.Fatalf("CreateYapeOrder %d: %v", i, err)
		}
	}
	all, err := f.svc.ListOwnOrders(context.Background(), "user-1", nil)
	if err != nil {
		t.Fatalf("ListOwnOrders: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(all))
	}

	// Approve one, reject one; then filter on two statuses.
	if _, err := f.svc.VerifyYape(context.Background(), VerifyYapeCommand{OrderID: all[0].ID, Action: "approve"}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.svc.VerifyYape(context.Background(), VerifyYapeCommand{OrderID: all[1].ID, Action: "reject"}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	filtered, err := f.svc.ListOwnOrders(context.Background(), "user-1", []string{"paid", "cancelled"})
	if err != nil {
		t.Fatalf("ListOwnOrders filtered: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(filtered))
	}
	for _, order := range filtered {
		if order.Status != domain.OrderStatusPaid && order.Status != domain.OrderStatusCancelled {
			t.Fatalf("unexpected status %s", order.Status)
		}
	}
}

func TestAdminListOrdersProviderFilter(t *testing.T) {
	f := newOrderFixture(t)

	if _, err := f.svc.CreateYapeOrder(context.Background(), YapeOrderCommand{
		UserID: "user-1",
		Items:  []domain.CartItem{{Key: "p1", Quantity: 1}},
	}); err != nil {
		t.Fatalf("CreateYapeOrder: %v", err)
	}
	if _, err := f.svc.ChargeCard(context.Background(), CardChargeCommand{
		UserID:   "user-2",
		Items:    []domain.CartItem{{Key: "p1", Quantity: 1}},
		SourceID: "tkn_abc",
	}); err != nil {
		t.Fatalf("ChargeCard: %v", err)
	}

	yapeOnly, err := f.svc.AdminListOrders(context.Background(), AdminOrderQuery{Provider: "yape"})
	if err != nil {
		t.Fatalf("AdminListOrders: %v", err)
	}
	if len(yapeOnly) != 1 || yapeOnly[0].Provider != domain.ProviderYape {
		t.Fatalf("expected one yape order, got %+v", yapeOnly)
	}
}

type listRecordingOrderRepo struct {
	repositories.OrderRepository
	filters []domain.OrderFilter
}

func (r *listRecordingOrderRepo) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	r.filters = append(r.filters, filter)
	return r.OrderRepository.List(ctx, filter)
}

func TestAdminListOrdersLimitClamp(t *testing.T) {
	f := newOrderFixture(t)
	repo := &listRecordingOrderRepo{OrderRepository: f.store.Orders()}

	catalog, err := NewCatalogService(CatalogServiceDeps{Products: f.store.Products()})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}
	cart, err := NewCartService(CartServiceDeps{Catalog: catalog})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:  repo,
		Cart:    cart,
		Charger: f.charger,
		Events:  f.publisher,
		Yape:    YapeSettings{Phone: "999888777", Holder: "M2L Store", MaxCents: 50000},
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	cases := []struct {
		limit int
		want  int
	}{
		{limit: 0, want: 100},
		{limit: -3, want: 100},
		{limit: 42, want: 42},
		{limit: 500, want: 200},
	}
	for _, tc := range cases {
		if _, err := svc.AdminListOrders(context.Background(), AdminOrderQuery{Limit: tc.limit}); err != nil {
			t.Fatalf("AdminListOrders(%d): %v", tc.limit, err)
		}
	}
	if len(repo.filters) != len(cases) {
		t.Fatalf("expected %d list calls, got %d", len(cases), len(repo.filters))
	}
	for i, tc := range cases {
		if got := repo.filters[i].Limit; got != tc.want {
			t.Fatalf("limit %d: expected clamp to %d, got %d", tc.limit, tc.want, got)
		}
	}
}

func TestUpdateShippingWhitelist(t *testing.T) {
	f := newOrderFixture(t)
	created, err := f.svc.CreateYapeOrder(context.Background(), YapeOrderCommand{
		UserID: "user-1",
		Items:  []domain.CartItem{{Key: "p1", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateYapeOrder: %v", err)
	}

	_, err = f.svc.UpdateShipping(context.Background(), ShippingUpdateCommand{
		OrderID: created.OrderID,
		Status:  "teleported",
	})
	svcErr, ok := AsServiceError(err)
	if !ok || svcErr.Code != CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	order, err := f.svc.UpdateShipping(context.Background(), ShippingUpdateCommand{
		OrderID:  created.OrderID,
		Status:   "shipped",
		Carrier:  "Olva",
		Tracking: "TRK-1",
	})
	if err != nil {
		t.Fatalf("UpdateShipping: %v", err)
	}
	if order.Shipping == nil || order.Shipping.Status != domain.ShippingShipped || order.Shipping.Carrier != "Olva" {
		t.Fatalf("unexpected shipping %+v", order.Shipping)
	}
}

func TestDeliverySnapshot(t *testing.T) {
	f := newOrderFixture(t)

	pickup, err := f.svc.CreateYapeOrder(context.Background(), YapeOrderCommand{
		UserID:   "user-1",
		Items:    []domain.CartItem{{Key: "p1", Quantity: 1}},
		Delivery: &DeliveryInput{Method: "pickup"},
	})
	if err != nil {
		t.Fatalf("CreateYapeOrder pickup: %v", err)
	}
	order, _ := f.store.Orders().Get(context.Background(), pickup.OrderID)
	if order.Shipping == nil || order.Shipping.Status != domain.ShippingNone {
		t.Fatalf("expected shipping none for pickup, got %+v", order.Shipping)
	}

	_, err = f.svc.CreateYapeOrder(context.Background(), YapeOrderCommand{
		UserID:   "user-1",
		Items:    []domain.CartItem{{Key: "p1", Quantity: 1}},
		Delivery: &DeliveryInput{Method: "delivery"},
	})
	svcErr, ok := AsServiceError(err)
	if !ok || svcErr.Code != CodeValidation {
		t.Fatalf("expected validation error for missing address, got %v", err)
	}

	delivered, err := f.svc.CreateYapeOrder(context.Background(), YapeOrderCommand{
		UserID:   "user-1",
		Items:    []domain.CartItem{{Key: "p1", Quantity: 1}},
		Delivery: &DeliveryInput{Method: "delivery", Address: "Av. Lima 123"},
	})
	if err != nil {
		t.Fatalf("CreateYapeOrder delivery: %v", err)
	}
	order, _ = f.store.Orders().Get(context.Background(), delivered.OrderID)
	if order.Shipping == nil || order.Shipping.Status != domain.ShippingPreparing || order.Shipping.Address != "Av. Lima 123" {
		t.Fatalf("expected preparing shipping with address, got %+v", order.Shipping)
	}
}

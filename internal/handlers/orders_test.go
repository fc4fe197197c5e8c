package handlers

import (
	"context"
	"net/http"
	"reflect"
	"testing"

	domain "github.com/m2l-store/api/internal/domain"
	"github.com/m2l-store/api/internal/services"
)

func TestChargeForwardsCommand(t *testing.T) {
	fx := newRouterFixture(t)

	var got services.CardChargeCommand
	fx.orders.chargeCard = func(ctx context.Context, cmd services.CardChargeCommand) (services.CardChargeResult, error) {
		got = cmd
		return services.CardChargeResult{OrderID: "ord_1", ChargeID: "chr_1", Amount: 2100, Currency: "PEN"}, nil
	}

	body := `{
		"token": "tkn_live_abc",
		"items": [{"id": "p1", "quantity": 2}, {"id": 42, "quantity": "3"}],
		"amount": 2100,
		"delivery": {"method": "delivery", "address": "Av. Lima 123"}
	}`
	rec := fx.do(t, http.MethodPost, "/culqi/charge", body, asUser("u1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if got.UserID != "u1" {
		t.Errorf("UserID = %q", got.UserID)
	}
	if got.Email != "u1@example.com" {
		t.Errorf("Email = %q, want identity fallback", got.Email)
	}
	if got.SourceID != "tkn_live_abc" {
		t.Errorf("SourceID = %q", got.SourceID)
	}
	wantItems := []domain.CartItem{{Key: "p1", Quantity: 2}, {Key: "42", Quantity: 3}}
	if !reflect.DeepEqual(got.Items, wantItems) {
		t.Errorf("Items = %+v, want %+v", got.Items, wantItems)
	}
	if got.ExpectedAmount == nil || *got.ExpectedAmount != 2100 {
		t.Errorf("ExpectedAmount = %v, want 2100", got.ExpectedAmount)
	}
	if got.Delivery == nil || got.Delivery.Method != "delivery" || got.Delivery.Address != "Av. Lima 123" {
		t.Errorf("Delivery = %+v", got.Delivery)
	}

	payload := decodeBody(t, rec)
	if payload["orderId"] != "ord_1" || payload["chargeId"] != "chr_1" {
		t.Fatalf("response = %v", payload)
	}
}

func TestChargeSourceIDBeatsToken(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "source_id wins", body: `{"source_id":"src_1","token":"tkn_1","items":[{"id":"p1","quantity":1}]}`, want: "src_1"},
		{name: "token fallback", body: `{"token":"tkn_1","items":[{"id":"p1","quantity":1}]}`, want: "tkn_1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newRouterFixture(t)

			var got services.CardChargeCommand
			fx.orders.chargeCard = func(ctx context.Context, cmd services.CardChargeCommand) (services.CardChargeResult, error) {
				got = cmd
				return services.CardChargeResult{OrderID: "ord_1"}, nil
			}

			rec := fx.do(t, http.MethodPost, "/culqi/charge", tc.body, asUser("u1"))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if got.SourceID != tc.want {
				t.Fatalf("SourceID = %q, want %q", got.SourceID, tc.want)
			}
		})
	}
}

func TestChargeMapsServiceError(t *testing.T) {
	fx := newRouterFixture(t)

	fx.orders.chargeCard = func(ctx context.Context, cmd services.CardChargeCommand) (services.CardChargeResult, error) {
		return services.CardChargeResult{}, services.NewError(services.CodePaymentDeclined, "card was declined", http.StatusBadRequest).
			WithInfo("orderId", "ord_1").
			WithInfo("code", "insufficient_funds")
	}

	rec := fx.do(t, http.MethodPost, "/culqi/charge", `{"token":"tkn","items":[{"id":"p1","quantity":1}]}`, asUser("u1"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["code"] != services.CodePaymentDeclined {
		t.Fatalf("code = %v", payload["code"])
	}
	info, _ := payload["info"].(map[string]any)
	if info["code"] != "insufficient_funds" {
		t.Fatalf("info = %v", payload["info"])
	}
}

func TestChargeRejectsMissingBody(t *testing.T) {
	fx := newRouterFixture(t)

	rec := fx.do(t, http.MethodPost, "/culqi/charge", "", asUser("u1"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["code"] != services.CodeValidation {
		t.Fatalf("code = %v", payload["code"])
	}
}

func TestCreateYapeReturnsCreated(t *testing.T) {
	fx := newRouterFixture(t)

	var got services.YapeOrderCommand
	fx.orders.createYape = func(ctx context.Context, cmd services.YapeOrderCommand) (services.YapeOrderResult, error) {
		got = cmd
		return services.YapeOrderResult{
			OrderID:      "ord_2",
			Amount:       2100,
			Currency:     "PEN",
			Status:       domain.OrderStatusPending,
			TargetPhone:  "999888777",
			TargetHolder: "M2L Store",
		}, nil
	}

	body := `{
		"items": [{"id": "p1", "quantity": 2}],
		"payerName": "Maria",
		"payerPhone": "987654321",
		"reference": "op-123",
		"email": "buyer@example.com"
	}`
	rec := fx.do(t, http.MethodPost, "/orders/yape", body, asUser("u1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if got.Email != "buyer@example.com" {
		t.Errorf("Email = %q, want explicit payload value", got.Email)
	}
	if got.PayerName != "Maria" || got.PayerPhone != "987654321" || got.Reference != "op-123" {
		t.Errorf("payer details = %+v", got)
	}

	payload := decodeBody(t, rec)
	if payload["status"] != domain.OrderStatusPending {
		t.Fatalf("status field = %v", payload["status"])
	}
	if payload["targetPhone"] != "999888777" {
		t.Fatalf("targetPhone = %v", payload["targetPhone"])
	}
}

func TestListOwnOrdersSplitsStatusQuery(t *testing.T) {
	fx := newRouterFixture(t)

	var gotUser string
	var gotStatuses []string
	fx.orders.listOwn = func(ctx context.Context, userID string, statuses []string) ([]domain.Order, error) {
		gotUser = userID
		gotStatuses = statuses
		return []domain.Order{{ID: "ord_1"}, {ID: "ord_2"}}, nil
	}

	rec := fx.do(t, http.MethodGet, "/orders?status=pending,%20paid", "", asUser("u1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotUser != "u1" {
		t.Errorf("userID = %q", gotUser)
	}
	if !reflect.DeepEqual(gotStatuses, []string{"pending", "paid"}) {
		t.Errorf("statuses = %v", gotStatuses)
	}
	payload := decodeBody(t, rec)
	if payload["count"] != float64(2) {
		t.Fatalf("count = %v", payload["count"])
	}
}

func TestGetOrderPassesAdminFlag(t *testing.T) {
	fx := newRouterFixture(t)

	var gotAdmin bool
	var gotOrderID string
	fx.orders.getOrder = func(ctx context.Context, userID string, admin bool, orderID string) (domain.Order, error) {
		gotAdmin = admin
		gotOrderID = orderID
		return domain.Order{ID: orderID, UserID: userID}, nil
	}

	rec := fx.do(t, http.MethodGet, "/orders/ord_9", "", asAdmin("root"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !gotAdmin {
		t.Error("admin flag not forwarded")
	}
	if gotOrderID != "ord_9" {
		t.Errorf("orderID = %q", gotOrderID)
	}
}

func TestGetOrderForbiddenForOtherUsers(t *testing.T) {
	fx := newRouterFixture(t)

	fx.orders.getOrder = func(ctx context.Context, userID string, admin bool, orderID string) (domain.Order, error) {
		return domain.Order{}, services.NewError(services.CodeForbidden, "order belongs to another user", http.StatusForbidden)
	}

	rec := fx.do(t, http.MethodGet, "/orders/ord_9", "", asUser("u2"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["code"] != services.CodeForbidden {
		t.Fatalf("code = %v", payload["code"])
	}
}

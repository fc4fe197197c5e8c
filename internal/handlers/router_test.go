package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/m2l-store/api/internal/domain"
	"github.com/m2l-store/api/internal/platform/auth"
	"github.com/m2l-store/api/internal/platform/httpx"
	"github.com/m2l-store/api/internal/platform/idempotency"
	"github.com/m2l-store/api/internal/services"
)

type stubCatalogService struct {
	list    func(ctx context.Context, query services.ProductListQuery) ([]domain.Product, error)
	resolve func(ctx context.Context, keys []string) (map[string]domain.Product, error)
}

func (s *stubCatalogService) ListProducts(ctx context.Context, query services.ProductListQuery) ([]domain.Product, error) {
	if s.list == nil {
		return nil, errors.New("unexpected ListProducts call")
	}
	return s.list(ctx, query)
}

func (s *stubCatalogService) ResolveProducts(ctx context.Context, keys []string) (map[string]domain.Product, error) {
	if s.resolve == nil {
		return nil, errors.New("unexpected ResolveProducts call")
	}
	return s.resolve(ctx, keys)
}

type stubCartService struct {
	resolve func(ctx context.Context, items []domain.CartItem, requireActive bool) (domain.ResolvedCart, error)
}

func (s *stubCartService) Resolve(ctx context.Context, items []domain.CartItem, requireActive bool) (domain.ResolvedCart, error) {
	if s.resolve == nil {
		return domain.ResolvedCart{}, errors.New("unexpected Resolve call")
	}
	return s.resolve(ctx, items, requireActive)
}

type stubOrderService struct {
	chargeCard     func(ctx context.Context, cmd services.CardChargeCommand) (services.CardChargeResult, error)
	createYape     func(ctx context.Context, cmd services.YapeOrderCommand) (services.YapeOrderResult, error)
	listOwn        func(ctx context.Context, userID string, statuses []string) ([]domain.Order, error)
	getOrder       func(ctx context.Context, userID string, admin bool, orderID string) (domain.Order, error)
	adminList      func(ctx context.Context, query services.AdminOrderQuery) ([]domain.Order, error)
	verifyYape     func(ctx context.Context, cmd services.VerifyYapeCommand) (domain.Order, error)
	updateShipping func(ctx context.Context, cmd services.ShippingUpdateCommand) (domain.Order, error)
}

func (s *stubOrderService) ChargeCard(ctx context.Context, cmd services.CardChargeCommand) (services.CardChargeResult, error) {
	if s.chargeCard == nil {
		return services.CardChargeResult{}, errors.New("unexpected ChargeCard call")
	}
	return s.chargeCard(ctx, cmd)
}

func (s *stubOrderService) CreateYapeOrder(ctx context.Context, cmd services.YapeOrderCommand) (services.YapeOrderResult, error) {
	if s.createYape == nil {
		return services.YapeOrderResult{}, errors.New("unexpected CreateYapeOrder call")
	}
	return s.createYape(ctx, cmd)
}

func (s *stubOrderService) ListOwnOrders(ctx context.Context, userID string, statuses []string) ([]domain.Order, error) {
	if s.listOwn == nil {
		return nil, errors.New("unexpected ListOwnOrders call")
	}
	return s.listOwn(ctx, userID, statuses)
}

func (s *stubOrderService) GetOrder(ctx context.Context, userID string, admin bool, orderID string) (domain.Order, error) {
	if s.getOrder == nil {
		return domain.Order{}, errors.New("unexpected GetOrder call")
	}
	return s.getOrder(ctx, userID, admin, orderID)
}

func (s *stubOrderService) AdminListOrders(ctx context.Context, query services.AdminOrderQuery) ([]domain.Order, error) {
	if s.adminList == nil {
		return nil, errors.New("unexpected AdminListOrders call")
	}
	return s.adminList(ctx, query)
}

func (s *stubOrderService) VerifyYape(ctx context.Context, cmd services.VerifyYapeCommand) (domain.Order, error) {
	if s.verifyYape == nil {
		return domain.Order{}, errors.New("unexpected VerifyYape call")
	}
	return s.verifyYape(ctx, cmd)
}

func (s *stubOrderService) UpdateShipping(ctx context.Context, cmd services.ShippingUpdateCommand) (domain.Order, error) {
	if s.updateShipping == nil {
		return domain.Order{}, errors.New("unexpected UpdateShipping call")
	}
	return s.updateShipping(ctx, cmd)
}

// headerAuthMiddleware stands in for the Firebase authenticator: requests
// carrying X-Test-UID are authenticated, X-Test-Admin grants admin claims.
func headerAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := r.Header.Get("X-Test-UID")
		if uid == "" {
			httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
			return
		}
		identity := &auth.Identity{
			UID:   uid,
			Email: r.Header.Get("X-Test-Email"),
			Admin: r.Header.Get("X-Test-Admin") == "true",
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

type stubProofService struct {
	upload func(ctx context.Context, cmd services.ProofUploadCommand) (services.ProofUploadGrant, error)
	view   func(ctx context.Context, userID string, admin bool, orderID string) (services.ProofViewGrant, error)
}

func (s *stubProofService) IssueUploadURL(ctx context.Context, cmd services.ProofUploadCommand) (services.ProofUploadGrant, error) {
	if s.upload == nil {
		return services.ProofUploadGrant{}, errors.New("unexpected IssueUploadURL call")
	}
	return s.upload(ctx, cmd)
}

func (s *stubProofService) IssueViewURL(ctx context.Context, userID string, admin bool, orderID string) (services.ProofViewGrant, error) {
	if s.view == nil {
		return services.ProofViewGrant{}, errors.New("unexpected IssueViewURL call")
	}
	return s.view(ctx, userID, admin, orderID)
}

type routerFixture struct {
	catalog *stubCatalogService
	cart    *stubCartService
	orders  *stubOrderService
	proofs  *stubProofService
	router  chi.Router
}

func newRouterFixture(t *testing.T, opts ...Option) *routerFixture {
	t.Helper()

	fx := &routerFixture{
		catalog: &stubCatalogService{},
		cart:    &stubCartService{},
		orders:  &stubOrderService{},
		proofs:  &stubProofService{},
	}

	products := NewProductHandlers(fx.catalog)
	cart := NewCartHandlers(fx.cart)
	orders := NewOrderHandlers(fx.orders)
	proofs := NewProofHandlers(fx.proofs)
	admin := NewAdminOrderHandlers(fx.orders)
	health := NewHealthHandlers(nil, "test", "culqi:test")

	all := append([]Option{
		WithHealthRoutes(health.Routes),
		WithProductRoutes(products.Routes),
		WithCartRoutes(cart.Routes),
		WithChargeRoutes(orders.ChargeRoutes),
		WithOrderRoutes(func(r chi.Router) {
			orders.Routes(r)
			proofs.Routes(r)
		}),
		WithVerifyRoutes(admin.VerifyRoutes),
		WithAdminRoutes(admin.Routes),
		WithAuthMiddleware(headerAuthMiddleware),
		WithAdminMiddleware(auth.RequireAdmin()),
	}, opts...)

	fx.router = NewRouter(all...)
	return fx
}

func (fx *routerFixture) do(t *testing.T, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response body: %v (body %q)", err, rec.Body.String())
	}
	return payload
}

func asUser(uid string) map[string]string {
	return map[string]string{"X-Test-UID": uid, "X-Test-Email": uid + "@example.com"}
}

func asAdmin(uid string) map[string]string {
	h := asUser(uid)
	h["X-Test-Admin"] = "true"
	return h
}

func TestRouterUnknownRoute(t *testing.T) {
	fx := newRouterFixture(t)

	rec := fx.do(t, http.MethodGet, "/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != "route_not_found" {
		t.Fatalf("code = %v, want route_not_found", body["code"])
	}
}

func TestRouterHealthIsPublic(t *testing.T) {
	fx := newRouterFixture(t)

	rec := fx.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Fatalf("status field = %v, want ok", body["status"])
	}
	if body["gateway"] != "culqi:test" {
		t.Fatalf("gateway = %v", body["gateway"])
	}
}

func TestRouterSensitiveRoutesRequireAuth(t *testing.T) {
	fx := newRouterFixture(t)

	for _, tc := range []struct {
		method string
		target string
	}{
		{http.MethodPost, "/cart/validate"},
		{http.MethodPost, "/culqi/charge"},
		{http.MethodPost, "/orders/yape"},
		{http.MethodGet, "/orders"},
		{http.MethodGet, "/orders/ord_1"},
	} {
		rec := fx.do(t, tc.method, tc.target, "{}", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", tc.method, tc.target, rec.Code)
		}
	}
}

func TestRouterAdminRoutesRejectNonAdmins(t *testing.T) {
	fx := newRouterFixture(t)

	for _, tc := range []struct {
		method string
		target string
	}{
		{http.MethodGet, "/admin/orders"},
		{http.MethodPost, "/admin/orders/ord_1/shipping"},
		{http.MethodPost, "/orders/ord_1/verify-yape"},
	} {
		rec := fx.do(t, tc.method, tc.target, "{}", asUser("u1"))
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s %s: status = %d, want 403", tc.method, tc.target, rec.Code)
		}
	}
}

func TestRouterRateLimitsSensitiveRoutes(t *testing.T) {
	fx := newRouterFixture(t, WithRateLimit(2, time.Minute))

	fx.orders.listOwn = func(ctx context.Context, userID string, statuses []string) ([]domain.Order, error) {
		return nil, nil
	}

	for i := 0; i < 2; i++ {
		rec := fx.do(t, http.MethodGet, "/orders", "", asUser("u1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := fx.do(t, http.MethodGet, "/orders", "", asUser("u1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != "rate_limited" {
		t.Fatalf("code = %v, want rate_limited", body["code"])
	}
}

func TestRouterReplaysIdempotentCharge(t *testing.T) {
	fx := newRouterFixture(t, WithIdempotencyMiddleware(idempotency.Middleware(idempotency.NewMemoryStore())))

	var calls int
	fx.orders.chargeCard = func(ctx context.Context, cmd services.CardChargeCommand) (services.CardChargeResult, error) {
		calls++
		return services.CardChargeResult{OrderID: "ord_1", ChargeID: "chr_1", Amount: 2100, Currency: "PEN"}, nil
	}

	body := `{"token":"tkn","items":[{"id":"p1","quantity":2}]}`
	headers := asUser("u1")
	headers["Idempotency-Key"] = "charge-1"

	first := fx.do(t, http.MethodPost, "/culqi/charge", body, headers)
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d, body %s", first.Code, first.Body.String())
	}

	second := fx.do(t, http.MethodPost, "/culqi/charge", body, headers)
	if second.Code != http.StatusOK {
		t.Fatalf("second status = %d", second.Code)
	}
	if calls != 1 {
		t.Fatalf("service calls = %d, want 1 (replay expected)", calls)
	}
	if second.Header().Get("X-Idempotent-Replay") != "true" {
		t.Fatal("replay header missing on second response")
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replayed body differs: %s vs %s", second.Body.String(), first.Body.String())
	}
}

func TestRouterRateLimitSkipsPublicRoutes(t *testing.T) {
	fx := newRouterFixture(t, WithRateLimit(1, time.Minute))

	fx.catalog.list = func(ctx context.Context, query services.ProductListQuery) ([]domain.Product, error) {
		return nil, nil
	}

	for i := 0; i < 5; i++ {
		rec := fx.do(t, http.MethodGet, "/products", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
}

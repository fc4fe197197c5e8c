package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/m2l-store/api/internal/domain"
	"github.com/m2l-store/api/internal/repositories"
)

func seedStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore()
	store.SeedProducts(
		domain.Product{ID: "p1", Name: "Mate Cup", Price: 10.50, Active: true, Stock: 5, SKU: "CUP-1"},
		domain.Product{ID: "p2", Name: "Thermos", Price: 25, Active: true, Stock: 1, SKU: "THE-2"},
	)
	return store
}

func pendingOrder(id string, items ...domain.CartLine) domain.Order {
	var total float64
	for _, line := range items {
		total += line.UnitPrice * float64(line.Quantity)
	}
	return domain.Order{
		ID:       id,
		UserID:   "user-1",
		Items:    items,
		Amount:   int64(total * 100),
		Currency: "PEN",
		Status:   domain.OrderStatusPending,
		Provider: domain.ProviderCulqi,
	}
}

func TestSettleDecrementsStockAndMarksPaid(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	order := pendingOrder("ord_1", domain.CartLine{ProductID: "p1", Name: "Mate Cup", UnitPrice: 10.50, Quantity: 2})
	if _, err := store.Orders().Create(ctx, order); err != nil {
		t.Fatalf("Create: %v", err)
	}

	settled, err := store.Orders().Settle(ctx, repositories.OrderSettleRequest{
		OrderID:  "ord_1",
		Provider: domain.ProviderCulqi,
		ChargeID: "chr_abc",
		Now:      time.Now(),
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if settled.Status != domain.OrderStatusPaid {
		t.Fatalf("expected paid, got %s", settled.Status)
	}
	if settled.ChargeID != "chr_abc" {
		t.Fatalf("expected charge id recorded, got %q", settled.ChargeID)
	}
	if product, _ := store.Product("p1"); product.Stock != 3 {
		t.Fatalf("expected stock 3, got %d", product.Stock)
	}
}

func TestSettleIsIdempotent(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	order := pendingOrder("ord_1", domain.CartLine{ProductID: "p1", Name: "Mate Cup", UnitPrice: 10.50, Quantity: 2})
	if _, err := store.Orders().Create(ctx, order); err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := repositories.OrderSettleRequest{OrderID: "ord_1", Provider: domain.ProviderCulqi, Now: time.Now()}
	if _, err := store.Orders().Settle(ctx, req); err != nil {
		t.Fatalf("first Settle: %v", err)
	}
	again, err := store.Orders().Settle(ctx, req)
	if err != nil {
		t.Fatalf("second Settle: %v", err)
	}
	if again.Status != domain.OrderStatusPaid {
		t.Fatalf("expected paid, got %s", again.Status)
	}
	if product, _ := store.Product("p1"); product.Stock != 3 {
		t.Fatalf("expected stock decremented exactly once, got %d", product.Stock)
	}
}

func TestSettleAllOrNothing(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	order := pendingOrder("ord_1",
		domain.CartLine{ProductID: "p1", Name: "Mate Cup", UnitPrice: 10.50, Quantity: 2},
		domain.CartLine{ProductID: "p2", Name: "Thermos", UnitPrice: 25, Quantity: 3},
	)
	if _, err := store.Orders().Create(ctx, order); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err := store.Orders().Settle(ctx, repositories.OrderSettleRequest{OrderID: "ord_1", Now: time.Now()})
	var orderErr *repositories.OrderError
	if !errors.As(err, &orderErr) || orderErr.Code != repositories.OrderErrorInsufficientStock {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if orderErr.ProductID != "p2" {
		t.Fatalf("expected offending product p2, got %q", orderErr.ProductID)
	}
	if product, _ := store.Product("p1"); product.Stock != 5 {
		t.Fatalf("expected p1 stock untouched, got %d", product.Stock)
	}
	got, err := store.Orders().Get(ctx, "ord_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.OrderStatusPending {
		t.Fatalf("expected order still pending, got %s", got.Status)
	}
}

func TestSettleProviderMismatch(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	order := pendingOrder("ord_1", domain.CartLine{ProductID: "p1", UnitPrice: 10.50, Quantity: 1})
	order.Provider = domain.ProviderYape
	if _, err := store.Orders().Create(ctx, order); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err := store.Orders().Settle(ctx, repositories.OrderSettleRequest{OrderID: "ord_1", Provider: domain.ProviderCulqi, Now: time.Now()})
	var orderErr *repositories.OrderError
	if !errors.As(err, &orderErr) || orderErr.Code != repositories.OrderErrorProviderMismatch {
		t.Fatalf("expected provider mismatch error, got %v", err)
	}
}

func TestConcurrentSettleNeverOversells(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	// Ten pending orders for the last unit of p2; only one may win.
	const orders = 10
	for i := 0; i < orders; i++ {
		order := pendingOrder(orderID(i), domain.CartLine{ProductID: "p2", Name: "Thermos", UnitPrice: 25, Quantity: 1})
		if _, err := store.Orders().Create(ctx, order); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	var wg sync.WaitGroup
	successes := make(chan string, orders)
	for i := 0; i < orders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Orders().Settle(ctx, repositories.OrderSettleRequest{OrderID: orderID(i), Now: time.Now()})
			if err == nil {
				successes <- orderID(i)
			}
		}(i)
	}
	wg.Wait()
	close(successes)

	var won int
	for range successes {
		won++
	}
	if won != 1 {
		t.Fatalf("expected exactly one settlement to win, got %d", won)
	}
	if product, _ := store.Product("p2"); product.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", product.Stock)
	}
}

func TestRejectCancelsUnconditionally(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	order := pendingOrder("ord_1", domain.CartLine{ProductID: "p1", UnitPrice: 10.50, Quantity: 1})
	order.Provider = domain.ProviderYape
	if _, err := store.Orders().Create(ctx, order); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rejected, err := store.Orders().Reject(ctx, repositories.OrderRejectRequest{OrderID: "ord_1", Note: "no transfer received", Now: time.Now()})
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", rejected.Status)
	}
	if rejected.Payment == nil || rejected.Payment.Status != "rejected" {
		t.Fatalf("expected rejected payment state, got %+v", rejected.Payment)
	}
	if rejected.VerificationNote != "no transfer received" {
		t.Fatalf("expected note recorded, got %q", rejected.VerificationNote)
	}
	if product, _ := store.Product("p1"); product.Stock != 5 {
		t.Fatalf("expected stock untouched, got %d", product.Stock)
	}
}

func TestListFiltersAndOrders(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	base := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	for i, status := range []string{domain.OrderStatusPending, domain.OrderStatusPaid, domain.OrderStatusFailed} {
		order := pendingOrder(orderID(i), domain.CartLine{ProductID: "p1", UnitPrice: 10.50, Quantity: 1})
		order.Status = status
		order.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if _, err := store.Orders().Create(ctx, order); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	all, err := store.Orders().List(ctx, domain.OrderFilter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.After(all[i-1].CreatedAt) {
			t.Fatal("expected newest-first ordering")
		}
	}

	paid, err := store.Orders().List(ctx, domain.OrderFilter{UserID: "user-1", Statuses: []string{domain.OrderStatusPaid}})
	if err != nil {
		t.Fatalf("List paid: %v", err)
	}
	if len(paid) != 1 || paid[0].Status != domain.OrderStatusPaid {
		t.Fatalf("expected one paid order, got %+v", paid)
	}
}

func orderID(i int) string {
	return "ord_" + string(rune('a'+i))
}

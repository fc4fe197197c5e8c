package services

import (
	"context"
	"testing"

	domain "github.com/m2l-store/api/internal/domain"
)

type stubProductRepo struct {
	getByIDs          func(ctx context.Context, ids []string) ([]domain.Product, error)
	listByFieldValues func(ctx context.Context, field string, values []any) ([]domain.Product, error)
	list              func(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
}

func (s *stubProductRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if s.getByIDs == nil {
		return nil, nil
	}
	return s.getByIDs(ctx, ids)
}

func (s *stubProductRepo) ListByFieldValues(ctx context.Context, field string, values []any) ([]domain.Product, error) {
	if s.listByFieldValues == nil {
		return nil, nil
	}
	return s.listByFieldValues(ctx, field, values)
}

func (s *stubProductRepo) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	if s.list == nil {
		return nil, nil
	}
	return s.list(ctx, filter)
}

func TestLooksLikeDocID(t *testing.T) {
	cases := []struct {
		key  string
		want bool
	}{
		{key: "abc123", want: true},
		{key: "B00mG7x2JkL9QwErTy", want: true},
		{key: "007", want: false},
		{key: "12345678901234567", want: true},
		{key: "123456789012345", want: false},
	}
	for _, tc := range cases {
		if got := looksLikeDocID(tc.key); got != tc.want {
			t.Fatalf("looksLikeDocID(%q) = %v, want %v", tc.key, got, tc.want)
		}
	}
}

func TestResolveProductsPassOrder(t *testing.T) {
	// "dup" exists both as a SKU and as an alternate code on different
	// products; the SKU pass must win and the later pass must not overwrite.
	skuProduct := domain.Product{ID: "p-sku", Name: "Via SKU", SKU: "dup"}
	altProduct := domain.Product{ID: "p-alt", Name: "Via Alt", AltCode: "dup"}
	docProduct := domain.Product{ID: "docIdWithLetters", Name: "Via Doc"}

	var fieldCalls []string
	repo := &stubProductRepo{
		getByIDs: func(_ context.Context, ids []string) ([]domain.Product, error) {
			for _, id := range ids {
				if id == docProduct.ID {
					return []domain.Product{docProduct}, nil
				}
			}
			return nil, nil
		},
		listByFieldValues: func(_ context.Context, field string, values []any) ([]domain.Product, error) {
			fieldCalls = append(fieldCalls, field)
			switch field {
			case "sku":
				return []domain.Product{skuProduct}, nil
			case "id":
				return []domain.Product{altProduct}, nil
			}
			return nil, nil
		},
	}

	svc, err := NewCatalogService(CatalogServiceDeps{Products: repo})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}

	resolved, err := svc.ResolveProducts(context.Background(), []string{"docIdWithLetters", "dup"})
	if err != nil {
		t.Fatalf("ResolveProducts: %v", err)
	}
	if got := resolved["docIdWithLetters"].ID; got != "docIdWithLetters" {
		t.Fatalf("expected doc id match, got %q", got)
	}
	if got := resolved["dup"].ID; got != "p-sku" {
		t.Fatalf("expected sku pass to win, got %q", got)
	}
	if len(fieldCalls) == 0 || fieldCalls[0] != "sku" {
		t.Fatalf("expected sku pass first, got %v", fieldCalls)
	}
}

func TestResolveProductsNumericEquality(t *testing.T) {
	// Stored SKU is the number 7; the client sends "007". The string pass
	// finds nothing, the numeric pass must match.
	product := domain.Product{ID: "p7", Name: "Seven", SKU: "7"}
	repo := &stubProductRepo{
		listByFieldValues: func(_ context.Context, field string, values []any) ([]domain.Product, error) {
			if field != "sku" {
				return nil, nil
			}
			for _, v := range values {
				if n, ok := v.(float64); ok && n == 7 {
					return []domain.Product{product}, nil
				}
			}
			return nil, nil
		},
	}

	svc, err := NewCatalogService(CatalogServiceDeps{Products: repo})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}

	resolved, err := svc.ResolveProducts(context.Background(), []string{"007"})
	if err != nil {
		t.Fatalf("ResolveProducts: %v", err)
	}
	if got := resolved["007"].ID; got != "p7" {
		t.Fatalf("expected numeric sku match, got %q", got)
	}
}

func TestResolveProductsIDShapedKeysSkipCodePasses(t *testing.T) {
	// "POLO" is id-shaped (contains letters) but matches no document id. It
	// must stay unresolved even though a product carries it as a SKU.
	var fieldCalls []string
	repo := &stubProductRepo{
		listByFieldValues: func(_ context.Context, field string, _ []any) ([]domain.Product, error) {
			fieldCalls = append(fieldCalls, field)
			return []domain.Product{{ID: "prod-1", Name: "Polo clásico", SKU: "POLO"}}, nil
		},
	}

	svc, err := NewCatalogService(CatalogServiceDeps{Products: repo})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}

	resolved, err := svc.ResolveProducts(context.Background(), []string{"POLO"})
	if err != nil {
		t.Fatalf("ResolveProducts: %v", err)
	}
	if _, ok := resolved["POLO"]; ok {
		t.Fatalf("id-shaped key must not resolve through the sku pass")
	}
	if len(fieldCalls) != 0 {
		t.Fatalf("expected no field passes for id-shaped keys, got %v", fieldCalls)
	}
}

func TestResolveProductsUnmatchedKeysAbsent(t *testing.T) {
	svc, err := NewCatalogService(CatalogServiceDeps{Products: &stubProductRepo{}})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}
	resolved, err := svc.ResolveProducts(context.Background(), []string{"ghost", "404"})
	if err != nil {
		t.Fatalf("ResolveProducts must not fail on unknown keys: %v", err)
	}
	if len(resolved) != 0 {
		t.Fatalf("expected no matches, got %v", resolved)
	}
}

func TestListProductsClampAndCollation(t *testing.T) {
	var gotLimit int
	repo := &stubProductRepo{
		list: func(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
			gotLimit = filter.Limit
			return []domain.Product{
				{ID: "1", Name: "zapato"},
				{ID: "2", Name: "Ñandú"},
				{ID: "3", Name: "nube"},
				{ID: "4", Name: "árbol"},
			}, nil
		},
	}

	svc, err := NewCatalogService(CatalogServiceDeps{Products: repo})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}

	products, err := svc.ListProducts(context.Background(), ProductListQuery{Limit: 500})
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if gotLimit != defaultProductLimit {
		t.Fatalf("expected limit clamped to %d, got %d", defaultProductLimit, gotLimit)
	}

	// Spanish collation: árbol < nube < Ñandú < zapato.
	want := []string{"árbol", "nube", "Ñandú", "zapato"}
	for i, p := range products {
		if p.Name != want[i] {
			t.Fatalf("expected order %v, got %q at %d", want, p.Name, i)
		}
	}
}

package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	domain "github.com/m2l-store/api/internal/domain"
	"github.com/m2l-store/api/internal/repositories"
)

const (
	defaultProductLimit = 50
	maxProductLimit     = 50

	// Keys at least this long without letters are still treated as document
	// ids; short all-digit keys are assumed to be merchant codes.
	docIDMinLength = 16
)

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Products repositories.ProductRepository
	// Locale drives the product-name collation; defaults to Spanish.
	Locale language.Tag
}

type catalogService struct {
	repo     repositories.ProductRepository
	collator *collate.Collator
}

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, fmt.Errorf("catalog service: product repository is required")
	}
	locale := deps.Locale
	if locale == (language.Tag{}) {
		locale = language.Spanish
	}
	return &catalogService{
		repo:     deps.Products,
		collator: collate.New(locale, collate.IgnoreCase),
	}, nil
}

func (s *catalogService) ListProducts(ctx context.Context, query ProductListQuery) ([]domain.Product, error) {
	limit := query.Limit
	if limit <= 0 || limit > maxProductLimit {
		limit = defaultProductLimit
	}

	products, err := s.repo.List(ctx, domain.ProductFilter{
		Active: query.Active,
		Offer:  query.Offer,
		Limit:  limit,
	})
	if err != nil {
		return nil, internalError("catalog service: list products", err)
	}

	sort.SliceStable(products, func(i, j int) bool {
		return s.collator.CompareString(products[i].Name, products[j].Name) < 0
	})
	return products, nil
}

// ResolveProducts maps client keys to products in fixed pass order: document
// id, then SKU as string, SKU as number, alternate code as string, alternate
// code as number. The first pass to match a key wins; later passes never
// overwrite.
func (s *catalogService) ResolveProducts(ctx context.Context, keys []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product)

	var idKeys, codeKeys []string
	seen := make(map[string]struct{})
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if looksLikeDocID(key) {
			idKeys = append(idKeys, key)
		} else {
			codeKeys = append(codeKeys, key)
		}
	}

	if len(idKeys) > 0 {
		products, err := s.repo.GetByIDs(ctx, idKeys)
		if err != nil {
			return nil, internalError("catalog service: resolve by id", err)
		}
		byID := make(map[string]domain.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}
		// Id-shaped keys resolve by document id only; an unmatched one stays
		// unresolved rather than falling through to the code passes.
		for _, key := range idKeys {
			if p, ok := byID[key]; ok {
				result[key] = p
			}
		}
	}

	for _, pass := range []struct {
		field   string
		numeric bool
	}{
		{field: "sku"},
		{field: "sku", numeric: true},
		{field: "id"},
		{field: "id", numeric: true},
	} {
		if len(codeKeys) == len(matchedKeys(result, codeKeys)) {
			break
		}
		if err := s.resolveFieldPass(ctx, pass.field, pass.numeric, codeKeys, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (s *catalogService) resolveFieldPass(ctx context.Context, field string, numeric bool, keys []string, result map[string]domain.Product) error {
	var pending []string
	for _, key := range keys {
		if _, done := result[key]; !done {
			pending = append(pending, key)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	var values []any
	for _, key := range pending {
		if numeric {
			n, err := strconv.ParseFloat(key, 64)
			if err != nil {
				continue
			}
			values = append(values, n)
		} else {
			values = append(values, key)
		}
	}
	if len(values) == 0 {
		return nil
	}

	products, err := s.repo.ListByFieldValues(ctx, field, values)
	if err != nil {
		return internalError(fmt.Sprintf("catalog service: resolve by %s", field), err)
	}

	for _, key := range pending {
		for _, p := range products {
			code := fieldCode(p, field)
			if code == "" {
				continue
			}
			if numeric {
				keyNum, errKey := strconv.ParseFloat(key, 64)
				codeNum, errCode := strconv.ParseFloat(code, 64)
				if errKey != nil || errCode != nil || keyNum != codeNum {
					continue
				}
			} else if code != key {
				continue
			}
			result[key] = p
			break
		}
	}
	return nil
}

func fieldCode(p domain.Product, field string) string {
	switch field {
	case "sku":
		return p.SKU
	case "id":
		return p.AltCode
	}
	return ""
}

func matchedKeys(result map[string]domain.Product, keys []string) []string {
	var matched []string
	for _, key := range keys {
		if _, ok := result[key]; ok {
			matched = append(matched, key)
		}
	}
	return matched
}

// looksLikeDocID reports whether a key should be tried as a document id.
func looksLikeDocID(key string) bool {
	for _, r := range key {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return len(key) >= docIDMinLength
}

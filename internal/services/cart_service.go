package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	domain "github.com/m2l-store/api/internal/domain"
)

// CartServiceDeps bundles constructor inputs for the cart service.
type CartServiceDeps struct {
	Catalog CatalogService
}

type cartService struct {
	catalog CatalogService
}

// NewCartService constructs the cart service with the supplied dependencies.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Catalog == nil {
		return nil, fmt.Errorf("cart service: catalog service is required")
	}
	return &cartService{catalog: deps.Catalog}, nil
}

func (s *cartService) Resolve(ctx context.Context, items []domain.CartItem, requireActive bool) (domain.ResolvedCart, error) {
	consolidated, err := consolidateItems(items)
	if err != nil {
		return domain.ResolvedCart{}, err
	}
	if len(consolidated) == 0 {
		return domain.ResolvedCart{Lines: []domain.CartLine{}}, nil
	}

	keys := make([]string, 0, len(consolidated))
	for _, item := range consolidated {
		keys = append(keys, item.Key)
	}

	resolved, err := s.catalog.ResolveProducts(ctx, keys)
	if err != nil {
		return domain.ResolvedCart{}, err
	}

	cart := domain.ResolvedCart{Lines: []domain.CartLine{}}
	var total float64
	for _, item := range consolidated {
		product, ok := resolved[item.Key]
		if !ok {
			cart.Missing = append(cart.Missing, item.Key)
			continue
		}
		if requireActive && !product.Active {
			cart.Inactive = append(cart.Inactive, item.Key)
			continue
		}
		cart.Lines = append(cart.Lines, domain.CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  item.Quantity,
		})
		total += product.Price * float64(item.Quantity)
	}

	// The total accumulates in floating point and is rounded to minor units
	// exactly once, so 10.50 x 2 yields 2100, never 2099.
	cart.AmountCents = int64(math.Round(total * 100))
	return cart, nil
}

// consolidateItems validates shape and merges duplicate keys, preserving the
// order keys were first seen in.
func consolidateItems(items []domain.CartItem) ([]domain.CartItem, error) {
	var out []domain.CartItem
	index := make(map[string]int)
	for i, item := range items {
		key := strings.TrimSpace(item.Key)
		if key == "" {
			return nil, validationError(fmt.Sprintf("items[%d]: id is required", i))
		}
		if item.Quantity <= 0 {
			return nil, validationError(fmt.Sprintf("items[%d]: quantity must be a positive integer", i))
		}
		if at, ok := index[key]; ok {
			out[at].Quantity += item.Quantity
			continue
		}
		index[key] = len(out)
		out = append(out, domain.CartItem{Key: key, Quantity: item.Quantity})
	}
	return out, nil
}

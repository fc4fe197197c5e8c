package firestore

import (
	"context"
	"errors"
	"fmt"

	pfirestore "github.com/m2l-store/api/internal/platform/firestore"
	"github.com/m2l-store/api/internal/repositories"
)

// Registry owns the Firestore-backed repository set and the shared provider
// lifecycle. It satisfies repositories.Registry for dependency injection.
type Registry struct {
	provider *pfirestore.Provider
	products *ProductRepository
	orders   *OrderRepository
	health   repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires the Firestore repositories around a shared provider. The
// health repository is optional; pass nil when no dependency checks apply.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build product repository: %w", err)
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build order repository: %w", err)
	}

	return &Registry{
		provider: provider,
		products: products,
		orders:   orders,
		health:   health,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Products() repositories.ProductRepository { return r.products }

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) Health() repositories.HealthRepository { return r.health }

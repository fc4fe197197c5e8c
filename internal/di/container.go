package di

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/m2l-store/api/internal/payments"
	"github.com/m2l-store/api/internal/platform/config"
	"github.com/m2l-store/api/internal/platform/storage"
	"github.com/m2l-store/api/internal/repositories"
	"github.com/m2l-store/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
// Concrete implementations are assembled via dependency injection in
// NewContainer.
type Services struct {
	Catalog services.CatalogService
	Cart    services.CartService
	Orders  services.OrderService
	Proofs  services.ProofService
}

// Deps collect the external collaborators the container wires together.
// Registry and Charger are required; Events and ProofSigner are optional and
// disable their features when nil.
type Deps struct {
	Registry    repositories.Registry
	Charger     payments.CardCharger
	Events      services.OrderEventPublisher
	Logger      *zap.Logger
	ProofSigner *storage.Client
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring
// provides Firestore-backed repositories; tests can supply the in-memory
// registry instead.
func NewContainer(ctx context.Context, cfg config.Config, deps Deps) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: deps.Registry,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, cfg config.Config, deps Deps) (Services, error) {
	var svc Services
	reg := deps.Registry

	catalog, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products: reg.Products(),
		Locale:   language.Spanish,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalog

	cart, err := services.NewCartService(services.CartServiceDeps{
		Catalog: catalog,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cart

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:  reg.Orders(),
		Cart:    cart,
		Charger: deps.Charger,
		Events:  deps.Events,
		Logger:  deps.Logger,
		Yape: services.YapeSettings{
			Phone:    cfg.Yape.Phone,
			Holder:   cfg.Yape.Holder,
			MaxCents: cfg.Yape.MaxCents(),
		},
		Currency: cfg.Store.Currency,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orders

	if deps.ProofSigner != nil && cfg.Assets.Bucket != "" {
		proofs, err := services.NewProofService(services.ProofServiceDeps{
			Signer: deps.ProofSigner,
			Bucket: cfg.Assets.Bucket,
			Orders: reg.Orders(),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build proof service: %w", err)
		}
		svc.Proofs = proofs
	}

	return svc, nil
}

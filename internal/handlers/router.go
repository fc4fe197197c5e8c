package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/m2l-store/api/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type routerConfig struct {
	middlewares []func(http.Handler) http.Handler
	cors        *cors.Options
	health      RouteRegistrar

	products RouteRegistrar
	cart     RouteRegistrar
	charge   RouteRegistrar
	orders   RouteRegistrar
	verify   RouteRegistrar
	admin    RouteRegistrar

	authMiddleware        func(http.Handler) http.Handler
	adminMiddleware       func(http.Handler) http.Handler
	idempotencyMiddleware func(http.Handler) http.Handler

	rateLimit       int
	rateLimitWindow time.Duration
	rateLimitClock  func() time.Time
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const (
	defaultTimeout        = 60 * time.Second
	defaultRateLimit      = 60
	defaultRateWindow     = time.Minute
	errorNotFoundCode     = "route_not_found"
	errorRateLimitedCode  = "rate_limited"
	errorNotImplemented   = "not_implemented"
	errorMethodNotAllowed = "method_not_allowed"
)

// NewRouter constructs the chi router with shared middleware and the store's
// route groups: public catalog and health endpoints, authenticated cart and
// order flows, and the admin surface.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Timeout(defaultTimeout),
		},
		rateLimit:       defaultRateLimit,
		rateLimitWindow: defaultRateWindow,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()

	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}
	if cfg.cors != nil {
		r.Use(cors.Handler(*cfg.cors))
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorMethodNotAllowed, fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	limiter := newSimpleRateLimiter(cfg.rateLimit, cfg.rateLimitWindow, cfg.rateLimitClock)

	mount := func(parent chi.Router, path string, registrar RouteRegistrar, name string, groupMW []func(http.Handler) http.Handler) {
		parent.Route(path, func(group chi.Router) {
			for _, mw := range groupMW {
				if mw != nil {
					group.Use(mw)
				}
			}
			if registrar != nil {
				registrar(group)
				return
			}
			registerNotImplemented(group, name)
		})
	}

	mount(r, "/health", cfg.health, "health", nil)
	mount(r, "/products", cfg.products, "products", nil)

	// Idempotency runs after auth so replay records are scoped per user.
	sensitive := []func(http.Handler) http.Handler{
		cfg.authMiddleware,
		rateLimitMiddleware(limiter),
		cfg.idempotencyMiddleware,
	}

	mount(r, "/cart", cfg.cart, "cart", sensitive)
	mount(r, "/culqi", cfg.charge, "charge", sensitive)

	r.Route("/orders", func(group chi.Router) {
		for _, mw := range sensitive {
			if mw != nil {
				group.Use(mw)
			}
		}
		if cfg.orders != nil {
			cfg.orders(group)
		} else {
			registerNotImplemented(group, "orders")
		}
		if cfg.verify != nil {
			group.Group(func(adminGroup chi.Router) {
				if cfg.adminMiddleware != nil {
					adminGroup.Use(cfg.adminMiddleware)
				}
				cfg.verify(adminGroup)
			})
		}
	})

	adminMW := append(append([]func(http.Handler) http.Handler{}, sensitive...), cfg.adminMiddleware)
	mount(r, "/admin", cfg.admin, "admin", adminMW)

	return r
}

// WithMiddlewares appends additional global middleware to the router.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithCORS configures the CORS policy applied to every route.
func WithCORS(options cors.Options) Option {
	return func(cfg *routerConfig) {
		cfg.cors = &options
	}
}

// WithHealthRoutes configures the registrar responsible for the health endpoint.
func WithHealthRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.health = reg
	}
}

// WithProductRoutes configures the registrar responsible for catalog endpoints.
func WithProductRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.products = reg
	}
}

// WithCartRoutes configures the registrar responsible for cart endpoints.
func WithCartRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.cart = reg
	}
}

// WithChargeRoutes configures the registrar responsible for the card-charge endpoint.
func WithChargeRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.charge = reg
	}
}

// WithOrderRoutes configures the registrar responsible for user order endpoints.
func WithOrderRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.orders = reg
	}
}

// WithVerifyRoutes configures the registrar for the admin verification
// endpoint mounted under /orders.
func WithVerifyRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.verify = reg
	}
}

// WithAdminRoutes configures the registrar responsible for admin endpoints.
func WithAdminRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.admin = reg
	}
}

// WithAuthMiddleware configures the middleware guarding authenticated routes.
func WithAuthMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.authMiddleware = mw
	}
}

// WithAdminMiddleware configures the middleware guarding admin routes. It
// runs after the auth middleware.
func WithAdminMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.adminMiddleware = mw
	}
}

// WithIdempotencyMiddleware configures the middleware replaying stored
// responses for repeated mutating requests on sensitive routes.
func WithIdempotencyMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.idempotencyMiddleware = mw
	}
}

// WithRateLimit overrides the request budget applied to sensitive routes.
// A non-positive limit disables rate limiting.
func WithRateLimit(limit int, window time.Duration) Option {
	return func(cfg *routerConfig) {
		cfg.rateLimit = limit
		cfg.rateLimitWindow = window
	}
}

// WithRateLimitClock injects the clock used by the rate limiter, primarily for tests.
func WithRateLimitClock(clock func() time.Time) Option {
	return func(cfg *routerConfig) {
		cfg.rateLimitClock = clock
	}
}

func rateLimitMiddleware(limiter rateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if limiter != nil && !limiter.Allow(req.RemoteAddr) {
				httpx.WriteError(req.Context(), w, httpx.NewError(errorRateLimitedCode, "too many requests, slow down", http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func registerNotImplemented(r chi.Router, name string) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotImplemented, fmt.Sprintf("%s routes not implemented", name), http.StatusNotImplemented))
	}
	r.HandleFunc("/*", handler)
	r.HandleFunc("/", handler)
	r.NotFound(handler)
	r.MethodNotAllowed(handler)
}

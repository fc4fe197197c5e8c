package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/m2l-store/api/internal/platform/httpx"
	"github.com/m2l-store/api/internal/services"
)

// ProductHandlers exposes the public catalog listing.
type ProductHandlers struct {
	catalog services.CatalogService
}

// NewProductHandlers constructs the public product handlers.
func NewProductHandlers(catalog services.CatalogService) *ProductHandlers {
	return &ProductHandlers{catalog: catalog}
}

// Routes wires the /products endpoints onto the provided router.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.list)
}

func (h *ProductHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := services.ProductListQuery{}
	if active, ok := boolQuery(r, "active"); ok {
		query.Active = &active
	}
	// "oferta" is the legacy spelling storefront clients still send; it
	// wins when both are present.
	if offer, ok := boolQuery(r, "oferta", "offer"); ok {
		query.Offer = &offer
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(ctx, w, "limit must be an integer")
			return
		}
		query.Limit = limit
	}

	products, err := h.catalog.ListProducts(ctx, query)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"count":    len(products),
	})
}

// boolQuery reads the first present flag among names. "1", "true" and
// "yes" count as true; any other value is an explicit false.
func boolQuery(r *http.Request, names ...string) (bool, bool) {
	for _, name := range names {
		raw := strings.TrimSpace(r.URL.Query().Get(name))
		if raw == "" {
			continue
		}
		switch strings.ToLower(raw) {
		case "1", "true", "yes":
			return true, true
		default:
			return false, true
		}
	}
	return false, false
}

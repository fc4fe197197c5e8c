package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/m2l-store/api/internal/platform/httpx"
	"github.com/m2l-store/api/internal/services"
)

// AdminOrderHandlers exposes order administration: listing across users,
// manual-transfer verification and shipping updates.
type AdminOrderHandlers struct {
	orders services.OrderService
}

// NewAdminOrderHandlers constructs the admin order handlers.
func NewAdminOrderHandlers(orders services.OrderService) *AdminOrderHandlers {
	return &AdminOrderHandlers{orders: orders}
}

// Routes wires the /admin/orders endpoints onto the provided router.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/orders", h.list)
	r.Post("/orders/{orderID}/shipping", h.updateShipping)
}

// VerifyRoutes wires the verification endpoint, which lives under /orders
// for compatibility with the storefront admin panel.
func (h *AdminOrderHandlers) VerifyRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/{orderID}/verify-yape", h.verifyYape)
}

func (h *AdminOrderHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := services.AdminOrderQuery{
		Statuses: splitStatuses(r.URL.Query().Get("status")),
		Provider: strings.TrimSpace(r.URL.Query().Get("provider")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(ctx, w, "limit must be an integer")
			return
		}
		query.Limit = limit
	}

	orders, err := h.orders.AdminListOrders(ctx, query)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": orders,
		"count":  len(orders),
	})
}

type verifyYapePayload struct {
	Action string `json:"action"`
	Note   string `json:"note"`
}

func (h *AdminOrderHandlers) verifyYape(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var payload verifyYapePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	order, err := h.orders.VerifyYape(ctx, services.VerifyYapeCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Action:  payload.Action,
		Note:    payload.Note,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type shippingPayload struct {
	Status   string `json:"status"`
	Carrier  string `json:"carrier"`
	Tracking string `json:"tracking"`
	Address  string `json:"address"`
}

func (h *AdminOrderHandlers) updateShipping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var payload shippingPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	order, err := h.orders.UpdateShipping(ctx, services.ShippingUpdateCommand{
		OrderID:  chi.URLParam(r, "orderID"),
		Status:   payload.Status,
		Carrier:  payload.Carrier,
		Tracking: payload.Tracking,
		Address:  payload.Address,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/m2l-store/api/internal/platform/httpx"
	"github.com/m2l-store/api/internal/services"
)

// OrderHandlers exposes the buyer-facing order flows and reads.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs the order handlers.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// ChargeRoutes wires the /culqi endpoints onto the provided router.
func (h *OrderHandlers) ChargeRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/charge", h.charge)
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listOwn)
	r.Post("/yape", h.createYape)
	r.Get("/{orderID}", h.get)
}

type chargePayload struct {
	SourceID string            `json:"source_id"`
	Token    string            `json:"token"`
	Items    []cartItemPayload `json:"items"`
	Amount   *int64            `json:"amount"`
	Email    string            `json:"email"`
	Delivery *deliveryPayload  `json:"delivery"`
}

func (h *OrderHandlers) charge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var payload chargePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	cmd := services.CardChargeCommand{
		UserID:         identity.UID,
		Email:          firstNonEmpty(payload.Email, identity.Email),
		Items:          cartItems(payload.Items),
		SourceID:       firstNonEmpty(payload.SourceID, payload.Token),
		ExpectedAmount: payload.Amount,
	}
	if payload.Delivery != nil {
		cmd.Delivery = &services.DeliveryInput{
			Method:  payload.Delivery.Method,
			Address: payload.Delivery.Address,
		}
	}

	result, err := h.orders.ChargeCard(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type yapePayload struct {
	Items      []cartItemPayload `json:"items"`
	Amount     *int64            `json:"amount"`
	Email      string            `json:"email"`
	PayerName  string            `json:"payerName"`
	PayerPhone string            `json:"payerPhone"`
	Reference  string            `json:"reference"`
	ProofURL   string            `json:"proofUrl"`
	Delivery   *deliveryPayload  `json:"delivery"`
}

func (h *OrderHandlers) createYape(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var payload yapePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	cmd := services.YapeOrderCommand{
		UserID:         identity.UID,
		Email:          firstNonEmpty(payload.Email, identity.Email),
		Items:          cartItems(payload.Items),
		ExpectedAmount: payload.Amount,
		PayerName:      payload.PayerName,
		PayerPhone:     payload.PayerPhone,
		Reference:      payload.Reference,
		ProofURL:       payload.ProofURL,
	}
	if payload.Delivery != nil {
		cmd.Delivery = &services.DeliveryInput{
			Method:  payload.Delivery.Method,
			Address: payload.Delivery.Address,
		}
	}

	result, err := h.orders.CreateYapeOrder(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *OrderHandlers) listOwn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	orders, err := h.orders.ListOwnOrders(ctx, identity.UID, splitStatuses(r.URL.Query().Get("status")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": orders,
		"count":  len(orders),
	})
}

func (h *OrderHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, identity.UID, identity.IsAdmin(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func splitStatuses(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

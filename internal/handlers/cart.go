package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/m2l-store/api/internal/platform/httpx"
	"github.com/m2l-store/api/internal/services"
)

// CartHandlers exposes authenticated cart pricing endpoints.
type CartHandlers struct {
	cart services.CartService
}

// NewCartHandlers constructs the cart handlers.
func NewCartHandlers(cart services.CartService) *CartHandlers {
	return &CartHandlers{cart: cart}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/validate", h.validate)
}

type cartValidatePayload struct {
	Items []cartItemPayload `json:"items"`
}

func (h *CartHandlers) validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.cart == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}

	var payload cartValidatePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	cart, err := h.cart.Resolve(ctx, cartItems(payload.Items), true)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"amount":     cart.AmountCents,
		"items":      cart.Lines,
		"missing":    cart.Missing,
		"inactive":   cart.Inactive,
		"chargeable": cart.Chargeable(),
	})
}

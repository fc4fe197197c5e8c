package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	domain "github.com/m2l-store/api/internal/domain"
	"github.com/m2l-store/api/internal/platform/auth"
	"github.com/m2l-store/api/internal/platform/httpx"
)

const maxBodySize = 64 * 1024

// cartItemPayload tolerates the loose typing storefront clients send: ids
// and quantities may arrive as strings or numbers.
type cartItemPayload struct {
	ID       any `json:"id"`
	Quantity any `json:"quantity"`
}

type deliveryPayload struct {
	Method  string `json:"method"`
	Address string `json:"address"`
}

func cartItems(payload []cartItemPayload) []domain.CartItem {
	items := make([]domain.CartItem, 0, len(payload))
	for _, item := range payload {
		items = append(items, domain.CartItem{
			Key:      domain.NormalizeCode(item.ID),
			Quantity: domain.ParseCount(item.Quantity),
		})
	}
	return items
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.New("request body is not valid JSON")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// requireIdentity pulls the authenticated identity from context; the auth
// middleware guarantees it, this is the defensive boundary for misuse.
func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

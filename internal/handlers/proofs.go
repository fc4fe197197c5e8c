package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/m2l-store/api/internal/platform/httpx"
	"github.com/m2l-store/api/internal/services"
)

// ProofHandlers issues signed URLs for manual-transfer proof objects. The
// routes live under /orders next to the order flows they support.
type ProofHandlers struct {
	proofs services.ProofService
}

// NewProofHandlers constructs the proof handlers.
func NewProofHandlers(proofs services.ProofService) *ProofHandlers {
	return &ProofHandlers{proofs: proofs}
}

// Routes wires the proof endpoints onto the orders router.
func (h *ProofHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/yape/proof-url", h.issueUploadURL)
	r.Get("/{orderID}/proof-url", h.issueViewURL)
}

type proofUploadPayload struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

func (h *ProofHandlers) issueUploadURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.proofs == nil {
		httpx.WriteError(ctx, w, httpx.NewError("proofs_unavailable", "proof service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var payload proofUploadPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	grant, err := h.proofs.IssueUploadURL(ctx, services.ProofUploadCommand{
		UserID:      identity.UID,
		FileName:    payload.FileName,
		ContentType: payload.ContentType,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, grant)
}

func (h *ProofHandlers) issueViewURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.proofs == nil {
		httpx.WriteError(ctx, w, httpx.NewError("proofs_unavailable", "proof service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	grant, err := h.proofs.IssueViewURL(ctx, identity.UID, identity.IsAdmin(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

package handlers

import (
	"context"
	"net/http"

	"github.com/m2l-store/api/internal/platform/httpx"
	"github.com/m2l-store/api/internal/services"
)

// writeServiceError maps a service failure onto the JSON error envelope.
// Typed service errors carry their own code, status hint and info; anything
// else is a 500 with the detail kept server-side.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if svcErr, ok := services.AsServiceError(err); ok {
		httpErr := httpx.NewError(svcErr.Code, svcErr.Message, svcErr.Status)
		if len(svcErr.Info) > 0 {
			httpErr = httpErr.WithInfo(svcErr.Info)
		}
		httpx.WriteError(ctx, w, httpErr)
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError(services.CodeInternal, "unexpected error", http.StatusInternalServerError))
}

func writeBadRequest(ctx context.Context, w http.ResponseWriter, message string) {
	httpx.WriteError(ctx, w, httpx.NewError(services.CodeValidation, message, http.StatusBadRequest))
}

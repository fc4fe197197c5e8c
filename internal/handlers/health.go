package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/m2l-store/api/internal/repositories"
)

// HealthHandlers reports process liveness plus the state of backing
// dependencies when a health repository is configured.
type HealthHandlers struct {
	health      repositories.HealthRepository
	environment string
	gateway     string
	started     time.Time
	clock       func() time.Time
}

// HealthOption customises the health handlers.
type HealthOption func(*HealthHandlers)

// WithHealthClock injects a custom clock, primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs the health handlers. The repository may be
// nil, in which case dependency checks are omitted from the report.
func NewHealthHandlers(health repositories.HealthRepository, environment, gateway string, opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		health:      health,
		environment: environment,
		gateway:     gateway,
		clock:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.started = h.clock()
	return h
}

// Routes wires the health endpoint onto the provided router.
func (h *HealthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.report)
}

func (h *HealthHandlers) report(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	payload := map[string]any{
		"status":      "ok",
		"environment": h.environment,
		"gateway":     h.gateway,
		"uptime":      now.Sub(h.started).Round(time.Second).String(),
		"time":        now.UTC().Format(time.RFC3339),
	}

	status := http.StatusOK
	if h.health != nil {
		report, err := h.health.Collect(r.Context())
		if err != nil {
			payload["status"] = "error"
			payload["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, payload)
			return
		}
		payload["status"] = string(report.Status)
		checks := make(map[string]any, len(report.Checks))
		for name, check := range report.Checks {
			entry := map[string]any{
				"status":     string(check.Status),
				"detail":     check.Detail,
				"latency_ms": check.Latency.Milliseconds(),
			}
			if check.Error != "" {
				entry["error"] = check.Error
			}
			checks[name] = entry
		}
		payload["checks"] = checks
		if report.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, payload)
}

package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"licensegate/internal/store"
	"licensegate/pkg/contracts/domain"
)

// HealthHandler reports configuration presence and store reachability.
// Booleans only; secret values never appear here.
type HealthHandler struct {
	store           store.Store
	hasSecret       bool
	storeConfigured bool
	logger          *slog.Logger
}

// NewHealthHandler creates the handler.
func NewHealthHandler(st store.Store, hasSecret, storeConfigured bool, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:           st,
		hasSecret:       hasSecret,
		storeConfigured: storeConfigured,
		logger:          logger.With(slog.String("handler", "health")),
	}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	connected := false
	if h.storeConfigured {
		if err := h.store.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "store ping failed", slog.String("error", err.Error()))
		} else {
			connected = true
		}
	}

	render.JSON(w, r, domain.HealthResponse{
		Status:  "ok",
		Message: "license verification API is running",
		Environment: domain.HealthEnvironment{
			SecretKey:       h.hasSecret,
			StoreDSN:        h.storeConfigured,
			StoreConnection: connected,
		},
	})
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"pendakian-services/pkg/response"
)

// Health reports process liveness plus the state of the database and broker.
// It answers 503 only when the database is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok", "rabbitmq": "disabled"}
	status := http.StatusOK
	if h.DB == nil {
		checks["database"] = "disabled"
	} else if err := h.DB.Ping(ctx); err != nil {
		checks["database"] = "down"
		status = http.StatusServiceUnavailable
		h.Logger.Warn("health check database ping failed", zapError(err))
	}
	if h.Queue != nil {
		checks["rabbitmq"] = "ok"
		if h.Queue.IsClosed() {
			checks["rabbitmq"] = "down"
		}
	}

	response.JSON(w, status, map[string]any{
		"success": status == http.StatusOK,
		"status":  checks,
		"time":    time.Now().UTC(),
	})
}

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/story-arbiter/internal/services"
)

const serviceName = "story-arbiter"

type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Service    string            `json:"service"`
	Components map[string]string `json:"components"`
}

type HealthHandler struct {
	redis  services.HealthChecker
	logger *slog.Logger
}

func NewHealthHandler(redis services.HealthChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		redis:  redis,
		logger: logger,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Health check requested",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := make(map[string]string)
	overallStatus := "healthy"

	if h.redis == nil {
		components["redis"] = "disabled"
	} else if err := h.redis.Ping(ctx); err != nil {
		h.logger.Warn("Redis health check failed", "error", err)
		components["redis"] = "unhealthy"
		overallStatus = "degraded"
	} else {
		components["redis"] = "healthy"
	}

	statusCode := http.StatusOK
	if overallStatus != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, h.logger, statusCode, HealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Service:    serviceName,
		Components: components,
	})
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/EternisAI/fleet-monitor/internal/api/http/dto"
	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	pinger  Pinger
	timeout time.Duration
}

// NewHealthHandler returns a handler that reports ok, or 503 when pinger is
// set and fails.
func NewHealthHandler(pinger Pinger, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HealthHandler{
		pinger:  pinger,
		timeout: timeout,
	}
}

func (h *HealthHandler) Check(ctx *gin.Context) {
	if h.pinger != nil {
		reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
		defer cancel()

		if err := h.pinger.Ping(reqCtx); err != nil {
			slog.Warn("Health check failed", "error", err)
			ctx.JSON(http.StatusServiceUnavailable, dto.HealthResponse{Status: "unavailable"})
			return
		}
	}
	ctx.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
}

package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/EternisAI/fleet-monitor/internal/api/http/dto"
	"github.com/EternisAI/fleet-monitor/internal/heartbeat"
	"github.com/EternisAI/fleet-monitor/internal/machines"
	"github.com/gin-gonic/gin"
)

// DefaultTimeout bounds the store calls of a single request when the caller
// does not configure one.
const DefaultTimeout = 5 * time.Second

// respondError maps service errors onto status codes and machine-readable
// error kinds.
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, heartbeat.ErrInvalidHeartbeat):
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   dto.ErrorKindInvalidHeartbeat,
			Message: err.Error(),
		})
	case errors.Is(err, machines.ErrStoreUnavailable):
		slog.Error("State store unavailable", "error", err, "path", ctx.Request.URL.Path)
		ctx.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error:   dto.ErrorKindStoreUnavailable,
			Message: "state store unavailable",
		})
	default:
		slog.Error("Request failed", "error", err, "path", ctx.Request.URL.Path)
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   dto.ErrorKindInternal,
			Message: "internal error",
		})
	}
}

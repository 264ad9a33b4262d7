package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/EternisAI/fleet-monitor/internal/api/http/dto"
	"github.com/EternisAI/fleet-monitor/internal/heartbeat"
	"github.com/gin-gonic/gin"
)

type HeartbeatHandler struct {
	service *heartbeat.Service
	timeout time.Duration
}

func NewHeartbeatHandler(service *heartbeat.Service, timeout time.Duration) *HeartbeatHandler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HeartbeatHandler{
		service: service,
		timeout: timeout,
	}
}

// Ingest records a heartbeat from an agent
// POST /heartbeat
func (h *HeartbeatHandler) Ingest(ctx *gin.Context) {
	var req dto.HeartbeatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.service.RecordRejected()
		respondError(ctx, fmt.Errorf("%w: %v", heartbeat.ErrInvalidHeartbeat, err))
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	_, err := h.service.Ingest(reqCtx, heartbeat.Heartbeat{
		ClientID:        req.ClientID,
		MachineID:       req.MachineID,
		RunningPrograms: req.RunningPrograms,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.AckResponse{Msg: "ok"})
}

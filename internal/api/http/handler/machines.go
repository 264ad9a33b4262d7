package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/EternisAI/fleet-monitor/internal/api/http/dto"
	"github.com/EternisAI/fleet-monitor/internal/fleet"
	"github.com/gin-gonic/gin"
)

type MachinesHandler struct {
	service *fleet.Service
	timeout time.Duration
}

func NewMachinesHandler(service *fleet.Service, timeout time.Duration) *MachinesHandler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &MachinesHandler{
		service: service,
		timeout: timeout,
	}
}

// List returns the liveness view of every known machine
// GET /api/machines
func (h *MachinesHandler) List(ctx *gin.Context) {
	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	rows, err := h.service.Snapshot(reqCtx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	response := make([]dto.MachineRow, len(rows))
	for i, row := range rows {
		response[i] = dto.MachineRow{
			ClientID:        row.ClientID,
			MachineID:       row.MachineID,
			LastSeen:        row.LastSeen,
			Status:          string(row.Status),
			RunningPrograms: row.RunningPrograms,
		}
	}

	ctx.JSON(http.StatusOK, response)
}

package handler

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed dashboard.html
var dashboardHTML []byte

type DashboardHandler struct{}

func NewDashboardHandler() *DashboardHandler {
	return &DashboardHandler{}
}

// Show serves the fleet dashboard, which polls /api/machines.
// GET /dashboard
func (h *DashboardHandler) Show(ctx *gin.Context) {
	ctx.Data(http.StatusOK, "text/html; charset=utf-8", dashboardHTML)
}

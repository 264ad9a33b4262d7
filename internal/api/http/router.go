package http

import (
	"net/http"

	"github.com/EternisAI/fleet-monitor/internal/api/http/handler"
	"github.com/EternisAI/fleet-monitor/internal/api/http/middleware"
	"github.com/EternisAI/fleet-monitor/internal/fleet"
	"github.com/EternisAI/fleet-monitor/internal/heartbeat"
	"github.com/EternisAI/fleet-monitor/internal/metrics"
	"github.com/gin-gonic/gin"
)

type Services struct {
	Store     handler.Pinger
	Heartbeat *heartbeat.Service
	Fleet     *fleet.Service
	Metrics   *metrics.Metrics
}

func SetupRoute(engine *gin.Engine, srvs *Services, cfg Config) {
	engine.Use(middleware.RequestLogger())

	timeout := cfg.RequestTimeout

	healthHandler := handler.NewHealthHandler(srvs.Store, timeout)
	engine.GET("/health", healthHandler.Check)

	if srvs.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(srvs.Metrics.Handler()))
	}

	if srvs.Heartbeat != nil {
		heartbeatHandler := handler.NewHeartbeatHandler(srvs.Heartbeat, timeout)
		engine.POST("/heartbeat", heartbeatHandler.Ingest)
	}

	if srvs.Fleet != nil {
		machinesHandler := handler.NewMachinesHandler(srvs.Fleet, timeout)
		engine.GET("/api/machines", machinesHandler.List)

		dashboardHandler := handler.NewDashboardHandler()
		engine.GET("/dashboard", dashboardHandler.Show)
		engine.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusTemporaryRedirect, "/dashboard")
		})
	}
}

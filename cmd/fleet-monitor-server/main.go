package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	internalhttp "github.com/EternisAI/fleet-monitor/internal/api/http"
	"github.com/EternisAI/fleet-monitor/internal/bus"
	"github.com/EternisAI/fleet-monitor/internal/clock"
	"github.com/EternisAI/fleet-monitor/internal/fleet"
	"github.com/EternisAI/fleet-monitor/internal/heartbeat"
	"github.com/EternisAI/fleet-monitor/internal/liveness"
	"github.com/EternisAI/fleet-monitor/internal/metrics"
	"github.com/EternisAI/fleet-monitor/internal/telemetry"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("Fleet Monitor Server", "version", AppVersion)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, config.Telemetry, AppVersion)
	if err != nil {
		slog.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	evaluator, err := liveness.NewEvaluator(config.Liveness)
	if err != nil {
		slog.Error("Invalid liveness config", "error", err)
		os.Exit(1)
	}

	store, err := openStore(ctx, config)
	if err != nil {
		slog.Error("Failed to open state store", "driver", config.Store.Driver, "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	instrumented := metrics.InstrumentStore(store, m)
	clk := clock.Real()

	heartbeatService := heartbeat.NewService(instrumented, clk, m)
	services := &internalhttp.Services{
		Store:     store,
		Heartbeat: heartbeatService,
		Fleet:     fleet.NewService(instrumented, evaluator, clk, m),
		Metrics:   m,
	}

	var natsConn *nats.Conn
	if config.Nats.Enabled() {
		natsConn, err = bus.Connect(config.Nats.URL, "fleet-monitor-server")
		if err != nil {
			slog.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		subscriber := bus.NewHeartbeatSubscriber(natsConn, heartbeatService, config.Nats, config.Http.RequestTimeout)
		if err := subscriber.Start(ctx); err != nil {
			slog.Error("Failed to subscribe for heartbeats", "error", err)
			os.Exit(1)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, services, config.Http)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Http.Port),
		Handler: otelhttp.NewHandler(engine, "fleet-monitor-server"),
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr, "store", config.Store.Driver)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down servers...")
	stop()

	var wg sync.WaitGroup
	shutdownTimeout := 10 * time.Second

	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server stopped")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		bus.Close(natsConn)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			slog.Error("Tracer shutdown error", "error", err)
		}
	}()

	wg.Wait()

	if err := store.Close(); err != nil {
		slog.Error("State store close error", "error", err)
	}
	slog.Info("Shutdown complete")
}

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/EternisAI/fleet-monitor/internal/agent"
	"github.com/EternisAI/fleet-monitor/internal/bus"
	"github.com/nats-io/nats.go"
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("Fleet Monitor Agent", "version", AppVersion)

	if config.Agent.MachineID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			slog.Error("agent.machine_id is not set and hostname is unavailable", "error", err)
			os.Exit(1)
		}
		config.Agent.MachineID = hostname
	}
	if config.Agent.ClientID == "" {
		slog.Error("agent.client_id is required")
		os.Exit(1)
	}

	var (
		reporter agent.Reporter
		natsConn *nats.Conn
	)
	switch config.Agent.Transport {
	case agent.TransportHTTP:
		reporter = agent.NewHTTPReporter(config.Server.URL, config.Server.Timeout)
		slog.Info("Reporting over HTTP", "server", config.Server.URL)
	case agent.TransportNATS:
		var err error
		natsConn, err = bus.Connect(config.Nats.URL, "fleet-monitor-agent/"+config.Agent.MachineID)
		if err != nil {
			slog.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		reporter = agent.NewNATSReporter(natsConn, config.Nats.Subject)
		slog.Info("Reporting over NATS", "subject", config.Nats.Subject)
	default:
		slog.Error("Unknown transport", "transport", config.Agent.Transport)
		os.Exit(1)
	}

	runner := agent.NewRunner(config.Agent, agent.NewProcessCollector(config.Agent.Programs), reporter)
	runner.Start()
	slog.Info("Heartbeat runner started",
		"client_id", config.Agent.ClientID,
		"machine_id", config.Agent.MachineID,
		"interval", config.Agent.Interval,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	slog.Info("Received shutdown signal", "signal", sig)

	runner.Stop()
	bus.Close(natsConn)
	slog.Info("Shutdown complete")
}

package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/EternisAI/fleet-monitor/internal/api/http/dto"
)

const DefaultInterval = 10 * time.Second

type Config struct {
	ClientID  string        `mapstructure:"client_id"`
	MachineID string        `mapstructure:"machine_id"`
	Interval  time.Duration `mapstructure:"interval"`
	Programs  []string      `mapstructure:"programs"`
	Transport string        `mapstructure:"transport"`
}

const (
	TransportHTTP = "http"
	TransportNATS = "nats"
)

// Runner sends one heartbeat immediately and then every interval until
// stopped. A failed send is logged and the next tick tries again.
type Runner struct {
	clientID  string
	machineID string
	interval  time.Duration
	collector Collector
	reporter  Reporter
	timeout   time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

func NewRunner(cfg Config, collector Collector, reporter Reporter) *Runner {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{
		clientID:  cfg.ClientID,
		machineID: cfg.MachineID,
		interval:  interval,
		collector: collector,
		reporter:  reporter,
		timeout:   interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

func (r *Runner) Start() {
	go r.loop()
}

func (r *Runner) Stop() {
	r.once.Do(func() {
		slog.Info("Stopping heartbeat runner")
		close(r.stopCh)
	})
	<-r.doneCh
}

func (r *Runner) loop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.beat()
		select {
		case <-ticker.C:
		case <-r.stopCh:
			return
		}
	}
}

func (r *Runner) beat() {
	programs, err := r.collector.Collect()
	if err != nil {
		slog.Warn("Failed to collect running programs", "error", err)
		programs = []string{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	err = r.reporter.Report(ctx, dto.HeartbeatRequest{
		ClientID:        r.clientID,
		MachineID:       r.machineID,
		RunningPrograms: programs,
	})
	if err != nil {
		slog.Error("Heartbeat failed", "error", err, "machine_id", r.machineID)
		return
	}
	slog.Debug("Heartbeat sent", "machine_id", r.machineID, "programs", len(programs))
}

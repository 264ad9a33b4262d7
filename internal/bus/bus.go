package bus

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	DefaultSubject = "fleet.heartbeat"
	DefaultQueue   = "fleet-monitor"
)

type Config struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
	Queue   string `mapstructure:"queue"`
}

func (c Config) Enabled() bool {
	return c.URL != ""
}

func (c Config) subject() string {
	if c.Subject == "" {
		return DefaultSubject
	}
	return c.Subject
}

func (c Config) queue() string {
	if c.Queue == "" {
		return DefaultQueue
	}
	return c.Queue
}

// Connect dials NATS with unlimited reconnects; heartbeats resume on their
// own once the connection returns.
func Connect(url, name string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	slog.Info("Connected to NATS", "url", nc.ConnectedUrl(), "name", name)
	return nc, nil
}

// Close drains nc, falling back to a hard close if draining fails.
func Close(nc *nats.Conn) {
	if nc == nil {
		return
	}
	if err := nc.Drain(); err != nil {
		nc.Close()
	}
}

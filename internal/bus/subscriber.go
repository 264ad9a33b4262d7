package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/EternisAI/fleet-monitor/internal/api/http/dto"
	"github.com/EternisAI/fleet-monitor/internal/heartbeat"
	"github.com/EternisAI/fleet-monitor/internal/machines"
	"github.com/gin-gonic/gin/binding"
	"github.com/nats-io/nats.go"
)

const defaultTimeout = 5 * time.Second

type Ingester interface {
	Ingest(ctx context.Context, hb heartbeat.Heartbeat) (machines.Record, error)
	RecordRejected()
}

// HeartbeatSubscriber feeds heartbeats published on NATS into the ingestion
// service. Messages carry the same JSON body as POST /heartbeat; when a
// message has a reply subject the acknowledgement or error body is sent back.
type HeartbeatSubscriber struct {
	conn     *nats.Conn
	ingester Ingester
	subject  string
	queue    string
	timeout  time.Duration

	mu  sync.Mutex
	sub *nats.Subscription
	ctx context.Context
}

func NewHeartbeatSubscriber(conn *nats.Conn, ingester Ingester, cfg Config, timeout time.Duration) *HeartbeatSubscriber {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HeartbeatSubscriber{
		conn:     conn,
		ingester: ingester,
		subject:  cfg.subject(),
		queue:    cfg.queue(),
		timeout:  timeout,
		ctx:      context.Background(),
	}
}

// Start queue-subscribes so several server replicas share the stream. The
// subscription is drained when ctx is cancelled.
func (s *HeartbeatSubscriber) Start(ctx context.Context) error {
	if s.conn == nil {
		return errors.New("nil NATS connection")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return errors.New("heartbeat subscriber already started")
	}

	s.ctx = ctx
	sub, err := s.conn.QueueSubscribe(s.subject, s.queue, s.handleMsg)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.subject, err)
	}
	s.sub = sub

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	slog.Info("Listening for heartbeats on NATS", "subject", s.subject, "queue", s.queue)
	return nil
}

func (s *HeartbeatSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return nil
	}
	err := s.sub.Drain()
	s.sub = nil
	return err
}

func (s *HeartbeatSubscriber) handleMsg(msg *nats.Msg) {
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()

	reply := s.process(parent, msg.Data)
	if msg.Reply == "" {
		return
	}
	if err := msg.Respond(reply); err != nil {
		slog.Warn("Failed to reply to heartbeat", "error", err, "reply", msg.Reply)
	}
}

// process ingests one encoded heartbeat and returns the JSON reply body.
func (s *HeartbeatSubscriber) process(parent context.Context, data []byte) []byte {
	var req dto.HeartbeatRequest
	err := json.Unmarshal(data, &req)
	if err == nil {
		err = binding.Validator.ValidateStruct(&req)
	}
	if err != nil {
		s.ingester.RecordRejected()
		return s.replyError(fmt.Errorf("%w: %v", heartbeat.ErrInvalidHeartbeat, err))
	}

	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	_, err = s.ingester.Ingest(ctx, heartbeat.Heartbeat{
		ClientID:        req.ClientID,
		MachineID:       req.MachineID,
		RunningPrograms: req.RunningPrograms,
	})
	if err != nil {
		return s.replyError(err)
	}

	return mustMarshal(dto.AckResponse{Msg: "ok"})
}

func (s *HeartbeatSubscriber) replyError(err error) []byte {
	resp := dto.ErrorResponse{Error: dto.ErrorKindInternal, Message: "internal error"}
	switch {
	case errors.Is(err, heartbeat.ErrInvalidHeartbeat):
		slog.Debug("Rejected NATS heartbeat", "error", err)
		resp = dto.ErrorResponse{Error: dto.ErrorKindInvalidHeartbeat, Message: err.Error()}
	case errors.Is(err, machines.ErrStoreUnavailable):
		slog.Error("State store unavailable", "error", err, "subject", s.subject)
		resp = dto.ErrorResponse{Error: dto.ErrorKindStoreUnavailable, Message: "state store unavailable"}
	default:
		slog.Error("NATS heartbeat failed", "error", err, "subject", s.subject)
	}
	return mustMarshal(resp)
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

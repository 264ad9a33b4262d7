package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/EternisAI/fleet-monitor/internal/clock"
	"github.com/EternisAI/fleet-monitor/internal/machines"
	"github.com/EternisAI/fleet-monitor/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrInvalidHeartbeat = errors.New("invalid heartbeat")

// MaxIDLength bounds machine_id and client_id, matching the VARCHAR(100)
// columns of machine_status.
const MaxIDLength = 100

// Heartbeat is one status report from an agent.
type Heartbeat struct {
	ClientID        string
	MachineID       string
	RunningPrograms []string
}

// Normalize trims the identifiers and replaces a nil program list with an
// empty one.
func (h Heartbeat) Normalize() Heartbeat {
	h.ClientID = strings.TrimSpace(h.ClientID)
	h.MachineID = strings.TrimSpace(h.MachineID)
	if h.RunningPrograms == nil {
		h.RunningPrograms = []string{}
	}
	return h
}

// Validate reports why h cannot be ingested. Errors wrap ErrInvalidHeartbeat.
func (h Heartbeat) Validate() error {
	if err := validateID("machine_id", h.MachineID); err != nil {
		return err
	}
	if err := validateID("client_id", h.ClientID); err != nil {
		return err
	}
	for i, program := range h.RunningPrograms {
		if err := validateText(fmt.Sprintf("running_programs[%d]", i), program); err != nil {
			return err
		}
	}
	return nil
}

func validateID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidHeartbeat, field)
	}
	if utf8.RuneCountInString(value) > MaxIDLength {
		return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidHeartbeat, field, MaxIDLength)
	}
	return validateText(field, value)
}

// validateText rejects values no backend can store as text: NUL bytes and
// invalid UTF-8.
func validateText(field, value string) error {
	if !utf8.ValidString(value) {
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidHeartbeat, field)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("%w: %s contains a NUL character", ErrInvalidHeartbeat, field)
	}
	return nil
}

type Service struct {
	store   machines.Store
	clock   clock.Clock
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

func NewService(store machines.Store, clk clock.Clock, m *metrics.Metrics) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	return &Service{
		store:   store,
		clock:   clk,
		metrics: m,
		tracer:  otel.Tracer("github.com/EternisAI/fleet-monitor/internal/heartbeat"),
	}
}

// Ingest validates hb and upserts the machine's record, stamping it with the
// server's current time. Invalid input is rejected before the store is
// touched.
func (s *Service) Ingest(ctx context.Context, hb Heartbeat) (machines.Record, error) {
	ctx, span := s.tracer.Start(ctx, "heartbeat.Ingest")
	defer span.End()

	hb = hb.Normalize()
	span.SetAttributes(
		attribute.String("machine.id", hb.MachineID),
		attribute.String("client.id", hb.ClientID),
		attribute.Int("machine.running_programs", len(hb.RunningPrograms)),
	)

	if err := hb.Validate(); err != nil {
		s.metrics.ObserveHeartbeat(metrics.ResultInvalid)
		span.SetStatus(codes.Error, err.Error())
		return machines.Record{}, err
	}

	now := s.clock.Now()
	rec, err := s.store.Upsert(ctx, hb.MachineID, hb.ClientID, hb.RunningPrograms, now)
	if errors.Is(err, machines.ErrInvalidRecord) {
		s.metrics.ObserveHeartbeat(metrics.ResultInvalid)
		span.SetStatus(codes.Error, err.Error())
		return machines.Record{}, fmt.Errorf("%w: machine %q: %w", ErrInvalidHeartbeat, hb.MachineID, err)
	}
	if err != nil {
		s.metrics.ObserveHeartbeat(metrics.ResultStoreError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "store upsert failed")
		return machines.Record{}, fmt.Errorf("ingest heartbeat for machine %q: %w", hb.MachineID, err)
	}

	s.metrics.ObserveHeartbeat(metrics.ResultAccepted)
	slog.Debug("Heartbeat accepted",
		"machine_id", rec.MachineID,
		"client_id", rec.ClientID,
		"running_programs", len(rec.RunningPrograms))

	return rec, nil
}

// RecordRejected counts a heartbeat refused at the transport boundary, such as
// a body that failed to decode, so that it never reached Ingest.
func (s *Service) RecordRejected() {
	s.metrics.ObserveHeartbeat(metrics.ResultInvalid)
}

package fleet

import (
	"context"
	"fmt"
	"strings"

	"github.com/EternisAI/fleet-monitor/internal/clock"
	"github.com/EternisAI/fleet-monitor/internal/liveness"
	"github.com/EternisAI/fleet-monitor/internal/machines"
	"github.com/EternisAI/fleet-monitor/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const programSeparator = ", "

// Row is one machine as shown on the dashboard.
type Row struct {
	ClientID        string
	MachineID       string
	LastSeen        string
	Status          liveness.Status
	RunningPrograms string
}

type Summary struct {
	Total   int
	Online  int
	Offline int
}

type Service struct {
	store     machines.Store
	evaluator *liveness.Evaluator
	clock     clock.Clock
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

func NewService(store machines.Store, evaluator *liveness.Evaluator, clk clock.Clock, m *metrics.Metrics) *Service {
	if evaluator == nil {
		evaluator = liveness.Default()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Service{
		store:     store,
		evaluator: evaluator,
		clock:     clk,
		metrics:   m,
		tracer:    otel.Tracer("github.com/EternisAI/fleet-monitor/internal/fleet"),
	}
}

// Snapshot reads every record and classifies it. All rows of one snapshot are
// evaluated against the same instant.
func (s *Service) Snapshot(ctx context.Context) ([]Row, error) {
	ctx, span := s.tracer.Start(ctx, "fleet.Snapshot")
	defer span.End()

	records, err := s.store.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store list failed")
		return nil, fmt.Errorf("list machines: %w", err)
	}

	now := s.clock.Now()
	rows := make([]Row, len(records))
	for i, rec := range records {
		result := s.evaluator.Evaluate(rec.LastSeen, now)
		rows[i] = Row{
			ClientID:        rec.ClientID,
			MachineID:       rec.MachineID,
			LastSeen:        result.LastSeenText,
			Status:          result.Status,
			RunningPrograms: strings.Join(rec.RunningPrograms, programSeparator),
		}
	}

	summary := Summarize(rows)
	span.SetAttributes(
		attribute.Int("fleet.machines", summary.Total),
		attribute.Int("fleet.online", summary.Online),
	)
	s.metrics.SetMachines(map[string]int{
		string(liveness.StatusOnline):  summary.Online,
		string(liveness.StatusOffline): summary.Offline,
	})

	return rows, nil
}

func Summarize(rows []Row) Summary {
	summary := Summary{Total: len(rows)}
	for _, row := range rows {
		if row.Status == liveness.StatusOnline {
			summary.Online++
		} else {
			summary.Offline++
		}
	}
	return summary
}

package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/EternisAI/fleet-monitor/internal/clock"
	"github.com/EternisAI/fleet-monitor/internal/machines"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStore is a mock implementation of machines.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Upsert(ctx context.Context, machineID, clientID string, runningPrograms []string, now time.Time) (machines.Record, error) {
	args := m.Called(ctx, machineID, clientID, runningPrograms, now)
	return args.Get(0).(machines.Record), args.Error(1)
}

func (m *MockStore) ListAll(ctx context.Context) ([]machines.Record, error) {
	args := m.Called(ctx)
	return args.Get(0).([]machines.Record), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestIngestCreatesRecord(t *testing.T) {
	store := machines.NewMemoryStore()
	svc := NewService(store, clock.NewFake(t0), nil)

	rec, err := svc.Ingest(context.Background(), Heartbeat{
		ClientID:        "acme",
		MachineID:       "m1",
		RunningPrograms: []string{"svcA", "svcB"},
	})
	require.NoError(t, err)
	assert.Equal(t, "m1", rec.MachineID)
	assert.Equal(t, "acme", rec.ClientID)
	assert.Equal(t, []string{"svcA", "svcB"}, rec.RunningPrograms)
	assert.Equal(t, t0, rec.LastSeen)
}

func TestIngestIdempotent(t *testing.T) {
	store := machines.NewMemoryStore()
	clk := clock.NewFake(t0)
	svc := NewService(store, clk, nil)
	hb := Heartbeat{ClientID: "acme", MachineID: "m1", RunningPrograms: []string{"svcA"}}

	first, err := svc.Ingest(context.Background(), hb)
	require.NoError(t, err)

	clk.Advance(3 * time.Second)
	second, err := svc.Ingest(context.Background(), hb)
	require.NoError(t, err)

	assert.Equal(t, first.ClientID, second.ClientID)
	assert.Equal(t, first.RunningPrograms, second.RunningPrograms)
	assert.Equal(t, t0.Add(3*time.Second), second.LastSeen)

	all, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestIngestLatestClientWins(t *testing.T) {
	store := machines.NewMemoryStore()
	svc := NewService(store, clock.NewFake(t0), nil)

	for i := 0; i < 10; i++ {
		_, err := svc.Ingest(context.Background(), Heartbeat{
			ClientID:  fmt.Sprintf("client-%d", i),
			MachineID: "m1",
		})
		require.NoError(t, err)
	}

	all, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "client-9", all[0].ClientID)
}

func TestIngestReplacesPrograms(t *testing.T) {
	store := machines.NewMemoryStore()
	svc := NewService(store, clock.NewFake(t0), nil)

	_, err := svc.Ingest(context.Background(), Heartbeat{ClientID: "acme", MachineID: "m1", RunningPrograms: []string{"a", "b"}})
	require.NoError(t, err)
	_, err = svc.Ingest(context.Background(), Heartbeat{ClientID: "acme", MachineID: "m1", RunningPrograms: []string{}})
	require.NoError(t, err)

	all, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Empty(t, all[0].RunningPrograms)
}

func TestIngestTrimsIdentifiers(t *testing.T) {
	store := machines.NewMemoryStore()
	svc := NewService(store, clock.NewFake(t0), nil)

	rec, err := svc.Ingest(context.Background(), Heartbeat{ClientID: " acme ", MachineID: "\tm1\n"})
	require.NoError(t, err)
	assert.Equal(t, "m1", rec.MachineID)
	assert.Equal(t, "acme", rec.ClientID)
	assert.Equal(t, []string{}, rec.RunningPrograms)
}

func TestIngestRejectsInvalidWithoutTouchingStore(t *testing.T) {
	tests := []struct {
		name string
		hb   Heartbeat
	}{
		{"missing machine_id", Heartbeat{ClientID: "acme", RunningPrograms: []string{"svc"}}},
		{"blank machine_id", Heartbeat{ClientID: "acme", MachineID: "   "}},
		{"missing client_id", Heartbeat{MachineID: "m1"}},
		{"machine_id too long", Heartbeat{ClientID: "acme", MachineID: strings.Repeat("m", MaxIDLength+1)}},
		{"client_id too long", Heartbeat{ClientID: strings.Repeat("c", MaxIDLength+1), MachineID: "m1"}},
		{"NUL in machine_id", Heartbeat{ClientID: "acme", MachineID: "m\x001"}},
		{"NUL in client_id", Heartbeat{ClientID: "ac\x00me", MachineID: "m1"}},
		{"NUL in program", Heartbeat{ClientID: "acme", MachineID: "m1", RunningPrograms: []string{"svc", "a\x00b"}}},
		{"invalid UTF-8 in program", Heartbeat{ClientID: "acme", MachineID: "m1", RunningPrograms: []string{"\xff"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockStore)
			svc := NewService(store, clock.NewFake(t0), nil)

			_, err := svc.Ingest(context.Background(), tt.hb)
			assert.ErrorIs(t, err, ErrInvalidHeartbeat)
			store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestIngestMissingMachineIDCreatesNoRecord(t *testing.T) {
	store := machines.NewMemoryStore()
	svc := NewService(store, clock.NewFake(t0), nil)

	_, err := svc.Ingest(context.Background(), Heartbeat{ClientID: "acme", RunningPrograms: []string{"svc"}})
	require.ErrorIs(t, err, ErrInvalidHeartbeat)

	all, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestIngestAcceptsMaxLengthIDs(t *testing.T) {
	svc := NewService(machines.NewMemoryStore(), clock.NewFake(t0), nil)

	_, err := svc.Ingest(context.Background(), Heartbeat{
		ClientID:  strings.Repeat("c", MaxIDLength),
		MachineID: strings.Repeat("é", MaxIDLength),
	})
	assert.NoError(t, err)
}

func TestIngestPropagatesStoreUnavailable(t *testing.T) {
	store := new(MockStore)
	cause := fmt.Errorf("upsert machine: %w: %w", machines.ErrStoreUnavailable, errors.New("connection refused"))
	store.On("Upsert", mock.Anything, "m1", "acme", []string{"svc"}, t0).Return(machines.Record{}, cause)

	svc := NewService(store, clock.NewFake(t0), nil)
	_, err := svc.Ingest(context.Background(), Heartbeat{ClientID: "acme", MachineID: "m1", RunningPrograms: []string{"svc"}})

	assert.ErrorIs(t, err, machines.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidHeartbeat)
	store.AssertExpectations(t)
}

func TestIngestStoreRefusalIsInvalidHeartbeat(t *testing.T) {
	store := new(MockStore)
	cause := fmt.Errorf("upsert machine: %w: value too long (SQLSTATE 22001)", machines.ErrInvalidRecord)
	store.On("Upsert", mock.Anything, "m1", "acme", []string{"svc"}, t0).Return(machines.Record{}, cause)

	svc := NewService(store, clock.NewFake(t0), nil)
	_, err := svc.Ingest(context.Background(), Heartbeat{ClientID: "acme", MachineID: "m1", RunningPrograms: []string{"svc"}})

	assert.ErrorIs(t, err, ErrInvalidHeartbeat)
	assert.ErrorIs(t, err, machines.ErrInvalidRecord)
	assert.NotErrorIs(t, err, machines.ErrStoreUnavailable)
	store.AssertExpectations(t)
}

func TestIngestStampsServerTime(t *testing.T) {
	store := new(MockStore)
	later := t0.Add(time.Hour)
	store.On("Upsert", mock.Anything, "m1", "acme", []string{}, later).
		Return(machines.Record{MachineID: "m1", ClientID: "acme", RunningPrograms: []string{}, LastSeen: later}, nil)

	clk := clock.NewFake(t0)
	clk.Set(later)
	svc := NewService(store, clk, nil)

	rec, err := svc.Ingest(context.Background(), Heartbeat{ClientID: "acme", MachineID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, later, rec.LastSeen)
	store.AssertExpectations(t)
}

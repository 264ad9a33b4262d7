package fleet

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/EternisAI/fleet-monitor/internal/clock"
	"github.com/EternisAI/fleet-monitor/internal/heartbeat"
	"github.com/EternisAI/fleet-monitor/internal/liveness"
	"github.com/EternisAI/fleet-monitor/internal/machines"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSnapshotEndToEnd(t *testing.T) {
	store := machines.NewMemoryStore()
	clk := clock.NewFake(t0)
	ingest := heartbeat.NewService(store, clk, nil)
	svc := NewService(store, liveness.Default(), clk, nil)

	_, err := ingest.Ingest(context.Background(), heartbeat.Heartbeat{
		ClientID:        "acme",
		MachineID:       "m1",
		RunningPrograms: []string{"svcA", "svcB"},
	})
	require.NoError(t, err)

	clk.Advance(10 * time.Second)
	rows, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Row{
		ClientID:        "acme",
		MachineID:       "m1",
		LastSeen:        "2024-03-01 12:00:00",
		Status:          liveness.StatusOnline,
		RunningPrograms: "svcA, svcB",
	}, rows[0])

	clk.Advance(30 * time.Second)
	rows, err = svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, liveness.StatusOffline, rows[0].Status)
	assert.Equal(t, "2024-03-01 12:00:00", rows[0].LastSeen)
	assert.Equal(t, "svcA, svcB", rows[0].RunningPrograms)
}

func TestSnapshotMixedFleet(t *testing.T) {
	store := machines.NewMemoryStore()
	ctx := context.Background()

	_, err := store.Upsert(ctx, "m2", "acme", []string{"db"}, t0.Add(-5*time.Second))
	require.NoError(t, err)
	_, err = store.Upsert(ctx, "m1", "globex", nil, t0.Add(-30*time.Second))
	require.NoError(t, err)
	_, err = store.Upsert(ctx, "m3", "acme", []string{"web", "cache", "queue"}, t0.Add(-29*time.Second))
	require.NoError(t, err)

	svc := NewService(store, nil, clock.NewFake(t0), nil)
	rows, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "m1", rows[0].MachineID)
	assert.Equal(t, liveness.StatusOffline, rows[0].Status)
	assert.Equal(t, "", rows[0].RunningPrograms)

	assert.Equal(t, "m2", rows[1].MachineID)
	assert.Equal(t, liveness.StatusOnline, rows[1].Status)

	assert.Equal(t, "m3", rows[2].MachineID)
	assert.Equal(t, liveness.StatusOnline, rows[2].Status)
	assert.Equal(t, "web, cache, queue", rows[2].RunningPrograms)

	assert.Equal(t, Summary{Total: 3, Online: 2, Offline: 1}, Summarize(rows))
}

// listStub serves a fixed result from ListAll.
type listStub struct {
	machines.Store
	records []machines.Record
	err     error
}

func (s listStub) ListAll(context.Context) ([]machines.Record, error) {
	return s.records, s.err
}

type countingClock struct {
	now   time.Time
	calls int
}

func (c *countingClock) Now() time.Time {
	c.calls++
	c.now = c.now.Add(20 * time.Second)
	return c.now
}

func TestSnapshotReadsClockOnce(t *testing.T) {
	records := make([]machines.Record, 20)
	for i := range records {
		records[i] = machines.Record{MachineID: fmt.Sprintf("m%02d", i), ClientID: "acme", LastSeen: t0}
	}
	clk := &countingClock{now: t0}

	svc := NewService(listStub{records: records}, nil, clk, nil)
	rows, err := svc.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, clk.calls)
	for _, row := range rows {
		assert.Equal(t, liveness.StatusOnline, row.Status)
	}
}

func TestSnapshotNeverSeen(t *testing.T) {
	svc := NewService(listStub{records: []machines.Record{{MachineID: "m1", ClientID: "acme"}}}, nil, clock.NewFake(t0), nil)

	rows, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, liveness.StatusOffline, rows[0].Status)
	assert.Equal(t, liveness.DefaultNeverSeenText, rows[0].LastSeen)
}

func TestSnapshotStoreUnavailable(t *testing.T) {
	cause := fmt.Errorf("list machines: %w: %w", machines.ErrStoreUnavailable, errors.New("timeout"))
	svc := NewService(listStub{err: cause}, nil, clock.NewFake(t0), nil)

	_, err := svc.Snapshot(context.Background())
	assert.ErrorIs(t, err, machines.ErrStoreUnavailable)
}

func TestSnapshotEmptyFleet(t *testing.T) {
	svc := NewService(machines.NewMemoryStore(), nil, clock.NewFake(t0), nil)

	rows, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

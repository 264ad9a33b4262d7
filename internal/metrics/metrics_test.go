package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/EternisAI/fleet-monitor/internal/machines"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveHeartbeat(t *testing.T) {
	m := New()

	m.ObserveHeartbeat(ResultAccepted)
	m.ObserveHeartbeat(ResultAccepted)
	m.ObserveHeartbeat(ResultInvalid)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.heartbeats.WithLabelValues(ResultAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.heartbeats.WithLabelValues(ResultInvalid)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.heartbeats.WithLabelValues(ResultStoreError)))
}

func TestSetMachinesResetsStaleLabels(t *testing.T) {
	m := New()

	m.SetMachines(map[string]int{"ONLINE": 3, "OFFLINE": 1})
	assert.Equal(t, 3.0, testutil.ToFloat64(m.machines.WithLabelValues("ONLINE")))

	m.SetMachines(map[string]int{"OFFLINE": 4})
	assert.Equal(t, 1, testutil.CollectAndCount(m.machines))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.machines.WithLabelValues("OFFLINE")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveHeartbeat(ResultAccepted)
	m.SetMachines(map[string]int{"ONLINE": 1})

	s := machines.NewMemoryStore()
	assert.Same(t, machines.Store(s), InstrumentStore(s, nil))
}

func TestInstrumentStore(t *testing.T) {
	m := New()
	s := InstrumentStore(machines.NewMemoryStore(), m)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "m1", "acme", nil, time.Now())
	require.NoError(t, err)
	_, err = s.ListAll(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	_, err = s.ListAll(ctx)
	require.ErrorIs(t, err, machines.ErrStoreUnavailable)

	assert.Equal(t, 2, testutil.CollectAndCount(m.storeDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeErrors.WithLabelValues("list")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveHeartbeat(ResultAccepted)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `fleet_heartbeats_total{result="accepted"} 1`))
}

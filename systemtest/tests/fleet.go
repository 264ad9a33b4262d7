package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/EternisAI/fleet-monitor/internal/api/http/dto"
	"github.com/EternisAI/fleet-monitor/internal/clock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listMachines(t *testing.T, router *gin.Engine) []dto.MachineRow {
	t.Helper()
	rr := doJSON(router, http.MethodGet, "/api/machines", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var rows []dto.MachineRow
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))
	return rows
}

func findRow(rows []dto.MachineRow, machineID string) (dto.MachineRow, bool) {
	for _, r := range rows {
		if r.MachineID == machineID {
			return r, true
		}
	}
	return dto.MachineRow{}, false
}

// TestHeartbeatLifecycle drives one machine through ONLINE, replacement and
// OFFLINE using the fake clock shared with the router's services.
func TestHeartbeatLifecycle(t *testing.T, router *gin.Engine, clk *clock.Fake) {
	start := clk.Now()

	rr := doJSON(router, http.MethodPost, "/heartbeat", dto.HeartbeatRequest{
		ClientID:        "acme",
		MachineID:       "sys-m1",
		RunningPrograms: []string{"svcA", "svcB"},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"msg":"ok"}`, rr.Body.String())

	row, ok := findRow(listMachines(t, router), "sys-m1")
	require.True(t, ok)
	assert.Equal(t, "ONLINE", row.Status)
	assert.Equal(t, "svcA, svcB", row.RunningPrograms)
	assert.Equal(t, start.Format("2006-01-02 15:04:05"), row.LastSeen)

	clk.Advance(10 * time.Second)
	rr = doJSON(router, http.MethodPost, "/heartbeat", dto.HeartbeatRequest{
		ClientID:        "acme",
		MachineID:       "sys-m1",
		RunningPrograms: []string{"svcC"},
	})
	require.Equal(t, http.StatusOK, rr.Code)

	rows := listMachines(t, router)
	row, ok = findRow(rows, "sys-m1")
	require.True(t, ok)
	assert.Equal(t, "svcC", row.RunningPrograms)
	assert.Equal(t, clk.Now().Format("2006-01-02 15:04:05"), row.LastSeen)

	count := 0
	for _, r := range rows {
		if r.MachineID == "sys-m1" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	clk.Advance(30 * time.Second)
	row, ok = findRow(listMachines(t, router), "sys-m1")
	require.True(t, ok)
	assert.Equal(t, "OFFLINE", row.Status)
}

func TestRejectsInvalidHeartbeats(t *testing.T, router *gin.Engine) {
	before := len(listMachines(t, router))

	bodies := map[string]string{
		"missing machine_id":       `{"client_id":"acme","running_programs":[]}`,
		"missing client_id":        `{"machine_id":"sys-bad","running_programs":[]}`,
		"missing running_programs": `{"client_id":"acme","machine_id":"sys-bad"}`,
		"malformed":                `{"client_id":`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			rr := doRaw(router, http.MethodPost, "/heartbeat", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)

			var resp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, dto.ErrorKindInvalidHeartbeat, resp.Error)
		})
	}

	assert.Len(t, listMachines(t, router), before)
}

// TestNeverSeenRow expects a row for machineID with a NULL last_seen to have
// been written directly to the table.
func TestNeverSeenRow(t *testing.T, router *gin.Engine, machineID string) {
	row, ok := findRow(listMachines(t, router), machineID)
	require.True(t, ok)
	assert.Equal(t, "never seen", row.LastSeen)
	assert.Equal(t, "OFFLINE", row.Status)
}

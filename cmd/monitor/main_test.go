package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFleetMergesReports(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fleet := NewFleet()
	fleet.now = func() time.Time { return now }

	require.NoError(t, fleet.ApplyHeartbeat([]byte(`{"instance":"depot-1:5000","status":"online","version":"1.2.0","capabilities":["defect_predict"]}`)))
	require.NoError(t, fleet.ApplyBackpressure([]byte(`{"instance":"depot-1:5000","pending_messages":3,"active_processing":2,"worker_count":2,"status":"critical"}`)))
	require.NoError(t, fleet.ApplyBackpressure([]byte(`{"instance":"depot-0:5000","status":"healthy"}`)))

	snap := fleet.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "depot-0:5000", snap[0].Instance)
	assert.Empty(t, snap[0].Status)

	s := snap[1]
	assert.Equal(t, "online", s.Status)
	assert.Equal(t, "1.2.0", s.Version)
	assert.EqualValues(t, 3, s.Pending)
	assert.Equal(t, "critical", s.Pressure)
	assert.Equal(t, []string{"defect_predict"}, s.Capabilities)
}

func TestFleetRejectsAnonymousReports(t *testing.T) {
	fleet := NewFleet()
	assert.Error(t, fleet.ApplyHeartbeat([]byte(`{"status":"online"}`)))
	assert.Error(t, fleet.ApplyBackpressure([]byte(`not json`)))
	assert.Empty(t, fleet.Snapshot())
}

func TestFleetPrune(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fleet := NewFleet()
	fleet.now = func() time.Time { return now }
	require.NoError(t, fleet.ApplyHeartbeat([]byte(`{"instance":"a"}`)))

	now = now.Add(time.Minute)
	require.NoError(t, fleet.ApplyHeartbeat([]byte(`{"instance":"b"}`)))

	now = now.Add(staleAfter - 30*time.Second)
	assert.Equal(t, 1, fleet.Prune())
	snap := fleet.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "b", snap[0].Instance)
}

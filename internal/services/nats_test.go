package services

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railqr/railqr-service/internal/config"
)

func TestDecodePredictionRequest(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		subject  string
		wantKind string
		wantErr  bool
	}{
		{"kind in payload", `{"req_id":"1","kind":"defect_predict","params":{"vendor_id":"7"}}`, "rail.predict.any", "defect_predict", false},
		{"kind from subject", `{"req_id":"1","reply_to":"inbox.x"}`, "rail.predict.lifetime_predict", "lifetime_predict", false},
		{"no kind anywhere", `{"req_id":"1"}`, "predict", "", true},
		{"bad json", `{"req_id":`, "rail.predict.defect_predict", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := decodePredictionRequest([]byte(tt.data), tt.subject)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, req.Kind)
		})
	}
}

func TestMonitoringCounters(t *testing.T) {
	cfg := &config.Config{}
	cfg.NATS.Concurrency = 2
	cfg.NATS.MaxMsgs = 100
	metrics := NewMetrics(prometheus.NewRegistry())
	m := NewMonitoringService(nil, cfg, metrics)

	assert.Equal(t, "healthy", m.Report(0, 0).Status)

	m.IncrementPending()
	m.IncrementActive()
	assert.EqualValues(t, 1, m.GetPendingCount())
	assert.EqualValues(t, 1, m.GetActiveCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QueuePending))
	assert.Equal(t, "warning", m.Report(m.GetPendingCount(), 0).Status)

	report := m.Report(3, 1)
	assert.Equal(t, "critical", report.Status)
	assert.Equal(t, 2, report.WorkerCount)
	assert.Equal(t, 100, report.QueueCapacity)

	m.DecrementPending()
	m.DecrementActive()
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.QueueActive))
}

func TestHealthStatus(t *testing.T) {
	cfg := &config.Config{}
	cfg.HTTP.Addr = ":5000"
	cfg.NATS.Subject = "rail.predict.*"
	h := NewHealthService(nil, cfg)

	status := h.Status()
	assert.Equal(t, "online", status.Status)
	assert.Equal(t, "http://localhost:5000", status.Endpoint)
	assert.Equal(t, "rail.predict.*", status.NATSTopic)
	assert.ElementsMatch(t, []string{
		"defect_predict", "lifetime_predict", "vendor_recommend", "fleet_vendor_summary", "failure_analysis",
	}, status.Capabilities)
}

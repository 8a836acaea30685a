package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/railqr/railqr-service/internal/config"
)

const backpressureTopic = "railqr.backpressure"

// MonitoringService tracks the prediction work queue and reports its
// pressure over NATS and Prometheus.
type MonitoringService struct {
	nats         *nats.Conn
	config       *config.Config
	metrics      *Metrics
	pendingCount int64 // atomic counter
	activeCount  int64 // atomic counter for active processing
}

type BackpressureReport struct {
	Instance         string    `json:"instance"`
	Service          string    `json:"service"`
	PendingMessages  int64     `json:"pending_messages"`
	ActiveProcessing int64     `json:"active_processing"`
	Timestamp        time.Time `json:"timestamp"`
	WorkerCount      int       `json:"worker_count"`
	QueueCapacity    int       `json:"queue_capacity"`
	Status           string    `json:"status"` // healthy, warning, critical
}

func NewMonitoringService(natsConn *nats.Conn, cfg *config.Config, metrics *Metrics) *MonitoringService {
	return &MonitoringService{
		nats:    natsConn,
		config:  cfg,
		metrics: metrics,
	}
}

func (m *MonitoringService) Start(ctx context.Context) error {
	slog.Info("Starting monitoring service",
		"topic", backpressureTopic,
		"threshold", m.threshold())

	go m.monitorBackpressure(ctx)

	return nil
}

func (m *MonitoringService) monitorBackpressure(ctx context.Context) {
	highLoadTicker := time.NewTicker(1 * time.Second) // When pending > 0
	lowLoadTicker := time.NewTicker(10 * time.Second) // When pending = 0
	defer highLoadTicker.Stop()
	defer lowLoadTicker.Stop()

	currentTicker := lowLoadTicker

	for {
		select {
		case <-ctx.Done():
			return
		case <-currentTicker.C:
			pending := m.GetPendingCount()
			active := m.GetActiveCount()

			if pending > 0 && currentTicker == lowLoadTicker {
				currentTicker = highLoadTicker
				slog.Debug("Switched to high-frequency monitoring", "pending", pending)
			} else if pending == 0 && currentTicker == highLoadTicker {
				currentTicker = lowLoadTicker
				slog.Debug("Switched to low-frequency monitoring")
			}

			m.reportBackpressure(pending, active)
		}
	}
}

func (m *MonitoringService) reportBackpressure(pending, active int64) {
	report := m.Report(pending, active)

	reportData, err := json.Marshal(report)
	if err != nil {
		slog.Error("Failed to marshal backpressure report", "error", err)
		return
	}

	if err := m.nats.Publish(backpressureTopic, reportData); err != nil {
		slog.Warn("Failed to publish backpressure report", "error", err)
		return
	}

	if pending > 0 || report.Status != "healthy" {
		slog.Info("Backpressure report",
			"pending", pending,
			"active", active,
			"status", report.Status)
	}
}

// Report builds a backpressure snapshot.
func (m *MonitoringService) Report(pending, active int64) BackpressureReport {
	return BackpressureReport{
		Instance:         instanceID(m.config),
		Service:          "railqr",
		PendingMessages:  pending,
		ActiveProcessing: active,
		Timestamp:        time.Now(),
		WorkerCount:      m.config.NATS.Concurrency,
		QueueCapacity:    m.config.NATS.MaxMsgs,
		Status:           m.calculateStatus(pending, active),
	}
}

func (m *MonitoringService) calculateStatus(pending, active int64) string {
	total := pending + active
	threshold := m.threshold()

	if total == 0 {
		return "healthy"
	} else if total < threshold {
		return "warning"
	} else {
		return "critical"
	}
}

// threshold is the load at which the queue counts as critical: twice the
// worker count.
func (m *MonitoringService) threshold() int64 {
	n := int64(m.config.NATS.Concurrency) * 2
	if n < 1 {
		n = 1
	}
	return n
}

// IncrementPending atomically increments pending message count
func (m *MonitoringService) IncrementPending() {
	atomic.AddInt64(&m.pendingCount, 1)
	if m.metrics != nil {
		m.metrics.QueuePending.Inc()
	}
}

// DecrementPending atomically decrements pending message count
func (m *MonitoringService) DecrementPending() {
	atomic.AddInt64(&m.pendingCount, -1)
	if m.metrics != nil {
		m.metrics.QueuePending.Dec()
	}
}

// IncrementActive atomically increments active processing count
func (m *MonitoringService) IncrementActive() {
	atomic.AddInt64(&m.activeCount, 1)
	if m.metrics != nil {
		m.metrics.QueueActive.Inc()
	}
}

// DecrementActive atomically decrements active processing count
func (m *MonitoringService) DecrementActive() {
	atomic.AddInt64(&m.activeCount, -1)
	if m.metrics != nil {
		m.metrics.QueueActive.Dec()
	}
}

// GetPendingCount returns current pending count
func (m *MonitoringService) GetPendingCount() int64 {
	return atomic.LoadInt64(&m.pendingCount)
}

// GetActiveCount returns current active count
func (m *MonitoringService) GetActiveCount() int64 {
	return atomic.LoadInt64(&m.activeCount)
}

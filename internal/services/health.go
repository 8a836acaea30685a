package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/railqr/railqr-service/internal/config"
	"github.com/railqr/railqr-service/internal/prediction"
)

// Version is reported in health replies; main overrides it at link time.
var Version = "dev"

type HealthService struct {
	nats    *nats.Conn
	config  *config.Config
	started time.Time
}

type HealthStatus struct {
	Instance     string    `json:"instance"`
	Service      string    `json:"service"`
	Status       string    `json:"status"` // online, offline, busy
	LastActivity time.Time `json:"last_activity"`
	Uptime       string    `json:"uptime"`
	Capabilities []string  `json:"capabilities"`
	Endpoint     string    `json:"endpoint"`
	NATSTopic    string    `json:"nats_topic"`
	Version      string    `json:"version"`
}

func NewHealthService(natsConn *nats.Conn, cfg *config.Config) *HealthService {
	return &HealthService{
		nats:    natsConn,
		config:  cfg,
		started: time.Now(),
	}
}

func (h *HealthService) Start(ctx context.Context) error {
	healthTopic := h.config.NATS.HealthSubject

	_, err := h.nats.Subscribe(healthTopic, func(msg *nats.Msg) {
		statusData, err := json.Marshal(h.Status())
		if err != nil {
			slog.Error("Failed to marshal health status", "error", err)
			return
		}

		if err := msg.Respond(statusData); err != nil {
			slog.Error("Failed to respond to health check", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to health topic: %w", err)
	}

	slog.Info("Health service started", "topic", healthTopic)

	go h.publishHeartbeats(ctx)

	return nil
}

func (h *HealthService) publishHeartbeats(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	heartbeatTopic := h.config.NATS.HealthSubject + ".heartbeat"

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			statusData, err := json.Marshal(h.Status())
			if err != nil {
				continue
			}
			if err := h.nats.Publish(heartbeatTopic, statusData); err != nil {
				slog.Warn("Failed to publish heartbeat", "error", err)
			}
		}
	}
}

// Status describes this instance; capabilities are the prediction kinds.
func (h *HealthService) Status() HealthStatus {
	kinds := prediction.Kinds()
	capabilities := make([]string, 0, len(kinds))
	for _, k := range kinds {
		capabilities = append(capabilities, string(k))
	}
	return HealthStatus{
		Instance:     instanceID(h.config),
		Service:      "railqr",
		Status:       "online",
		LastActivity: time.Now(),
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		Capabilities: capabilities,
		Endpoint:     fmt.Sprintf("http://localhost%s", h.config.HTTP.Addr),
		NATSTopic:    h.config.NATS.Subject,
		Version:      Version,
	}
}

// instanceID names this process for monitors: host plus HTTP address.
func instanceID(cfg *config.Config) string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return host + cfg.HTTP.Addr
}

package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

var ErrInvalidAlert = errors.New("invalid alert type")

type AlertType string

const (
	AlertSMS   AlertType = "SMS"
	AlertEmail AlertType = "Email"
)

// Publisher is the part of *nats.Conn the alert service needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type AlertRequest struct {
	Item      json.RawMessage `json:"item,omitempty"`
	AlertType AlertType       `json:"alertType"`
	Message   string          `json:"message"`
}

type Alert struct {
	ID        string          `json:"id"`
	Type      AlertType       `json:"type"`
	Recipient string          `json:"recipient"`
	Message   string          `json:"message"`
	Item      json.RawMessage `json:"item,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type AlertResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	AlertID string `json:"alert_id,omitempty"`
}

var alertRecipients = map[AlertType]string{
	AlertSMS:   "Railway Maintenance Team",
	AlertEmail: "maintenance@indianrailways.gov.in",
}

// AlertService hands maintenance alerts to downstream SMS and email
// gateways over NATS. Without a connection alerts are only logged.
type AlertService struct {
	pub     Publisher
	prefix  string
	metrics *Metrics
}

func NewAlertService(pub Publisher, prefix string, metrics *Metrics) *AlertService {
	if prefix == "" {
		prefix = "alerts"
	}
	return &AlertService{pub: pub, prefix: prefix, metrics: metrics}
}

// Send returns ErrInvalidAlert for types other than SMS and Email.
func (s *AlertService) Send(req AlertRequest) (*AlertResult, error) {
	recipient, ok := alertRecipients[req.AlertType]
	if !ok {
		s.count(string(req.AlertType), "rejected")
		return nil, ErrInvalidAlert
	}

	alert := Alert{
		ID:        ulid.Make().String(),
		Type:      req.AlertType,
		Recipient: recipient,
		Message:   req.Message,
		Item:      req.Item,
		CreatedAt: time.Now().UTC(),
	}
	subject := s.prefix + "." + strings.ToLower(string(req.AlertType))

	if s.pub != nil {
		data, err := json.Marshal(alert)
		if err != nil {
			s.count(string(req.AlertType), "failed")
			return nil, fmt.Errorf("marshal alert: %w", err)
		}
		if err := s.pub.Publish(subject, data); err != nil {
			s.count(string(req.AlertType), "failed")
			return nil, fmt.Errorf("failed to send %s alert: %w", req.AlertType, err)
		}
	}

	slog.Info("Alert sent",
		"alert_id", alert.ID,
		"type", alert.Type,
		"recipient", recipient,
		"subject", subject,
		"published", s.pub != nil)
	s.count(string(req.AlertType), "sent")

	return &AlertResult{
		Success: true,
		Message: fmt.Sprintf("%s alert sent successfully to maintenance team", req.AlertType),
		AlertID: alert.ID,
	}, nil
}

func (s *AlertService) count(alertType, status string) {
	if s.metrics == nil {
		return
	}
	s.metrics.AlertsTotal.WithLabelValues(alertType, status).Inc()
}

package client

import (
	"encoding/json"
	"time"
)

// Prediction kinds served by the service.
const (
	KindDefectPredict      = "defect_predict"
	KindLifetimePredict    = "lifetime_predict"
	KindVendorRecommend    = "vendor_recommend"
	KindFleetVendorSummary = "fleet_vendor_summary"
	KindFailureAnalysis    = "failure_analysis"
)

// PredictionRequest is the work-queue payload
type PredictionRequest struct {
	ReqID   string         `json:"req_id"`
	Kind    string         `json:"kind"`
	Params  map[string]any `json:"params"`
	ReplyTo string         `json:"reply_to,omitempty"`
}

// PredictionResponse carries the engine document or its fallback in Result
type PredictionResponse struct {
	ReqID      string          `json:"req_id"`
	Kind       string          `json:"kind"`
	Source     string          `json:"source"`
	Failure    string          `json:"failure,omitempty"`
	DurationMs int64           `json:"duration_ms"`
	Result     json.RawMessage `json:"result"`
}

// Fallback reports whether the service substituted the result.
func (r *PredictionResponse) Fallback() bool {
	return r.Source == "fallback"
}

// Decode unmarshals Result into v.
func (r *PredictionResponse) Decode(v any) error {
	return json.Unmarshal(r.Result, v)
}

// HealthStatus represents service health information
type HealthStatus struct {
	Service      string    `json:"service"`
	Status       string    `json:"status"`
	LastActivity time.Time `json:"last_activity"`
	Uptime       string    `json:"uptime"`
	Capabilities []string  `json:"capabilities"`
	Endpoint     string    `json:"endpoint"`
	NATSTopic    string    `json:"nats_topic"`
	Version      string    `json:"version"`
}

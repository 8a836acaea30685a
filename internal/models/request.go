package models

import "time"

// PredictionLog is one audited prediction request.
type PredictionLog struct {
	Timestamp  time.Time `json:"ts"`
	ReqID      string    `json:"req_id"`
	WorkerID   string    `json:"worker_id"`
	Source     string    `json:"source"`
	ReplyTo    string    `json:"reply_to"`
	Kind       string    `json:"kind"`
	ParamsJSON string    `json:"params_json"`
	Outcome    string    `json:"outcome"` // engine, fallback or panic
	Failure    string    `json:"failure"`
	Response   string    `json:"response"`
	DurationMs int64     `json:"dur_ms"`
	Error      string    `json:"error"`
}

// Event is one operational event, e.g. startup or a store failure.
type Event struct {
	Timestamp time.Time      `json:"ts"`
	Level     string         `json:"level"`
	Code      string         `json:"code"`
	Msg       string         `json:"msg"`
	Meta      map[string]any `json:"meta,omitempty"`
}

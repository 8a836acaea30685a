package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/railqr/railqr-service/internal/models"
	"github.com/railqr/railqr-service/internal/prediction"
	"github.com/railqr/railqr-service/internal/repository"
)

// Predictor runs one orchestrated prediction; *prediction.Orchestrator
// satisfies it.
type Predictor interface {
	Execute(ctx context.Context, kind prediction.Kind, params map[string]any) prediction.Response
}

type PredictionRequest struct {
	ReqID   string         `json:"req_id"`
	Kind    string         `json:"kind"`
	Params  map[string]any `json:"params"`
	ReplyTo string         `json:"reply_to,omitempty"`
}

// PredictionResponse is the envelope sent back over NATS. HTTP callers
// receive Result alone.
type PredictionResponse struct {
	ReqID      string          `json:"req_id"`
	Kind       string          `json:"kind"`
	Source     string          `json:"source"`
	Failure    string          `json:"failure,omitempty"`
	DurationMs int64           `json:"duration_ms"`
	Result     json.RawMessage `json:"result"`
}

type PredictionService struct {
	predictor Predictor
	repo      repository.Repository
	metrics   *Metrics
}

func NewPredictionService(predictor Predictor, repo repository.Repository, metrics *Metrics) *PredictionService {
	return &PredictionService{
		predictor: predictor,
		repo:      repo,
		metrics:   metrics,
	}
}

// Predict never fails: engine problems and even panics in this process
// become a fallback document.
func (s *PredictionService) Predict(ctx context.Context, req PredictionRequest, source, replyTo, workerID string) (response *PredictionResponse) {
	start := time.Now()
	if req.ReqID == "" {
		req.ReqID = ulid.Make().String()
	}
	kind := prediction.Kind(req.Kind)

	defer func() {
		if r := recover(); r != nil {
			duration := time.Since(start)
			errStr := fmt.Sprintf("service panic: %v", r)
			slog.Error("Prediction panicked", "req_id", req.ReqID, "kind", req.Kind, "error", errStr)
			if s.metrics != nil {
				s.metrics.PredictionPanics.Inc()
			}

			diag := prediction.Diagnostics{
				Failure:  prediction.FailureSpawn,
				Reason:   errStr,
				ExitCode: -1,
			}
			body := prediction.Substitute(kind, nil, diag)

			s.log(ctx, &models.PredictionLog{
				Timestamp:  start,
				ReqID:      req.ReqID,
				WorkerID:   workerID,
				Source:     source,
				ReplyTo:    replyTo,
				Kind:       req.Kind,
				ParamsJSON: toJSON(req.Params),
				Outcome:    "panic",
				Failure:    string(diag.Failure),
				Response:   string(body),
				DurationMs: duration.Milliseconds(),
				Error:      errStr,
			})

			response = &PredictionResponse{
				ReqID:      req.ReqID,
				Kind:       req.Kind,
				Source:     string(prediction.SourceFallback),
				Failure:    string(diag.Failure),
				DurationMs: duration.Milliseconds(),
				Result:     body,
			}
		}
	}()

	res := s.predictor.Execute(ctx, kind, req.Params)
	duration := time.Since(start)

	errStr := ""
	if res.Fallback() {
		errStr = fallbackError(res.Body)
	}
	s.log(ctx, &models.PredictionLog{
		Timestamp:  start,
		ReqID:      req.ReqID,
		WorkerID:   workerID,
		Source:     source,
		ReplyTo:    replyTo,
		Kind:       req.Kind,
		ParamsJSON: toJSON(req.Params),
		Outcome:    string(res.Source),
		Failure:    string(res.Failure),
		Response:   string(res.Body),
		DurationMs: duration.Milliseconds(),
		Error:      errStr,
	})
	s.metrics.observePrediction(req.Kind, string(res.Source), string(res.Failure), duration)

	slog.Info("Prediction served",
		"req_id", req.ReqID,
		"kind", req.Kind,
		"source", res.Source,
		"failure", res.Failure,
		"duration_ms", duration.Milliseconds())

	return &PredictionResponse{
		ReqID:      req.ReqID,
		Kind:       req.Kind,
		Source:     string(res.Source),
		Failure:    string(res.Failure),
		DurationMs: duration.Milliseconds(),
		Result:     res.Body,
	}
}

// GetPredictionLogs retrieves recent prediction audit records.
func (s *PredictionService) GetPredictionLogs(ctx context.Context, limit int) ([]*models.PredictionLog, error) {
	return s.repo.Prediction().GetPredictionLogs(ctx, limit)
}

func (s *PredictionService) log(ctx context.Context, entry *models.PredictionLog) {
	if s.repo == nil {
		return
	}
	// The request context may already be cancelled; the audit row is
	// still wanted.
	if err := s.repo.Prediction().LogPrediction(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("Failed to log prediction", "req_id", entry.ReqID, "error", err)
	}
}

func fallbackError(body json.RawMessage) string {
	var doc struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &doc)
	return doc.Error
}

func toJSON(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}
	b, err := json.Marshal(params)
	if err != nil {
		return "{}"
	}
	return string(b)
}

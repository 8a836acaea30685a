package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/railqr/railqr-service/internal/config"
)

// generateWorkerID creates a unique worker ID using timestamp and random bytes
func generateWorkerID() string {
	timestamp := time.Now().UnixNano()
	randomBytes := make([]byte, 4)
	rand.Read(randomBytes)
	return fmt.Sprintf("worker-%d-%s", timestamp, hex.EncodeToString(randomBytes))
}

// NATSService consumes prediction requests from a JetStream work queue.
type NATSService struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	predictor  *PredictionService
	cfg        *config.Config
	monitoring *MonitoringService
}

func NewNATSService(cfg *config.Config, predictor *PredictionService, metrics *Metrics) (*NATSService, error) {
	conn, err := nats.Connect(cfg.NATS.URL, nats.Name("railqr"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &NATSService{
		conn:       conn,
		js:         js,
		predictor:  predictor,
		cfg:        cfg,
		monitoring: NewMonitoringService(conn, cfg, metrics),
	}, nil
}

// Start runs the workers and blocks until ctx is cancelled.
func (s *NATSService) Start(ctx context.Context) error {
	if err := s.ensureStream(); err != nil {
		return fmt.Errorf("failed to ensure stream: %w", err)
	}

	consumer, err := s.createConsumer()
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	slog.Info("NATS service starting",
		"stream", s.cfg.NATS.Stream,
		"subject", s.cfg.NATS.Subject,
		"consumer", s.cfg.NATS.Durable,
		"concurrency", s.cfg.NATS.Concurrency)

	go s.monitoring.Start(ctx)

	for i := 0; i < s.cfg.NATS.Concurrency; i++ {
		go s.worker(ctx, consumer, generateWorkerID())
	}

	<-ctx.Done()
	slog.Info("NATS service shutting down")
	return nil
}

func (s *NATSService) ensureStream() error {
	streamInfo, err := s.js.StreamInfo(s.cfg.NATS.Stream)
	if err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return fmt.Errorf("failed to get stream info: %w", err)
		}
		_, err = s.js.AddStream(&nats.StreamConfig{
			Name:      s.cfg.NATS.Stream,
			Subjects:  []string{s.cfg.NATS.Subject},
			MaxMsgs:   int64(s.cfg.NATS.MaxMsgs),
			MaxAge:    s.cfg.NATS.MaxAge,
			Storage:   nats.FileStorage,
			Retention: nats.WorkQueuePolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		slog.Info("Created NATS stream", "name", s.cfg.NATS.Stream)
		return nil
	}

	for _, subject := range streamInfo.Config.Subjects {
		if subject == s.cfg.NATS.Subject {
			slog.Info("NATS stream already exists", "name", s.cfg.NATS.Stream, "messages", streamInfo.State.Msgs)
			return nil
		}
	}

	newConfig := streamInfo.Config
	newConfig.Subjects = append(newConfig.Subjects, s.cfg.NATS.Subject)
	if _, err := s.js.UpdateStream(&newConfig); err != nil {
		return fmt.Errorf("failed to update stream with new subject: %w", err)
	}
	slog.Info("Updated NATS stream with new subject", "name", s.cfg.NATS.Stream, "subject", s.cfg.NATS.Subject)
	return nil
}

func (s *NATSService) createConsumer() (*nats.Subscription, error) {
	opts := []nats.SubOpt{nats.ManualAck()}
	if s.cfg.NATS.AckWait > 0 {
		opts = append(opts, nats.AckWait(s.cfg.NATS.AckWait))
	}
	sub, err := s.js.PullSubscribe(s.cfg.NATS.Subject, s.cfg.NATS.Durable, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pull consumer: %w", err)
	}

	slog.Info("Created NATS consumer", "durable", s.cfg.NATS.Durable)
	return sub, nil
}

func (s *NATSService) worker(ctx context.Context, consumer *nats.Subscription, workerID string) {
	slog.Info("NATS worker starting", "worker_id", workerID)

	for {
		select {
		case <-ctx.Done():
			slog.Info("NATS worker shutting down", "worker_id", workerID)
			return
		default:
			msgs, err := consumer.Fetch(1, nats.MaxWait(time.Second))
			if err != nil {
				if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				slog.Error("Failed to fetch messages", "worker_id", workerID, "error", err)
				time.Sleep(time.Second)
				continue
			}

			for _, msg := range msgs {
				s.monitoring.IncrementPending()
				s.processMessage(ctx, msg, workerID)
				s.monitoring.DecrementPending()
			}
		}
	}
}

func (s *NATSService) processMessage(ctx context.Context, msg *nats.Msg, workerID string) {
	s.monitoring.IncrementActive()
	defer s.monitoring.DecrementActive()

	req, err := decodePredictionRequest(msg.Data, msg.Subject)
	if err != nil {
		slog.Error("Failed to parse prediction request",
			"worker_id", workerID,
			"subject", msg.Subject,
			"error", err,
			"data", string(msg.Data))
		// A malformed payload never becomes valid on redelivery.
		msg.Term()
		return
	}

	slog.Debug("Processing NATS prediction request",
		"worker_id", workerID,
		"req_id", req.ReqID,
		"kind", req.Kind,
		"subject", msg.Subject)

	response := s.predictor.Predict(ctx, req, "nats."+msg.Subject, req.ReplyTo, workerID)

	responseData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal response",
			"worker_id", workerID,
			"req_id", response.ReqID,
			"error", err)
		msg.Nak()
		return
	}

	if req.ReplyTo != "" {
		if err := s.conn.Publish(req.ReplyTo, responseData); err != nil {
			slog.Error("Failed to publish response",
				"worker_id", workerID,
				"req_id", response.ReqID,
				"reply_subject", req.ReplyTo,
				"error", err)
		}
	}

	if err := msg.Ack(); err != nil {
		slog.Error("Failed to acknowledge message",
			"worker_id", workerID,
			"req_id", response.ReqID,
			"error", err)
	}

	slog.Info("NATS prediction completed",
		"worker_id", workerID,
		"req_id", response.ReqID,
		"kind", response.Kind,
		"source", response.Source,
		"duration_ms", response.DurationMs)
}

// decodePredictionRequest reads a work-queue payload. The kind may be given
// in the payload or as the last token of the subject (rail.predict.<kind>).
func decodePredictionRequest(data []byte, subject string) (PredictionRequest, error) {
	var req PredictionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return PredictionRequest{}, err
	}
	if req.Kind == "" {
		if i := strings.LastIndexByte(subject, '.'); i >= 0 {
			req.Kind = subject[i+1:]
		}
	}
	if req.Kind == "" {
		return PredictionRequest{}, fmt.Errorf("no prediction kind in payload or subject %q", subject)
	}
	return req, nil
}

func (s *NATSService) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

func (s *NATSService) GetConnection() *nats.Conn {
	return s.conn
}

func (s *NATSService) GetMonitoringService() *MonitoringService {
	return s.monitoring
}

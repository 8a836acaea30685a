package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
)

// PredictionClient provides a client interface for the prediction service
type PredictionClient interface {
	Predict(ctx context.Context, kind string, params map[string]any) (*PredictionResponse, error)
	Close() error
}

// NATSPredictionClient submits predictions to the JetStream work queue
// and waits for the reply on a private subject.
type NATSPredictionClient struct {
	conn          *nats.Conn
	clientID      string
	subjectPrefix string
	healthSubject string
	timeout       time.Duration
}

// NewNATSClient creates a new NATS-based prediction client
func NewNATSClient(natsURL, clientID string) (*NATSPredictionClient, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	if clientID == "" {
		clientID = "railqr-client"
	}

	return &NATSPredictionClient{
		conn:          conn,
		clientID:      clientID,
		subjectPrefix: "rail.predict",
		healthSubject: "railqr.health",
		timeout:       30 * time.Second,
	}, nil
}

// SetTimeout changes how long Predict waits for a reply.
func (c *NATSPredictionClient) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Predict publishes to rail.predict.<kind> and waits for the response.
func (c *NATSPredictionClient) Predict(ctx context.Context, kind string, params map[string]any) (*PredictionResponse, error) {
	topic := fmt.Sprintf("%s.%s", c.subjectPrefix, kind)

	reqID := ulid.Make().String()
	replySubject := fmt.Sprintf("rail.response.%s.%s", c.clientID, reqID)

	request := PredictionRequest{
		ReqID:   reqID,
		Kind:    kind,
		Params:  params,
		ReplyTo: replySubject,
	}

	requestBytes, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Subscribe before publishing so the reply cannot be missed.
	replyChan := make(chan *nats.Msg, 1)
	sub, err := c.conn.Subscribe(replySubject, func(msg *nats.Msg) {
		replyChan <- msg
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to reply: %w", err)
	}
	defer sub.Unsubscribe()

	if err := c.conn.Publish(topic, requestBytes); err != nil {
		return nil, fmt.Errorf("failed to publish request: %w", err)
	}

	slog.Debug("Published prediction request", "topic", topic, "req_id", reqID, "reply_subject", replySubject)

	select {
	case msg := <-replyChan:
		var response PredictionResponse
		if err := json.Unmarshal(msg.Data, &response); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		return &response, nil

	case <-time.After(c.timeout):
		return nil, fmt.Errorf("request timeout after %v", c.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CheckHealth asks a running instance for its status.
func (c *NATSPredictionClient) CheckHealth(ctx context.Context) (*HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	msg, err := c.conn.RequestWithContext(ctx, c.healthSubject, nil)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	var health HealthStatus
	if err := json.Unmarshal(msg.Data, &health); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}
	return &health, nil
}

func (c *NATSPredictionClient) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}

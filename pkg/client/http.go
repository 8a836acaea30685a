package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	_ PredictionClient = (*HTTPPredictionClient)(nil)
	_ PredictionClient = (*NATSPredictionClient)(nil)
)

type route struct {
	method string
	path   string
}

var httpRoutes = map[string]route{
	KindDefectPredict:      {http.MethodPost, "/ml/predict"},
	KindLifetimePredict:    {http.MethodPost, "/ml/lifetime-predict"},
	KindVendorRecommend:    {http.MethodPost, "/vendor/recommend"},
	KindFleetVendorSummary: {http.MethodGet, "/vendor/all"},
	KindFailureAnalysis:    {http.MethodGet, "/ml/failure-analysis"},
}

// HTTPPredictionClient calls the REST endpoints. Transport errors and 5xx
// answers are retried with exponential backoff.
type HTTPPredictionClient struct {
	baseURL    string
	httpClient *http.Client
	maxElapsed time.Duration
}

func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPPredictionClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPPredictionClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		maxElapsed: 30 * time.Second,
	}
}

func (c *HTTPPredictionClient) Predict(ctx context.Context, kind string, params map[string]any) (*PredictionResponse, error) {
	rt, ok := httpRoutes[kind]
	if !ok {
		return nil, fmt.Errorf("unknown prediction kind %q", kind)
	}

	var response *PredictionResponse
	op := func() error {
		req, err := c.newRequest(ctx, rt, params)
		if err != nil {
			return backoff.Permanent(err)
		}
		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("server error %d: %s", resp.StatusCode, body)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("request rejected with status %d: %s", resp.StatusCode, body))
		}

		source := resp.Header.Get("X-Prediction-Source")
		if source == "" {
			source = "engine"
		}
		response = &PredictionResponse{
			ReqID:      resp.Header.Get("X-Request-ID"),
			Kind:       kind,
			Source:     source,
			DurationMs: time.Since(start).Milliseconds(),
			Result:     json.RawMessage(body),
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.maxElapsed
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return response, nil
}

func (c *HTTPPredictionClient) newRequest(ctx context.Context, rt route, params map[string]any) (*http.Request, error) {
	target := c.baseURL + rt.path
	if rt.method == http.MethodGet {
		if len(params) > 0 {
			q := url.Values{}
			for k, v := range params {
				q.Set(k, fmt.Sprint(v))
			}
			target += "?" + q.Encode()
		}
		return http.NewRequestWithContext(ctx, rt.method, target, nil)
	}

	if params == nil {
		params = map[string]any{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, rt.method, target, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *HTTPPredictionClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

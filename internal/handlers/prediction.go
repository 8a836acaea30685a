package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/railqr/railqr-service/internal/prediction"
	"github.com/railqr/railqr-service/internal/services"
)

// predictionRoute binds one HTTP endpoint to a prediction kind.
type predictionRoute struct {
	method string
	path   string
	kind   prediction.Kind
}

var predictionRoutes = []predictionRoute{
	{http.MethodPost, "/ml/predict", prediction.KindDefectPredict},
	{http.MethodPost, "/ml/lifetime-predict", prediction.KindLifetimePredict},
	{http.MethodPost, "/vendor/recommend", prediction.KindVendorRecommend},
	{http.MethodGet, "/vendor/all", prediction.KindFleetVendorSummary},
	{http.MethodGet, "/ml/failure-analysis", prediction.KindFailureAnalysis},
}

type PredictionHandler struct {
	predictionService *services.PredictionService
}

func NewPredictionHandler(predictionService *services.PredictionService) *PredictionHandler {
	return &PredictionHandler{
		predictionService: predictionService,
	}
}

func (h *PredictionHandler) RegisterRoutes(r gin.IRouter) {
	for _, route := range predictionRoutes {
		r.Handle(route.method, route.path, h.handlePredict(route.kind))
	}
	r.GET("/predictions/logs", h.handleLogs)
}

// handlePredict answers 200 with the engine document or its fallback.
// Only an unreadable request body is rejected.
func (h *PredictionHandler) handlePredict(kind prediction.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		params, err := requestParams(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}

		req := services.PredictionRequest{
			ReqID:  c.GetHeader("X-Request-ID"),
			Kind:   string(kind),
			Params: params,
		}
		response := h.predictionService.Predict(c.Request.Context(), req, "http:"+c.FullPath(), "direct", "http-worker")

		c.Header("X-Request-ID", response.ReqID)
		c.Header("X-Prediction-Source", response.Source)
		c.Data(http.StatusOK, "application/json", response.Result)
	}
}

// requestParams merges query parameters with a JSON object body; body keys
// win.
func requestParams(c *gin.Context) (map[string]any, error) {
	params := map[string]any{}
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	if c.Request.Body == nil {
		return params, nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return params, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		params[k] = v
	}
	return params, nil
}

func (h *PredictionHandler) handleLogs(c *gin.Context) {
	limit := 50
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	logs, err := h.predictionService.GetPredictionLogs(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get logs: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, logs)
}

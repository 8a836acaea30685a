package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/railqr/railqr-service/internal/services"
)

type AlertHandler struct {
	alertService *services.AlertService
	authService  *services.AuthService
}

func NewAlertHandler(alertService *services.AlertService, authService *services.AuthService) *AlertHandler {
	return &AlertHandler{
		alertService: alertService,
		authService:  authService,
	}
}

func (h *AlertHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/send-alert", h.handleSendAlert)
	r.POST("/auth/inspector", h.handleInspectorAuth)
}

func (h *AlertHandler) handleSendAlert(c *gin.Context) {
	var req services.AlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid JSON"})
		return
	}

	res, err := h.alertService.Send(req)
	switch {
	case errors.Is(err, services.ErrInvalidAlert):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid alert type"})
	case err != nil:
		slog.Error("Alert delivery failed", "type", req.AlertType, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to send " + string(req.AlertType) + " alert"})
	default:
		c.JSON(http.StatusOK, res)
	}
}

func (h *AlertHandler) handleInspectorAuth(c *gin.Context) {
	var body struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	err := h.authService.VerifyInspector(body.Password)
	switch {
	case errors.Is(err, services.ErrAuthNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Inspector authentication is not configured"})
	case err != nil:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect password"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Authentication successful"})
	}
}

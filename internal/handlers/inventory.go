package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/railqr/railqr-service/internal/models"
	"github.com/railqr/railqr-service/internal/repository"
	"github.com/railqr/railqr-service/internal/services"
)

type InventoryHandler struct {
	inventoryService *services.InventoryService
}

func NewInventoryHandler(inventoryService *services.InventoryService) *InventoryHandler {
	return &InventoryHandler{
		inventoryService: inventoryService,
	}
}

func (h *InventoryHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/inventory", h.handleList)
	r.GET("/inventory/stats", h.handleStats)
	r.GET("/inventory/:id", h.handleGet)
	r.POST("/inventory", h.handleCreate)
	r.PUT("/inventory/:id", h.handleUpdate)
	r.DELETE("/inventory/:id", h.handleDelete)
	r.GET("/analytics", h.handleAnalytics)
	r.GET("/events", h.handleEvents)
}

func (h *InventoryHandler) handleList(c *gin.Context) {
	items, err := h.inventoryService.List(c.Request.Context())
	if err != nil {
		storeError(c, "list inventory", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *InventoryHandler) handleStats(c *gin.Context) {
	stats, err := h.inventoryService.Stats(c.Request.Context())
	if err != nil {
		storeError(c, "inventory stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *InventoryHandler) handleGet(c *gin.Context) {
	item, err := h.inventoryService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		storeError(c, "get inventory item", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *InventoryHandler) handleCreate(c *gin.Context) {
	var req models.CreateInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.inventoryService.Create(c.Request.Context(), req)
	if err != nil {
		storeError(c, "create inventory item", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Item added successfully", "id": item.ID})
}

func (h *InventoryHandler) handleUpdate(c *gin.Context) {
	var req models.InspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.inventoryService.UpdateInspection(c.Request.Context(), c.Param("id"), req.Inspection()); err != nil {
		storeError(c, "update inspection", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Inspection details updated successfully"})
}

func (h *InventoryHandler) handleDelete(c *gin.Context) {
	if err := h.inventoryService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		storeError(c, "delete inventory item", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item deleted successfully"})
}

func (h *InventoryHandler) handleAnalytics(c *gin.Context) {
	rows, err := h.inventoryService.Analytics(c.Request.Context())
	if err != nil {
		storeError(c, "analytics", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *InventoryHandler) handleEvents(c *gin.Context) {
	limit := 50
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		limit = n
	}
	events, err := h.inventoryService.Events(c.Request.Context(), limit)
	if err != nil {
		storeError(c, "events", err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func storeError(c *gin.Context, op string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		return
	}
	slog.Error("Store operation failed", "op", op, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
}

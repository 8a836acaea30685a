package repository

import (
	"context"
	"errors"
	"time"

	"github.com/railqr/railqr-service/internal/models"
)

var (
	// ErrNotFound is returned when an inventory item does not exist.
	ErrNotFound = errors.New("inventory item not found")
	// ErrUnsupportedDriver is returned by Open for an unknown backend.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// Repository aggregates all repository interfaces
type Repository interface {
	Inventory() InventoryRepository
	Analytics() AnalyticsRepository
	Prediction() PredictionRepository
	Event() EventRepository
}

// InventoryRepository defines inventory record storage operations
type InventoryRepository interface {
	Create(ctx context.Context, item *models.InventoryItem) (string, error)
	Get(ctx context.Context, id string) (*models.InventoryItem, error)
	UpdateInspection(ctx context.Context, id string, in models.Inspection) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.InventoryItem, error)
	Stats(ctx context.Context, now time.Time) (*models.InventoryStats, error)
}

// AnalyticsRepository defines the per-item-type aggregate view
type AnalyticsRepository interface {
	Analytics(ctx context.Context, now time.Time) ([]models.AnalyticsRow, error)
}

// InventoryStore is implemented by every inventory backend.
type InventoryStore interface {
	InventoryRepository
	AnalyticsRepository
	Close() error
}

// PredictionRepository defines prediction audit logging operations
type PredictionRepository interface {
	LogPrediction(ctx context.Context, log *models.PredictionLog) error
	GetPredictionLogs(ctx context.Context, limit int) ([]*models.PredictionLog, error)
}

// EventRepository defines event logging operations
type EventRepository interface {
	LogEvent(ctx context.Context, level, code, msg string, meta map[string]any) error
	GetEvents(ctx context.Context, limit int) ([]*models.Event, error)
}

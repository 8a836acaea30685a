package repository

import (
	"context"

	"github.com/railqr/railqr-service/internal/models"
	"github.com/railqr/railqr-service/internal/store"
)

// AuditedRepository implements Repository on top of an inventory backend
// and the local SQLite audit database.
type AuditedRepository struct {
	inventory      InventoryStore
	predictionRepo PredictionRepository
	eventRepo      EventRepository
}

func NewRepository(inventory InventoryStore, audit *store.DB) Repository {
	return &AuditedRepository{
		inventory:      inventory,
		predictionRepo: &SQLitePredictionRepository{db: audit},
		eventRepo:      &SQLiteEventRepository{db: audit},
	}
}

func (r *AuditedRepository) Inventory() InventoryRepository {
	return r.inventory
}

func (r *AuditedRepository) Analytics() AnalyticsRepository {
	return r.inventory
}

func (r *AuditedRepository) Prediction() PredictionRepository {
	return r.predictionRepo
}

func (r *AuditedRepository) Event() EventRepository {
	return r.eventRepo
}

// SQLitePredictionRepository handles prediction logging
type SQLitePredictionRepository struct {
	db *store.DB
}

func (r *SQLitePredictionRepository) LogPrediction(ctx context.Context, log *models.PredictionLog) error {
	return r.db.Prediction(ctx, log)
}

func (r *SQLitePredictionRepository) GetPredictionLogs(ctx context.Context, limit int) ([]*models.PredictionLog, error) {
	return r.db.Predictions(ctx, limit)
}

// SQLiteEventRepository handles event logging
type SQLiteEventRepository struct {
	db *store.DB
}

func (r *SQLiteEventRepository) LogEvent(ctx context.Context, level, code, msg string, meta map[string]any) error {
	r.db.Event(level, code, msg, meta)
	return nil
}

func (r *SQLiteEventRepository) GetEvents(ctx context.Context, limit int) ([]*models.Event, error) {
	return r.db.Events(ctx, limit)
}

package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/railqr/railqr-service/internal/models"
	"github.com/railqr/railqr-service/internal/repository"
)

// InventoryService records inventory changes in the event log on top of
// the configured inventory backend.
type InventoryService struct {
	repo repository.Repository
	now  func() time.Time
}

func NewInventoryService(repo repository.Repository) *InventoryService {
	return &InventoryService{repo: repo, now: time.Now}
}

func (s *InventoryService) Create(ctx context.Context, req models.CreateInventoryRequest) (*models.InventoryItem, error) {
	item := req.Item(s.now())
	id, err := s.repo.Inventory().Create(ctx, item)
	if err != nil {
		return nil, err
	}
	item.ID = id
	s.event(ctx, "info", "inventory_created", "inventory item created", map[string]any{
		"id":        id,
		"item_type": item.ItemType,
		"vendor_id": item.VendorID,
	})
	return item, nil
}

func (s *InventoryService) List(ctx context.Context) ([]*models.InventoryItem, error) {
	return s.repo.Inventory().List(ctx)
}

func (s *InventoryService) Get(ctx context.Context, id string) (*models.InventoryItem, error) {
	return s.repo.Inventory().Get(ctx, id)
}

func (s *InventoryService) UpdateInspection(ctx context.Context, id string, in models.Inspection) error {
	in = in.Normalize()
	if err := s.repo.Inventory().UpdateInspection(ctx, id, in); err != nil {
		return err
	}
	s.event(ctx, "info", "inspection_updated", "inspection details updated", map[string]any{
		"id":             id,
		"inspector_code": in.InspectorCode,
		"defect_type":    in.DefectType,
	})
	return nil
}

func (s *InventoryService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Inventory().Delete(ctx, id); err != nil {
		return err
	}
	s.event(ctx, "info", "inventory_deleted", "inventory item deleted", map[string]any{"id": id})
	return nil
}

func (s *InventoryService) Stats(ctx context.Context) (*models.InventoryStats, error) {
	return s.repo.Inventory().Stats(ctx, s.now())
}

func (s *InventoryService) Analytics(ctx context.Context) ([]models.AnalyticsRow, error) {
	return s.repo.Analytics().Analytics(ctx, s.now())
}

func (s *InventoryService) Events(ctx context.Context, limit int) ([]*models.Event, error) {
	return s.repo.Event().GetEvents(ctx, limit)
}

func (s *InventoryService) event(ctx context.Context, level, code, msg string, meta map[string]any) {
	if err := s.repo.Event().LogEvent(ctx, level, code, msg, meta); err != nil {
		slog.Warn("Failed to log event", "code", code, "error", err)
	}
}

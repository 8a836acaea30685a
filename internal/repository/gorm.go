package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/railqr/railqr-service/internal/models"
)

var _ InventoryStore = (*GormInventoryStore)(nil)

const InventoryTableName = "inventory"

// InventoryRecord is the gorm mapping of an inventory item.
type InventoryRecord struct {
	ID              uint64  `gorm:"primaryKey;autoIncrement"`
	Vendor          string  `gorm:"size:255;not null"`
	VendorID        string  `gorm:"size:64;not null"`
	LotNumber       string  `gorm:"size:64;not null"`
	ItemType        string  `gorm:"size:32;not null;index"`
	ItemMaterial    string  `gorm:"size:128;not null"`
	ManufactureDate string  `gorm:"size:10;not null"`
	InstallDate     *string `gorm:"size:10"`
	WarrantyPeriod  string  `gorm:"size:16;not null"`
	RailPoleNumber  string  `gorm:"size:64;not null;default:''"`
	InspectorCode   string  `gorm:"size:64;not null;default:''"`
	InspectionDate  *string `gorm:"size:10"`
	DefectType      string  `gorm:"size:128;not null;default:''"`
	CreatedAt       time.Time
}

func (InventoryRecord) TableName() string {
	return InventoryTableName
}

func (r *InventoryRecord) item() *models.InventoryItem {
	return &models.InventoryItem{
		ID:              strconv.FormatUint(r.ID, 10),
		Vendor:          r.Vendor,
		VendorID:        r.VendorID,
		LotNumber:       r.LotNumber,
		ItemType:        r.ItemType,
		ItemMaterial:    r.ItemMaterial,
		ManufactureDate: r.ManufactureDate,
		InstallDate:     r.InstallDate,
		WarrantyPeriod:  r.WarrantyPeriod,
		RailPoleNumber:  r.RailPoleNumber,
		InspectorCode:   r.InspectorCode,
		InspectionDate:  r.InspectionDate,
		DefectType:      r.DefectType,
		CreatedAt:       r.CreatedAt,
	}
}

// GormInventoryStore keeps inventory in MySQL through gorm.
type GormInventoryStore struct {
	db *gorm.DB
}

// OpenGorm opens a MySQL inventory store. The DSN must carry
// parseTime=true so created_at scans into time.Time.
func OpenGorm(ctx context.Context, opts Options) (*GormInventoryStore, error) {
	db, err := gorm.Open(mysql.Open(opts.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := waitFor(ctx, opts.Driver, opts.ConnectTimeout, sqlDB.PingContext); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	s, err := NewGormInventoryStore(ctx, db)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// NewGormInventoryStore migrates the inventory table on db.
func NewGormInventoryStore(ctx context.Context, db *gorm.DB) (*GormInventoryStore, error) {
	if err := db.WithContext(ctx).AutoMigrate(&InventoryRecord{}); err != nil {
		return nil, fmt.Errorf("migrate inventory table: %w", err)
	}
	return &GormInventoryStore{db: db}, nil
}

func (s *GormInventoryStore) Create(ctx context.Context, item *models.InventoryItem) (string, error) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	rec := newInventoryRecord(item)
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return "", err
	}
	item.ID = strconv.FormatUint(rec.ID, 10)
	return item.ID, nil
}

func newInventoryRecord(item *models.InventoryItem) *InventoryRecord {
	return &InventoryRecord{
		Vendor:          item.Vendor,
		VendorID:        item.VendorID,
		LotNumber:       item.LotNumber,
		ItemType:        item.ItemType,
		ItemMaterial:    item.ItemMaterial,
		ManufactureDate: item.ManufactureDate,
		InstallDate:     item.InstallDate,
		WarrantyPeriod:  item.WarrantyPeriod,
		RailPoleNumber:  item.RailPoleNumber,
		InspectorCode:   item.InspectorCode,
		InspectionDate:  item.InspectionDate,
		DefectType:      item.DefectType,
		CreatedAt:       item.CreatedAt,
	}
}

func (s *GormInventoryStore) Get(ctx context.Context, id string) (*models.InventoryItem, error) {
	rec, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.item(), nil
}

func (s *GormInventoryStore) UpdateInspection(ctx context.Context, id string, in models.Inspection) error {
	rec, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	// MySQL reports zero affected rows when values are unchanged, so
	// existence is checked by find above.
	return s.db.WithContext(ctx).Model(rec).
		Where("id = ?", rec.ID).
		UpdateColumns(map[string]interface{}{
			"inspection_date": in.InspectionDate,
			"inspector_code":  in.InspectorCode,
			"defect_type":     in.DefectType,
		}).Error
}

func (s *GormInventoryStore) Delete(ctx context.Context, id string) error {
	n, err := recordID(id)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Delete(&InventoryRecord{}, n)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormInventoryStore) List(ctx context.Context) ([]*models.InventoryItem, error) {
	var recs []InventoryRecord
	if err := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	items := make([]*models.InventoryItem, 0, len(recs))
	for i := range recs {
		items = append(items, recs[i].item())
	}
	return items, nil
}

func (s *GormInventoryStore) Stats(ctx context.Context, now time.Time) (*models.InventoryStats, error) {
	db := s.db.WithContext(ctx).Model(&InventoryRecord{})
	stats := new(models.InventoryStats)

	var total, defective, pending int64
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("defect_type <> ?", "").Count(&defective).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("inspection_date IS NULL").Count(&pending).Error; err != nil {
		return nil, err
	}

	byType := []models.TypeCount{}
	if err := db.Session(&gorm.Session{}).
		Select("item_type, COUNT(*) AS count").
		Group("item_type").
		Scan(&byType).Error; err != nil {
		return nil, err
	}
	models.SortTypeCounts(byType)

	items, err := s.summaries(ctx)
	if err != nil {
		return nil, err
	}

	stats.Total = int(total)
	stats.Defective = int(defective)
	stats.PendingInspection = int(pending)
	stats.ByType = byType
	stats.WarrantyExpired = models.CountWarrantyExpired(items, now)
	return stats, nil
}

func (s *GormInventoryStore) Analytics(ctx context.Context, now time.Time) ([]models.AnalyticsRow, error) {
	items, err := s.summaries(ctx)
	if err != nil {
		return nil, err
	}
	return models.BuildAnalytics(items, now), nil
}

func (s *GormInventoryStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// recordID maps an id that cannot name a row to ErrNotFound.
func recordID(id string) (uint64, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

func (s *GormInventoryStore) find(ctx context.Context, id string) (*InventoryRecord, error) {
	n, err := recordID(id)
	if err != nil {
		return nil, err
	}
	var rec InventoryRecord
	if err := s.db.WithContext(ctx).Where("id = ?", n).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *GormInventoryStore) summaries(ctx context.Context) ([]models.ItemSummary, error) {
	items := []models.ItemSummary{}
	err := s.db.WithContext(ctx).Model(&InventoryRecord{}).
		Select("item_type, defect_type, inspection_date, manufacture_date, warranty_period").
		Scan(&items).Error
	return items, err
}

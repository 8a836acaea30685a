package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/errgroup"

	"github.com/railqr/railqr-service/internal/models"
)

var _ InventoryStore = (*SQLInventoryStore)(nil)

// SQLInventoryStore keeps inventory in SQLite or PostgreSQL.
type SQLInventoryStore struct {
	db      *sqlx.DB
	builder squirrel.StatementBuilderType
}

// OpenSQL opens a sqlite3 or postgres inventory store.
func OpenSQL(ctx context.Context, opts Options) (*SQLInventoryStore, error) {
	db, err := sqlx.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}
	if err := waitFor(ctx, opts.Driver, opts.ConnectTimeout, db.PingContext); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", opts.Driver, err)
	}
	s, err := NewSQLInventoryStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLInventoryStore creates the schema on db and returns the store.
func NewSQLInventoryStore(ctx context.Context, db *sqlx.DB) (*SQLInventoryStore, error) {
	s := &SQLInventoryStore{db: db}
	schema := inventorySchemaSQLite
	switch db.DriverName() {
	case "postgres":
		s.builder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
		schema = inventorySchemaPostgres
	default:
		s.builder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create inventory table: %w", err)
	}
	return s, nil
}

func (s *SQLInventoryStore) Create(ctx context.Context, item *models.InventoryItem) (string, error) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	stmt := s.builder.Insert("inventory").
		Columns(inventoryWriteColumns...).
		Values(
			item.Vendor, item.VendorID, item.LotNumber, item.ItemType, item.ItemMaterial,
			item.ManufactureDate, item.InstallDate, item.WarrantyPeriod, item.RailPoleNumber,
			item.InspectorCode, item.InspectionDate, item.DefectType, item.CreatedAt,
		)

	var id int64
	if s.db.DriverName() == "postgres" {
		query, args, err := stmt.Suffix("RETURNING id").ToSql()
		if err != nil {
			return "", err
		}
		if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
			return "", err
		}
	} else {
		query, args, err := stmt.ToSql()
		if err != nil {
			return "", err
		}
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return "", err
		}
		if id, err = res.LastInsertId(); err != nil {
			return "", err
		}
	}

	item.ID = strconv.FormatInt(id, 10)
	return item.ID, nil
}

func (s *SQLInventoryStore) Get(ctx context.Context, id string) (*models.InventoryItem, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, ErrNotFound
	}
	query, args, err := s.selectItems().Where(squirrel.Eq{"id": n}).ToSql()
	if err != nil {
		return nil, err
	}
	dst := new(models.InventoryItem)
	if err := s.db.GetContext(ctx, dst, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return dst, nil
}

func (s *SQLInventoryStore) UpdateInspection(ctx context.Context, id string, in models.Inspection) error {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return ErrNotFound
	}
	query, args, err := s.builder.Update("inventory").
		Set("inspection_date", in.InspectionDate).
		Set("inspector_code", in.InspectorCode).
		Set("defect_type", in.DefectType).
		Where(squirrel.Eq{"id": n}).
		ToSql()
	if err != nil {
		return err
	}
	return s.execAffecting(ctx, query, args...)
}

func (s *SQLInventoryStore) Delete(ctx context.Context, id string) error {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return ErrNotFound
	}
	query, args, err := s.builder.Delete("inventory").Where(squirrel.Eq{"id": n}).ToSql()
	if err != nil {
		return err
	}
	return s.execAffecting(ctx, query, args...)
}

func (s *SQLInventoryStore) List(ctx context.Context) ([]*models.InventoryItem, error) {
	query, args, err := s.selectItems().OrderBy("created_at DESC", "id DESC").ToSql()
	if err != nil {
		return nil, err
	}
	dst := []*models.InventoryItem{}
	err = s.db.SelectContext(ctx, &dst, query, args...)
	return dst, err
}

// Stats runs the aggregate queries concurrently.
func (s *SQLInventoryStore) Stats(ctx context.Context, now time.Time) (*models.InventoryStats, error) {
	stats := new(models.InventoryStats)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.count(gctx, &stats.Total, nil)
	})
	g.Go(func() error {
		return s.count(gctx, &stats.Defective, squirrel.NotEq{"defect_type": ""})
	})
	g.Go(func() error {
		return s.count(gctx, &stats.PendingInspection, squirrel.Eq{"inspection_date": nil})
	})
	g.Go(func() error {
		query, args, err := s.builder.Select("item_type", "COUNT(*) AS count").
			From("inventory").
			GroupBy("item_type").
			ToSql()
		if err != nil {
			return err
		}
		byType := []models.TypeCount{}
		if err := s.db.SelectContext(gctx, &byType, query, args...); err != nil {
			return err
		}
		models.SortTypeCounts(byType)
		stats.ByType = byType
		return nil
	})
	g.Go(func() error {
		items, err := s.summaries(gctx)
		if err != nil {
			return err
		}
		stats.WarrantyExpired = models.CountWarrantyExpired(items, now)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *SQLInventoryStore) Analytics(ctx context.Context, now time.Time) ([]models.AnalyticsRow, error) {
	items, err := s.summaries(ctx)
	if err != nil {
		return nil, err
	}
	return models.BuildAnalytics(items, now), nil
}

func (s *SQLInventoryStore) Close() error {
	return s.db.Close()
}

func (s *SQLInventoryStore) selectItems() squirrel.SelectBuilder {
	return s.builder.Select("CAST(id AS TEXT) AS id").Columns(inventoryWriteColumns...).From("inventory")
}

func (s *SQLInventoryStore) summaries(ctx context.Context) ([]models.ItemSummary, error) {
	query, args, err := s.builder.
		Select("item_type", "defect_type", "inspection_date", "manufacture_date", "warranty_period").
		From("inventory").
		ToSql()
	if err != nil {
		return nil, err
	}
	items := []models.ItemSummary{}
	err = s.db.SelectContext(ctx, &items, query, args...)
	return items, err
}

func (s *SQLInventoryStore) count(ctx context.Context, dst *int, where squirrel.Sqlizer) error {
	stmt := s.builder.Select("COUNT(*)").From("inventory")
	if where != nil {
		stmt = stmt.Where(where)
	}
	query, args, err := stmt.ToSql()
	if err != nil {
		return err
	}
	return s.db.GetContext(ctx, dst, query, args...)
}

func (s *SQLInventoryStore) execAffecting(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var inventoryWriteColumns = []string{
	"vendor",
	"vendor_id",
	"lot_number",
	"item_type",
	"item_material",
	"manufacture_date",
	"install_date",
	"warranty_period",
	"rail_pole_number",
	"inspector_code",
	"inspection_date",
	"defect_type",
	"created_at",
}

const inventorySchemaSQLite = `
CREATE TABLE IF NOT EXISTS inventory (
 id               INTEGER PRIMARY KEY AUTOINCREMENT
,vendor           TEXT NOT NULL
,vendor_id        TEXT NOT NULL
,lot_number       TEXT NOT NULL
,item_type        TEXT NOT NULL
,item_material    TEXT NOT NULL
,manufacture_date TEXT NOT NULL
,install_date     TEXT
,warranty_period  TEXT NOT NULL
,rail_pole_number TEXT NOT NULL DEFAULT ''
,inspector_code   TEXT NOT NULL DEFAULT ''
,inspection_date  TEXT
,defect_type      TEXT NOT NULL DEFAULT ''
,created_at       TIMESTAMP NOT NULL
)`

const inventorySchemaPostgres = `
CREATE TABLE IF NOT EXISTS inventory (
 id               SERIAL PRIMARY KEY
,vendor           VARCHAR(255) NOT NULL
,vendor_id        VARCHAR(64) NOT NULL
,lot_number       VARCHAR(64) NOT NULL
,item_type        VARCHAR(32) NOT NULL
,item_material    VARCHAR(128) NOT NULL
,manufacture_date VARCHAR(10) NOT NULL
,install_date     VARCHAR(10)
,warranty_period  VARCHAR(16) NOT NULL
,rail_pole_number VARCHAR(64) NOT NULL DEFAULT ''
,inspector_code   VARCHAR(64) NOT NULL DEFAULT ''
,inspection_date  VARCHAR(10)
,defect_type      VARCHAR(128) NOT NULL DEFAULT ''
,created_at       TIMESTAMP NOT NULL
)`

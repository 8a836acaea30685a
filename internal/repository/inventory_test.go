package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railqr/railqr-service/internal/models"
	"github.com/railqr/railqr-service/internal/store"
)

func strPtr(s string) *string { return &s }

func sampleItem(itemType, made, warranty, defect string, inspected *string) *models.InventoryItem {
	return &models.InventoryItem{
		Vendor:          "Acme Rail",
		VendorID:        "V-100",
		LotNumber:       "L-1",
		ItemType:        itemType,
		ItemMaterial:    "Steel",
		ManufactureDate: made,
		InstallDate:     strPtr("2023-03-01"),
		WarrantyPeriod:  warranty,
		InspectionDate:  inspected,
		DefectType:      defect,
	}
}

func openSQLiteStore(t *testing.T) InventoryStore {
	t.Helper()
	s, err := Open(context.Background(), Options{
		Driver:         "sqlite3",
		DSN:            filepath.Join(t.TempDir(), "inventory.sqlite"),
		ConnectTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// runInventoryStoreSuite exercises the behaviour every backend must share.
func runInventoryStoreSuite(t *testing.T, s InventoryStore) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	id1, err := s.Create(ctx, sampleItem("Sleeper", "2010-01-01", "7 Years", "crack", nil))
	require.NoError(t, err)
	require.NotEmpty(t, id1)
	id2, err := s.Create(ctx, sampleItem("Sleeper", "2024-01-01", "7 Years", "", strPtr("2025-01-10")))
	require.NoError(t, err)
	_, err = s.Create(ctx, sampleItem("Liner", "2020-01-01", "2 Years", "", nil))
	require.NoError(t, err)

	t.Run("get", func(t *testing.T) {
		item, err := s.Get(ctx, id1)
		require.NoError(t, err)
		assert.Equal(t, id1, item.ID)
		assert.Equal(t, "crack", item.DefectType)
		assert.Nil(t, item.InspectionDate)
		require.NotNil(t, item.InstallDate)
		assert.Equal(t, "2023-03-01", *item.InstallDate)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := s.Get(ctx, "999999")
		assert.True(t, errors.Is(err, ErrNotFound))
		_, err = s.Get(ctx, "not-an-id")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("list", func(t *testing.T) {
		items, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, items, 3)
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := s.Stats(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, 1, stats.Defective)
		assert.Equal(t, 2, stats.PendingInspection)
		assert.Equal(t, 2, stats.WarrantyExpired)
		assert.Equal(t, []models.TypeCount{{ItemType: "Liner", Count: 1}, {ItemType: "Sleeper", Count: 2}}, stats.ByType)
	})

	t.Run("analytics", func(t *testing.T) {
		rows, err := s.Analytics(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, []models.AnalyticsRow{
			{ItemType: "Liner", TotalCount: 1, WarrantyExpiredCount: 1, PendingInspectionCount: 1},
			{ItemType: "Sleeper", TotalCount: 2, DefectiveCount: 1, WarrantyExpiredCount: 1, PendingInspectionCount: 1},
		}, rows)
	})

	t.Run("update inspection", func(t *testing.T) {
		err := s.UpdateInspection(ctx, id1, models.Inspection{
			InspectionDate: strPtr("2025-05-20"),
			InspectorCode:  "INS-7",
			DefectType:     "",
		})
		require.NoError(t, err)

		item, err := s.Get(ctx, id1)
		require.NoError(t, err)
		require.NotNil(t, item.InspectionDate)
		assert.Equal(t, "2025-05-20", *item.InspectionDate)
		assert.Equal(t, "INS-7", item.InspectorCode)
		assert.Equal(t, "Acme Rail", item.Vendor)

		err = s.UpdateInspection(ctx, id2, models.Inspection{})
		require.NoError(t, err)
		item, err = s.Get(ctx, id2)
		require.NoError(t, err)
		assert.Nil(t, item.InspectionDate)

		assert.True(t, errors.Is(s.UpdateInspection(ctx, "999999", models.Inspection{}), ErrNotFound))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, id2))
		_, err := s.Get(ctx, id2)
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.True(t, errors.Is(s.Delete(ctx, id2), ErrNotFound))
	})
}

func TestSQLiteInventoryStore(t *testing.T) {
	runInventoryStoreSuite(t, openSQLiteStore(t))
}

// The remaining backends need a live server and run only when a DSN is
// provided, e.g. RAILQR_TEST_POSTGRES_DSN=postgres://localhost/railqr_test?sslmode=disable
func TestExternalInventoryStores(t *testing.T) {
	backends := []struct {
		driver string
		env    string
	}{
		{"postgres", "RAILQR_TEST_POSTGRES_DSN"},
		{"mysql", "RAILQR_TEST_MYSQL_DSN"},
		{"mongodb", "RAILQR_TEST_MONGODB_URI"},
	}
	for _, b := range backends {
		t.Run(b.driver, func(t *testing.T) {
			dsn := os.Getenv(b.env)
			if dsn == "" {
				t.Skipf("%s not set; skipping", b.env)
			}
			s, err := Open(context.Background(), Options{
				Driver:         b.driver,
				DSN:            dsn,
				Database:       "railqr_test_" + time.Now().Format("20060102150405"),
				ConnectTimeout: 10 * time.Second,
			})
			require.NoError(t, err)
			defer s.Close()
			runInventoryStoreSuite(t, s)
		})
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "oracle"})
	assert.True(t, errors.Is(err, ErrUnsupportedDriver))
}

func TestAuditedRepository(t *testing.T) {
	audit, err := store.Open(filepath.Join(t.TempDir(), "audit.sqlite"))
	require.NoError(t, err)
	defer audit.Close()

	inv := openSQLiteStore(t)
	repo := NewRepository(inv, audit)
	ctx := context.Background()

	require.NoError(t, repo.Prediction().LogPrediction(ctx, &models.PredictionLog{
		Timestamp: time.Now(),
		ReqID:     "01HZX",
		Kind:      "failure_analysis",
		Outcome:   "fallback",
	}))
	logs, err := repo.Prediction().GetPredictionLogs(ctx, 5)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "01HZX", logs[0].ReqID)

	require.NoError(t, repo.Event().LogEvent(ctx, "info", "startup", "ok", nil))
	events, err := repo.Event().GetEvents(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = repo.Inventory().Create(ctx, sampleItem("Liner", "2024-01-01", "1 Year", "", nil))
	require.NoError(t, err)
	rows, err := repo.Analytics().Analytics(ctx, time.Now())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

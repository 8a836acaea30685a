package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestWarrantyExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		made   string
		period string
		want   bool
	}{
		{"2020-01-01", "5 Years", true},
		{"2020-06-02", "5 Years", false},
		{"2024-05-31", "1 Year", true},
		{"2024-06-02", "1 Year", false},
		{"2019-01-01T00:00:00Z", "2 Years", true},
		{"not a date", "2 Years", false},
		{"2001-01-01", "lifetime", false},
	}
	for _, tt := range tests {
		s := ItemSummary{ManufactureDate: tt.made, WarrantyPeriod: tt.period}
		assert.Equal(t, tt.want, s.WarrantyExpired(now), "%s + %s", tt.made, tt.period)
	}
}

func TestBuildAnalytics(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	items := []ItemSummary{
		{ItemType: "Sleeper", ManufactureDate: "2010-01-01", WarrantyPeriod: "7 Years", DefectType: "crack"},
		{ItemType: "Sleeper", ManufactureDate: "2024-01-01", WarrantyPeriod: "7 Years", InspectionDate: strPtr("2025-01-10")},
		{ItemType: "Liner", ManufactureDate: "2024-01-01", WarrantyPeriod: "2 Years", DefectType: " "},
	}

	rows := BuildAnalytics(items, now)
	assert.Equal(t, []AnalyticsRow{
		{ItemType: "Liner", TotalCount: 1, PendingInspectionCount: 1},
		{ItemType: "Sleeper", TotalCount: 2, DefectiveCount: 1, WarrantyExpiredCount: 1, PendingInspectionCount: 1},
	}, rows)
	assert.Equal(t, 1, CountWarrantyExpired(items, now))
}

func TestInventoryStatsJSON(t *testing.T) {
	stats := InventoryStats{
		Total:             3,
		ByType:            []TypeCount{{ItemType: "Liner", Count: 1}, {ItemType: "Sleeper", Count: 2}},
		Defective:         1,
		PendingInspection: 2,
	}
	b, err := json.Marshal(stats)
	assert.NoError(t, err)
	assert.JSONEq(t, `{
		"total": [{"count": 3}],
		"byType": [{"item_type": "Liner", "count": 1}, {"item_type": "Sleeper", "count": 2}],
		"defective": [{"count": 1}],
		"pendingInspection": [{"count": 2}],
		"warrantyExpired": [{"count": 0}]
	}`, string(b))

	empty, err := json.Marshal(InventoryStats{})
	assert.NoError(t, err)
	assert.Contains(t, string(empty), `"byType":[]`)
}

func TestCreateRequestItem(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.FixedZone("IST", 19800))
	req := CreateInventoryRequest{
		Vendor:          "Acme Rail",
		VendorID:        "V-100",
		LotNumber:       "L-7",
		ItemType:        "Rail Clips",
		ItemMaterial:    "Steel",
		ManufactureDate: "2024-02-01",
		InstallDate:     "",
		InspectionDate:  " ",
		WarrantyPeriod:  "2 Years",
	}
	item := req.Item(now)
	assert.Nil(t, item.InstallDate)
	assert.Nil(t, item.InspectionDate)
	assert.Equal(t, time.UTC, item.CreatedAt.Location())
}

func TestInspectionRequest(t *testing.T) {
	in := InspectionRequest{InspectionDate: "", InspectorCode: "INS-1", DefectType: "crack"}.Inspection()
	assert.Nil(t, in.InspectionDate)
	assert.Equal(t, "INS-1", in.InspectorCode)

	in = InspectionRequest{InspectionDate: "2025-02-03"}.Inspection()
	if assert.NotNil(t, in.InspectionDate) {
		assert.Equal(t, "2025-02-03", *in.InspectionDate)
	}

	assert.Nil(t, Inspection{InspectionDate: strPtr("  ")}.Normalize().InspectionDate)
	assert.Nil(t, Inspection{}.Normalize().InspectionDate)
}

func TestCountWarrantyExpiredBoundary(t *testing.T) {
	expiry := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	items := []ItemSummary{
		{ManufactureDate: "2020-03-01", WarrantyPeriod: "5 Years"},
		{ManufactureDate: "2024-03-01", WarrantyPeriod: "1 Year"},
	}

	assert.Equal(t, 0, CountWarrantyExpired(items, expiry.Add(-time.Nanosecond)))
	assert.Equal(t, 0, CountWarrantyExpired(items, expiry))
	assert.Equal(t, 2, CountWarrantyExpired(items, expiry.Add(time.Nanosecond)))
	assert.Zero(t, CountWarrantyExpired(nil, expiry))
}

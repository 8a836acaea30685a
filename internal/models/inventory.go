package models

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of every inventory date.
const DateLayout = "2006-01-02"

var (
	ItemTypes       = []string{"Rail Clips", "Rubber Pad", "Sleeper", "Liner"}
	WarrantyPeriods = []string{"1 Year", "2 Years", "5 Years", "7 Years"}
)

// InventoryItem is one tracked track component. Dates are kept as
// YYYY-MM-DD strings so every backend stores them identically.
type InventoryItem struct {
	ID              string    `json:"id" db:"id"`
	Vendor          string    `json:"vendor" db:"vendor"`
	VendorID        string    `json:"vendor_id" db:"vendor_id"`
	LotNumber       string    `json:"lot_number" db:"lot_number"`
	ItemType        string    `json:"item_type" db:"item_type"`
	ItemMaterial    string    `json:"item_material" db:"item_material"`
	ManufactureDate string    `json:"manufacture_date" db:"manufacture_date"`
	InstallDate     *string   `json:"install_date" db:"install_date"`
	WarrantyPeriod  string    `json:"warranty_period" db:"warranty_period"`
	RailPoleNumber  string    `json:"rail_pole_number" db:"rail_pole_number"`
	InspectorCode   string    `json:"inspector_code" db:"inspector_code"`
	InspectionDate  *string   `json:"inspection_date" db:"inspection_date"`
	DefectType      string    `json:"defect_type" db:"defect_type"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// CreateInventoryRequest is the validated body of POST /inventory.
type CreateInventoryRequest struct {
	Vendor          string  `json:"vendor" binding:"required"`
	VendorID        string  `json:"vendor_id" binding:"required"`
	LotNumber       string  `json:"lot_number" binding:"required"`
	ItemType        string  `json:"item_type" binding:"required,oneof='Rail Clips' 'Rubber Pad' Sleeper Liner"`
	ItemMaterial    string  `json:"item_material" binding:"required"`
	ManufactureDate string  `json:"manufacture_date" binding:"required,datetime=2006-01-02"`
	InstallDate     string  `json:"install_date" binding:"omitempty,datetime=2006-01-02"`
	WarrantyPeriod  string  `json:"warranty_period" binding:"required,oneof='1 Year' '2 Years' '5 Years' '7 Years'"`
	RailPoleNumber  string  `json:"rail_pole_number"`
	InspectorCode   string  `json:"inspector_code"`
	InspectionDate  string  `json:"inspection_date" binding:"omitempty,datetime=2006-01-02"`
	DefectType      string  `json:"defect_type"`
}

// Item converts the request into a new, unsaved InventoryItem.
func (r CreateInventoryRequest) Item(now time.Time) *InventoryItem {
	return &InventoryItem{
		Vendor:          r.Vendor,
		VendorID:        r.VendorID,
		LotNumber:       r.LotNumber,
		ItemType:        r.ItemType,
		ItemMaterial:    r.ItemMaterial,
		ManufactureDate: r.ManufactureDate,
		InstallDate:     optionalDate(r.InstallDate),
		WarrantyPeriod:  r.WarrantyPeriod,
		RailPoleNumber:  r.RailPoleNumber,
		InspectorCode:   r.InspectorCode,
		InspectionDate:  optionalDate(r.InspectionDate),
		DefectType:      r.DefectType,
		CreatedAt:       now.UTC(),
	}
}

// Inspection is the only part of an item that may change after creation.
type Inspection struct {
	InspectionDate *string `json:"inspection_date"`
	InspectorCode  string  `json:"inspector_code"`
	DefectType     string  `json:"defect_type"`
}

// Normalize turns an empty inspection date into "not inspected".
func (i Inspection) Normalize() Inspection {
	if i.InspectionDate != nil {
		i.InspectionDate = optionalDate(*i.InspectionDate)
	}
	return i
}

// InspectionRequest is the validated body of PUT /inventory/:id. An empty
// inspection_date clears the inspection.
type InspectionRequest struct {
	InspectionDate string `json:"inspection_date" binding:"omitempty,datetime=2006-01-02"`
	InspectorCode  string `json:"inspector_code"`
	DefectType     string `json:"defect_type"`
}

func (r InspectionRequest) Inspection() Inspection {
	return Inspection{
		InspectionDate: optionalDate(r.InspectionDate),
		InspectorCode:  r.InspectorCode,
		DefectType:     r.DefectType,
	}
}

// ItemSummary is the projection the aggregate counts are computed from.
type ItemSummary struct {
	ItemType        string  `db:"item_type" bson:"item_type"`
	DefectType      string  `db:"defect_type" bson:"defect_type"`
	InspectionDate  *string `db:"inspection_date" bson:"inspection_date"`
	ManufactureDate string  `db:"manufacture_date" bson:"manufacture_date"`
	WarrantyPeriod  string  `db:"warranty_period" bson:"warranty_period"`
}

// Defective reports whether a defect has been recorded.
func (s ItemSummary) Defective() bool {
	return strings.TrimSpace(s.DefectType) != ""
}

// PendingInspection reports whether the item was never inspected.
func (s ItemSummary) PendingInspection() bool {
	return s.InspectionDate == nil || *s.InspectionDate == ""
}

// WarrantyExpired reports whether manufacture date plus the warranty term
// lies before now. Items with unreadable dates or terms never count.
func (s ItemSummary) WarrantyExpired(now time.Time) bool {
	years, ok := WarrantyYears(s.WarrantyPeriod)
	if !ok {
		return false
	}
	date := s.ManufactureDate
	if len(date) > len(DateLayout) {
		date = date[:len(DateLayout)]
	}
	made, err := time.Parse(DateLayout, date)
	if err != nil {
		return false
	}
	return made.AddDate(years, 0, 0).Before(now)
}

// WarrantyYears extracts N from "N Year(s)".
func WarrantyYears(period string) (int, bool) {
	fields := strings.Fields(period)
	if len(fields) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// TypeCount is one row of the per-type breakdown.
type TypeCount struct {
	ItemType string `json:"item_type" db:"item_type" bson:"_id"`
	Count    int    `json:"count" db:"count" bson:"count"`
}

// InventoryStats holds the fleet-wide aggregate counts.
type InventoryStats struct {
	Total             int
	ByType            []TypeCount
	Defective         int
	PendingInspection int
	WarrantyExpired   int
}

type countRow struct {
	Count int `json:"count"`
}

// MarshalJSON keeps the wire shape existing dashboards read, where every
// scalar count is wrapped as [{"count": n}].
func (s InventoryStats) MarshalJSON() ([]byte, error) {
	byType := s.ByType
	if byType == nil {
		byType = []TypeCount{}
	}
	return json.Marshal(struct {
		Total             []countRow  `json:"total"`
		ByType            []TypeCount `json:"byType"`
		Defective         []countRow  `json:"defective"`
		PendingInspection []countRow  `json:"pendingInspection"`
		WarrantyExpired   []countRow  `json:"warrantyExpired"`
	}{
		Total:             []countRow{{s.Total}},
		ByType:            byType,
		Defective:         []countRow{{s.Defective}},
		PendingInspection: []countRow{{s.PendingInspection}},
		WarrantyExpired:   []countRow{{s.WarrantyExpired}},
	})
}

// SortTypeCounts orders a breakdown by item type.
func SortTypeCounts(counts []TypeCount) {
	sort.Slice(counts, func(i, j int) bool { return counts[i].ItemType < counts[j].ItemType })
}

// AnalyticsRow is the per-item-type summary served by /analytics.
type AnalyticsRow struct {
	ItemType               string `json:"item_type"`
	TotalCount             int    `json:"total_count"`
	DefectiveCount         int    `json:"defective_count"`
	WarrantyExpiredCount   int    `json:"warranty_expired_count"`
	PendingInspectionCount int    `json:"pending_inspection_count"`
}

// BuildAnalytics groups summaries by item type.
func BuildAnalytics(items []ItemSummary, now time.Time) []AnalyticsRow {
	index := make(map[string]*AnalyticsRow)
	for _, it := range items {
		row, ok := index[it.ItemType]
		if !ok {
			row = &AnalyticsRow{ItemType: it.ItemType}
			index[it.ItemType] = row
		}
		row.TotalCount++
		if it.Defective() {
			row.DefectiveCount++
		}
		if it.PendingInspection() {
			row.PendingInspectionCount++
		}
		if it.WarrantyExpired(now) {
			row.WarrantyExpiredCount++
		}
	}

	rows := make([]AnalyticsRow, 0, len(index))
	for _, row := range index {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ItemType < rows[j].ItemType })
	return rows
}

// CountWarrantyExpired counts summaries whose warranty has lapsed.
func CountWarrantyExpired(items []ItemSummary, now time.Time) int {
	n := 0
	for _, it := range items {
		if it.WarrantyExpired(now) {
			n++
		}
	}
	return n
}

func optionalDate(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

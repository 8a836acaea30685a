package prediction

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FallbackStatus marks every substituted document.
const FallbackStatus = "fallback"

// maxDiagnosticBytes bounds how much stderr/stdout is echoed to callers.
const maxDiagnosticBytes = 4096

// FailureClass names why the engine result could not be used.
type FailureClass string

const (
	FailureNone      FailureClass = ""
	FailureSpawn     FailureClass = "spawn_failure"
	FailureTimeout   FailureClass = "timeout"
	FailureMalformed FailureClass = "malformed_output"
	FailureEmpty     FailureClass = "empty_output"
)

// Diagnostics is what a fallback document reports about the failed run.
type Diagnostics struct {
	Failure   FailureClass `json:"failure"`
	Reason    string       `json:"reason"`
	Stderr    string       `json:"stderr"`
	RawOutput string       `json:"raw_output"`
	ExitCode  int          `json:"exit_code"`
	TimedOut  bool         `json:"timed_out"`
	Canceled  bool         `json:"canceled"`
}

// Diagnose combines a run and its parse into Diagnostics.
func Diagnose(outcome Outcome, parsed ParseOutcome) Diagnostics {
	d := Diagnostics{ExitCode: -1}
	switch o := outcome.(type) {
	case SpawnFailed:
		d.Failure = FailureSpawn
		d.Reason = o.Reason
		return d
	case TimedOut:
		d.Failure = FailureTimeout
		d.TimedOut = true
		d.Canceled = o.Canceled
		d.Reason = timeoutReason(o)
		d.Stderr = truncateString(string(o.Stderr), maxDiagnosticBytes)
		d.RawOutput = truncateString(string(o.Stdout), maxDiagnosticBytes)
		return d
	case Completed:
		d.ExitCode = o.ExitCode
		d.Stderr = truncateString(string(o.Stderr), maxDiagnosticBytes)
	}

	switch p := parsed.(type) {
	case Malformed:
		d.Failure = FailureMalformed
		d.Reason = p.Reason
		d.RawOutput = truncateString(string(p.Raw), maxDiagnosticBytes)
	case Empty:
		d.Failure = FailureEmpty
		d.Reason = "engine produced no output"
	}
	return d
}

func timeoutReason(o TimedOut) string {
	elapsed := o.Elapsed.Round(time.Millisecond)
	switch {
	case o.Canceled && o.Queued:
		return fmt.Sprintf("request canceled after %s while waiting for an engine slot", elapsed)
	case o.Canceled:
		return fmt.Sprintf("engine run canceled after %s", elapsed)
	case o.Queued:
		return fmt.Sprintf("no engine slot freed within %s", o.After)
	default:
		return fmt.Sprintf("engine timed out after %s", o.After)
	}
}

// Message renders d as the human-readable error field of a fallback.
func (d Diagnostics) Message() string {
	var b strings.Builder
	switch d.Failure {
	case FailureSpawn:
		b.WriteString("engine unavailable: ")
		b.WriteString(d.Reason)
	case FailureTimeout:
		b.WriteString(d.Reason)
	case FailureMalformed:
		b.WriteString("malformed engine output: ")
		b.WriteString(d.Reason)
	case FailureEmpty:
		fmt.Fprintf(&b, "%s (exit code %d)", d.Reason, d.ExitCode)
	default:
		b.WriteString("engine result unavailable")
	}
	if s := strings.TrimSpace(d.Stderr); s != "" {
		b.WriteString("; stderr: ")
		b.WriteString(s)
	}
	return b.String()
}

// Substitute returns the canonical fallback document for kind. It is a pure
// function of its inputs so equal inputs produce byte-identical bodies.
func Substitute(kind Kind, parsed ParseOutcome, diag Diagnostics) json.RawMessage {
	if diag.Failure == FailureNone {
		switch parsed.(type) {
		case Malformed:
			diag.Failure = FailureMalformed
		default:
			diag.Failure = FailureEmpty
		}
	}
	msg := diag.Message()

	var doc any
	switch kind {
	case KindDefectPredict:
		doc = defectFallback{
			Prediction:  "PASS",
			Probability: 75.0,
			Status:      FallbackStatus,
			RiskScore:   25,
			RiskFactors: []string{"Model temporarily unavailable"},
			Recommendations: []string{
				"Prediction model temporarily unavailable",
				"Manual inspection recommended for critical components",
				"Standard maintenance schedule should be followed",
				"Contact system administrator if issue persists",
			},
			ModelInfo: modelInfo{
				ModelType:        "Fallback Mode",
				FeaturesUsed:     0,
				TrainingDataSize: 0,
			},
			Error:       msg,
			Diagnostics: diag,
		}
	case KindLifetimePredict:
		doc = lifetimeFallback{
			PredictedLifetimeDays:  1000,
			PredictedLifetimeYears: 2.7,
			PredictedLifetimeHours: 24000,
			Confidence:             50.0,
			ModelType:              "Fallback",
			Insights:               []string{"Model unavailable"},
			RiskAssessment:         "Medium",
			MaintenanceSchedule:    []maintenanceStep{},
			HistoricalData: historicalData{
				DataSource:       FallbackStatus,
				BaseLifetimeDays: 1000,
			},
			AnalysisFactors: analysisFactors{
				RouteImpact:         "Unknown",
				MaterialImpact:      "Unknown",
				WarrantyCorrelation: "Unknown",
				RegionalFactor:      "Unknown",
			},
			Status:      FallbackStatus,
			Error:       msg,
			Diagnostics: diag,
		}
	case KindVendorRecommend:
		doc = vendorRecommendFallback{
			BestVendor:  vendorScore{},
			TopVendors:  []vendorScore{},
			Status:      FallbackStatus,
			Error:       msg,
			Diagnostics: diag,
		}
	case KindFleetVendorSummary:
		doc = fleetSummaryFallback{
			ChartData:       []vendorShare{},
			Recommendations: []partRecommendation{},
			Status:          FallbackStatus,
			Error:           msg,
			Diagnostics:     diag,
		}
	case KindFailureAnalysis:
		doc = failureAnalysisFallback{
			OverallStats:         overallStats{},
			PartTypeAnalysis:     []map[string]any{},
			RegionAnalysis:       []map[string]any{},
			RouteAnalysis:        []map[string]any{},
			HighRiskCombinations: []map[string]any{},
			Status:               FallbackStatus,
			Error:                msg,
			Diagnostics:          diag,
		}
	default:
		doc = genericFallback{
			Status:      FallbackStatus,
			Error:       fmt.Sprintf("unknown operation kind %q", kind),
			Diagnostics: diag,
		}
	}

	b, err := json.Marshal(doc)
	if err != nil {
		// Only plain structs are marshalled above.
		panic(fmt.Sprintf("marshal fallback for %s: %v", kind, err))
	}
	return b
}

// SchemaFields lists the top-level fields every response of kind carries
// when it comes from the fallback policy.
func SchemaFields(kind Kind) []string {
	switch kind {
	case KindDefectPredict:
		return []string{"prediction", "probability", "status", "risk_score", "risk_factors",
			"historical_performance", "recommendations", "model_info", "error", "diagnostics"}
	case KindLifetimePredict:
		return []string{"predicted_lifetime_days", "predicted_lifetime_years", "predicted_lifetime_hours",
			"confidence", "model_type", "insights", "risk_assessment", "maintenance_schedule",
			"historical_data", "analysis_factors", "status", "error", "diagnostics"}
	case KindVendorRecommend:
		return []string{"best_vendor", "top_vendors", "status", "error", "diagnostics"}
	case KindFleetVendorSummary:
		return []string{"chart_data", "recommendations", "status", "error", "diagnostics"}
	case KindFailureAnalysis:
		return []string{"overall_stats", "part_type_analysis", "region_analysis", "route_analysis",
			"high_risk_combinations", "status", "error", "diagnostics"}
	}
	return nil
}

type defectFallback struct {
	Prediction            string                `json:"prediction"`
	Probability           float64               `json:"probability"`
	Status                string                `json:"status"`
	RiskScore             float64               `json:"risk_score"`
	RiskFactors           []string              `json:"risk_factors"`
	HistoricalPerformance historicalPerformance `json:"historical_performance"`
	Recommendations       []string              `json:"recommendations"`
	ModelInfo             modelInfo             `json:"model_info"`
	Error                 string                `json:"error"`
	Diagnostics           Diagnostics           `json:"diagnostics"`
}

type historicalPerformance struct {
	HistoricalDefectRate float64 `json:"historical_defect_rate"`
	TotalPartsSupplied   int     `json:"total_parts_supplied"`
	AvgLifetime          float64 `json:"avg_lifetime"`
}

type modelInfo struct {
	ModelType        string `json:"model_type"`
	FeaturesUsed     int    `json:"features_used"`
	TrainingDataSize int    `json:"training_data_size"`
}

type lifetimeFallback struct {
	PredictedLifetimeDays  int               `json:"predicted_lifetime_days"`
	PredictedLifetimeYears float64           `json:"predicted_lifetime_years"`
	PredictedLifetimeHours int               `json:"predicted_lifetime_hours"`
	Confidence             float64           `json:"confidence"`
	ModelType              string            `json:"model_type"`
	Insights               []string          `json:"insights"`
	RiskAssessment         string            `json:"risk_assessment"`
	MaintenanceSchedule    []maintenanceStep `json:"maintenance_schedule"`
	HistoricalData         historicalData    `json:"historical_data"`
	AnalysisFactors        analysisFactors   `json:"analysis_factors"`
	Status                 string            `json:"status"`
	Error                  string            `json:"error"`
	Diagnostics            Diagnostics       `json:"diagnostics"`
}

type maintenanceStep struct {
	Type            string `json:"type"`
	DaysFromInstall int    `json:"days_from_install"`
}

type historicalData struct {
	DataSource           string  `json:"data_source"`
	BaseLifetimeDays     float64 `json:"base_lifetime_days"`
	DefectRate           float64 `json:"defect_rate"`
	TotalAdjustmentsDays float64 `json:"total_adjustments_days"`
}

type analysisFactors struct {
	RouteImpact         string `json:"route_impact"`
	MaterialImpact      string `json:"material_impact"`
	WarrantyCorrelation string `json:"warranty_correlation"`
	RegionalFactor      string `json:"regional_factor"`
}

type vendorRecommendFallback struct {
	BestVendor  vendorScore   `json:"best_vendor"`
	TopVendors  []vendorScore `json:"top_vendors"`
	Status      string        `json:"status"`
	Error       string        `json:"error"`
	Diagnostics Diagnostics   `json:"diagnostics"`
}

type vendorScore struct {
	VendorID         string  `json:"vendor_id"`
	DefectPercentage float64 `json:"defect_percentage"`
	TotalInspected   int     `json:"total_inspected"`
}

type fleetSummaryFallback struct {
	ChartData       []vendorShare        `json:"chart_data"`
	Recommendations []partRecommendation `json:"recommendations"`
	Status          string               `json:"status"`
	Error           string               `json:"error"`
	Diagnostics     Diagnostics          `json:"diagnostics"`
}

type vendorShare struct {
	VendorID   string  `json:"vendor_id"`
	Percentage float64 `json:"percentage"`
	DefectRate float64 `json:"defect_rate"`
}

type partRecommendation struct {
	PartType     string  `json:"part_type"`
	BestVendor   string  `json:"best_vendor"`
	DefectRate   float64 `json:"defect_rate"`
	QualityScore float64 `json:"quality_score"`
}

type failureAnalysisFallback struct {
	OverallStats         overallStats     `json:"overall_stats"`
	PartTypeAnalysis     []map[string]any `json:"part_type_analysis"`
	RegionAnalysis       []map[string]any `json:"region_analysis"`
	RouteAnalysis        []map[string]any `json:"route_analysis"`
	HighRiskCombinations []map[string]any `json:"high_risk_combinations"`
	Status               string           `json:"status"`
	Error                string           `json:"error"`
	Diagnostics          Diagnostics      `json:"diagnostics"`
}

type overallStats struct {
	TotalParts        int     `json:"total_parts"`
	TotalDefects      int     `json:"total_defects"`
	OverallDefectRate float64 `json:"overall_defect_rate"`
}

type genericFallback struct {
	Status      string      `json:"status"`
	Error       string      `json:"error"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

package prediction

import (
	"fmt"
	"sort"
)

// Kind identifies one analytic use-case served by the engine.
type Kind string

const (
	KindDefectPredict      Kind = "defect_predict"
	KindLifetimePredict    Kind = "lifetime_predict"
	KindVendorRecommend    Kind = "vendor_recommend"
	KindFleetVendorSummary Kind = "fleet_vendor_summary"
	KindFailureAnalysis    Kind = "failure_analysis"
)

// Param is one positional engine argument together with the value used
// when the caller omits it or sends an empty string.
type Param struct {
	Name    string
	Default string
}

type operation struct {
	script        string
	params        []Param
	discriminator string
}

// The engine reads its arguments by position, so the order of params below
// is part of the engine contract and must not change.
var operations = map[Kind]operation{
	KindDefectPredict: {
		script: "ml_predict.py",
		params: []Param{
			{Name: "vendor_id", Default: "100"},
			{Name: "part_type", Default: "Rail Clips"},
			{Name: "material", Default: "1"},
			{Name: "lifetime", Default: "1000"},
			{Name: "region", Default: "North"},
			{Name: "route_type", Default: "Passenger"},
		},
		discriminator: "probability",
	},
	KindLifetimePredict: {
		script: "lifetime_predict.py",
		params: []Param{
			{Name: "vendor_id", Default: "100"},
			{Name: "part_type", Default: "Rail Clips"},
			{Name: "lot_number", Default: "1001"},
			{Name: "material", Default: "1"},
			{Name: "warranty_years", Default: "2"},
			{Name: "region", Default: "North"},
			{Name: "route_type", Default: "Passenger"},
			{Name: "days_manuf_to_install", Default: "30"},
			{Name: "days_install_to_inspect", Default: "90"},
		},
		discriminator: "predicted_lifetime_days",
	},
	KindVendorRecommend: {
		script: "vendor_recommend.py",
		params: []Param{
			{Name: "part_type", Default: "Rail Clips"},
			{Name: "material", Default: ""},
		},
		discriminator: "best_vendor",
	},
	KindFleetVendorSummary: {
		script:        "vendor_summary.py",
		discriminator: "recommendations",
	},
	KindFailureAnalysis: {
		script:        "failure_analysis.py",
		discriminator: "overall_stats",
	},
}

// Kinds returns every supported operation kind in a stable order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(operations))
	for k := range operations {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Valid reports whether k is a known operation kind.
func (k Kind) Valid() bool {
	_, ok := operations[k]
	return ok
}

// ParseKind converts a wire name into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown operation kind %q", s)
	}
	return k, nil
}

// Params returns the positional parameters of k in engine order.
func (k Kind) Params() []Param {
	op := operations[k]
	out := make([]Param, len(op.params))
	copy(out, op.params)
	return out
}

// DefaultScript is the engine script shipped for k.
func (k Kind) DefaultScript() string {
	return operations[k].script
}

// Shape is what the parser needs to know about a kind's output document.
type Shape struct {
	// Discriminator must be present (and non-null) for a document to count
	// as a genuine engine result.
	Discriminator string
}

// Shape returns the expected output shape for k.
func (k Kind) Shape() Shape {
	return Shape{Discriminator: operations[k].discriminator}
}

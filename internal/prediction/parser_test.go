package prediction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	shape := KindDefectPredict.Shape()

	tests := []struct {
		name    string
		outcome Outcome
		want    string // "decoded", "malformed" or "empty"
		reason  string
	}{
		{
			name:    "valid document",
			outcome: Completed{Stdout: []byte(`{"prediction":"PASS","probability":12.5}`)},
			want:    "decoded",
		},
		{
			name:    "surrounding whitespace",
			outcome: Completed{Stdout: []byte("\n  {\"probability\": 3}\n\n")},
			want:    "decoded",
		},
		{
			name:    "non-zero exit with valid document",
			outcome: Completed{ExitCode: 1, Stdout: []byte(`{"probability": 3}`)},
			want:    "decoded",
		},
		{
			name:    "truncated object",
			outcome: Completed{Stdout: []byte(`{not json`)},
			want:    "malformed",
			reason:  "invalid JSON",
		},
		{
			name:    "log line before document",
			outcome: Completed{Stdout: []byte("loading model\n{\"probability\": 3}")},
			want:    "malformed",
			reason:  "invalid JSON",
		},
		{
			name:    "two documents",
			outcome: Completed{Stdout: []byte(`{"probability": 3} {"probability": 4}`)},
			want:    "malformed",
			reason:  "unexpected data after JSON document",
		},
		{
			name:    "array instead of object",
			outcome: Completed{Stdout: []byte(`[1,2,3]`)},
			want:    "malformed",
			reason:  "invalid JSON",
		},
		{
			name:    "null document",
			outcome: Completed{Stdout: []byte(`null`)},
			want:    "malformed",
			reason:  "not a JSON object",
		},
		{
			name:    "missing discriminator",
			outcome: Completed{Stdout: []byte(`{"prediction":"PASS"}`)},
			want:    "malformed",
			reason:  `missing "probability" field`,
		},
		{
			name:    "null discriminator",
			outcome: Completed{Stdout: []byte(`{"probability":null}`)},
			want:    "malformed",
			reason:  `missing "probability" field`,
		},
		{
			name:    "engine error document",
			outcome: Completed{ExitCode: 1, Stdout: []byte(`{"error":"Model not found"}`)},
			want:    "malformed",
			reason:  "engine reported error: Model not found",
		},
		{
			name:    "empty stdout",
			outcome: Completed{Stdout: nil, Stderr: []byte("Traceback")},
			want:    "empty",
		},
		{
			name:    "whitespace stdout",
			outcome: Completed{Stdout: []byte(" \n\t")},
			want:    "empty",
		},
		{
			name:    "timed out with partial output",
			outcome: TimedOut{After: time.Second, Stdout: []byte(`{"probability": 3}`)},
			want:    "empty",
		},
		{
			name:    "spawn failure",
			outcome: SpawnFailed{Reason: "exec: not found"},
			want:    "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.outcome, shape)
			switch tt.want {
			case "decoded":
				doc, ok := got.(Decoded)
				require.True(t, ok, "expected Decoded, got %#v", got)
				assert.NotEmpty(t, doc.Document)
			case "malformed":
				m, ok := got.(Malformed)
				require.True(t, ok, "expected Malformed, got %#v", got)
				assert.Contains(t, m.Reason, tt.reason)
				assert.Equal(t, tt.outcome.(Completed).Stdout, m.Raw)
			case "empty":
				assert.IsType(t, Empty{}, got)
			}
		})
	}
}

func TestParseKeepsDocumentVerbatim(t *testing.T) {
	raw := `{"probability": 1.50, "extra": {"nested": [1, 2]}, "vendor": "V-9"}`
	got := Parse(Completed{Stdout: []byte("  " + raw + "\n")}, KindDefectPredict.Shape())

	doc, ok := got.(Decoded)
	require.True(t, ok)
	assert.Equal(t, raw, string(doc.Document))
}

func TestParseDiscriminatorPerKind(t *testing.T) {
	docs := map[Kind]string{
		KindDefectPredict:      `{"probability": 10}`,
		KindLifetimePredict:    `{"predicted_lifetime_days": 900}`,
		KindVendorRecommend:    `{"best_vendor": {"vendor_id": "A"}}`,
		KindFleetVendorSummary: `{"recommendations": []}`,
		KindFailureAnalysis:    `{"overall_stats": {}}`,
	}
	for _, kind := range Kinds() {
		doc, ok := docs[kind]
		require.True(t, ok, "no sample for %s", kind)

		assert.IsType(t, Decoded{}, Parse(Completed{Stdout: []byte(doc)}, kind.Shape()), kind)
		// A document of another kind must not pass.
		assert.IsType(t, Malformed{}, Parse(Completed{Stdout: []byte(`{"unrelated": 1}`)}, kind.Shape()), kind)
	}
}

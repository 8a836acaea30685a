package prediction

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeObject(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc), "body: %s", raw)
	return doc
}

func TestSubstituteIsSchemaComplete(t *testing.T) {
	diag := Diagnostics{Failure: FailureSpawn, Reason: "exec: \"python\": executable file not found in $PATH", ExitCode: -1}

	for _, kind := range Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			doc := decodeObject(t, Substitute(kind, nil, diag))
			for _, field := range SchemaFields(kind) {
				assert.Contains(t, doc, field)
			}
			assert.Equal(t, FallbackStatus, doc["status"])
			assert.Contains(t, doc["error"], "engine unavailable")

			// The fallback must satisfy the same parser check a real
			// engine document does.
			parsed := Parse(Completed{Stdout: Substitute(kind, nil, diag)}, kind.Shape())
			assert.IsType(t, Decoded{}, parsed)
		})
	}
}

func TestSubstituteIsDeterministic(t *testing.T) {
	outcome := Completed{ExitCode: 1, Stdout: []byte("{oops"), Stderr: []byte("ValueError")}
	parsed := Parse(outcome, KindLifetimePredict.Shape())

	first := Substitute(KindLifetimePredict, parsed, Diagnose(outcome, parsed))
	second := Substitute(KindLifetimePredict, parsed, Diagnose(outcome, parsed))
	assert.Equal(t, string(first), string(second))
}

func TestSubstituteDefectValues(t *testing.T) {
	doc := decodeObject(t, Substitute(KindDefectPredict, Empty{}, Diagnostics{Failure: FailureEmpty, Reason: "engine produced no output"}))

	assert.Equal(t, "PASS", doc["prediction"])
	assert.Equal(t, 75.0, doc["probability"])
	assert.Equal(t, 25.0, doc["risk_score"])
	assert.Equal(t, []any{"Model temporarily unavailable"}, doc["risk_factors"])
	assert.Equal(t, "Fallback Mode", doc["model_info"].(map[string]any)["model_type"])
}

func TestSubstituteLifetimeValues(t *testing.T) {
	doc := decodeObject(t, Substitute(KindLifetimePredict, Empty{}, Diagnostics{Failure: FailureEmpty}))

	assert.Equal(t, 1000.0, doc["predicted_lifetime_days"])
	assert.Equal(t, 2.7, doc["predicted_lifetime_years"])
	assert.Equal(t, 50.0, doc["confidence"])
	assert.Equal(t, "Fallback", doc["model_type"])
	assert.Equal(t, "Medium", doc["risk_assessment"])
	assert.Equal(t, []any{"Model unavailable"}, doc["insights"])
	assert.Equal(t, []any{}, doc["maintenance_schedule"])
}

func TestSubstituteEmptyCollections(t *testing.T) {
	diag := Diagnostics{Failure: FailureTimeout, Reason: "engine timed out after 5s", TimedOut: true}

	vendors := decodeObject(t, Substitute(KindVendorRecommend, nil, diag))
	assert.Equal(t, []any{}, vendors["top_vendors"])

	summary := decodeObject(t, Substitute(KindFleetVendorSummary, nil, diag))
	assert.Equal(t, []any{}, summary["chart_data"])
	assert.Equal(t, []any{}, summary["recommendations"])

	failures := decodeObject(t, Substitute(KindFailureAnalysis, nil, diag))
	for _, field := range []string{"part_type_analysis", "region_analysis", "route_analysis", "high_risk_combinations"} {
		assert.Equal(t, []any{}, failures[field], field)
	}
}

func TestDiagnose(t *testing.T) {
	t.Run("spawn failure", func(t *testing.T) {
		out := SpawnFailed{Reason: "fork/exec /usr/bin/python: no such file or directory"}
		d := Diagnose(out, Parse(out, KindDefectPredict.Shape()))
		assert.Equal(t, FailureSpawn, d.Failure)
		assert.Equal(t, -1, d.ExitCode)
		assert.Equal(t, "engine unavailable: fork/exec /usr/bin/python: no such file or directory", d.Message())
	})

	t.Run("timeout", func(t *testing.T) {
		out := TimedOut{After: 5 * time.Second, Stderr: []byte("still training")}
		d := Diagnose(out, Parse(out, KindDefectPredict.Shape()))
		assert.Equal(t, FailureTimeout, d.Failure)
		assert.True(t, d.TimedOut)
		assert.Contains(t, d.Message(), "timed out after 5s")
		assert.Contains(t, d.Message(), "still training")
		assert.False(t, d.Canceled)
	})

	t.Run("canceled reports elapsed time", func(t *testing.T) {
		out := TimedOut{After: 300 * time.Millisecond, Elapsed: 50 * time.Millisecond, Canceled: true}
		d := Diagnose(out, Parse(out, KindDefectPredict.Shape()))
		assert.Equal(t, FailureTimeout, d.Failure)
		assert.True(t, d.Canceled)
		assert.Equal(t, "engine run canceled after 50ms", d.Message())
	})

	t.Run("no engine slot", func(t *testing.T) {
		out := TimedOut{After: 300 * time.Millisecond, Elapsed: 300 * time.Millisecond, Queued: true}
		d := Diagnose(out, Parse(out, KindDefectPredict.Shape()))
		assert.Equal(t, "no engine slot freed within 300ms", d.Message())
	})

	t.Run("malformed keeps raw output", func(t *testing.T) {
		out := Completed{ExitCode: 0, Stdout: []byte("{not json")}
		d := Diagnose(out, Parse(out, KindDefectPredict.Shape()))
		assert.Equal(t, FailureMalformed, d.Failure)
		assert.Equal(t, "{not json", d.RawOutput)
		assert.Equal(t, 0, d.ExitCode)
		assert.True(t, strings.HasPrefix(d.Message(), "malformed engine output: invalid JSON"))
	})

	t.Run("empty output", func(t *testing.T) {
		out := Completed{ExitCode: 2, Stderr: []byte("can't open file 'ml_predict.py'")}
		d := Diagnose(out, Parse(out, KindDefectPredict.Shape()))
		assert.Equal(t, FailureEmpty, d.Failure)
		assert.Equal(t, 2, d.ExitCode)
		assert.Contains(t, d.Message(), "exit code 2")
		assert.Contains(t, d.Message(), "can't open file")
	})

	t.Run("large stderr is truncated", func(t *testing.T) {
		out := Completed{ExitCode: 1, Stderr: []byte(strings.Repeat("x", 3*maxDiagnosticBytes))}
		d := Diagnose(out, Parse(out, KindDefectPredict.Shape()))
		assert.Len(t, d.Stderr, maxDiagnosticBytes+len("..."))
	})
}

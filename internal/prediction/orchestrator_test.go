package prediction

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records invocations and replays a fixed outcome.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []Invocation
	outcome Outcome
}

func (f *fakeRunner) Run(_ context.Context, inv Invocation) Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, inv)
	return f.outcome
}

func TestInvocationArgumentOrder(t *testing.T) {
	o := NewOrchestrator(Config{Interpreter: "python", EngineDir: "/opt/engine"}, WithRunner(&fakeRunner{}))

	inv, err := o.Invocation(KindDefectPredict, map[string]any{"vendor_id": "100"})
	require.NoError(t, err)
	assert.Equal(t, "python", inv.Executable)
	assert.Equal(t,
		[]string{"/opt/engine/ml_predict.py", "100", "Rail Clips", "1", "1000", "North", "Passenger"},
		inv.Argv())
	assert.Equal(t, DefaultTimeout, inv.Timeout)
}

func TestInvocationLifetimeDefaults(t *testing.T) {
	o := NewOrchestrator(Config{}, WithRunner(&fakeRunner{}))

	inv, err := o.Invocation(KindLifetimePredict, map[string]any{
		"vendor_id":  json.Number("205"),
		"part_type":  "Sleeper",
		"region":     "",
		"lot_number": nil,
	})
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"lifetime_predict.py", "205", "Sleeper", "1001", "1", "2", "North", "Passenger", "30", "90"},
		inv.Argv())
}

func TestInvocationOperationOverrides(t *testing.T) {
	o := NewOrchestrator(Config{
		EngineDir: "/opt/engine",
		Operations: map[Kind]OperationConfig{
			KindVendorRecommend:    {Script: "/srv/vendor.py", Timeout: 2 * time.Second},
			KindFleetVendorSummary: {Inline: "print('{}')"},
		},
	}, WithRunner(&fakeRunner{}))

	inv, err := o.Invocation(KindVendorRecommend, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/vendor.py", "Rail Clips", ""}, inv.Argv())
	assert.Equal(t, 2*time.Second, inv.Timeout)

	inv, err = o.Invocation(KindFleetVendorSummary, nil)
	require.NoError(t, err)
	assert.Equal(t, "vendor_summary.py", inv.Script)
	assert.Equal(t, []byte("print('{}')"), inv.Inline)
	assert.Empty(t, inv.Params)
}

func TestInvocationUnknownKind(t *testing.T) {
	o := NewOrchestrator(Config{}, WithRunner(&fakeRunner{}))
	_, err := o.Invocation(Kind("weather"), nil)
	assert.Error(t, err)
}

func TestExecutePassesEngineDocumentThrough(t *testing.T) {
	body := `{"prediction":"FAIL","probability":81.2,"risk_score":70,"vendor_specific_note":"kept"}`
	runner := &fakeRunner{outcome: Completed{ExitCode: 0, Stdout: []byte(body + "\n")}}
	o := NewOrchestrator(Config{}, WithRunner(runner))

	resp := o.Execute(context.Background(), KindDefectPredict, map[string]any{"vendor_id": "7"})
	assert.Equal(t, SourceEngine, resp.Source)
	assert.False(t, resp.Fallback())
	assert.Equal(t, FailureNone, resp.Failure)
	assert.Equal(t, body, string(resp.Body))
	require.Len(t, runner.calls, 1)
}

func TestExecuteNonZeroExitWithValidDocument(t *testing.T) {
	runner := &fakeRunner{outcome: Completed{ExitCode: 1, Stdout: []byte(`{"overall_stats":{"total_parts":4}}`)}}
	o := NewOrchestrator(Config{}, WithRunner(runner))

	resp := o.Execute(context.Background(), KindFailureAnalysis, nil)
	assert.Equal(t, SourceEngine, resp.Source)
	assert.JSONEq(t, `{"overall_stats":{"total_parts":4}}`, string(resp.Body))
}

func TestExecuteMalformedOutput(t *testing.T) {
	runner := &fakeRunner{outcome: Completed{ExitCode: 0, Stdout: []byte("{not json")}}
	o := NewOrchestrator(Config{}, WithRunner(runner))

	resp := o.Execute(context.Background(), KindLifetimePredict, nil)
	require.True(t, resp.Fallback())
	assert.Equal(t, FailureMalformed, resp.Failure)

	doc := decodeObject(t, resp.Body)
	diag := doc["diagnostics"].(map[string]any)
	assert.Equal(t, "{not json", diag["raw_output"])
	assert.Equal(t, string(FailureMalformed), diag["failure"])
}

func TestExecuteTimeout(t *testing.T) {
	runner := &fakeRunner{outcome: TimedOut{After: 5 * time.Second}}
	o := NewOrchestrator(Config{}, WithRunner(runner))

	resp := o.Execute(context.Background(), KindVendorRecommend, nil)
	require.True(t, resp.Fallback())
	assert.Equal(t, FailureTimeout, resp.Failure)

	doc := decodeObject(t, resp.Body)
	assert.Contains(t, doc["error"], "timed out")
	assert.Equal(t, true, doc["diagnostics"].(map[string]any)["timed_out"])
}

func TestExecuteUnknownKind(t *testing.T) {
	runner := &fakeRunner{}
	o := NewOrchestrator(Config{}, WithRunner(runner))

	resp := o.Execute(context.Background(), Kind("weather"), nil)
	assert.True(t, resp.Fallback())
	assert.Empty(t, runner.calls)

	doc := decodeObject(t, resp.Body)
	assert.Equal(t, FallbackStatus, doc["status"])
	assert.Contains(t, doc["error"], "weather")
}

func TestExecuteWithoutEngine(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "python-not-installed")
	o := NewOrchestrator(Config{Interpreter: missing})

	for _, kind := range Kinds() {
		resp := o.Execute(context.Background(), kind, nil)
		require.True(t, resp.Fallback(), kind)
		assert.Equal(t, FailureSpawn, resp.Failure, kind)

		doc := decodeObject(t, resp.Body)
		for _, field := range SchemaFields(kind) {
			assert.Contains(t, doc, field, "%s fallback missing %s", kind, field)
		}
	}
}

func TestExecuteFallbackIsIdempotent(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "python-not-installed")
	o := NewOrchestrator(Config{Interpreter: missing})

	first := o.Execute(context.Background(), KindDefectPredict, map[string]any{"vendor_id": "1"})
	second := o.Execute(context.Background(), KindDefectPredict, map[string]any{"vendor_id": "1"})
	assert.Equal(t, string(first.Body), string(second.Body))
}

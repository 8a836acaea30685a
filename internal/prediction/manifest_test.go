package prediction

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
interpreter: python3
dir: /opt/railqr/engine
timeout: 8s
operations:
  defect_predict:
    script: enhanced_predict.py
    timeout: 3s
  fleet_vendor_summary:
    inline: |
      import json
      print(json.dumps({"recommendations": []}))
`

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "python3", m.Interpreter)
	assert.Equal(t, 8*time.Second, m.Timeout)
	assert.Equal(t, 3*time.Second, m.Operations["defect_predict"].Timeout)

	cfg := Config{Interpreter: "python", Timeout: DefaultTimeout}
	m.Apply(&cfg)

	o := NewOrchestrator(cfg, WithRunner(&fakeRunner{}))
	inv, err := o.Invocation(KindDefectPredict, nil)
	require.NoError(t, err)
	assert.Equal(t, "python3", inv.Executable)
	assert.Equal(t, "/opt/railqr/engine/enhanced_predict.py", inv.Script)
	assert.Equal(t, 3*time.Second, inv.Timeout)

	inv, err = o.Invocation(KindLifetimePredict, nil)
	require.NoError(t, err)
	assert.Equal(t, 8*time.Second, inv.Timeout)

	inv, err = o.Invocation(KindFleetVendorSummary, nil)
	require.NoError(t, err)
	assert.Contains(t, string(inv.Inline), "recommendations")
}

func TestParseManifestRejectsUnknownKind(t *testing.T) {
	_, err := ParseManifest([]byte("operations:\n  weather_forecast:\n    script: w.py\n"))
	assert.ErrorContains(t, err, "weather_forecast")
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

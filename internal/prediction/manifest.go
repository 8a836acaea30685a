package prediction

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest is the optional YAML file describing how each kind reaches the
// engine. Any field left empty keeps the value already in Config.
//
//	interpreter: python3
//	dir: /opt/railqr/engine
//	timeout: 5s
//	operations:
//	  defect_predict:
//	    script: ml_predict.py
//	    timeout: 3s
//	  fleet_vendor_summary:
//	    inline: |
//	      import json; print(json.dumps({"recommendations": []}))
type Manifest struct {
	Interpreter string                       `yaml:"interpreter"`
	Dir         string                       `yaml:"dir"`
	Timeout     time.Duration                `yaml:"timeout"`
	Operations  map[string]ManifestOperation `yaml:"operations"`
}

// ManifestOperation is the per-kind block of a Manifest.
type ManifestOperation struct {
	Script  string        `yaml:"script"`
	Timeout time.Duration `yaml:"timeout"`
	Inline  string        `yaml:"inline"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read engine manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes manifest YAML and rejects unknown kinds.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse engine manifest: %w", err)
	}
	for name, op := range m.Operations {
		if _, err := ParseKind(name); err != nil {
			return nil, fmt.Errorf("engine manifest: %w", err)
		}
		if op.Timeout < 0 {
			return nil, fmt.Errorf("engine manifest: negative timeout for %s", name)
		}
	}
	if m.Timeout < 0 {
		return nil, fmt.Errorf("engine manifest: negative timeout")
	}
	return &m, nil
}

// Apply overlays the manifest onto cfg.
func (m *Manifest) Apply(cfg *Config) {
	if m.Interpreter != "" {
		cfg.Interpreter = m.Interpreter
	}
	if m.Dir != "" {
		cfg.EngineDir = m.Dir
	}
	if m.Timeout > 0 {
		cfg.Timeout = m.Timeout
	}
	if len(m.Operations) == 0 {
		return
	}
	if cfg.Operations == nil {
		cfg.Operations = make(map[Kind]OperationConfig, len(m.Operations))
	}
	for name, op := range m.Operations {
		cfg.Operations[Kind(name)] = OperationConfig{
			Script:  op.Script,
			Timeout: op.Timeout,
			Inline:  op.Inline,
		}
	}
}

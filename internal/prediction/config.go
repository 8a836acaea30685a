package prediction

import (
	"path/filepath"
	"time"
)

const (
	DefaultInterpreter      = "python"
	DefaultTimeout          = 5 * time.Second
	DefaultTerminationGrace = 2 * time.Second
	DefaultMaxConcurrency   = 64
	DefaultMaxOutputBytes   = 1 << 20
)

// Config holds everything the orchestrator needs to reach the engine.
// It is built once at startup and never read from the environment later.
type Config struct {
	// Interpreter is argv[0] for every invocation, e.g. "python".
	Interpreter string
	// EngineDir is joined with relative script paths.
	EngineDir string
	// Timeout bounds one engine run unless an operation overrides it.
	Timeout time.Duration
	// TerminationGrace is the wait between SIGTERM and SIGKILL on timeout.
	TerminationGrace time.Duration
	// MaxConcurrency caps simultaneously running engine processes.
	MaxConcurrency int
	// MaxOutputBytes caps how much of each stream is kept.
	MaxOutputBytes int
	// TempDir receives materialized inline scripts; empty means os.TempDir.
	TempDir string

	Operations map[Kind]OperationConfig
}

// OperationConfig overrides the engine settings of a single kind.
type OperationConfig struct {
	Script  string
	Timeout time.Duration
	// Inline, when set, is written to a unique temporary file for each
	// invocation and run in place of Script.
	Inline string
}

func (c Config) withDefaults() Config {
	if c.Interpreter == "" {
		c.Interpreter = DefaultInterpreter
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.TerminationGrace <= 0 {
		c.TerminationGrace = DefaultTerminationGrace
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = DefaultMaxOutputBytes
	}
	return c
}

func (c Config) operation(kind Kind) (script string, inline string, timeout time.Duration) {
	script = kind.DefaultScript()
	timeout = c.Timeout
	if op, ok := c.Operations[kind]; ok {
		if op.Script != "" {
			script = op.Script
		}
		if op.Timeout > 0 {
			timeout = op.Timeout
		}
		inline = op.Inline
	}
	if inline == "" && c.EngineDir != "" && !filepath.IsAbs(script) {
		script = filepath.Join(c.EngineDir, script)
	}
	return script, inline, timeout
}

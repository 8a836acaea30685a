package prediction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Source tells whether a response body came from the engine or the
// fallback policy.
type Source string

const (
	SourceEngine   Source = "engine"
	SourceFallback Source = "fallback"
)

// Response is the single result of Execute. Body is always a complete JSON
// object ready to be written to the caller.
type Response struct {
	Kind     Kind
	Source   Source
	Failure  FailureClass
	Body     json.RawMessage
	Duration time.Duration
}

// Fallback reports whether Body was substituted.
func (r Response) Fallback() bool {
	return r.Source == SourceFallback
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRunner replaces the process runner, mostly for tests.
func WithRunner(r ProcessRunner) Option {
	return func(o *Orchestrator) {
		o.runner = r
	}
}

// Orchestrator turns a prediction request into exactly one engine run and
// always yields a usable Response.
type Orchestrator struct {
	cfg    Config
	runner ProcessRunner
}

// NewOrchestrator creates an orchestrator with the given engine config.
func NewOrchestrator(cfg Config, opts ...Option) *Orchestrator {
	cfg = cfg.withDefaults()
	o := &Orchestrator{cfg: cfg}
	for _, opt := range opts {
		opt(o)
	}
	if o.runner == nil {
		o.runner = NewRunner(cfg)
	}
	return o
}

// Invocation builds the engine invocation for kind without running it.
func (o *Orchestrator) Invocation(kind Kind, params map[string]any) (Invocation, error) {
	if !kind.Valid() {
		return Invocation{}, fmt.Errorf("unknown operation kind %q", kind)
	}
	script, inline, timeout := o.cfg.operation(kind)
	inv := Invocation{
		Kind:       kind,
		Executable: o.cfg.Interpreter,
		Script:     script,
		Params:     NormalizeParams(kind, params),
		Timeout:    timeout,
	}
	if inline != "" {
		inv.Inline = []byte(inline)
	}
	return inv, nil
}

// Execute runs the engine once for kind and returns its document, or the
// kind's fallback document when the run could not produce one. It does not
// retry.
func (o *Orchestrator) Execute(ctx context.Context, kind Kind, params map[string]any) Response {
	start := time.Now()

	inv, err := o.Invocation(kind, params)
	if err != nil {
		diag := Diagnostics{Failure: FailureSpawn, Reason: err.Error(), ExitCode: -1}
		return Response{
			Kind:     kind,
			Source:   SourceFallback,
			Failure:  diag.Failure,
			Body:     Substitute(kind, nil, diag),
			Duration: time.Since(start),
		}
	}

	outcome := o.runner.Run(ctx, inv)
	parsed := Parse(outcome, kind.Shape())

	if doc, ok := parsed.(Decoded); ok {
		if c, ok := outcome.(Completed); ok && c.ExitCode != 0 {
			slog.Info("Engine exited non-zero with a valid document",
				"kind", kind,
				"exit_code", c.ExitCode)
		}
		return Response{
			Kind:     kind,
			Source:   SourceEngine,
			Body:     doc.Document,
			Duration: time.Since(start),
		}
	}

	diag := Diagnose(outcome, parsed)
	slog.Warn("Serving fallback prediction",
		"kind", kind,
		"failure", diag.Failure,
		"reason", diag.Reason,
		"exit_code", diag.ExitCode)

	return Response{
		Kind:     kind,
		Source:   SourceFallback,
		Failure:  diag.Failure,
		Body:     Substitute(kind, parsed, diag),
		Duration: time.Since(start),
	}
}

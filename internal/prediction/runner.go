package prediction

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ProcessRunner executes a single Invocation. Implementations never return
// an error; every failure is expressed as an Outcome.
type ProcessRunner interface {
	Run(ctx context.Context, inv Invocation) Outcome
}

// Runner launches engine processes directly (no shell), one per call.
type Runner struct {
	sema      *semaphore.Weighted
	grace     time.Duration
	maxOutput int
	tempDir   string
}

// NewRunner builds a Runner from the engine configuration.
func NewRunner(cfg Config) *Runner {
	cfg = cfg.withDefaults()
	return &Runner{
		sema:      semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		grace:     cfg.TerminationGrace,
		maxOutput: cfg.MaxOutputBytes,
		tempDir:   cfg.TempDir,
	}
}

// Run starts the engine, captures both output streams, and enforces the
// invocation timeout. The timeout covers the wait for an engine slot as well
// as the run itself. Cancelling ctx terminates the process the same way a
// timeout does.
func (r *Runner) Run(ctx context.Context, inv Invocation) Outcome {
	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	begin := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := r.sema.Acquire(runCtx, 1); err != nil {
		slog.Warn("No engine slot available",
			"kind", inv.Kind,
			"timeout", timeout.String(),
			"canceled", ctx.Err() != nil)
		return TimedOut{
			After:    timeout,
			Elapsed:  time.Since(begin),
			Canceled: ctx.Err() != nil,
			Queued:   true,
		}
	}
	defer r.sema.Release(1)

	script := inv.Script
	if len(inv.Inline) > 0 {
		path, cleanup, err := r.materialize(inv)
		if err != nil {
			return SpawnFailed{Reason: err.Error()}
		}
		defer cleanup()
		script = path
	}

	argv := append([]string{script}, inv.Params...)
	cmd := exec.Command(inv.Executable, argv...)
	setProcessGroup(cmd)

	stdout := newCappedBuffer(r.maxOutput)
	stderr := newCappedBuffer(r.maxOutput)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Bounds how long Wait keeps copying from pipes held open by
	// grandchildren after the engine itself has exited.
	cmd.WaitDelay = r.grace

	start := time.Now()
	if err := cmd.Start(); err != nil {
		slog.Warn("Engine spawn failed",
			"kind", inv.Kind,
			"executable", inv.Executable,
			"error", err)
		return SpawnFailed{Reason: err.Error()}
	}

	slog.Debug("Engine started",
		"kind", inv.Kind,
		"pid", cmd.Process.Pid,
		"args_len", len(argv),
		"queued_ms", start.Sub(begin).Milliseconds(),
		"timeout", timeout.String())

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-done:
		exitCode := -1
		if cmd.ProcessState != nil {
			exitCode = cmd.ProcessState.ExitCode()
		}
		dur := time.Since(start)
		slog.Debug("Engine finished",
			"kind", inv.Kind,
			"exit_code", exitCode,
			"duration_ms", dur.Milliseconds())
		return Completed{
			ExitCode: exitCode,
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
			Duration: dur,
		}
	case <-runCtx.Done():
	}

	elapsed := time.Since(begin)
	canceled := ctx.Err() != nil
	r.terminate(cmd, done)
	slog.Warn("Engine terminated",
		"kind", inv.Kind,
		"pid", cmd.Process.Pid,
		"timeout", timeout.String(),
		"elapsed_ms", elapsed.Milliseconds(),
		"canceled", canceled)
	return TimedOut{
		After:    timeout,
		Elapsed:  elapsed,
		Canceled: canceled,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}
}

// materialize writes an inline script to a uniquely named file. The
// returned cleanup must run on every path once the process is gone.
func (r *Runner) materialize(inv Invocation) (string, func(), error) {
	pattern := fmt.Sprintf("railqr-%s-*%s", inv.Kind, filepath.Ext(inv.Script))
	f, err := os.CreateTemp(r.tempDir, pattern)
	if err != nil {
		return "", nil, fmt.Errorf("create inline script: %w", err)
	}
	path := f.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove inline script", "path", path, "error", err)
		}
	}
	if _, err := f.Write(inv.Inline); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write inline script: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close inline script: %w", err)
	}
	return path, cleanup, nil
}

// terminate stops the process and blocks until it has been reaped.
func (r *Runner) terminate(cmd *exec.Cmd, done <-chan error) {
	signalTerminate(cmd)
	select {
	case <-done:
		return
	case <-time.After(r.grace):
	}
	signalKill(cmd)
	<-done
}

// cappedBuffer keeps at most limit bytes and silently drops the rest so a
// chatty engine cannot exhaust memory.
type cappedBuffer struct {
	mu    sync.Mutex
	b     []byte
	limit int
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if room := c.limit - len(c.b); room > 0 {
		if len(p) > room {
			c.b = append(c.b, p[:room]...)
		} else {
			c.b = append(c.b, p...)
		}
	}
	return len(p), nil
}

func (c *cappedBuffer) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.b))
	copy(out, c.b)
	return out
}

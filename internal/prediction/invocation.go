package prediction

import (
	"encoding/json"
	"time"
)

// Invocation describes exactly one engine run. It is passed by value and
// never reused across requests.
type Invocation struct {
	Kind       Kind
	Executable string
	// Script is the first positional argument. For inline operations it
	// names the script only for diagnostics; the runner substitutes the
	// path of the materialized temporary file.
	Script  string
	Inline  []byte
	Params  []string
	Timeout time.Duration
}

// Argv returns the positional argument vector passed to Executable.
func (inv Invocation) Argv() []string {
	argv := make([]string, 0, len(inv.Params)+1)
	argv = append(argv, inv.Script)
	return append(argv, inv.Params...)
}

// Outcome is the result of one engine run: Completed, TimedOut or
// SpawnFailed.
type Outcome interface {
	outcome()
}

// Completed means the process exited on its own. ExitCode is advisory.
type Completed struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// TimedOut means the run exceeded its bound or the caller gave up. After is
// the configured bound and Elapsed the time actually spent, slot wait
// included. Queued is set when no engine slot freed up in time, in which
// case no process was started.
type TimedOut struct {
	After    time.Duration
	Elapsed  time.Duration
	Canceled bool
	Queued   bool
	Stdout   []byte
	Stderr   []byte
}

// SpawnFailed means the process never started.
type SpawnFailed struct {
	Reason string
}

func (Completed) outcome()   {}
func (TimedOut) outcome()    {}
func (SpawnFailed) outcome() {}

// ParseOutcome is the parser's verdict on an Outcome: Decoded, Malformed
// or Empty.
type ParseOutcome interface {
	parseOutcome()
}

// Decoded carries the engine document exactly as emitted, minus
// surrounding whitespace.
type Decoded struct {
	Document json.RawMessage
}

// Malformed carries the raw stdout that could not be trusted.
type Malformed struct {
	Raw    []byte
	Reason string
}

// Empty means there was nothing to decode.
type Empty struct{}

func (Decoded) parseOutcome()   {}
func (Malformed) parseOutcome() {}
func (Empty) parseOutcome()     {}

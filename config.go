package scheduler

import "github.com/rs/zerolog"

// Config holds configuration for a Scheduler: sensible defaults, with
// New clamping out-of-range values rather than rejecting them outright.
type Config struct {
	// NumThreads is the fixed number of workers, not renegotiated after
	// New returns.
	NumThreads int
	// InitialDequeCapacity sizes each worker's deque up front. Zero
	// picks a default; deques still grow on demand.
	InitialDequeCapacity int
	// Logger receives Debug-level events at spawn, submit, steal,
	// per-subtask run and shutdown boundaries, never per iteration. A
	// nil Logger (the default) discards every event via zerolog.Nop().
	Logger *zerolog.Logger
}

// DefaultConfig returns sensible defaults: one worker per logical CPU.
func DefaultConfig() Config {
	return Config{
		NumThreads:           defaultNumThreads(),
		InitialDequeCapacity: 64,
	}
}

package scheduler

import (
	"context"
	"sync/atomic"
)

// Subtask is one unit of work submitted to a worker's deque. It is
// allocated by the submitter before push; ownership transfers to
// whichever worker pops or steals it, and that worker frees it (by
// letting it become unreachable) after running fn and decrementing the
// join counter. See internal/deque for the exactly-once handoff
// guarantee that rules out double execution.
type Subtask struct {
	fn    KernelFunc
	args  any
	start int64
	end   int64

	chunkSize int
	id        int
	join      *joinState

	// Diagnostic-only fields, never consulted for scheduling decisions.
	stolen    atomic.Bool
	createdBy int32
	ranBy     atomic.Int32
}

// run executes the subtask's kernel and reports completion to its join
// state, returning the kernel's own return code and whether this was
// the last outstanding subtask for the loop. It never executes fn more
// than once, and it always releases its join reference exactly once,
// regardless of outcome.
func (s *Subtask) run(ctx context.Context, runnerTID int) (code int, done bool) {
	s.ranBy.Store(int32(runnerTID))
	code = s.fn(ctx, s.args, s.start, s.end, s.id)
	done = s.join.complete(code, s.id)
	s.join.release()
	return code, done
}

// markStolen records that a subtask crossed from one worker's deque to
// another's. Diagnostic only.
func (s *Subtask) markStolen() {
	s.stolen.Store(true)
}

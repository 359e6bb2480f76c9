package scheduler

import (
	"context"
	"math/rand"
	"runtime"
	"sync/atomic"

	"github.com/go-foundations/loopsched/internal/deque"
	"github.com/rs/zerolog"
)

// Worker is one goroutine in the scheduling pool: it owns one deque,
// carries a stable tid, and alternates between draining its own deque
// and stealing from others.
type Worker struct {
	tid   int
	deque *deque.Deque[*Subtask]
	dead  atomic.Bool
	rng   *rand.Rand // unshared per-worker source; avoids correlated victim choices

	sched *Scheduler
}

func newWorker(tid int, sched *Scheduler, dequeCapacity int) *Worker {
	return &Worker{
		tid:   tid,
		deque: deque.New[*Subtask](dequeCapacity),
		rng:   rand.New(rand.NewSource(int64(tid)*2654435761 + 1)),
		sched: sched,
	}
}

// isFinished reports whether this worker may stop: the pool has been
// flagged for exit AND the worker's own deque is empty.
func (w *Worker) isFinished() bool {
	return w.sched.shouldExit.Load() && w.deque.Empty()
}

// mainLoop runs until isFinished. Every iteration either runs a subtask
// popped from the worker's own deque, or enters the acquire (steal)
// phase. This is the only place fn is ever invoked for work this
// worker did not submit itself.
func (w *Worker) mainLoop(ctx context.Context) {
	for !w.isFinished() {
		if !w.deque.Empty() {
			if s, ok := w.deque.PopBottom(); ok {
				w.logDebug("run").Int("subtask", s.id).Msg("worker running popped subtask")
				s.run(ctx, w.tid)
				continue
			}
			// Deque raced empty between the Empty() hint and PopBottom;
			// fall through to the steal phase this iteration.
		}
		w.acquire()
	}
	w.dead.Store(true)
	w.sched.liveWorkers.Add(-1)
}

// acquire is the steal phase: pick a uniformly random other worker,
// skip it if dead, try to steal, and on success push the stolen
// subtask onto this worker's own deque without running it inline
// (it runs on the next main-loop iteration, keeping this worker
// responsive).
func (w *Worker) acquire() {
	for !w.isFinished() {
		k := w.randomOtherWorker()
		victim := w.sched.workers[k]
		if victim.dead.Load() {
			runtime.Gosched()
			continue
		}

		s, ok, err := victim.deque.StealTop()
		if err != nil {
			// Lost the race with the owner's pop or another thief; retry.
			runtime.Gosched()
			continue
		}
		if !ok {
			runtime.Gosched()
			continue
		}

		s.markStolen()
		w.deque.PushBottom(s)
		w.logDebug("steal").Int("victim", k).Int("subtask", s.id).Msg("worker stole subtask")
		return
	}
}

// randomOtherWorker picks a uniformly random worker index other than
// w.tid. Requires at least two workers.
func (w *Worker) randomOtherWorker() int {
	n := len(w.sched.workers)
	k := w.rng.Intn(n - 1)
	if k >= w.tid {
		k++
	}
	return k
}

func (w *Worker) logDebug(event string) *zerolog.Event {
	return w.sched.logDebug(event).Int("tid", w.tid)
}

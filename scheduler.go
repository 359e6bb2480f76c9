// Package scheduler implements a work-stealing parallel loop scheduler.
//
// A Scheduler owns a fixed pool of worker goroutines, each with its own
// Chase-Lev deque (internal/deque). Execute partitions a loop's
// iteration space into subtasks, pushes them onto the calling worker's
// own deque, and joins on their completion while other workers steal
// the remainder, the classic fork/join-over-work-stealing pattern.
package scheduler

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Scheduler is a fixed-size pool of workers shared across many Execute
// calls. Construct with New; release resources with Shutdown.
type Scheduler struct {
	workers     []*Worker
	numThreads  int
	shouldExit  atomic.Bool
	liveWorkers atomic.Int32

	spawnWG sync.WaitGroup
	logger  zerolog.Logger
}

func defaultNumThreads() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return n
}

// New allocates a Scheduler's workers and spawns NumThreads-1 worker
// goroutines; the calling goroutine is treated as worker 0 and only
// runs subtasks from its deque inside Execute's join loop.
func New(cfg Config) *Scheduler {
	if cfg.NumThreads <= 0 {
		cfg.NumThreads = defaultNumThreads()
	}
	if cfg.InitialDequeCapacity <= 0 {
		cfg.InitialDequeCapacity = 64
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	s := &Scheduler{
		numThreads: cfg.NumThreads,
		logger:     logger,
	}
	s.workers = make([]*Worker, cfg.NumThreads)
	for i := range s.workers {
		s.workers[i] = newWorker(i, s, cfg.InitialDequeCapacity)
	}
	s.liveWorkers.Store(int32(cfg.NumThreads))

	// Worker 0 is the calling goroutine; it never runs an independent
	// main loop of its own, only Execute's join loop.
	for i := 1; i < cfg.NumThreads; i++ {
		s.spawnWG.Add(1)
		go func(w *Worker) {
			defer s.spawnWG.Done()
			w.mainLoop(context.Background())
		}(s.workers[i])
	}

	s.logDebug("spawn").Int("num_threads", cfg.NumThreads).Msg("scheduler started")
	return s
}

// NumThreads returns the fixed worker count.
func (s *Scheduler) NumThreads() int { return s.numThreads }

// LiveWorkers returns the number of workers that have not yet observed
// Shutdown and exited their main loop. Worker 0, which has no main loop,
// is always counted, so this is 1 after Shutdown. Diagnostic only.
func (s *Scheduler) LiveWorkers() int { return int(s.liveWorkers.Load()) }

// Shutdown flags the pool for exit and waits for every spawned worker's
// main loop to observe its own deque empty and exit. It must only be
// called once all in-flight Execute calls have returned.
func (s *Scheduler) Shutdown() {
	s.shouldExit.Store(true)
	s.spawnWG.Wait()
	s.logDebug("shutdown").Msg("scheduler stopped")
}

// logDebug returns a Debug-level event on the configured logger (a
// zerolog.Nop() logger if none was configured, so chaining is always
// safe and nothing is emitted by default). Logging never participates
// in scheduling decisions.
func (s *Scheduler) logDebug(event string) *zerolog.Event {
	return s.logger.Debug().Str("event", event)
}

// partition computes the [start, end) ranges for nsubtasks dividing
// iterations across numThreads workers: the first remainder subtasks
// each carry one extra iteration.
func partition(iterations int64, numThreads int) (nsubtasks int, starts, ends []int64) {
	iterPerSubtask := iterations / int64(numThreads)
	remainder := iterations % int64(numThreads)

	if iterPerSubtask == 0 {
		nsubtasks = int(remainder)
	} else {
		nsubtasks = numThreads
	}

	starts = make([]int64, nsubtasks)
	ends = make([]int64, nsubtasks)
	start := int64(0)
	for i := 0; i < nsubtasks; i++ {
		end := start + iterPerSubtask
		if int64(i) < remainder {
			end++
		}
		starts[i] = start
		ends[i] = end
		start = end
	}
	return nsubtasks, starts, ends
}

// chunkHint computes the granularity-derived chunk count a subtask's
// kernel may use to further subdivide its own range. It never affects
// correctness, only internal subdivision.
func chunkHint(iterPerSubtask int64, granularity int) int {
	if granularity <= 0 {
		return 0
	}
	chunks := int(iterPerSubtask) / granularity
	if chunks == 0 {
		chunks = 1
	}
	return chunks
}

// callerWorker resolves the Worker record for the goroutine calling
// Execute. Only worker 0 is ever the calling thread in this design;
// Execute is not meant to be called concurrently from arbitrary
// goroutines.
func (s *Scheduler) callerWorker() *Worker {
	return s.workers[0]
}

// Execute partitions task.Iterations into subtasks, submits them onto
// the calling goroutine's own deque, and blocks until every subtask has
// completed or the submitter's own execution of a subtask reports a
// non-zero error. Must be called from the same goroutine across the
// Scheduler's lifetime (worker 0); see callerWorker.
func (s *Scheduler) Execute(ctx context.Context, task Task) (Stats, error) {
	if task.Fn == nil {
		return Stats{}, ErrNilKernel
	}
	if task.Iterations < 0 {
		return Stats{}, ErrNegativeIterations
	}
	if s.shouldExit.Load() {
		return Stats{}, ErrShutdown
	}

	// Zero iterations: no subtasks allocated, no join state created.
	if task.Iterations == 0 {
		return Stats{Subtasks: 0}, nil
	}

	w := s.callerWorker()

	nsubtasks, starts, ends := partition(task.Iterations, s.numThreads)
	iterPerSubtask := task.Iterations / int64(s.numThreads)
	chunks := chunkHint(iterPerSubtask, task.Granularity)

	js := newJoinState(nsubtasks)

	for i := 0; i < nsubtasks; i++ {
		sub := &Subtask{
			fn:        task.Fn,
			args:      task.Args,
			start:     starts[i],
			end:       ends[i],
			chunkSize: chunks,
			id:        i,
			join:      js,
			createdBy: int32(w.tid),
		}
		w.deque.PushBottom(sub)
	}

	s.logDebug("submit").Str("name", task.Name).Int("subtasks", nsubtasks).Msg("loop submitted")

	err := s.join(ctx, w, js)

	stats := Stats{Subtasks: nsubtasks}
	if task.Granularity > 0 {
		stats.Subtasks = s.numThreads
	}
	return stats, err
}

// join is the submitter's join loop: it executes subtasks from its own
// deque while other workers steal the remainder, and returns as soon as
// either the counter reaches zero or a submitter-run subtask reports an
// error (fast-fail). The submitter never steals during join; it only
// drains work not yet stolen, leaving stealing to the other workers.
func (s *Scheduler) join(ctx context.Context, w *Worker, js *joinState) error {
	defer js.release()

	for {
		if js.remaining() == 0 {
			return js.loadError()
		}

		sub, ok := w.deque.PopBottom()
		if !ok {
			// Nothing left on our own deque; other workers are stealing
			// the rest. Wait for the counter to reach zero rather than
			// stealing ourselves; we serve only the work not yet stolen.
			js.waitUntilDone()
			return js.loadError()
		}

		code, done := sub.run(ctx, w.tid)
		if code != 0 {
			// Fast-fail: the submitter's own execution hit an error.
			// Already-pushed siblings keep running to completion on
			// other workers, each dropping its own join reference.
			return &KernelError{Code: code, SubtaskID: sub.id}
		}
		if done {
			return js.loadError()
		}
	}
}

// DoSequential bypasses the parallel machinery entirely, invoking a
// user-provided sequential function directly. It is a boundary API,
// not part of the parallel core, and always passes tid 0, including
// when called from inside a worker goroutine.
func (s *Scheduler) DoSequential(ctx context.Context, task SequentialTask) error {
	if s.shouldExit.Load() {
		return ErrShutdown
	}
	tid := 0
	code := task.Fn(ctx, task.Args, task.Iterations, tid)
	if code != 0 {
		return &KernelError{Code: code}
	}
	return nil
}

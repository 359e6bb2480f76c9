// Command loopsched is a thin boundary CLI around the scheduler
// package: it wires flag-driven configuration, zerolog logging, and a
// handful of toy kernels to the core Execute/DoSequential API. None of
// the scheduling logic lives here; this package owns only the
// surrounding concerns: thread count, CLI flags, and logging.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	scheduler "github.com/go-foundations/loopsched"
)

func main() {
	var (
		numThreads  = flag.Int("threads", 0, "worker count (0 = GOMAXPROCS)")
		iterations  = flag.Int64("iterations", 1_000_000, "loop iteration count")
		granularity = flag.Int("granularity", 0, "chunking hint, 0 = none")
		runs        = flag.Int("runs", 1, "number of independent parallel loops to fan out concurrently")
		failAt      = flag.Int("fail-at", -1, "subtask id to force-fail, -1 = never")
		sequential  = flag.Bool("sequential", false, "bypass the scheduler and run the sequential fallback")
		debug       = flag.Bool("debug", false, "enable debug-level scheduler tracing")
	)
	flag.Parse()

	logger := newLogger(*debug)

	sched := scheduler.New(scheduler.Config{
		NumThreads: *numThreads,
		Logger:     &logger,
	})
	defer sched.Shutdown()

	ctx := context.Background()

	if *sequential {
		if err := runSequential(ctx, sched, *iterations); err != nil {
			logger.Error().Err(err).Msg("sequential run failed")
			os.Exit(1)
		}
		return
	}

	if err := runParallel(ctx, sched, *runs, *iterations, *granularity, *failAt, logger); err != nil {
		logger.Error().Err(err).Msg("parallel run failed")
		os.Exit(1)
	}
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}

// sumOfSquares is a toy associative kernel: each subtask accumulates
// the sum of squares over its own range into a per-subtask slot, so
// subtasks never race on shared memory.
func sumOfSquares(partials []float64) scheduler.KernelFunc {
	return func(ctx context.Context, args any, start, end int64, id int) int {
		var sum float64
		for i := start; i < end; i++ {
			sum += math.Pow(float64(i), 2)
		}
		partials[id] = sum
		return 0
	}
}

func failingKernel(partials []float64, failAt int) scheduler.KernelFunc {
	base := sumOfSquares(partials)
	return func(ctx context.Context, args any, start, end int64, id int) int {
		if failAt >= 0 && id == failAt {
			return 1
		}
		return base(ctx, args, start, end, id)
	}
}

// runParallel fans out `runs` independent Execute calls concurrently
// over the same Scheduler, using errgroup to aggregate the first error
// across runs (distinct from the per-loop join state, which only
// tracks one Execute call's own subtasks).
func runParallel(ctx context.Context, sched *scheduler.Scheduler, runs int, iterations int64, granularity, failAt int, logger zerolog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	for r := 0; r < runs; r++ {
		r := r
		g.Go(func() error {
			partials := make([]float64, sched.NumThreads())
			kernel := failingKernel(partials, failAt)

			start := time.Now()
			stats, err := sched.Execute(gctx, scheduler.Task{
				Fn:          kernel,
				Iterations:  iterations,
				Granularity: granularity,
				Name:        fmt.Sprintf("sum-of-squares-%d", r),
			})
			elapsed := time.Since(start)

			total := 0.0
			for _, p := range partials {
				total += p
			}

			logger.Info().
				Int("run", r).
				Int("subtasks", stats.Subtasks).
				Dur("elapsed", elapsed).
				Float64("result", total).
				Err(err).
				Msg("loop finished")

			return err
		})
	}

	return g.Wait()
}

func runSequential(ctx context.Context, sched *scheduler.Scheduler, iterations int64) error {
	var total float64
	err := sched.DoSequential(ctx, scheduler.SequentialTask{
		Fn: func(ctx context.Context, args any, n int64, tid int) int {
			for i := int64(0); i < n; i++ {
				total += math.Pow(float64(i), 2)
			}
			return 0
		},
		Iterations: iterations,
		Name:       "sum-of-squares-sequential",
	})
	if err != nil {
		return err
	}
	fmt.Printf("sequential result: %v\n", total)
	return nil
}

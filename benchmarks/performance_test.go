package benchmarks

import (
	"context"
	"fmt"
	"testing"
	"time"

	scheduler "github.com/go-foundations/loopsched"
)

// Benchmark different worker counts over a fixed iteration count.
func BenchmarkWorkerCounts(b *testing.B) {
	workerCounts := []int{1, 2, 4, 8, 16}

	for _, numWorkers := range workerCounts {
		b.Run(fmt.Sprintf("Workers_%d", numWorkers), func(b *testing.B) {
			sched := scheduler.New(scheduler.Config{NumThreads: numWorkers})
			defer sched.Shutdown()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, err := sched.Execute(context.Background(), scheduler.Task{
					Fn:         noopKernel,
					Iterations: 1_000_000,
				})
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// Benchmark different loop sizes at a fixed worker count.
func BenchmarkIterationCounts(b *testing.B) {
	iterationCounts := []int64{10, 1000, 100_000, 10_000_000}

	sched := scheduler.New(scheduler.Config{NumThreads: 4})
	defer sched.Shutdown()

	for _, n := range iterationCounts {
		b.Run(fmt.Sprintf("Iterations_%d", n), func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, err := sched.Execute(context.Background(), scheduler.Task{
					Fn:         noopKernel,
					Iterations: n,
				})
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// Benchmark different granularity hints at a fixed worker and
// iteration count, to see how the chunking hint interacts with
// per-subtask work.
func BenchmarkGranularity(b *testing.B) {
	granularities := []int{0, 1, 16, 256, 4096}

	sched := scheduler.New(scheduler.Config{NumThreads: 8})
	defer sched.Shutdown()

	for _, g := range granularities {
		b.Run(fmt.Sprintf("Granularity_%d", g), func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, err := sched.Execute(context.Background(), scheduler.Task{
					Fn:          noopKernel,
					Iterations:  1_000_000,
					Granularity: g,
				})
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// Benchmark varying simulated per-iteration processing costs over the
// static even split (see BenchmarkSkewedWorkStealing for a skewed one).
func BenchmarkProcessingTimes(b *testing.B) {
	procTimes := []time.Duration{
		0,
		1 * time.Microsecond,
		10 * time.Microsecond,
	}

	sched := scheduler.New(scheduler.Config{NumThreads: 4})
	defer sched.Shutdown()

	for _, procTime := range procTimes {
		b.Run(fmt.Sprintf("ProcTime_%v", procTime), func(b *testing.B) {
			fn := func(ctx context.Context, args any, start, end int64, id int) int {
				if procTime > 0 {
					time.Sleep(procTime * time.Duration(end-start))
				}
				return 0
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, err := sched.Execute(context.Background(), scheduler.Task{
					Fn:         fn,
					Iterations: 100,
				})
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkSkewedWorkStealing pushes all work onto one deque with
// wildly uneven per-subtask cost, so workers that steal the cheap
// subtasks finish early and go back to stealing (the other benchmarks
// give every subtask the same cost).
func BenchmarkSkewedWorkStealing(b *testing.B) {
	sched := scheduler.New(scheduler.Config{NumThreads: 8})
	defer sched.Shutdown()

	fn := func(ctx context.Context, args any, start, end int64, id int) int {
		// Earlier subtasks simulate disproportionately expensive work.
		weight := 8 - id
		if weight < 1 {
			weight = 1
		}
		time.Sleep(time.Duration(weight) * 50 * time.Microsecond)
		return 0
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := sched.Execute(context.Background(), scheduler.Task{
			Fn:         fn,
			Iterations: 800,
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

func noopKernel(ctx context.Context, args any, start, end int64, id int) int {
	return 0
}

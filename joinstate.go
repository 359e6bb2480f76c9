package scheduler

import (
	"sync"
	"sync/atomic"
)

// joinState is the shared counter and synchronization primitives
// tracking completion of one Execute call's subtasks.
//
// refs is a reference count on the join state: every subtask holds one
// reference for its lifetime, plus one held by the submitter itself.
type joinState struct {
	mu      sync.Mutex
	cond    *sync.Cond
	counter int64

	refs atomic.Int32

	errOnce sync.Once
	err     atomic.Value // stores error
}

func newJoinState(nsubtasks int) *joinState {
	js := &joinState{counter: int64(nsubtasks)}
	js.cond = sync.NewCond(&js.mu)
	js.refs.Store(int32(nsubtasks) + 1) // +1 for the submitter
	return js
}

// release drops one reference. Called once per subtask after it
// completes, and once by the submitter when it stops needing the join
// state (either because it fast-failed or because it observed the
// counter reach zero).
func (js *joinState) release() {
	js.refs.Add(-1)
}

// complete records one subtask's outcome and returns true if it was
// the last outstanding subtask for this loop.
func (js *joinState) complete(code int, subtaskID int) (done bool) {
	js.mu.Lock()
	if code != 0 {
		js.recordError(&KernelError{Code: code, SubtaskID: subtaskID})
	}
	js.counter--
	done = js.counter == 0
	if done {
		js.cond.Broadcast()
	}
	js.mu.Unlock()
	return done
}

// recordError publishes the first non-nil error; subsequent errors are
// dropped (first non-zero wins).
func (js *joinState) recordError(err error) {
	js.errOnce.Do(func() {
		js.err.Store(err)
	})
}

func (js *joinState) loadError() error {
	v := js.err.Load()
	if v == nil {
		return nil
	}
	return v.(error)
}

// remaining returns a best-effort snapshot of the outstanding count.
func (js *joinState) remaining() int64 {
	js.mu.Lock()
	defer js.mu.Unlock()
	return js.counter
}

// waitUntilDone blocks until counter reaches zero.
func (js *joinState) waitUntilDone() {
	js.mu.Lock()
	for js.counter != 0 {
		js.cond.Wait()
	}
	js.mu.Unlock()
}

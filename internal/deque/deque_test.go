package deque

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"
)

type DequeTestSuite struct {
	suite.Suite
}

func TestDequeTestSuite(t *testing.T) {
	suite.Run(t, new(DequeTestSuite))
}

func (ts *DequeTestSuite) TestPushPopLIFO() {
	d := New[int](4)
	d.PushBottom(1)
	d.PushBottom(2)
	d.PushBottom(3)

	v, ok := d.PopBottom()
	ts.True(ok)
	ts.Equal(3, v)

	v, ok = d.PopBottom()
	ts.True(ok)
	ts.Equal(2, v)
}

func (ts *DequeTestSuite) TestPopEmpty() {
	d := New[int](4)
	_, ok := d.PopBottom()
	ts.False(ok)
}

func (ts *DequeTestSuite) TestStealFIFO() {
	d := New[int](4)
	d.PushBottom(1)
	d.PushBottom(2)
	d.PushBottom(3)

	v, ok, err := d.StealTop()
	ts.NoError(err)
	ts.True(ok)
	ts.Equal(1, v)

	v, ok, err = d.StealTop()
	ts.NoError(err)
	ts.True(ok)
	ts.Equal(2, v)
}

func (ts *DequeTestSuite) TestStealEmpty() {
	d := New[int](4)
	_, ok, err := d.StealTop()
	ts.NoError(err)
	ts.False(ok)
}

func (ts *DequeTestSuite) TestGrows() {
	d := New[int](2)
	for i := 0; i < 100; i++ {
		d.PushBottom(i)
	}
	ts.Equal(100, d.Size())
	for i := 99; i >= 0; i-- {
		v, ok := d.PopBottom()
		ts.True(ok)
		ts.Equal(i, v)
	}
	ts.True(d.Empty())
}

// TestConcurrentStealAndPop exercises the exactly-once guarantee: N
// items pushed by the owner, drained concurrently by the owner (pop)
// and many thieves (steal); each item must be observed exactly once.
func (ts *DequeTestSuite) TestConcurrentStealAndPop() {
	const n = 20000
	d := New[int](16)
	for i := 0; i < n; i++ {
		d.PushBottom(i)
	}

	seen := make([]atomicFlag, n)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var dupes int

	mark := func(v int) {
		if !seen[v].setTrue() {
			mu.Lock()
			dupes++
			mu.Unlock()
		}
	}

	const thieves = 8
	wg.Add(thieves)
	for i := 0; i < thieves; i++ {
		go func() {
			defer wg.Done()
			for {
				v, ok, err := d.StealTop()
				if err != nil {
					continue
				}
				if !ok {
					if d.Empty() {
						return
					}
					continue
				}
				mark(v)
			}
		}()
	}

	for {
		v, ok := d.PopBottom()
		if !ok {
			if d.Empty() {
				break
			}
			continue
		}
		mark(v)
	}

	wg.Wait()
	ts.Zero(dupes)

	missing := 0
	for i := range seen {
		if !seen[i].v.Load() {
			missing++
		}
	}
	ts.Zero(missing)
}

type atomicFlag struct {
	v atomic.Bool
}

func (f *atomicFlag) setTrue() bool {
	return f.v.CompareAndSwap(false, true)
}

package queue

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// Niced workers may never run on a loaded CI machine.
	PreventStarvation()
	m.Run()
}

func TestQueuePriorityOrdering(t *testing.T) {
	q := New()

	var mu sync.Mutex
	var order []int

	record := func(pri int) Task {
		return Task{
			QueuePri: pri,
			Run: func() {
				mu.Lock()
				order = append(order, pri)
				mu.Unlock()
			},
		}
	}

	// Push before starting the worker so ordering is fully determined by
	// priority, not arrival.
	q.Append([]Task{record(5), record(1), record(5), record(3)})

	done := make(chan struct{})
	go func() {
		q.Work(nil)
		close(done)
	}()

	require.True(t, q.BlockUntilIdleForTest(5*time.Second))
	q.Stop()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 4)
	assert.ElementsMatch(t, []int{5, 5}, order[:2], "both priority-5 tasks must run first")
	assert.Equal(t, 3, order[2])
	assert.Equal(t, 1, order[3])
}

func TestQueueIdleDetection(t *testing.T) {
	q := New()

	var done sync.WaitGroup
	for i := 0; i < 3; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			q.Work(nil)
		}()
	}

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		q.Push(Task{Run: func() { ran.Add(1) }})
	}

	require.True(t, q.BlockUntilIdleForTest(5*time.Second))
	assert.Equal(t, int32(10), ran.Load())

	q.Stop()
	done.Wait()
}

func TestQueueIdleWaitsForNestedTasks(t *testing.T) {
	q := New()

	done := make(chan struct{})
	go func() {
		q.Work(nil)
		close(done)
	}()

	var outer, inner atomic.Bool
	release := make(chan struct{})
	q.Push(Task{Run: func() {
		// The nested task is queued before the outer task completes, so
		// the queue must not report idle in between.
		q.Push(Task{Run: func() { inner.Store(true) }})
		<-release
		outer.Store(true)
	}})

	// While the outer task is blocked the queue is not idle.
	assert.False(t, q.BlockUntilIdleForTest(50*time.Millisecond))

	close(release)
	require.True(t, q.BlockUntilIdleForTest(5*time.Second))
	assert.True(t, outer.Load())
	assert.True(t, inner.Load(), "idle must not be reported before nested tasks complete")

	q.Stop()
	<-done
}

func TestQueueStopSemantics(t *testing.T) {
	q := New()

	done := make(chan struct{})
	go func() {
		q.Work(nil)
		close(done)
	}()

	started := make(chan struct{})
	release := make(chan struct{})
	var aFinished, bStarted atomic.Bool

	q.Push(Task{QueuePri: 1, Run: func() {
		close(started)
		<-release
		aFinished.Store(true)
	}})
	<-started

	// B is queued behind the running task on a single worker.
	q.Push(Task{QueuePri: 0, Run: func() { bStarted.Store(true) }})

	q.Stop()
	close(release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not return after Stop")
	}

	assert.True(t, aFinished.Load(), "in-flight task must finish")
	assert.False(t, bStarted.Load(), "queued-but-unstarted task must be discarded")
}

func TestQueueOnIdleInvoked(t *testing.T) {
	q := New()

	var idleCalls atomic.Int32
	done := make(chan struct{})
	go func() {
		q.Work(func() { idleCalls.Add(1) })
		close(done)
	}()

	q.Push(Task{Run: func() {}})
	require.True(t, q.BlockUntilIdleForTest(5*time.Second))

	assert.Eventually(t, func() bool { return idleCalls.Load() >= 1 },
		time.Second, 10*time.Millisecond)

	q.Stop()
	<-done
}

func TestQueuePushFromWorker(t *testing.T) {
	q := New()

	var done sync.WaitGroup
	for i := 0; i < 4; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			q.Work(nil)
		}()
	}

	// Chain of tasks, each enqueued by its predecessor from worker context.
	const depth = 100
	var ran atomic.Int32
	var chain func(n int)
	chain = func(n int) {
		ran.Add(1)
		if n > 0 {
			q.Push(Task{Run: func() { chain(n - 1) }})
		}
	}
	q.Push(Task{Run: func() { chain(depth - 1) }})

	require.True(t, q.BlockUntilIdleForTest(10*time.Second))
	assert.Equal(t, int32(depth), ran.Load())

	q.Stop()
	done.Wait()
}

func TestQueueBlockUntilIdleTimeout(t *testing.T) {
	q := New()

	done := make(chan struct{})
	go func() {
		q.Work(nil)
		close(done)
	}()

	release := make(chan struct{})
	q.Push(Task{Run: func() { <-release }})

	assert.False(t, q.BlockUntilIdleForTest(50*time.Millisecond))

	close(release)
	require.True(t, q.BlockUntilIdleForTest(5*time.Second))

	q.Stop()
	<-done
}

func TestQueueDrainWaitsForQueuedWork(t *testing.T) {
	q := New()

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		q.Push(Task{Run: func() { ran.Add(1) }})
	}

	done := make(chan struct{})
	go func() {
		q.Work(nil)
		close(done)
	}()

	q.Drain()
	assert.EqualValues(t, 10, ran.Load())

	q.Stop()
	<-done
}

func TestQueueDrainReturnsWhenStopped(t *testing.T) {
	q := New()
	q.Stop()

	// No workers will ever run; Drain must not hang.
	finished := make(chan struct{})
	go func() {
		q.Drain()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("Drain did not return on a stopped queue")
	}
}

func TestQueueDropsTasksAfterStop(t *testing.T) {
	q := New()
	q.Stop()

	var ran atomic.Int32
	q.Push(Task{Run: func() { ran.Add(1) }})
	q.Append([]Task{{Run: func() { ran.Add(1) }}})

	// Nothing was accepted: the queue reports idle immediately and the
	// tasks never execute, even if a worker is attached afterwards.
	assert.True(t, q.BlockUntilIdleForTest(time.Second))

	done := make(chan struct{})
	go func() {
		q.Work(nil)
		close(done)
	}()
	<-done
	assert.Zero(t, ran.Load())
}

// Package queue implements the priority work queue consumed by the background
// indexer's worker pool.
//
// The queue is unbounded and priority-ordered: workers always take the
// highest queue-priority task available, with ties broken arbitrarily. There
// is no backpressure; a continuous stream of high-priority tasks can starve
// lower priorities indefinitely. Each task additionally carries an OS
// thread-priority hint so that expensive background work yields to
// interactive processes (see PreventStarvation for the escape hatch).
package queue

import (
	"container/heap"
	"sync"
	"time"
)

// ThreadPriority is an OS-scheduling hint for a task. It affects only the
// niceness of the worker thread while the task runs, never queue ordering.
type ThreadPriority int

const (
	// ThreadBackground lowers the worker thread's priority for the duration
	// of the task.
	ThreadBackground ThreadPriority = iota

	// ThreadNormal runs the task at the process's default priority.
	ThreadNormal
)

// Task is a unit of work on the queue.
type Task struct {
	// Run executes the task. Must not be nil.
	Run func()

	// ThreadPri is the OS-scheduling hint applied while Run executes.
	ThreadPri ThreadPriority

	// QueuePri orders the queue; higher-priority tasks run first.
	QueuePri int
}

// Queue is a priority queue of tasks drained by external worker goroutines.
// All methods are safe for concurrent use, including from inside a running
// task.
type Queue struct {
	mu      sync.Mutex
	tasks   taskHeap
	active  int // tasks currently executing; idle only when 0 and the heap is empty
	stopped bool

	// notify is closed and replaced whenever queue state changes, waking
	// anything blocked in Work or BlockUntilIdleForTest.
	notify chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{notify: make(chan struct{})}
}

// Push adds a task to the queue. Tasks pushed after Stop are dropped.
func (q *Queue) Push(t Task) {
	q.mu.Lock()
	if !q.stopped {
		heap.Push(&q.tasks, t)
		q.broadcastLocked()
	}
	q.mu.Unlock()
}

// Append adds several tasks to the queue. Tasks appended after Stop are
// dropped.
func (q *Queue) Append(tasks []Task) {
	q.mu.Lock()
	if !q.stopped {
		for _, t := range tasks {
			heap.Push(&q.tasks, t)
		}
		q.broadcastLocked()
	}
	q.mu.Unlock()
}

// Work processes tasks until the queue is stopped. It is intended to run on a
// dedicated worker goroutine; several workers may share one queue.
//
// When a finished task leaves the queue idle (empty and nothing running),
// onIdle is invoked on that worker before it goes back to waiting. onIdle may
// be nil.
func (q *Queue) Work(onIdle func()) {
	for {
		q.mu.Lock()
		for q.tasks.Len() == 0 && !q.stopped {
			ch := q.notify
			q.mu.Unlock()
			<-ch
			q.mu.Lock()
		}
		if q.stopped {
			// Queued-but-unstarted tasks are discarded.
			q.tasks = nil
			q.broadcastLocked()
			q.mu.Unlock()
			return
		}
		t := heap.Pop(&q.tasks).(Task)
		q.active++
		q.mu.Unlock()

		runWithThreadPriority(t.ThreadPri, t.Run)

		q.mu.Lock()
		q.active--
		idle := q.active == 0 && q.tasks.Len() == 0
		q.broadcastLocked()
		q.mu.Unlock()

		if idle && onIdle != nil {
			onIdle()
		}
	}
}

// Stop marks the queue stopped and wakes all waiters. In-flight tasks finish;
// queued tasks are dropped. All Work calls return once their current task
// completes.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.broadcastLocked()
	q.mu.Unlock()
}

// Drain blocks until the queue is idle (empty with no running tasks) or
// stopped. Batch-mode callers use this to wait out announced work before
// shutting down; note that tasks may keep scheduling follow-up tasks, in
// which case Drain blocks until the chain ends.
func (q *Queue) Drain() {
	q.mu.Lock()
	for !(q.active == 0 && q.tasks.Len() == 0) && !q.stopped {
		ch := q.notify
		q.mu.Unlock()
		<-ch
		q.mu.Lock()
	}
	q.mu.Unlock()
}

// BlockUntilIdleForTest blocks until the queue is idle (empty with no running
// tasks) or the timeout elapses. It reports whether idle was reached.
// Test-only synchronization; production callers rely on Drain and Stop.
func (q *Queue) BlockUntilIdleForTest(timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	q.mu.Lock()
	for !(q.active == 0 && q.tasks.Len() == 0) {
		ch := q.notify
		q.mu.Unlock()
		select {
		case <-ch:
		case <-deadline.C:
			return false
		}
		q.mu.Lock()
	}
	q.mu.Unlock()
	return true
}

// broadcastLocked wakes every waiter. Caller must hold q.mu.
func (q *Queue) broadcastLocked() {
	close(q.notify)
	q.notify = make(chan struct{})
}

// taskHeap is a max-heap over QueuePri. Order among equal priorities is
// unspecified.
type taskHeap []Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool { return h[i].QueuePri > h[j].QueuePri }

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(Task)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = Task{}
	*h = old[:n-1]
	return t
}

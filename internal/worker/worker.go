// Package worker runs background tasks strictly in submission order on a
// single goroutine.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/grovetools/launcher/errors"
	"github.com/sirupsen/logrus"
)

// Task is a unit of background work. The context it receives identifies the
// worker, so Run and Flush called from inside a task execute inline.
type Task func(ctx context.Context)

// Priority is a scheduling hint. Goroutines have no OS priority, so
// background priority makes the worker yield the processor between tasks
// and at explicit Yield points.
type Priority int32

const (
	PriorityDefault Priority = iota
	PriorityBackground
)

func (p Priority) String() string {
	if p == PriorityBackground {
		return "background"
	}
	return "default"
}

type ctxKey struct{}

// Worker is an unbounded FIFO executor backed by one goroutine.
type Worker struct {
	name   string
	logger *logrus.Entry

	mu      sync.Mutex
	queue   []Task
	closed  bool
	started bool

	wake chan struct{}
	done chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	priority atomic.Int32
	executed atomic.Uint64
	panics   atomic.Uint64
}

// New creates a worker. Start must be called before queued tasks execute.
func New(name string, logger *logrus.Entry) *Worker {
	w := &Worker{
		name:   name,
		logger: logger.WithField("worker", name),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	w.ctx, w.cancel = context.WithCancel(context.WithValue(context.Background(), ctxKey{}, w))
	return w
}

// Start launches the worker goroutine. Calling it twice is a no-op.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.closed {
		return
	}
	w.started = true
	go w.loop()
}

// Close stops accepting tasks, runs everything already queued and waits for
// the goroutine to exit. It must not be called from a task.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	started := w.started
	if !started {
		// Never started: nothing will drain the queue.
		w.queue = nil
		close(w.done)
	}
	w.mu.Unlock()

	w.signal()
	<-w.done
	w.cancel()
}

// Context returns the context tasks run with.
func (w *Worker) Context() context.Context {
	return w.ctx
}

// IsCurrent reports whether ctx belongs to a task running on this worker.
func (w *Worker) IsCurrent(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	owner, _ := ctx.Value(ctxKey{}).(*Worker)
	return owner == w
}

// Post enqueues a task. It never runs the task inline.
func (w *Worker) Post(task Task) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return errors.New(errors.ErrCodeWorkerStopped, fmt.Sprintf("worker %s is closed", w.name))
	}
	w.queue = append(w.queue, task)
	w.mu.Unlock()

	w.signal()
	return nil
}

// Run executes task immediately when ctx is already on this worker,
// otherwise it enqueues it.
func (w *Worker) Run(ctx context.Context, task Task) error {
	if w.IsCurrent(ctx) {
		w.execute(ctx, task)
		return nil
	}
	return w.Post(task)
}

// Flush blocks until every task enqueued before the call has finished.
// From inside a task it runs the pending tasks inline instead, since the
// worker goroutine cannot wait on itself. Cancellation of ctx does not cut
// the wait short: callers rely on the barrier having been passed.
func (w *Worker) Flush(ctx context.Context) error {
	if w.IsCurrent(ctx) {
		w.drainInline(ctx)
		return nil
	}

	barrier := make(chan struct{})
	if err := w.Post(func(context.Context) { close(barrier) }); err != nil {
		return err
	}
	for {
		select {
		case <-barrier:
			return nil
		case <-ctx.Done():
			w.logger.Debug("flush wait interrupted, continuing to wait for barrier")
			ctx = context.Background()
		}
	}
}

// Pending returns the number of queued tasks.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Executed returns how many tasks have completed, including ones that panicked.
func (w *Worker) Executed() uint64 {
	return w.executed.Load()
}

// SetPriority changes the scheduling hint for subsequent tasks.
func (w *Worker) SetPriority(p Priority) {
	if Priority(w.priority.Swap(int32(p))) != p {
		w.logger.WithField("priority", p.String()).Debug("worker priority changed")
	}
}

// Priority returns the current scheduling hint.
func (w *Worker) Priority() Priority {
	return Priority(w.priority.Load())
}

// Yield gives up the processor when running at background priority.
func (w *Worker) Yield() {
	if w.Priority() == PriorityBackground {
		runtime.Gosched()
	}
}

func (w *Worker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Worker) loop() {
	defer close(w.done)
	for {
		task, ok := w.next()
		if !ok {
			return
		}
		w.execute(w.ctx, task)
		w.Yield()
	}
}

func (w *Worker) next() (Task, bool) {
	for {
		w.mu.Lock()
		if len(w.queue) > 0 {
			task := w.queue[0]
			w.queue[0] = nil
			w.queue = w.queue[1:]
			w.mu.Unlock()
			return task, true
		}
		if w.closed {
			w.mu.Unlock()
			return nil, false
		}
		w.mu.Unlock()
		<-w.wake
	}
}

// drainInline runs the tasks queued at call time on the calling task's goroutine.
func (w *Worker) drainInline(ctx context.Context) {
	w.mu.Lock()
	pending := w.queue
	w.queue = nil
	w.mu.Unlock()

	for _, task := range pending {
		w.execute(ctx, task)
	}
}

func (w *Worker) execute(ctx context.Context, task Task) {
	defer w.executed.Add(1)
	defer func() {
		if r := recover(); r != nil {
			w.panics.Add(1)
			w.logger.WithFields(logrus.Fields{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}).Error("background task panicked")
		}
	}()
	task(ctx)
}

// Package dispatcher serializes work onto the UI execution context.
//
// The UI context is whatever goroutine runs Run (or calls Flush). Entries
// execute one at a time in post order; idle entries execute only once no
// other entry is pending.
package dispatcher

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Category tags posted work so it can be cancelled as a group.
type Category int

const (
	CategoryNormal Category = iota
	CategoryBinding
)

func (c Category) String() string {
	switch c {
	case CategoryNormal:
		return "normal"
	case CategoryBinding:
		return "binding"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Work runs on the UI context.
type Work func(ctx context.Context)

type entry struct {
	work     Work
	category Category
}

type ctxKey struct{}

// Dispatcher is the UI-side queue.
type Dispatcher struct {
	logger *logrus.Entry

	mu      sync.Mutex
	pending []entry
	idle    []Work
	wake    chan struct{}

	// exec is held while an entry runs so Run and Flush never overlap.
	exec sync.Mutex

	executed  atomic.Uint64
	cancelled atomic.Uint64
}

// New creates an empty dispatcher.
func New(logger *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		logger: logger.WithField("context", "ui"),
		wake:   make(chan struct{}, 1),
	}
}

// Post enqueues work under a category.
func (d *Dispatcher) Post(work Work, category Category) {
	d.mu.Lock()
	d.pending = append(d.pending, entry{work: work, category: category})
	d.mu.Unlock()
	d.signal()
}

// PostIdle enqueues work that runs once no other entry is pending.
func (d *Dispatcher) PostIdle(work Work) {
	d.mu.Lock()
	d.idle = append(d.idle, work)
	d.mu.Unlock()
	d.signal()
}

// CancelAll removes every pending non-idle entry of the category and
// returns how many were dropped. Idle entries are never removed.
func (d *Dispatcher) CancelAll(category Category) int {
	d.mu.Lock()
	kept := d.pending[:0]
	dropped := 0
	for _, e := range d.pending {
		if e.category == category {
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(d.pending); i++ {
		d.pending[i] = entry{}
	}
	d.pending = kept
	d.mu.Unlock()

	if dropped > 0 {
		d.cancelled.Add(uint64(dropped))
		d.logger.WithFields(logrus.Fields{
			"category": category.String(),
			"dropped":  dropped,
		}).Debug("cancelled pending UI work")
	}
	return dropped
}

// IsCurrent reports whether ctx belongs to work running on the UI context.
func (d *Dispatcher) IsCurrent(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	owner, _ := ctx.Value(ctxKey{}).(*Dispatcher)
	return owner == d
}

// RunOnUI executes work inline when ctx is already on the UI context,
// otherwise it posts it.
func (d *Dispatcher) RunOnUI(ctx context.Context, work Work, category Category) {
	if d.IsCurrent(ctx) {
		d.execute(ctx, work)
		return
	}
	d.Post(work, category)
}

// Flush synchronously executes every pending entry, idle entries included,
// on the caller's goroutine. Entries posted while flushing run too.
func (d *Dispatcher) Flush(ctx context.Context) {
	nested := d.IsCurrent(ctx)
	uiCtx := d.mark(ctx)
	for d.runNext(uiCtx, nested) {
	}
}

// Run is the UI loop. It returns when ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	uiCtx := d.mark(ctx)
	for {
		if d.runNext(uiCtx, false) {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.wake:
		}
	}
}

// Pending returns the number of queued entries, idle ones included.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending) + len(d.idle)
}

// PendingIn returns the number of queued non-idle entries of a category.
func (d *Dispatcher) PendingIn(category Category) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, e := range d.pending {
		if e.category == category {
			n++
		}
	}
	return n
}

// Executed returns the number of entries run so far.
func (d *Dispatcher) Executed() uint64 {
	return d.executed.Load()
}

func (d *Dispatcher) mark(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if d.IsCurrent(ctx) {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, d)
}

// take pops the next runnable entry: posted work first, then idle work.
func (d *Dispatcher) take() (Work, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) > 0 {
		e := d.pending[0]
		d.pending[0] = entry{}
		d.pending = d.pending[1:]
		return e.work, true
	}
	if len(d.idle) > 0 {
		w := d.idle[0]
		d.idle[0] = nil
		d.idle = d.idle[1:]
		return w, true
	}
	return nil, false
}

// runNext takes and runs the next entry while owning exec, so entries run
// in take order even when Run and Flush race. held is true when the caller
// is itself an executing entry and therefore already owns exec.
func (d *Dispatcher) runNext(ctx context.Context, held bool) bool {
	if !held {
		d.exec.Lock()
		defer d.exec.Unlock()
	}
	work, ok := d.take()
	if !ok {
		return false
	}
	d.execute(ctx, work)
	return true
}

func (d *Dispatcher) execute(ctx context.Context, work Work) {
	defer d.executed.Add(1)
	defer func() {
		if r := recover(); r != nil {
			d.logger.WithFields(logrus.Fields{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}).Error("UI work panicked")
		}
	}()
	work(d.mark(ctx))
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

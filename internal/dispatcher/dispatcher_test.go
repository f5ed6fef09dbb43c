package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestDispatcher() *Dispatcher {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(logrus.NewEntry(logger))
}

type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) add(s string) Work {
	return func(context.Context) {
		r.mu.Lock()
		r.got = append(r.got, s)
		r.mu.Unlock()
	}
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func TestFlushRunsInPostOrderWithIdleLast(t *testing.T) {
	d := newTestDispatcher()
	r := &recorder{}

	d.PostIdle(r.add("idle"))
	d.Post(r.add("a"), CategoryNormal)
	d.Post(r.add("b"), CategoryBinding)
	d.Post(r.add("c"), CategoryNormal)

	d.Flush(context.Background())
	assert.Equal(t, []string{"a", "b", "c", "idle"}, r.list())
	assert.Equal(t, 0, d.Pending())
}

func TestCancelAllOnlyDropsCategory(t *testing.T) {
	d := newTestDispatcher()
	r := &recorder{}

	d.Post(r.add("n1"), CategoryNormal)
	d.Post(r.add("b1"), CategoryBinding)
	d.PostIdle(r.add("idle"))
	d.Post(r.add("b2"), CategoryBinding)
	d.Post(r.add("n2"), CategoryNormal)

	assert.Equal(t, 2, d.PendingIn(CategoryBinding))
	assert.Equal(t, 2, d.CancelAll(CategoryBinding))
	assert.Equal(t, 0, d.PendingIn(CategoryBinding))

	d.Flush(context.Background())
	assert.Equal(t, []string{"n1", "n2", "idle"}, r.list())
}

func TestWorkPostedDuringFlushRuns(t *testing.T) {
	d := newTestDispatcher()
	r := &recorder{}

	d.Post(func(ctx context.Context) {
		assert.True(t, d.IsCurrent(ctx))
		d.Post(r.add("second"), CategoryNormal)
		r.add("first")(ctx)
	}, CategoryNormal)

	d.Flush(context.Background())
	assert.Equal(t, []string{"first", "second"}, r.list())
}

func TestNestedFlushAndRunOnUI(t *testing.T) {
	d := newTestDispatcher()
	r := &recorder{}

	d.Post(func(ctx context.Context) {
		d.Post(r.add("queued"), CategoryBinding)
		d.RunOnUI(ctx, r.add("inline"), CategoryNormal)
		d.Flush(ctx)
		r.add("outer-end")(ctx)
	}, CategoryNormal)

	d.Flush(context.Background())
	assert.Equal(t, []string{"inline", "queued", "outer-end"}, r.list())
}

func TestRunOnUIFromOtherContextPosts(t *testing.T) {
	d := newTestDispatcher()
	r := &recorder{}

	d.RunOnUI(context.Background(), r.add("posted"), CategoryNormal)
	assert.Empty(t, r.list())
	assert.Equal(t, 1, d.Pending())
	d.Flush(context.Background())
	assert.Equal(t, []string{"posted"}, r.list())
}

func TestRunLoop(t *testing.T) {
	d := newTestDispatcher()
	r := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	done := make(chan struct{})
	d.Post(r.add("one"), CategoryNormal)
	d.Post(r.add("two"), CategoryBinding)
	d.PostIdle(func(context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("idle entry never ran")
	}
	assert.Equal(t, []string{"one", "two"}, r.list())

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestRunAndFlushNeverOverlap(t *testing.T) {
	d := newTestDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	var mu sync.Mutex
	active, maxActive := 0, 0
	work := func(context.Context) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(100 * time.Microsecond)
		mu.Lock()
		active--
		mu.Unlock()
	}
	for i := 0; i < 200; i++ {
		d.Post(work, CategoryNormal)
		if i%10 == 0 {
			d.Flush(context.Background())
		}
	}
	d.Flush(context.Background())
	cancel()
	<-errCh

	require.Equal(t, 0, d.Pending())
	assert.Equal(t, 1, maxActive)
}

func TestPanicInWorkIsContained(t *testing.T) {
	d := newTestDispatcher()
	r := &recorder{}
	d.Post(func(context.Context) { panic("boom") }, CategoryNormal)
	d.Post(r.add("after"), CategoryNormal)
	d.Flush(context.Background())
	assert.Equal(t, []string{"after"}, r.list())
	assert.Equal(t, uint64(2), d.Executed())
}

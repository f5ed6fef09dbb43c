package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grovetools/launcher/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestWorker(t *testing.T) *Worker {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	w := New("test", logrus.NewEntry(logger))
	w.Start()
	t.Cleanup(w.Close)
	return w
}

func TestTasksRunInSubmissionOrder(t *testing.T) {
	w := newTestWorker(t)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.NoError(t, w.Post(func(context.Context) {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	require.NoError(t, w.Flush(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
	assert.GreaterOrEqual(t, w.Executed(), uint64(100))
}

func TestFlushAfterZeroOneOrManyTasks(t *testing.T) {
	for _, n := range []int{0, 1, 50} {
		w := newTestWorker(t)
		var ran atomic.Int32
		for i := 0; i < n; i++ {
			require.NoError(t, w.Post(func(context.Context) {
				time.Sleep(time.Millisecond)
				ran.Add(1)
			}))
		}
		require.NoError(t, w.Flush(context.Background()))
		assert.Equal(t, int32(n), ran.Load(), "flush after %d tasks", n)
	}
}

func TestFlushIgnoresCancellation(t *testing.T) {
	w := newTestWorker(t)

	release := make(chan struct{})
	var finished atomic.Bool
	require.NoError(t, w.Post(func(context.Context) {
		<-release
		finished.Store(true)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	require.NoError(t, w.Flush(ctx))
	assert.True(t, finished.Load())
}

func TestRunInlineOnWorker(t *testing.T) {
	w := newTestWorker(t)

	var order []string
	done := make(chan struct{})
	require.NoError(t, w.Post(func(ctx context.Context) {
		assert.True(t, w.IsCurrent(ctx))
		require.NoError(t, w.Run(ctx, func(context.Context) { order = append(order, "inline") }))
		order = append(order, "after")
		close(done)
	}))
	<-done
	assert.Equal(t, []string{"inline", "after"}, order)
	assert.False(t, w.IsCurrent(context.Background()))
}

func TestFlushFromWorkerDrainsInline(t *testing.T) {
	w := newTestWorker(t)

	var order []string
	done := make(chan struct{})
	require.NoError(t, w.Post(func(ctx context.Context) {
		require.NoError(t, w.Post(func(context.Context) { order = append(order, "queued") }))
		require.NoError(t, w.Flush(ctx))
		order = append(order, "after-flush")
		close(done)
	}))
	<-done
	assert.Equal(t, []string{"queued", "after-flush"}, order)
}

func TestPanicIsContained(t *testing.T) {
	w := newTestWorker(t)

	require.NoError(t, w.Post(func(context.Context) { panic("boom") }))
	var ran atomic.Bool
	require.NoError(t, w.Post(func(context.Context) { ran.Store(true) }))
	require.NoError(t, w.Flush(context.Background()))

	assert.True(t, ran.Load())
	assert.Equal(t, uint64(1), w.panics.Load())
}

func TestPostAfterClose(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	w := New("closed", logrus.NewEntry(logger))
	w.Start()

	var ran atomic.Bool
	require.NoError(t, w.Post(func(context.Context) { ran.Store(true) }))
	w.Close()
	assert.True(t, ran.Load(), "queued tasks run before close returns")

	err := w.Post(func(context.Context) {})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeWorkerStopped))
	assert.Error(t, w.Flush(context.Background()))
}

func TestPriority(t *testing.T) {
	w := newTestWorker(t)
	assert.Equal(t, PriorityDefault, w.Priority())
	w.SetPriority(PriorityBackground)
	assert.Equal(t, PriorityBackground, w.Priority())
	w.Yield()
}

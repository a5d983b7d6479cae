package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"retryq/configs"
	"retryq/metrics"
	"retryq/services"
	"retryq/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueueService(t *testing.T) *services.QueueService {
	t.Helper()
	return services.NewQueueService(store.NewMemoryStore(), configs.NewAppConfig(), metrics.NewMetricsService(false))
}

func TestWorkerDrainsEligibleMessages(t *testing.T) {
	qs := newTestQueueService(t)
	ctx := context.Background()

	var delivered atomic.Int32
	qs.RegisterHandler("email", func(payload []byte, ctx context.Context) error {
		delivered.Add(1)
		return nil
	})

	_, err := qs.Enqueue("email", []byte(`{}`), nil, 3, ctx)
	require.NoError(t, err)
	_, err = qs.Enqueue("email", []byte(`{}`), nil, 3, ctx)
	require.NoError(t, err)

	w := NewWorker(qs, 20)
	w.Start()
	defer w.Stop()

	assert.Eventually(t, func() bool {
		return delivered.Load() == 2
	}, 2*time.Second, 10*time.Millisecond)

	stats, err := qs.GetQueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}

func TestWorkerPicksUpMessagesEnqueuedWhileRunning(t *testing.T) {
	qs := newTestQueueService(t)
	ctx := context.Background()

	var delivered atomic.Int32
	qs.RegisterHandler("email", func(payload []byte, ctx context.Context) error {
		delivered.Add(1)
		return nil
	})

	w := NewWorker(qs, 20)
	w.Start()
	defer w.Stop()

	_, err := qs.Enqueue("email", []byte(`{}`), nil, 3, ctx)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return delivered.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorkerStartStopIdempotent(t *testing.T) {
	qs := newTestQueueService(t)

	w := NewWorker(qs, 20)

	w.Start()
	w.Start()
	assert.True(t, w.Running())
	assert.True(t, qs.WorkerRunning())

	w.Stop()
	w.Stop()
	assert.False(t, w.Running())
	assert.False(t, qs.WorkerRunning())

	// restartable after a stop
	w.Start()
	assert.True(t, w.Running())
	w.Stop()
	assert.False(t, w.Running())
}

func TestWorkerSurvivesHandlerPanics(t *testing.T) {
	qs := newTestQueueService(t)
	ctx := context.Background()

	var delivered atomic.Int32
	qs.RegisterHandler("flaky", func(payload []byte, ctx context.Context) error {
		panic("boom")
	})
	qs.RegisterHandler("email", func(payload []byte, ctx context.Context) error {
		delivered.Add(1)
		return nil
	})

	_, err := qs.Enqueue("flaky", []byte(`{}`), nil, 1, ctx)
	require.NoError(t, err)

	w := NewWorker(qs, 20)
	w.Start()
	defer w.Stop()

	// the loop keeps ticking after the panicking handler dead-letters
	assert.Eventually(t, func() bool {
		stats, err := qs.GetQueueStats(ctx)
		return err == nil && stats.DeadLetter == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err = qs.Enqueue("email", []byte(`{}`), nil, 3, ctx)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return delivered.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// flakyStore makes the first tick blow up inside the store and the second
// tick fail with an error, so both failure paths of the tick guard are hit
// before the store starts behaving.
type flakyStore struct {
	*store.MemoryStore
	calls atomic.Int32
}

func (fs *flakyStore) SelectDueMessageIds(nowMs int64, ctx context.Context) ([]string, error) {
	switch fs.calls.Add(1) {
	case 1:
		panic("store blew up")
	case 2:
		return nil, errors.New("store unavailable")
	default:
		return fs.MemoryStore.SelectDueMessageIds(nowMs, ctx)
	}
}

func TestWorkerSurvivesTickFailures(t *testing.T) {
	flaky := &flakyStore{MemoryStore: store.NewMemoryStore()}
	qs := services.NewQueueService(flaky, configs.NewAppConfig(), metrics.NewMetricsService(false))
	ctx := context.Background()

	var delivered atomic.Int32
	qs.RegisterHandler("email", func(payload []byte, ctx context.Context) error {
		delivered.Add(1)
		return nil
	})

	_, err := qs.Enqueue("email", []byte(`{}`), nil, 3, ctx)
	require.NoError(t, err)

	w := NewWorker(qs, 20)
	w.Start()
	defer w.Stop()

	// tick one panics, tick two errors; the loop must keep going and deliver
	// on a later tick
	assert.Eventually(t, func() bool {
		return delivered.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, flaky.calls.Load(), int32(3))
	assert.True(t, w.Running())
}

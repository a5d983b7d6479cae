package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"retryq/services"

	"github.com/rs/zerolog/log"
)

// Worker is the cooperative background loop driving the queue: on every tick
// it asks the queue service to process everything currently eligible, then
// sleeps. A tick failure is logged and never stops the loop.
type Worker struct {
	queueService *services.QueueService
	intervalMs   int64

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewWorker(queueService *services.QueueService, intervalMs int64) *Worker {
	return &Worker{
		queueService: queueService,
		intervalMs:   intervalMs,
	}
}

// Start launches the loop. Calling Start on a running worker is a no-op.
func (w *Worker) Start() {
	if !w.running.CompareAndSwap(false, true) {
		return
	}

	w.done = make(chan struct{})
	w.queueService.MarkWorkerRunning(true)

	w.wg.Add(1)
	go w.run(w.done)

	log.Info().Int64("interval_ms", w.intervalMs).Msg("queue worker started")
}

// Stop terminates the loop and waits for an in-flight tick to finish.
// Calling Stop on a stopped worker is a no-op.
func (w *Worker) Stop() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}

	close(w.done)
	w.wg.Wait()
	w.queueService.MarkWorkerRunning(false)

	log.Info().Msg("queue worker stopped")
}

func (w *Worker) Running() bool {
	return w.running.Load()
}

func (w *Worker) run(done chan struct{}) {
	defer w.wg.Done()

	// Stop cancels the tick context, so a handler blocked on I/O gets
	// interrupted instead of delaying shutdown indefinitely. Its message is
	// left in processing and reclaimed on the next start.
	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()
	go func() {
		<-done
		cancelFunc()
	}()

	ticker := time.NewTicker(time.Duration(w.intervalMs) * time.Millisecond)
	defer ticker.Stop()

	// drain once right away instead of waiting a full interval
	w.tick(ctx)

	for {
		select {
		case <-ticker.C:
			w.tick(ctx)
		case <-done:
			return
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Msg("queue worker tick panicked")
		}
	}()

	processed, err := w.queueService.ProcessPending(ctx)
	if err != nil {
		log.Error().Err(err).Msg("queue worker tick failed")
		return
	}
	if processed > 0 {
		log.Debug().Int("processed", processed).Msg("queue worker tick finished")
	}
}

package cleanup

import (
	"context"
	"time"

	"retryq/metrics"
	"retryq/store"

	"github.com/rs/zerolog/log"
)

// ExpiredDlqMessagesCleanupJob drops dead letters past their retention
// window, so an unattended DLQ doesn't grow forever.
type ExpiredDlqMessagesCleanupJob struct {
	queueStore store.Store
	intervalMs int64
	ticker     *time.Ticker
	done       chan struct{}
}

func NewExpiredDlqMessagesCleanupJob(queueStore store.Store, metricsService metrics.Service, dlqTtlMs int64, intervalMs int64) *ExpiredDlqMessagesCleanupJob {
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				ctx, cancelFunc := context.WithTimeout(context.Background(), time.Duration(intervalMs-1000)*time.Millisecond)
				olderThanMs := time.Now().UnixMilli() - dlqTtlMs
				deleted, err := queueStore.DeleteExpiredDeadLetters(olderThanMs, ctx)
				if err != nil {
					log.Error().Err(err).Msg("failed to delete expired dead letters")
				} else if deleted > 0 {
					metricsService.IncDeadLettersCleanupTotalBy(deleted, metrics.ExpiredCleanupReason)
					log.Info().Int64("deleted", deleted).Msg("expired dead letters cleaned up")
				}
				cancelFunc()
			case <-done:
				return
			}
		}
	}()

	return &ExpiredDlqMessagesCleanupJob{
		queueStore: queueStore,
		intervalMs: intervalMs,
		ticker:     ticker,
		done:       done,
	}
}

func (j *ExpiredDlqMessagesCleanupJob) Close() error {
	j.ticker.Stop()
	close(j.done)
	return nil
}

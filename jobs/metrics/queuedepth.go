package metrics

import (
	"context"
	"time"

	"retryq/metrics"
	"retryq/services"

	"github.com/rs/zerolog/log"
)

// QueueDepthMetricsJob periodically refreshes the per-kind depth gauges and
// the dead-letter depth gauge from queue stats.
type QueueDepthMetricsJob struct {
	ticker *time.Ticker
	done   chan struct{}
}

func NewQueueDepthMetricsJob(metricsService metrics.Service, queueService *services.QueueService, intervalMs int64) *QueueDepthMetricsJob {
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				ctx, cancelFunc := context.WithTimeout(context.Background(), time.Duration(intervalMs-1000)*time.Millisecond)
				stats, err := queueService.GetQueueStats(ctx)
				if err != nil {
					log.Error().Err(err).Msg("failed to fetch queue stats by QueueDepthMetricsJob")
				} else {
					for kind, depth := range stats.ByKind {
						metricsService.SetQueueDepth(kind, int64(depth))
					}
					metricsService.SetDeadLetterDepth(int64(stats.DeadLetter))
				}
				cancelFunc()
			case <-done:
				return
			}
		}
	}()

	return &QueueDepthMetricsJob{
		ticker: ticker,
		done:   done,
	}
}

func (j *QueueDepthMetricsJob) Close() error {
	j.ticker.Stop()
	close(j.done)
	return nil
}

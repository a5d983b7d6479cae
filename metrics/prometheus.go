package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type PrometheusMetricsService struct {
	messagesEnqueuedTotal   *prometheus.CounterVec
	messagesProcessedTotal  *prometheus.CounterVec
	messagesCompletedTotal  *prometheus.CounterVec
	messagesRetriedTotal    *prometheus.CounterVec
	messagesMovedToDlqTotal *prometheus.CounterVec
	messagesRequeuedTotal   *prometheus.CounterVec
	deadLettersCleanupTotal *prometheus.CounterVec
	queueDepth              *prometheus.GaugeVec
	deadLetterDepth         prometheus.Gauge
}

func newPrometheusMetricsService() *PrometheusMetricsService {
	srv := &PrometheusMetricsService{
		messagesEnqueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retryq_messages_enqueued_total",
				Help: "Total number of messages accepted by the queue, including pre-failed ones",
			},
			[]string{"kind"},
		),

		messagesProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retryq_messages_processed_total",
				Help: "Total number of delivery attempts made by the worker. Note, this counts attempts, not distinct messages",
			},
			[]string{"kind"},
		),

		messagesCompletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retryq_messages_completed_total",
				Help: "Total number of messages delivered successfully and discarded",
			},
			[]string{"kind"},
		),

		messagesRetriedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retryq_messages_retried_total",
				Help: "Total number of failed attempts rescheduled with backoff",
			},
			[]string{"kind"},
		),

		// no kind label here, as the reason is the interesting dimension:
		// exhausted retries vs missing handler registration.
		messagesMovedToDlqTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retryq_messages_moved_to_dlq_total",
				Help: "Total number of messages moved to the dead-letter collection",
			},
			[]string{"reason"},
		),

		messagesRequeuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retryq_messages_requeued_total",
				Help: "Total number of dead letters moved back to the active queue manually by the admin",
			},
			[]string{"kind"},
		),

		deadLettersCleanupTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retryq_dead_letters_cleanup_total",
				Help: "Total number of dead letters removed by the cleanup job",
			},
			[]string{"reason"},
		),

		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "retryq_queue_depth",
				Help: "Current number of active messages per kind",
			},
			[]string{"kind"},
		),

		deadLetterDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "retryq_dead_letter_depth",
				Help: "Current size of the dead-letter collection",
			},
		),
	}

	prometheus.MustRegister(srv.messagesEnqueuedTotal)
	prometheus.MustRegister(srv.messagesProcessedTotal)
	prometheus.MustRegister(srv.messagesCompletedTotal)
	prometheus.MustRegister(srv.messagesRetriedTotal)
	prometheus.MustRegister(srv.messagesMovedToDlqTotal)
	prometheus.MustRegister(srv.messagesRequeuedTotal)
	prometheus.MustRegister(srv.deadLettersCleanupTotal)
	prometheus.MustRegister(srv.queueDepth)
	prometheus.MustRegister(srv.deadLetterDepth)

	return srv
}

func (pms *PrometheusMetricsService) IncMessagesEnqueuedTotalBy(count int64, kind string) {
	pms.messagesEnqueuedTotal.WithLabelValues(kind).Add(float64(count))
}

func (pms *PrometheusMetricsService) IncMessagesProcessedTotalBy(count int64, kind string) {
	pms.messagesProcessedTotal.WithLabelValues(kind).Add(float64(count))
}

func (pms *PrometheusMetricsService) IncMessagesCompletedTotalBy(count int64, kind string) {
	pms.messagesCompletedTotal.WithLabelValues(kind).Add(float64(count))
}

func (pms *PrometheusMetricsService) IncMessagesRetriedTotalBy(count int64, kind string) {
	pms.messagesRetriedTotal.WithLabelValues(kind).Add(float64(count))
}

func (pms *PrometheusMetricsService) IncMessagesMovedToDlqTotalBy(count int64, reason string) {
	pms.messagesMovedToDlqTotal.WithLabelValues(reason).Add(float64(count))
}

func (pms *PrometheusMetricsService) IncMessagesRequeuedTotalBy(count int64, kind string) {
	pms.messagesRequeuedTotal.WithLabelValues(kind).Add(float64(count))
}

func (pms *PrometheusMetricsService) IncDeadLettersCleanupTotalBy(count int64, reason string) {
	pms.deadLettersCleanupTotal.WithLabelValues(reason).Add(float64(count))
}

func (pms *PrometheusMetricsService) SetQueueDepth(kind string, depth int64) {
	pms.queueDepth.WithLabelValues(kind).Set(float64(depth))
}

func (pms *PrometheusMetricsService) SetDeadLetterDepth(depth int64) {
	pms.deadLetterDepth.Set(float64(depth))
}

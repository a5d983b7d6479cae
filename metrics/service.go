package metrics

const (
	MaxAttemptsMovedToDlqReason = "max_attempts_reached"
	NoHandlerMovedToDlqReason   = "no_handler"

	ExpiredCleanupReason = "expired"
)

type Service interface {
	IncMessagesEnqueuedTotalBy(count int64, kind string)
	IncMessagesProcessedTotalBy(count int64, kind string)
	IncMessagesCompletedTotalBy(count int64, kind string)
	IncMessagesRetriedTotalBy(count int64, kind string)
	IncMessagesMovedToDlqTotalBy(count int64, reason string)
	IncMessagesRequeuedTotalBy(count int64, kind string)
	IncDeadLettersCleanupTotalBy(count int64, reason string)
	SetQueueDepth(kind string, depth int64)
	SetDeadLetterDepth(depth int64)
}

func NewMetricsService(metricsEnabled bool) Service {
	if metricsEnabled {
		return newPrometheusMetricsService()
	}
	return newNoopMetricsService()
}

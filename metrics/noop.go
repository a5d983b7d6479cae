package metrics

type NoopMetricsService struct {
}

func newNoopMetricsService() *NoopMetricsService {
	return &NoopMetricsService{}
}

func (nms *NoopMetricsService) IncMessagesEnqueuedTotalBy(count int64, kind string) {
	// no-op
}

func (nms *NoopMetricsService) IncMessagesProcessedTotalBy(count int64, kind string) {
	// no-op
}

func (nms *NoopMetricsService) IncMessagesCompletedTotalBy(count int64, kind string) {
	// no-op
}

func (nms *NoopMetricsService) IncMessagesRetriedTotalBy(count int64, kind string) {
	// no-op
}

func (nms *NoopMetricsService) IncMessagesMovedToDlqTotalBy(count int64, reason string) {
	// no-op
}

func (nms *NoopMetricsService) IncMessagesRequeuedTotalBy(count int64, kind string) {
	// no-op
}

func (nms *NoopMetricsService) IncDeadLettersCleanupTotalBy(count int64, reason string) {
	// no-op
}

func (nms *NoopMetricsService) SetQueueDepth(kind string, depth int64) {
	// no-op
}

func (nms *NoopMetricsService) SetDeadLetterDepth(depth int64) {
	// no-op
}

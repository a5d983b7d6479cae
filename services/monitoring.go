package services

import (
	"context"

	"retryq/store"
)

type MonitoringService struct {
	queueStore store.Store
}

func NewMonitoringService(queueStore store.Store) *MonitoringService {
	return &MonitoringService{
		queueStore: queueStore,
	}
}

func (ms *MonitoringService) IsHealthy(ctx context.Context) bool {
	err := ms.queueStore.Ping(ctx)
	return err == nil
}

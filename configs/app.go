package configs

import "time"

type AppConfigs struct {
	PayloadMaxSizeBytes    int
	PayloadPreviewMaxBytes int // DLQ listings carry a truncated payload preview only
	DefaultMaxAttempts     int
	BackoffBaseDelayMs     int64
	BackoffMaxDelayMs      int64
	WorkerIntervalMs       int64 // Interval between worker ticks draining eligible messages
	WebhookTimeout         time.Duration
	DlqTtlMs               int64 // Dead letters older than this are cleaned up
	JobsIntervals          JobsIntervals
	ServerConfig           ServerConfig
}

type JobsIntervals struct {
	QueueDepthMetricsMs int64 // Interval for refreshing queue depth gauges
	ExpiredDlqCleanupMs int64 // Interval for cleaning up expired dead letters
}

type ServerConfig struct {
	Timeouts ServerTimeouts
}

type ServerTimeouts struct {
	Handle     time.Duration
	Write      time.Duration
	Read       time.Duration
	ReadHeader time.Duration
	Idle       time.Duration
}

func NewAppConfig() *AppConfigs {
	return &AppConfigs{
		PayloadMaxSizeBytes:    256 * 1024, // 256 KB
		PayloadPreviewMaxBytes: 256,
		DefaultMaxAttempts:     5,
		BackoffBaseDelayMs:     1000,      // 1s, doubled on each failed attempt
		BackoffMaxDelayMs:      60 * 1000, // 60s ceiling
		WorkerIntervalMs:       15 * 1000, // 15 seconds between worker ticks
		WebhookTimeout:         30 * time.Second,
		DlqTtlMs:               7 * 24 * 60 * 60 * 1000, // 7 days
		JobsIntervals: JobsIntervals{
			QueueDepthMetricsMs: 1 * 60 * 1000, // 1 minute
			ExpiredDlqCleanupMs: 5 * 60 * 1000, // 5 minutes
		},
		ServerConfig: ServerConfig{
			Timeouts: ServerTimeouts{
				Handle:     30 * time.Second,
				Write:      35 * time.Second,
				Read:       35 * time.Second,
				ReadHeader: 10 * time.Second, // headers shouldn't take long
				Idle:       5 * time.Minute,  // keep connections alive
			},
		},
	}
}

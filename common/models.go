package common

import "encoding/json"

type EnqueueRequest struct {
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	MaxRetries int             `json:"maxRetries,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	// LastError marks the message as already failed once outside the queue:
	// the first delivery was attempted by the caller itself, so the queue
	// starts with one consumed attempt and a backoff delay.
	LastError string `json:"lastError,omitempty"`
}

type EnqueueResponse struct {
	Id string `json:"id"`
}

// QueueStats is the read-only snapshot exposed via the observability seam.
type QueueStats struct {
	Total         int            `json:"total"`
	Pending       int            `json:"pending"`
	Processing    int            `json:"processing"`
	DeadLetter    int            `json:"deadLetter"`
	ByKind        map[string]int `json:"byKind"`
	WorkerRunning bool           `json:"workerRunning"`
}

// DeadLetterMessage is the reporting view of a quarantined message.
// PayloadPreview is truncated, as DLQ listings are for operators, not replay.
type DeadLetterMessage struct {
	Id             string          `json:"id"`
	Kind           string          `json:"kind"`
	ReceivedAt     int64           `json:"receivedAt"`
	FailedAt       int64           `json:"failedAt"`
	Attempts       int             `json:"attempts"`
	FailureReason  string          `json:"failureReason"`
	PayloadPreview string          `json:"payloadPreview"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

type ErrorResponse struct {
	Code string `json:"code,omitempty"`
}

// LoginPageData contains data for the ops UI login page
type LoginPageData struct {
	Title     string
	Error     string
	CsrfToken string
}

// DashboardPageData contains data for the ops UI dashboard
type DashboardPageData struct {
	Title       string
	Stats       *QueueStats
	DeadLetters []DeadLetterMessage
	CsrfToken   string
}

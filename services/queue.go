package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"retryq/common"
	"retryq/configs"
	"retryq/metrics"
	"retryq/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handler attempts the real side effect for one message. A nil return means
// delivered; any error counts as one failed attempt. Panics are recovered
// and treated the same as errors.
type Handler func(payload []byte, ctx context.Context) error

type QueueService struct {
	queueStore store.Store
	appConfigs *configs.AppConfigs
	metrics    metrics.Service

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	workerRunning atomic.Bool

	now func() time.Time
}

func NewQueueService(queueStore store.Store, appConfigs *configs.AppConfigs, metricsService metrics.Service) *QueueService {
	return &QueueService{
		queueStore: queueStore,
		appConfigs: appConfigs,
		metrics:    metricsService,
		handlers:   make(map[string]Handler),
		now:        time.Now,
	}
}

// RegisterHandler binds one handler per kind. Re-registering replaces the
// previous handler, last write wins.
func (qs *QueueService) RegisterHandler(kind string, handler Handler) {
	qs.handlersMu.Lock()
	defer qs.handlersMu.Unlock()

	if _, exists := qs.handlers[kind]; exists {
		log.Warn().Str("kind", kind).Msg("handler already registered for kind, replacing")
	}
	qs.handlers[kind] = handler
}

// Enqueue inserts a fresh message, immediately eligible. No handler
// invocation happens synchronously.
func (qs *QueueService) Enqueue(kind string, payload []byte, metadata []byte, maxAttempts int, ctx context.Context) (string, error) {
	msg, err := qs.newMessage(kind, payload, metadata, maxAttempts)
	if err != nil {
		return "", err
	}

	if err := qs.queueStore.InsertMessage(msg, ctx); err != nil {
		return "", err
	}

	qs.metrics.IncMessagesEnqueuedTotalBy(1, kind)
	return msg.Id, nil
}

// EnqueueFailed inserts a message that already represents one failed external
// attempt: the caller tried the side effect itself and hands subsequent
// retries over to the queue. The message starts with one consumed attempt and
// a first backoff delay.
func (qs *QueueService) EnqueueFailed(kind string, payload []byte, metadata []byte, failureReason string, maxAttempts int, ctx context.Context) (string, error) {
	msg, err := qs.newMessage(kind, payload, metadata, maxAttempts)
	if err != nil {
		return "", err
	}

	msg.Attempts = 1
	msg.ProcessAfter = msg.ReceivedAt + qs.appConfigs.BackoffBaseDelayMs
	msg.FailureReason = &failureReason

	if err := qs.queueStore.InsertMessage(msg, ctx); err != nil {
		return "", err
	}

	qs.metrics.IncMessagesEnqueuedTotalBy(1, kind)
	return msg.Id, nil
}

// ProcessPending drains everything currently eligible, one message at a time,
// and returns the number of messages visited. The candidate list is
// snapshotted up front, so messages becoming eligible mid-drain wait for the
// next tick.
func (qs *QueueService) ProcessPending(ctx context.Context) (int, error) {
	nowMs := qs.now().UnixMilli()

	ids, err := qs.queueStore.SelectDueMessageIds(nowMs, ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			// shutdown mid-drain: a message never claimed must not consume an
			// attempt, so everything still unclaimed waits for the next run
			log.Info().Int("processed", processed).Msg("drain interrupted, leaving remaining messages untouched")
			return processed, nil
		}

		msg, err := qs.queueStore.ClaimMessage(id, qs.now().UnixMilli(), ctx)
		if err != nil {
			log.Error().Err(err).Str("message_id", id).Msg("failed to claim message")
			continue
		}
		if msg == nil {
			// gone or rescheduled since the snapshot
			continue
		}

		processed++
		qs.processMessage(msg, ctx)
	}
	return processed, nil
}

func (qs *QueueService) GetQueueStats(ctx context.Context) (*common.QueueStats, error) {
	stats, err := qs.queueStore.SelectStats(ctx)
	if err != nil {
		return nil, err
	}

	return &common.QueueStats{
		Total:         stats.Pending + stats.Processing,
		Pending:       stats.Pending,
		Processing:    stats.Processing,
		DeadLetter:    stats.DeadLetter,
		ByKind:        stats.ByKind,
		WorkerRunning: qs.workerRunning.Load(),
	}, nil
}

func (qs *QueueService) GetDeadLetterMessages(limit int, ctx context.Context) ([]common.DeadLetterMessage, error) {
	deadLetters, err := qs.queueStore.SelectDeadLetters(limit, ctx)
	if err != nil {
		return nil, err
	}

	messages := make([]common.DeadLetterMessage, 0, len(deadLetters))
	for _, dl := range deadLetters {
		messages = append(messages, common.DeadLetterMessage{
			Id:             dl.Id,
			Kind:           dl.Kind,
			ReceivedAt:     dl.ReceivedAt,
			FailedAt:       dl.FailedAt,
			Attempts:       dl.Attempts,
			FailureReason:  dl.FailureReason,
			PayloadPreview: qs.payloadPreview(dl.Payload),
			Metadata:       dl.Metadata,
		})
	}
	return messages, nil
}

// RetryDeadLetter resurrects a dead-lettered message: attempts reset to 0,
// eligible on the very next tick. Returns false if the id is not in the
// dead-letter collection.
func (qs *QueueService) RetryDeadLetter(id string, ctx context.Context) (bool, error) {
	msg, err := qs.queueStore.RetryDeadLetter(id, qs.now().UnixMilli(), ctx)
	if err != nil {
		return false, err
	}
	if msg == nil {
		return false, nil
	}

	qs.metrics.IncMessagesRequeuedTotalBy(1, msg.Kind)
	log.Info().Str("message_id", id).Str("kind", msg.Kind).Msg("dead letter requeued")
	return true, nil
}

func (qs *QueueService) MarkWorkerRunning(running bool) {
	qs.workerRunning.Store(running)
}

func (qs *QueueService) WorkerRunning() bool {
	return qs.workerRunning.Load()
}

func (qs *QueueService) newMessage(kind string, payload []byte, metadata []byte, maxAttempts int) (*store.Message, error) {
	if kind == "" {
		log.Error().Msg("enqueue rejected: empty kind")
		return nil, common.ErrBadRequestKindMissing
	}
	if len(payload) > qs.appConfigs.PayloadMaxSizeBytes {
		log.Error().Int("size", len(payload)).Str("kind", kind).Msg("payload exceeds limit")
		return nil, common.ErrBadRequestPayloadTooLarge
	}
	if maxAttempts < 0 {
		log.Error().Int("max_attempts", maxAttempts).Str("kind", kind).Msg("negative max attempts")
		return nil, common.ErrBadRequestMaxRetriesInvalid
	}
	if maxAttempts == 0 {
		maxAttempts = qs.appConfigs.DefaultMaxAttempts
	}

	messageId, err := uuid.NewV7()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate new message ID")
		return nil, common.ErrInternal
	}

	nowMs := qs.now().UnixMilli()
	return &store.Message{
		Id:           messageId.String(),
		Kind:         kind,
		Payload:      payload,
		Metadata:     metadata,
		Status:       common.PendingStatus,
		Attempts:     0,
		MaxAttempts:  maxAttempts,
		ProcessAfter: nowMs,
		ReceivedAt:   nowMs,
		UpdatedAt:    nowMs,
	}, nil
}

func (qs *QueueService) processMessage(msg *store.Message, ctx context.Context) {
	nowMs := qs.now().UnixMilli()

	qs.handlersMu.RLock()
	handler, registered := qs.handlers[msg.Kind]
	qs.handlersMu.RUnlock()

	if !registered {
		// configuration error, not a transient failure: retrying is futile
		// until an operator registers the handler, so quarantine right away
		// without consuming an attempt.
		log.Warn().Str("message_id", msg.Id).Str("kind", msg.Kind).Msg("no handler registered for kind, dead-lettering")
		if err := qs.queueStore.MoveToDeadLetter(msg.Id, common.NoHandlerFailureReason, nowMs, ctx); err != nil {
			log.Error().Err(err).Str("message_id", msg.Id).Msg("failed to dead-letter message without handler")
			return
		}
		qs.metrics.IncMessagesMovedToDlqTotalBy(1, metrics.NoHandlerMovedToDlqReason)
		return
	}

	qs.metrics.IncMessagesProcessedTotalBy(1, msg.Kind)

	if err := qs.invokeHandler(handler, msg.Payload, ctx); err != nil {
		qs.failMessage(msg, err, ctx)
		return
	}

	if err := qs.queueStore.CompleteMessage(msg.Id, ctx); err != nil {
		log.Error().Err(err).Str("message_id", msg.Id).Msg("failed to complete message")
		return
	}
	qs.metrics.IncMessagesCompletedTotalBy(1, msg.Kind)
}

func (qs *QueueService) invokeHandler(handler Handler, payload []byte, ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(payload, ctx)
}

func (qs *QueueService) failMessage(msg *store.Message, handlerErr error, ctx context.Context) {
	nowMs := qs.now().UnixMilli()
	delay := qs.backoffDelayMs(msg.Attempts + 1)

	movedToDlq, err := qs.queueStore.FailMessage(msg.Id, handlerErr.Error(), nowMs+delay, nowMs, ctx)
	if err != nil {
		log.Error().Err(err).Str("message_id", msg.Id).Msg("failed to record message failure")
		return
	}

	if movedToDlq {
		log.Warn().
			Str("message_id", msg.Id).
			Str("kind", msg.Kind).
			Int("attempts", msg.Attempts+1).
			Str("error", handlerErr.Error()).
			Msg("message moved to dead-letter collection")
		qs.metrics.IncMessagesMovedToDlqTotalBy(1, metrics.MaxAttemptsMovedToDlqReason)
		return
	}

	log.Info().
		Str("message_id", msg.Id).
		Str("kind", msg.Kind).
		Int("attempts", msg.Attempts+1).
		Int64("retry_in_ms", delay).
		Str("error", handlerErr.Error()).
		Msg("message delivery failed, rescheduled")
	qs.metrics.IncMessagesRetriedTotalBy(1, msg.Kind)
}

// backoffDelayMs computes the delay before the next attempt: the base delay
// doubled on every consumed attempt, capped at the configured ceiling.
func (qs *QueueService) backoffDelayMs(attempt int) int64 {
	if attempt < 1 {
		attempt = 1
	}

	delay := qs.appConfigs.BackoffBaseDelayMs
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= qs.appConfigs.BackoffMaxDelayMs {
			return qs.appConfigs.BackoffMaxDelayMs
		}
	}
	if delay > qs.appConfigs.BackoffMaxDelayMs {
		return qs.appConfigs.BackoffMaxDelayMs
	}
	return delay
}

func (qs *QueueService) payloadPreview(payload []byte) string {
	if len(payload) <= qs.appConfigs.PayloadPreviewMaxBytes {
		return string(payload)
	}
	return string(payload[:qs.appConfigs.PayloadPreviewMaxBytes]) + "..."
}

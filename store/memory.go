package store

import (
	"context"
	"sort"
	"sync"

	"retryq/common"
)

// MemoryStore is the default store. All state is lost on process restart,
// which is acceptable for at-least-once work whose producers can resubmit;
// use the sqlite store when messages must survive restarts.
type MemoryStore struct {
	mu     sync.RWMutex
	active map[string]*Message
	dlq    map[string]*DeadLetter
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		active: make(map[string]*Message),
		dlq:    make(map[string]*DeadLetter),
	}
}

func (ms *MemoryStore) InsertMessage(msg *Message, ctx context.Context) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.active[msg.Id]; exists {
		return common.ErrInternal
	}

	msgCopy := *msg
	ms.active[msg.Id] = &msgCopy
	return nil
}

// SelectDueMessageIds snapshots the ids of all eligible pending messages,
// ordered by (process_after, received_at). The snapshot keeps processing
// safe against mutations of the store while the caller iterates.
func (ms *MemoryStore) SelectDueMessageIds(nowMs int64, ctx context.Context) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	due := make([]*Message, 0)
	for _, msg := range ms.active {
		if msg.Status == common.PendingStatus && msg.ProcessAfter <= nowMs {
			due = append(due, msg)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].ProcessAfter != due[j].ProcessAfter {
			return due[i].ProcessAfter < due[j].ProcessAfter
		}
		return due[i].ReceivedAt < due[j].ReceivedAt
	})

	ids := make([]string, len(due))
	for i, msg := range due {
		ids[i] = msg.Id
	}
	return ids, nil
}

// ClaimMessage transitions a message from pending to processing and returns
// a copy of it. It returns nil if the message is gone, already claimed or
// no longer eligible, which can happen between snapshot and claim.
func (ms *MemoryStore) ClaimMessage(id string, nowMs int64, ctx context.Context) (*Message, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	msg, exists := ms.active[id]
	if !exists || msg.Status != common.PendingStatus || msg.ProcessAfter > nowMs {
		return nil, nil
	}

	msg.Status = common.ProcessingStatus
	msg.UpdatedAt = nowMs

	msgCopy := *msg
	return &msgCopy, nil
}

func (ms *MemoryStore) CompleteMessage(id string, ctx context.Context) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.active[id]; !exists {
		return common.ErrNotFoundMessage
	}
	delete(ms.active, id)
	return nil
}

// FailMessage records one failed attempt. The message goes back to pending
// with the given process_after, or to the dead-letter collection once the
// incremented attempts counter reaches max_attempts. Returns true if the
// message was dead-lettered.
func (ms *MemoryStore) FailMessage(id string, reason string, processAfter int64, nowMs int64, ctx context.Context) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	msg, exists := ms.active[id]
	if !exists {
		return false, common.ErrNotFoundMessage
	}

	msg.Attempts++
	msg.FailureReason = &reason
	msg.UpdatedAt = nowMs

	if msg.Attempts >= msg.MaxAttempts {
		ms.dlq[id] = toDeadLetter(msg, reason, nowMs)
		delete(ms.active, id)
		return true, nil
	}

	msg.Status = common.PendingStatus
	msg.ProcessAfter = processAfter
	return false, nil
}

// MoveToDeadLetter quarantines a message without consuming an attempt.
// Used for configuration errors such as a missing handler, where retrying
// is futile until an operator intervenes.
func (ms *MemoryStore) MoveToDeadLetter(id string, reason string, nowMs int64, ctx context.Context) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	msg, exists := ms.active[id]
	if !exists {
		return common.ErrNotFoundMessage
	}

	ms.dlq[id] = toDeadLetter(msg, reason, nowMs)
	delete(ms.active, id)
	return nil
}

// RetryDeadLetter resurrects a dead-lettered message: attempts reset to 0,
// immediately eligible again. Returns nil without mutation if the id is
// not in the dead-letter collection.
func (ms *MemoryStore) RetryDeadLetter(id string, nowMs int64, ctx context.Context) (*Message, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	dl, exists := ms.dlq[id]
	if !exists {
		return nil, nil
	}

	reason := dl.FailureReason
	msg := &Message{
		Id:            dl.Id,
		Kind:          dl.Kind,
		Payload:       dl.Payload,
		Metadata:      dl.Metadata,
		Status:        common.PendingStatus,
		Attempts:      0,
		MaxAttempts:   dl.MaxAttempts,
		ProcessAfter:  nowMs,
		ReceivedAt:    dl.ReceivedAt,
		UpdatedAt:     nowMs,
		FailureReason: &reason,
	}
	ms.active[id] = msg
	delete(ms.dlq, id)

	msgCopy := *msg
	return &msgCopy, nil
}

func (ms *MemoryStore) SelectDeadLetters(limit int, ctx context.Context) ([]DeadLetter, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	deadLetters := make([]DeadLetter, 0, len(ms.dlq))
	for _, dl := range ms.dlq {
		deadLetters = append(deadLetters, *dl)
	}

	// most-recent-first; id breaks ties, as uuid v7 ids are time-ordered
	sort.Slice(deadLetters, func(i, j int) bool {
		if deadLetters[i].FailedAt != deadLetters[j].FailedAt {
			return deadLetters[i].FailedAt > deadLetters[j].FailedAt
		}
		return deadLetters[i].Id > deadLetters[j].Id
	})

	if limit > 0 && len(deadLetters) > limit {
		deadLetters = deadLetters[:limit]
	}
	return deadLetters, nil
}

func (ms *MemoryStore) SelectStats(ctx context.Context) (*Stats, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	stats := &Stats{
		DeadLetter: len(ms.dlq),
		ByKind:     make(map[string]int),
	}
	for _, msg := range ms.active {
		switch msg.Status {
		case common.PendingStatus:
			stats.Pending++
		case common.ProcessingStatus:
			stats.Processing++
		}
		stats.ByKind[msg.Kind]++
	}
	return stats, nil
}

// ReclaimProcessing resets messages stuck in processing back to pending.
// For the memory store this only matters if a worker was stopped mid-attempt
// and restarted within the same process.
func (ms *MemoryStore) ReclaimProcessing(nowMs int64, ctx context.Context) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var reclaimed int64
	for _, msg := range ms.active {
		if msg.Status == common.ProcessingStatus {
			msg.Status = common.PendingStatus
			msg.ProcessAfter = nowMs
			msg.UpdatedAt = nowMs
			reclaimed++
		}
	}
	return reclaimed, nil
}

func (ms *MemoryStore) DeleteExpiredDeadLetters(olderThanMs int64, ctx context.Context) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var deleted int64
	for id, dl := range ms.dlq {
		if dl.FailedAt < olderThanMs {
			delete(ms.dlq, id)
			deleted++
		}
	}
	return deleted, nil
}

func (ms *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (ms *MemoryStore) Close() error {
	return nil
}

func toDeadLetter(msg *Message, reason string, nowMs int64) *DeadLetter {
	return &DeadLetter{
		Id:            msg.Id,
		Kind:          msg.Kind,
		Payload:       msg.Payload,
		Metadata:      msg.Metadata,
		Attempts:      msg.Attempts,
		MaxAttempts:   msg.MaxAttempts,
		ReceivedAt:    msg.ReceivedAt,
		FailedAt:      nowMs,
		FailureReason: reason,
	}
}

package store

import "context"

// Store owns the active and dead-letter collections of messages.
// Callers never mutate messages directly, only through these operations.
//
// ClaimMessage is the single pending -> processing transition. It is a
// compare-and-set on status, so the at-most-one-in-flight-per-id invariant
// survives even if multiple workers ever drive the same store.
type Store interface {
	InsertMessage(msg *Message, ctx context.Context) error
	SelectDueMessageIds(nowMs int64, ctx context.Context) ([]string, error)
	ClaimMessage(id string, nowMs int64, ctx context.Context) (*Message, error)
	CompleteMessage(id string, ctx context.Context) error
	FailMessage(id string, reason string, processAfter int64, nowMs int64, ctx context.Context) (bool, error)
	MoveToDeadLetter(id string, reason string, nowMs int64, ctx context.Context) error
	RetryDeadLetter(id string, nowMs int64, ctx context.Context) (*Message, error)
	SelectDeadLetters(limit int, ctx context.Context) ([]DeadLetter, error)
	SelectStats(ctx context.Context) (*Stats, error)
	ReclaimProcessing(nowMs int64, ctx context.Context) (int64, error)
	DeleteExpiredDeadLetters(olderThanMs int64, ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"retryq/common"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the durable variant of the store. It mirrors every message
// mutation into sqlite, so the queue survives process restarts. Messages left
// in processing by a crashed worker are reclaimed via ReclaimProcessing at
// startup.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (ss *SQLiteStore) InsertMessage(msg *Message, ctx context.Context) error {
	query := `
		INSERT INTO messages (id, kind, payload, metadata, status, attempts, max_attempts, process_after, received_at, updated_at, failure_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`

	_, err := ss.db.ExecContext(ctx, query,
		msg.Id,            // id
		msg.Kind,          // kind
		msg.Payload,       // payload
		msg.Metadata,      // metadata
		msg.Status,        // status
		msg.Attempts,      // attempts
		msg.MaxAttempts,   // max_attempts
		msg.ProcessAfter,  // process_after
		msg.ReceivedAt,    // received_at
		msg.UpdatedAt,     // updated_at
		msg.FailureReason, // failure_reason
	)
	if err != nil {
		log.Error().Err(err).Str("kind", msg.Kind).Msg("failed to insert message")
		return common.ErrInternal
	}
	return nil
}

func (ss *SQLiteStore) SelectDueMessageIds(nowMs int64, ctx context.Context) ([]string, error) {
	query := `
		SELECT id
		FROM messages
		WHERE status = ? AND process_after <= ?
		ORDER BY process_after ASC, received_at ASC;`

	rows, err := ss.db.QueryContext(ctx, query,
		common.PendingStatus, // WHERE status = ?
		nowMs,                // AND process_after <= ?
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to select due messages")
		return nil, common.ErrInternal
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			log.Error().Err(err).Msg("failed to scan due message id")
			return nil, common.ErrInternal
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("failed to iterate due message ids")
		return nil, common.ErrInternal
	}
	return ids, nil
}

func (ss *SQLiteStore) ClaimMessage(id string, nowMs int64, ctx context.Context) (*Message, error) {
	query := `
		UPDATE messages
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ? AND process_after <= ?
		RETURNING id, kind, payload, metadata, status, attempts, max_attempts, process_after, received_at, updated_at, failure_reason;`

	var msg Message
	err := ss.db.QueryRowContext(ctx, query,
		common.ProcessingStatus, // SET status = ?
		nowMs,                   // updated_at = ?
		id,                      // WHERE id = ?
		common.PendingStatus,    // AND status = ?
		nowMs,                   // AND process_after <= ?
	).Scan(&msg.Id, &msg.Kind, &msg.Payload, &msg.Metadata, &msg.Status, &msg.Attempts, &msg.MaxAttempts,
		&msg.ProcessAfter, &msg.ReceivedAt, &msg.UpdatedAt, &msg.FailureReason)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Str("message_id", id).Msg("failed to claim message")
		return nil, common.ErrInternal
	}
	return &msg, nil
}

func (ss *SQLiteStore) CompleteMessage(id string, ctx context.Context) error {
	result, err := ss.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?;`, id)
	if err != nil {
		log.Error().Err(err).Str("message_id", id).Msg("failed to complete message")
		return common.ErrInternal
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return common.ErrInternal
	}
	if rowsAffected == 0 {
		return common.ErrNotFoundMessage
	}
	return nil
}

func (ss *SQLiteStore) FailMessage(id string, reason string, processAfter int64, nowMs int64, ctx context.Context) (bool, error) {
	tx, err := ss.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to begin transaction on message failure")
		return false, common.ErrInternal
	}
	defer tx.Rollback()

	var msg Message
	err = tx.QueryRowContext(ctx, `
		SELECT id, kind, payload, metadata, attempts, max_attempts, received_at
		FROM messages
		WHERE id = ?;`, id,
	).Scan(&msg.Id, &msg.Kind, &msg.Payload, &msg.Metadata, &msg.Attempts, &msg.MaxAttempts, &msg.ReceivedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, common.ErrNotFoundMessage
	}
	if err != nil {
		log.Error().Err(err).Str("message_id", id).Msg("failed to select message on failure")
		return false, common.ErrInternal
	}

	msg.Attempts++

	movedToDlq := msg.Attempts >= msg.MaxAttempts
	if movedToDlq {
		if err := insertDeadLetterTx(tx, &msg, reason, nowMs, ctx); err != nil {
			return false, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id = ?;`, id); err != nil {
			log.Error().Err(err).Str("message_id", id).Msg("failed to delete message on dead-lettering")
			return false, common.ErrInternal
		}
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE messages
			SET status = ?, attempts = ?, process_after = ?, failure_reason = ?, updated_at = ?
			WHERE id = ?;`,
			common.PendingStatus, // status = ?
			msg.Attempts,         // attempts = ?
			processAfter,         // process_after = ?
			reason,               // failure_reason = ?
			nowMs,                // updated_at = ?
			id,                   // WHERE id = ?
		)
		if err != nil {
			log.Error().Err(err).Str("message_id", id).Msg("failed to update message on failure")
			return false, common.ErrInternal
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error().Err(err).Str("message_id", id).Msg("failed to commit message failure")
		return false, common.ErrInternal
	}
	return movedToDlq, nil
}

func (ss *SQLiteStore) MoveToDeadLetter(id string, reason string, nowMs int64, ctx context.Context) error {
	tx, err := ss.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to begin transaction on dead-lettering")
		return common.ErrInternal
	}
	defer tx.Rollback()

	var msg Message
	err = tx.QueryRowContext(ctx, `
		SELECT id, kind, payload, metadata, attempts, max_attempts, received_at
		FROM messages
		WHERE id = ?;`, id,
	).Scan(&msg.Id, &msg.Kind, &msg.Payload, &msg.Metadata, &msg.Attempts, &msg.MaxAttempts, &msg.ReceivedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFoundMessage
	}
	if err != nil {
		log.Error().Err(err).Str("message_id", id).Msg("failed to select message for dead-lettering")
		return common.ErrInternal
	}

	if err := insertDeadLetterTx(tx, &msg, reason, nowMs, ctx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id = ?;`, id); err != nil {
		log.Error().Err(err).Str("message_id", id).Msg("failed to delete message on dead-lettering")
		return common.ErrInternal
	}

	if err := tx.Commit(); err != nil {
		log.Error().Err(err).Str("message_id", id).Msg("failed to commit dead-lettering")
		return common.ErrInternal
	}
	return nil
}

func (ss *SQLiteStore) RetryDeadLetter(id string, nowMs int64, ctx context.Context) (*Message, error) {
	tx, err := ss.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to begin transaction on dead letter retry")
		return nil, common.ErrInternal
	}
	defer tx.Rollback()

	var dl DeadLetter
	err = tx.QueryRowContext(ctx, `
		SELECT id, kind, payload, metadata, max_attempts, received_at, failure_reason
		FROM dead_letters
		WHERE id = ?;`, id,
	).Scan(&dl.Id, &dl.Kind, &dl.Payload, &dl.Metadata, &dl.MaxAttempts, &dl.ReceivedAt, &dl.FailureReason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Str("message_id", id).Msg("failed to select dead letter for retry")
		return nil, common.ErrInternal
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, kind, payload, metadata, status, attempts, max_attempts, process_after, received_at, updated_at, failure_reason)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?);`,
		dl.Id,                // id
		dl.Kind,              // kind
		dl.Payload,           // payload
		dl.Metadata,          // metadata
		common.PendingStatus, // status
		dl.MaxAttempts,       // max_attempts
		nowMs,                // process_after
		dl.ReceivedAt,        // received_at
		nowMs,                // updated_at
		dl.FailureReason,     // failure_reason
	)
	if err != nil {
		log.Error().Err(err).Str("message_id", id).Msg("failed to re-insert dead letter into active store")
		return nil, common.ErrInternal
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM dead_letters WHERE id = ?;`, id); err != nil {
		log.Error().Err(err).Str("message_id", id).Msg("failed to delete dead letter on retry")
		return nil, common.ErrInternal
	}

	if err := tx.Commit(); err != nil {
		log.Error().Err(err).Str("message_id", id).Msg("failed to commit dead letter retry")
		return nil, common.ErrInternal
	}

	reason := dl.FailureReason
	return &Message{
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
	}, nil
}

func (ss *SQLiteStore) SelectDeadLetters(limit int, ctx context.Context) ([]DeadLetter, error) {
	query := `
		SELECT id, kind, payload, metadata, attempts, max_attempts, received_at, failed_at, failure_reason
		FROM dead_letters
		ORDER BY failed_at DESC, id DESC
		LIMIT ?;`

	if limit <= 0 {
		limit = -1 // sqlite treats negative LIMIT as unlimited
	}

	rows, err := ss.db.QueryContext(ctx, query, limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to select dead letters")
		return nil, common.ErrInternal
	}
	defer rows.Close()

	var deadLetters []DeadLetter
	for rows.Next() {
		var dl DeadLetter
		if err := rows.Scan(&dl.Id, &dl.Kind, &dl.Payload, &dl.Metadata, &dl.Attempts, &dl.MaxAttempts,
			&dl.ReceivedAt, &dl.FailedAt, &dl.FailureReason); err != nil {
			log.Error().Err(err).Msg("failed to scan dead letter")
			return nil, common.ErrInternal
		}
		deadLetters = append(deadLetters, dl)
	}
	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("failed to iterate dead letters")
		return nil, common.ErrInternal
	}
	return deadLetters, nil
}

func (ss *SQLiteStore) SelectStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByKind: make(map[string]int)}

	rows, err := ss.db.QueryContext(ctx, `
		SELECT kind, status, COUNT(*)
		FROM messages
		GROUP BY kind, status;`)
	if err != nil {
		log.Error().Err(err).Msg("failed to select queue stats")
		return nil, common.ErrInternal
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var status, count int
		if err := rows.Scan(&kind, &status, &count); err != nil {
			log.Error().Err(err).Msg("failed to scan queue stats")
			return nil, common.ErrInternal
		}
		switch status {
		case common.PendingStatus:
			stats.Pending += count
		case common.ProcessingStatus:
			stats.Processing += count
		}
		stats.ByKind[kind] += count
	}
	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("failed to iterate queue stats")
		return nil, common.ErrInternal
	}

	if err := ss.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letters;`).Scan(&stats.DeadLetter); err != nil {
		log.Error().Err(err).Msg("failed to count dead letters")
		return nil, common.ErrInternal
	}
	return stats, nil
}

// ReclaimProcessing resets messages left in processing by a previous process
// back to pending. Called once at startup before the worker starts.
func (ss *SQLiteStore) ReclaimProcessing(nowMs int64, ctx context.Context) (int64, error) {
	result, err := ss.db.ExecContext(ctx, `
		UPDATE messages
		SET status = ?, process_after = ?, updated_at = ?
		WHERE status = ?;`,
		common.PendingStatus,    // status = ?
		nowMs,                   // process_after = ?
		nowMs,                   // updated_at = ?
		common.ProcessingStatus, // WHERE status = ?
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to reclaim processing messages")
		return 0, common.ErrInternal
	}

	reclaimed, err := result.RowsAffected()
	if err != nil {
		return 0, common.ErrInternal
	}
	return reclaimed, nil
}

func (ss *SQLiteStore) DeleteExpiredDeadLetters(olderThanMs int64, ctx context.Context) (int64, error) {
	result, err := ss.db.ExecContext(ctx, `DELETE FROM dead_letters WHERE failed_at < ?;`, olderThanMs)
	if err != nil {
		log.Error().Err(err).Msg("failed to delete expired dead letters")
		return 0, common.ErrInternal
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, common.ErrInternal
	}
	return deleted, nil
}

func (ss *SQLiteStore) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

func (ss *SQLiteStore) Close() error {
	return ss.db.Close()
}

func insertDeadLetterTx(tx *sql.Tx, msg *Message, reason string, nowMs int64, ctx context.Context) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO dead_letters (id, kind, payload, metadata, attempts, max_attempts, received_at, failed_at, failure_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		msg.Id,          // id
		msg.Kind,        // kind
		msg.Payload,     // payload
		msg.Metadata,    // metadata
		msg.Attempts,    // attempts
		msg.MaxAttempts, // max_attempts
		msg.ReceivedAt,  // received_at
		nowMs,           // failed_at
		reason,          // failure_reason
	)
	if err != nil {
		log.Error().Err(err).Str("message_id", msg.Id).Msg("failed to insert dead letter")
		return common.ErrInternal
	}
	return nil
}

package queue

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"

	"voice-memories-go/internal/sqlitedb"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const pollInterval = 250 * time.Millisecond

// SQLiteQueue is a local stand-in for SQS with the same delivery semantics.
type SQLiteQueue struct {
	db         *sql.DB
	visibility time.Duration
	now        func() time.Time
}

// OpenSQLite opens the queue database at path.
func OpenSQLite(ctx context.Context, path string, visibility time.Duration) (*SQLiteQueue, error) {
	migrations, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrations fs: %w", err)
	}
	db, err := sqlitedb.Open(ctx, path, migrations)
	if err != nil {
		return nil, err
	}
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	return &SQLiteQueue{db: db, visibility: visibility, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (q *SQLiteQueue) Close() error {
	if q == nil || q.db == nil {
		return nil
	}
	return q.db.Close()
}

// SetClock overrides the time source.
func (q *SQLiteQueue) SetClock(now func() time.Time) {
	q.now = now
}

func (q *SQLiteQueue) Send(ctx context.Context, body string) (string, error) {
	id := uuid.NewString()
	now := q.now().UnixNano()
	err := sqlitedb.WithBusyRetry(ctx, func() error {
		_, err := q.db.ExecContext(ctx,
			`INSERT INTO jobs (id, body, receive_count, visible_at, created_at) VALUES (?, ?, 0, ?, ?)`,
			id, body, now, now,
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("send job: %w", err)
	}
	return id, nil
}

// Receive claims up to maxMessages visible jobs, waiting up to waitSeconds for
// at least one to appear.
func (q *SQLiteQueue) Receive(ctx context.Context, maxMessages, waitSeconds int) ([]Message, error) {
	if maxMessages < 1 {
		maxMessages = 1
	}
	deadline := q.now().Add(time.Duration(waitSeconds) * time.Second)
	for {
		msgs, err := q.claim(ctx, maxMessages)
		if err != nil || len(msgs) > 0 {
			return msgs, err
		}
		if !q.now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (q *SQLiteQueue) claim(ctx context.Context, limit int) ([]Message, error) {
	now := q.now()
	var msgs []Message
	err := sqlitedb.WithBusyRetry(ctx, func() error {
		msgs = msgs[:0]
		rows, err := q.db.QueryContext(ctx,
			`UPDATE jobs
                SET receipt_handle = lower(hex(randomblob(16))),
                    visible_at = ?,
                    receive_count = receive_count + 1
              WHERE id IN (
                    SELECT id FROM jobs WHERE visible_at <= ? ORDER BY created_at, id LIMIT ?
              )
          RETURNING id, receipt_handle, body, receive_count`,
			now.Add(q.visibility).UnixNano(), now.UnixNano(), limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var m Message
			if err := rows.Scan(&m.ID, &m.ReceiptHandle, &m.Body, &m.ReceiveCount); err != nil {
				return err
			}
			msgs = append(msgs, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("receive jobs: %w", err)
	}
	return msgs, nil
}

// Delete acknowledges a message. A receipt from an expired claim fails with
// ErrStaleReceipt.
func (q *SQLiteQueue) Delete(ctx context.Context, receiptHandle string) error {
	var affected int64
	err := sqlitedb.WithBusyRetry(ctx, func() error {
		res, err := q.db.ExecContext(ctx, `DELETE FROM jobs WHERE receipt_handle = ?`, receiptHandle)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if affected == 0 {
		return ErrStaleReceipt
	}
	return nil
}

// Depth reports how many messages are queued, visible or not.
func (q *SQLiteQueue) Depth(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return n, nil
}

// Package repository persists memories in SQLite. Every mutation is a single
// statement so a status change never lands without its data.
package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"voice-memories-go/internal/sqlitedb"
	"voice-memories-go/internal/types"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Repository is the persistence gateway for memories.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// Open connects to the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Repository, error) {
	migrations, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrations fs: %w", err)
	}
	db, err := sqlitedb.Open(ctx, path, migrations)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SetClock overrides the timestamp source.
func (r *Repository) SetClock(now func() time.Time) {
	r.now = now
}

func (r *Repository) timestamp() string {
	return sqlitedb.FormatTime(r.now())
}

const memoryColumns = `id, status, audio_reference, title, transcript, summary,
    key_points, action_items, duration, created_at, updated_at`

// Create inserts a new memory in the uploading state.
func (r *Repository) Create(ctx context.Context, id string) (*types.Artifact, error) {
	ts := r.timestamp()
	err := sqlitedb.WithBusyRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO memories (id, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			id, types.StatusUploading, ts, ts,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}
	return r.GetByID(ctx, id)
}

// GetByID returns the memory or a *types.NotFoundError.
func (r *Repository) GetByID(ctx context.Context, id string) (*types.Artifact, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	artifact, err := scanArtifact(row)
	if err == sql.ErrNoRows {
		return nil, &types.NotFoundError{Kind: "memory", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return artifact, nil
}

// UpdateStatus changes only the status and updated_at.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status types.Status) (*types.Artifact, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", status)
	}
	return r.mutate(ctx, id,
		`UPDATE memories SET status = ?, updated_at = ? WHERE id = ?`,
		status, r.timestamp(), id,
	)
}

// SetAudioReference records where the uploaded bytes live and sets the status
// in the same statement.
func (r *Repository) SetAudioReference(ctx context.Context, id, reference string, status types.Status) (*types.Artifact, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", status)
	}
	return r.mutate(ctx, id,
		`UPDATE memories SET audio_reference = ?, status = ?, updated_at = ? WHERE id = ?`,
		reference, status, r.timestamp(), id,
	)
}

// UpdateResults writes pipeline output and the final status at once. Nil fields
// keep their stored value.
func (r *Repository) UpdateResults(ctx context.Context, id string, res types.Results) (*types.Artifact, error) {
	if !res.Status.Valid() {
		return nil, fmt.Errorf("invalid status %q", res.Status)
	}
	keyPoints, err := encodeList(res.KeyPoints)
	if err != nil {
		return nil, err
	}
	actionItems, err := encodeList(res.ActionItems)
	if err != nil {
		return nil, err
	}
	var duration any
	if res.Duration != nil {
		duration = *res.Duration
	}
	return r.mutate(ctx, id,
		`UPDATE memories SET
            transcript = COALESCE(?, transcript),
            summary = COALESCE(?, summary),
            key_points = COALESCE(?, key_points),
            action_items = COALESCE(?, action_items),
            title = COALESCE(?, title),
            duration = COALESCE(?, duration),
            status = ?,
            updated_at = ?
        WHERE id = ?`,
		ptrValue(res.Transcript),
		ptrValue(res.Summary),
		keyPoints,
		actionItems,
		ptrValue(res.Title),
		duration,
		res.Status,
		r.timestamp(),
		id,
	)
}

// Delete removes the memory row. The stored audio is left to the caller.
func (r *Repository) Delete(ctx context.Context, id string) error {
	var affected int64
	err := sqlitedb.WithBusyRetry(ctx, func() error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	if affected == 0 {
		return &types.NotFoundError{Kind: "memory", ID: id}
	}
	return nil
}

func (r *Repository) mutate(ctx context.Context, id, query string, args ...any) (*types.Artifact, error) {
	var affected int64
	err := sqlitedb.WithBusyRetry(ctx, func() error {
		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update memory %s: %w", id, err)
	}
	if affected == 0 {
		return nil, &types.NotFoundError{Kind: "memory", ID: id}
	}
	return r.GetByID(ctx, id)
}

func ptrValue(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

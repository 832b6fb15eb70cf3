package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"voice-memories-go/internal/sqlitedb"
	"voice-memories-go/internal/types"
)

const maxPageSize = 100

// ListOptions filters and pages List. Page is 1-based.
type ListOptions struct {
	Page     int
	PageSize int
	Search   string
	Status   types.Status
}

// Page is one slice of a listing plus the total number of matches.
type Page struct {
	Items    []*types.Artifact `json:"items"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// List returns memories newest first. Search matches title or summary.
func (r *Repository) List(ctx context.Context, opts ListOptions) (*Page, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 20
	}
	if opts.PageSize > maxPageSize {
		opts.PageSize = maxPageSize
	}

	var (
		where []string
		args  []any
	)
	if search := strings.TrimSpace(opts.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		where = append(where, `(title LIKE ? ESCAPE '\' OR summary LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, opts.Status)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`+clause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count memories: %w", err)
	}

	query := `SELECT ` + memoryColumns + ` FROM memories` + clause +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, opts.PageSize, (opts.Page-1)*opts.PageSize)...)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	items := make([]*types.Artifact, 0, opts.PageSize)
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		items = append(items, artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &Page{Items: items, Total: total, Page: opts.Page, PageSize: opts.PageSize}, nil
}

// All walks every memory, newest first. Used by report export.
func (r *Repository) All(ctx context.Context) ([]*types.Artifact, error) {
	var all []*types.Artifact
	for page := 1; ; page++ {
		res, err := r.List(ctx, ListOptions{Page: page, PageSize: maxPageSize})
		if err != nil {
			return nil, err
		}
		all = append(all, res.Items...)
		if len(all) >= res.Total || len(res.Items) == 0 {
			return all, nil
		}
	}
}

// ResetStuckProcessing moves memories stuck in processing since before the
// cutoff back to uploading so they can be triggered again.
func (r *Repository) ResetStuckProcessing(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := sqlitedb.FormatTime(r.now().Add(-olderThan))
	var affected int64
	err := sqlitedb.WithBusyRetry(ctx, func() error {
		res, err := r.db.ExecContext(ctx,
			`UPDATE memories SET status = ?, updated_at = ? WHERE status = ? AND updated_at < ?`,
			types.StatusUploading, r.timestamp(), types.StatusProcessing, cutoff,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("reset stuck memories: %w", err)
	}
	return affected, nil
}

func escapeLike(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(v)
}

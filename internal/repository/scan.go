package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"voice-memories-go/internal/sqlitedb"
	"voice-memories-go/internal/types"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row scanner) (*types.Artifact, error) {
	var (
		a           types.Artifact
		status      string
		audio       sql.NullString
		title       sql.NullString
		transcript  sql.NullString
		summary     sql.NullString
		keyPoints   sql.NullString
		actionItems sql.NullString
		duration    sql.NullFloat64
		createdAt   string
		updatedAt   string
	)
	if err := row.Scan(&a.ID, &status, &audio, &title, &transcript, &summary,
		&keyPoints, &actionItems, &duration, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.Status = types.Status(status)
	a.AudioReference = audio.String
	a.Title = nullString(title)
	a.Transcript = nullString(transcript)
	a.Summary = nullString(summary)
	if duration.Valid {
		v := duration.Float64
		a.Duration = &v
	}
	var err error
	if a.KeyPoints, err = decodeList(keyPoints); err != nil {
		return nil, fmt.Errorf("key_points: %w", err)
	}
	if a.ActionItems, err = decodeList(actionItems); err != nil {
		return nil, fmt.Errorf("action_items: %w", err)
	}
	if a.CreatedAt, err = sqlitedb.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = sqlitedb.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// encodeList keeps nil as NULL so COALESCE preserves the stored list; an empty
// non-nil slice is stored as "[]".
func encodeList(items []string) (any, error) {
	if items == nil {
		return nil, nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode list: %w", err)
	}
	return string(data), nil
}

func decodeList(v sql.NullString) ([]string, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(v.String), &items); err != nil {
		return nil, err
	}
	return items, nil
}

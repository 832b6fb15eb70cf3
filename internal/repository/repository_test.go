package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"voice-memories-go/internal/repository"
	"voice-memories-go/internal/testsupport"
	"voice-memories-go/internal/types"
)

func TestCreateAndGet(t *testing.T) {
	repo := testsupport.MustOpenRepository(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, "m-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != types.StatusUploading {
		t.Fatalf("expected uploading, got %s", created.Status)
	}
	if created.Transcript != nil || created.KeyPoints != nil {
		t.Fatalf("new memory should have no results: %+v", created)
	}

	_, err = repo.GetByID(ctx, "missing")
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateResultsNeverClearsSetFields(t *testing.T) {
	repo := testsupport.MustOpenRepository(t)
	ctx := context.Background()
	if _, err := repo.Create(ctx, "m-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dur := 12.5
	_, err := repo.UpdateResults(ctx, "m-1", types.Results{
		Transcript:  types.StringPtr("hello world"),
		Summary:     types.StringPtr("a long enough summary"),
		KeyPoints:   []string{"one"},
		ActionItems: []string{},
		Title:       types.StringPtr("Greeting"),
		Duration:    &dur,
		Status:      types.StatusReady,
	})
	if err != nil {
		t.Fatalf("UpdateResults: %v", err)
	}

	// Transcript-only rerun must leave analysis fields in place.
	got, err := repo.UpdateResults(ctx, "m-1", types.Results{
		Transcript: types.StringPtr("hello again"),
		Status:     types.StatusReady,
	})
	if err != nil {
		t.Fatalf("UpdateResults: %v", err)
	}
	if got.Transcript == nil || *got.Transcript != "hello again" {
		t.Fatalf("transcript not overwritten: %v", got.Transcript)
	}
	if got.Summary == nil || got.Title == nil || len(got.KeyPoints) != 1 {
		t.Fatalf("analysis fields were cleared: %+v", got)
	}
	if got.ActionItems == nil || len(got.ActionItems) != 0 {
		t.Fatalf("expected empty action items, got %#v", got.ActionItems)
	}
	if got.Duration == nil || *got.Duration != 12.5 {
		t.Fatalf("duration lost: %v", got.Duration)
	}
}

func TestMutationsBumpUpdatedAtAndReportMissing(t *testing.T) {
	repo := testsupport.MustOpenRepository(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.SetClock(func() time.Time { return now })
	created, err := repo.Create(ctx, "m-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	now = now.Add(time.Minute)
	updated, err := repo.SetAudioReference(ctx, "m-1", "audio/m-1.webm", types.StatusProcessing)
	if err != nil {
		t.Fatalf("SetAudioReference: %v", err)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("updated_at not advanced: %v -> %v", created.UpdatedAt, updated.UpdatedAt)
	}
	if updated.AudioReference != "audio/m-1.webm" || updated.Status != types.StatusProcessing {
		t.Fatalf("unexpected memory: %+v", updated)
	}

	if _, err := repo.UpdateStatus(ctx, "nope", types.StatusFailed); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.Delete(ctx, "nope"); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
	if _, err := repo.UpdateStatus(ctx, "m-1", types.Status("done")); err == nil {
		t.Fatal("expected invalid status error")
	}
}

func TestListSearchStatusAndPaging(t *testing.T) {
	repo := testsupport.MustOpenRepository(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		ts := base.Add(time.Duration(i) * time.Minute)
		repo.SetClock(func() time.Time { return ts })
		if _, err := repo.Create(ctx, id); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	if _, err := repo.UpdateResults(ctx, "b", types.Results{
		Transcript: types.StringPtr("t"),
		Summary:    types.StringPtr("Quarterly budget review"),
		Title:      types.StringPtr("Budget 100% done"),
		Status:     types.StatusReady,
	}); err != nil {
		t.Fatalf("UpdateResults: %v", err)
	}

	page, err := repo.List(ctx, repository.ListOptions{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || page.Items[0].ID != "c" {
		t.Fatalf("unexpected first page: total=%d items=%d", page.Total, len(page.Items))
	}

	page, err = repo.List(ctx, repository.ListOptions{Search: "budget"})
	if err != nil {
		t.Fatalf("List search: %v", err)
	}
	if page.Total != 1 || page.Items[0].ID != "b" {
		t.Fatalf("search should match title/summary, got %+v", page)
	}

	page, err = repo.List(ctx, repository.ListOptions{Search: "100%"})
	if err != nil || page.Total != 1 {
		t.Fatalf("literal percent search: %+v %v", page, err)
	}

	page, err = repo.List(ctx, repository.ListOptions{Status: types.StatusUploading})
	if err != nil || page.Total != 2 {
		t.Fatalf("status filter: %+v %v", page, err)
	}

	all, err := repo.All(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("All: %d %v", len(all), err)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	repo := testsupport.MustOpenRepository(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.SetClock(func() time.Time { return now })
	for _, id := range []string{"old", "fresh"} {
		if _, err := repo.Create(ctx, id); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if _, err := repo.UpdateStatus(ctx, "old", types.StatusProcessing); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	now = now.Add(45 * time.Minute)
	if _, err := repo.UpdateStatus(ctx, "fresh", types.StatusProcessing); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	n, err := repo.ResetStuckProcessing(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("ResetStuckProcessing: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one reset, got %d", n)
	}
	old, _ := repo.GetByID(ctx, "old")
	fresh, _ := repo.GetByID(ctx, "fresh")
	if old.Status != types.StatusUploading || fresh.Status != types.StatusProcessing {
		t.Fatalf("unexpected statuses old=%s fresh=%s", old.Status, fresh.Status)
	}
}

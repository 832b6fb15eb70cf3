package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"voice-memories-go/internal/logger"
	"voice-memories-go/internal/memory"
	"voice-memories-go/internal/storage"
)

const maxDownloadBytes = 200 << 20

// Uploader is implemented by memory.Service.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) (*memory.UploadResult, error)
}

// IngestResult is the outcome for one manifest row.
type IngestResult struct {
	Entry    ManifestEntry
	MemoryID string
	Status   string
	Enqueued bool
	Err      error
}

// Ingester uploads every manifest entry through the memory service.
type Ingester struct {
	uploader Uploader
	http     *http.Client
	baseDir  string
	log      *logger.Logger
}

// NewIngester resolves relative file sources against baseDir.
func NewIngester(uploader Uploader, baseDir string, log *logger.Logger) *Ingester {
	return &Ingester{
		uploader: uploader,
		http:     &http.Client{Timeout: 2 * time.Minute},
		baseDir:  baseDir,
		log:      log.Component("ingest"),
	}
}

// Ingest processes entries in order. One failing row never stops the rest.
func (in *Ingester) Ingest(ctx context.Context, entries []ManifestEntry) []IngestResult {
	results := make([]IngestResult, 0, len(entries))
	for _, entry := range entries {
		if ctx.Err() != nil {
			results = append(results, IngestResult{Entry: entry, Err: ctx.Err()})
			continue
		}
		res := IngestResult{Entry: entry}
		data, err := in.fetch(ctx, entry)
		if err != nil {
			res.Err = err
			in.log.WithField("row", entry.Row).WithError(err).Warn("could not read source")
			results = append(results, res)
			continue
		}
		up, err := in.uploader.Upload(ctx, storage.FilenameHint(entry.Source), data)
		if err != nil {
			res.Err = err
			in.log.WithField("row", entry.Row).WithError(err).Warn("upload failed")
			results = append(results, res)
			continue
		}
		res.MemoryID = up.Memory.ID
		res.Status = string(up.Memory.Status)
		res.Enqueued = up.Enqueued
		results = append(results, res)
	}
	return results
}

func (in *Ingester) fetch(ctx context.Context, entry ManifestEntry) ([]byte, error) {
	if !entry.IsURL() {
		p := entry.Source
		if !filepath.IsAbs(p) {
			p = filepath.Join(in.baseDir, p)
		}
		return os.ReadFile(p)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.Source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := in.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download failed: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
}

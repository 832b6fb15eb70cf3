package dataset

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ManifestEntry is one recording to ingest.
type ManifestEntry struct {
	Row    int
	Source string
	Title  string
}

// IsURL reports whether the source is fetched over http.
func (e ManifestEntry) IsURL() bool {
	l := strings.ToLower(e.Source)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// LoadManifest reads the first sheet of an .xlsx file. The source column is
// found by header heuristics (audio, file, path, url, recording, link); a
// title/name column is optional. Rows without a source are skipped.
func LoadManifest(path string) ([]ManifestEntry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	sourceIdx, titleIdx := -1, -1
	for i, h := range rows[0] {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case sourceIdx == -1 && (strings.Contains(l, "audio") || strings.Contains(l, "file") ||
			strings.Contains(l, "path") || strings.Contains(l, "url") ||
			strings.Contains(l, "record") || strings.Contains(l, "link")):
			sourceIdx = i
		case titleIdx == -1 && (strings.Contains(l, "title") || strings.Contains(l, "name")):
			titleIdx = i
		}
	}
	if sourceIdx == -1 {
		// single-column manifests without a recognizable header
		sourceIdx = 0
	}

	var out []ManifestEntry
	for i, r := range rows[1:] {
		entry := ManifestEntry{Row: i + 2}
		if sourceIdx < len(r) {
			entry.Source = strings.TrimSpace(r[sourceIdx])
		}
		if entry.Source == "" {
			continue
		}
		if titleIdx >= 0 && titleIdx < len(r) {
			entry.Title = strings.TrimSpace(r[titleIdx])
		}
		if entry.Title == "" {
			entry.Title = DeriveTitle(entry.Source)
		}
		out = append(out, entry)
	}
	return out, nil
}

var titleCaser = cases.Title(language.Und)

// DeriveTitle turns "team_sync-2024.m4a" into "Team Sync 2024".
func DeriveTitle(source string) string {
	base := source
	if idx := strings.IndexAny(base, "?#"); idx >= 0 {
		base = base[:idx]
	}
	base = path.Base(filepath.ToSlash(base))
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return "Untitled Recording"
	}
	return titleCaser.String(base)
}

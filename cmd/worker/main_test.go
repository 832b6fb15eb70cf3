package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/xuri/excelize/v2"

	"voice-memories-go/internal/repository"
	"voice-memories-go/internal/testsupport"
	"voice-memories-go/internal/types"
)

type cliEnv struct {
	configPath string
	dbPath     string
	dir        string
}

func setupCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	dir := filepath.Dir(cfg.Database.Path)

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliEnv{configPath: path, dbPath: cfg.Database.Path, dir: dir}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *cliEnv) memories(t *testing.T) []*types.Artifact {
	t.Helper()
	repo, err := repository.Open(context.Background(), e.dbPath)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	defer repo.Close()
	all, err := repo.All(context.Background())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	return all
}

func writeManifest(t *testing.T, dir string) string {
	t.Helper()
	for _, name := range []string{"standup.m4a", "retro.wav"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("audio "+name), 0o644); err != nil {
			t.Fatalf("write audio: %v", err)
		}
	}
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{{"Title", "Audio Path"}, {"Daily standup", "standup.m4a"}, {"", "retro.wav"}}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	path := filepath.Join(dir, "manifest.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	return path
}

func TestIngestBatchAndInspect(t *testing.T) {
	env := setupCLIEnv(t)
	manifest := writeManifest(t, env.dir)

	out, err := env.run(t, "ingest", manifest)
	if err != nil {
		t.Fatalf("ingest: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Daily standup") || !strings.Contains(out, "Retro") {
		t.Fatalf("ingest output missing titles:\n%s", out)
	}

	out, err = env.run(t, "list", "--status", "processing")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "of 2 memories") {
		t.Fatalf("expected two processing memories:\n%s", out)
	}

	out, err = env.run(t, "batch", "--max", "10")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if !strings.Contains(out, "Processed 2 message(s), 0 failed") {
		t.Fatalf("unexpected batch output: %s", out)
	}

	out, err = env.run(t, "batch")
	if err != nil || !strings.Contains(out, "No messages available") {
		t.Fatalf("queue should be drained: %q %v", out, err)
	}

	all := env.memories(t)
	if len(all) != 2 {
		t.Fatalf("expected 2 memories, got %d", len(all))
	}
	for _, m := range all {
		if m.Status != types.StatusReady {
			t.Fatalf("memory %s not ready: %s", m.ID, m.Status)
		}
	}

	out, err = env.run(t, "show", all[0].ID, "--json")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	var shown types.Artifact
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("decode show output: %v\n%s", err, out)
	}
	if shown.ID != all[0].ID || !shown.HasSummary() {
		t.Fatalf("unexpected show output %+v", shown)
	}

	report := filepath.Join(env.dir, "report.xlsx")
	out, err = env.run(t, "export", report)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "Wrote 2 memories") {
		t.Fatalf("unexpected export output: %s", out)
	}
	if _, err := os.Stat(report); err != nil {
		t.Fatalf("report not written: %v", err)
	}
}

func TestTriggerAndReclaim(t *testing.T) {
	env := setupCLIEnv(t)
	manifest := writeManifest(t, env.dir)
	if _, err := env.run(t, "ingest", manifest); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if _, err := env.run(t, "batch", "--max", "10"); err != nil {
		t.Fatalf("batch: %v", err)
	}
	id := env.memories(t)[0].ID

	out, err := env.run(t, "trigger", id)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if !strings.Contains(out, "is processing") {
		t.Fatalf("unexpected trigger output: %s", out)
	}

	out, err = env.run(t, "reclaim", "--older-than", "1ns")
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if !strings.Contains(out, "Reset 1 memory") {
		t.Fatalf("unexpected reclaim output: %s", out)
	}

	if _, err := env.run(t, "show", "does-not-exist"); err == nil {
		t.Fatal("show of a missing memory should fail")
	}
}

package sqlitedb_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"voice-memories-go/internal/sqlitedb"
)

func TestOpenAppliesMigrationsOnce(t *testing.T) {
	migrations := fstest.MapFS{
		"001_init.sql": {Data: []byte("CREATE TABLE things (id TEXT PRIMARY KEY);")},
		"002_more.sql": {Data: []byte("ALTER TABLE things ADD COLUMN name TEXT;")},
	}
	path := filepath.Join(t.TempDir(), "nested", "test.db")
	ctx := context.Background()

	db, err := sqlitedb.Open(ctx, path, migrations)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.Exec("INSERT INTO things (id, name) VALUES ('a', 'b')"); err != nil {
		t.Fatalf("insert after migrations: %v", err)
	}
	_ = db.Close()

	// A second open must not re-run the ALTER TABLE.
	db, err = sqlitedb.Open(ctx, path, migrations)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	var versions int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions); err != nil {
		t.Fatalf("count versions: %v", err)
	}
	if versions != 2 {
		t.Fatalf("expected 2 recorded migrations, got %d", versions)
	}
}

func TestTimeRoundTripOrdersLexically(t *testing.T) {
	a := time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC)
	b := a.Add(time.Second)
	if sqlitedb.FormatTime(a) >= sqlitedb.FormatTime(b) {
		t.Fatal("formatted timestamps should sort in time order")
	}
	parsed, err := sqlitedb.ParseTime(sqlitedb.FormatTime(a))
	if err != nil || !parsed.Equal(a) {
		t.Fatalf("parse mismatch: %v %v", parsed, err)
	}
}

func TestWithBusyRetry(t *testing.T) {
	calls := 0
	err := sqlitedb.WithBusyRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success after 3 calls, got %d calls err=%v", calls, err)
	}

	calls = 0
	boom := errors.New("constraint failed")
	err = sqlitedb.WithBusyRetry(context.Background(), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("non-busy errors must not retry: calls=%d err=%v", calls, err)
	}
}

package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Initialize(filepath.Join(t.TempDir(), "leetee_test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDatabaseIntegration tests the complete database lifecycle
func TestDatabaseIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()

	applied, err := db.RunMigrations(ctx)
	if err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("expected 2 migrations applied, got %v", applied)
	}

	for _, table := range []string{"kv_store", "bad_words", "migrations"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}

	again, err := db.RunMigrations(ctx)
	if err != nil {
		t.Fatalf("second RunMigrations: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("migrations re-applied: %v", again)
	}
}

func TestUpsertKV(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()
	if _, err := db.RunMigrations(ctx); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}

	for _, payload := range []string{`{"v":1}`, `{"v":2}`} {
		if _, err := db.ExecContext(ctx, db.Dialect.UpsertKVQuery(), "k", payload); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	var count int
	var payload string
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM kv_store").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRowContext(ctx, "SELECT payload FROM kv_store WHERE store_key = ?", "k").Scan(&payload); err != nil {
		t.Fatal(err)
	}
	if count != 1 || payload != `{"v":2}` {
		t.Errorf("expected single row with latest payload, got count=%d payload=%s", count, payload)
	}
}

func TestBadWordsFilter(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()
	if _, err := db.RunMigrations(ctx); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}

	added, err := db.LoadBadWords(ctx, strings.NewReader("Darn\n\nheck\ndarn\n"))
	if err != nil {
		t.Fatalf("LoadBadWords: %v", err)
	}
	if added != 2 {
		t.Errorf("expected 2 words added, got %d", added)
	}

	found, err := db.FindBadWords(ctx, "Oh heck, the heck with it. Darn!")
	if err != nil {
		t.Fatalf("FindBadWords: %v", err)
	}
	if strings.Join(found, ",") != "heck,darn" {
		t.Errorf("FindBadWords() = %v", found)
	}

	clean, err := db.FindBadWords(ctx, "I found evidence for this")
	if err != nil {
		t.Fatal(err)
	}
	if len(clean) != 0 {
		t.Errorf("expected clean text, got %v", clean)
	}

	// Already seeded: no download attempted.
	n, err := db.SeedBadWords(ctx, "http://127.0.0.1:0/unused")
	if err != nil || n != 0 {
		t.Errorf("SeedBadWords on populated table = %d, %v", n, err)
	}
}

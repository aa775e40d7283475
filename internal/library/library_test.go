package library

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/niconistal/BabyBox/internal/infrastructure/database"
	_ "github.com/niconistal/BabyBox/migrations"
)

// openTestDB opens a migrated database in a temp directory.
func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "babybox.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

// seedMedia inserts a media item for tests that need one.
func seedMedia(t *testing.T, db *database.DB, title string, kind MediaKind, durationS int64) MediaItem {
	t.Helper()

	repo := NewMediaRepository(db)
	item, err := repo.Create(context.Background(), MediaItem{
		Title:           title,
		Kind:            kind,
		FilePath:        "/media/" + title + ".mkv",
		DurationSeconds: durationS,
	})
	if err != nil {
		t.Fatalf("seeding media %q: %v", title, err)
	}
	return item
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parsing time %q: %v", s, err)
	}
	return parsed
}

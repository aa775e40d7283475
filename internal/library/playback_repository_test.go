package library

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPlaybackCreateAndFinish(t *testing.T) {
	db := openTestDB(t)
	repo := NewPlaybackRepository(db)
	ctx := context.Background()

	item := seedMedia(t, db, "session", KindVideo, 300)
	started := mustTime(t, "2026-02-15T10:00:00Z")

	id, err := repo.Create(ctx, PlaybackRecord{
		MediaID:   item.ID,
		TagUID:    "04A1",
		Kind:      KindVideo,
		StartedAt: started,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	rec, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.EndedAt != nil {
		t.Errorf("EndedAt = %v, want nil while session is live", rec.EndedAt)
	}
	if rec.Completed {
		t.Error("Completed = true for a live session")
	}

	ended := started.Add(5 * time.Minute)
	if err := repo.Finish(ctx, id, ended, true); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	rec, err = repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() after Finish error = %v", err)
	}
	if rec.EndedAt == nil || !rec.EndedAt.Equal(ended) {
		t.Errorf("EndedAt = %v, want %v", rec.EndedAt, ended)
	}
	if !rec.Completed {
		t.Error("Completed = false, want true")
	}
}

func TestPlaybackDelete(t *testing.T) {
	db := openTestDB(t)
	repo := NewPlaybackRepository(db)
	ctx := context.Background()

	item := seedMedia(t, db, "rollback", KindVideo, 300)
	id, err := repo.Create(ctx, PlaybackRecord{MediaID: item.ID, Kind: KindVideo})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, id); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrRecordNotFound", err)
	}
}

func TestListVideoSessionsSince(t *testing.T) {
	db := openTestDB(t)
	repo := NewPlaybackRepository(db)
	ctx := context.Background()

	video := seedMedia(t, db, "vid", KindVideo, 300)
	audio := seedMedia(t, db, "aud", KindAudio, 300)

	windowStart := mustTime(t, "2026-02-15T06:00:00Z")

	// Before the window: excluded.
	mustCreateRecord(t, repo, video.ID, KindVideo, windowStart.Add(-time.Hour))
	// Audio inside the window: excluded from video sessions.
	mustCreateRecord(t, repo, audio.ID, KindAudio, windowStart.Add(time.Hour))
	// Video inside the window: included.
	mustCreateRecord(t, repo, video.ID, KindVideo, windowStart.Add(2*time.Hour))
	// Video exactly at the window start: included.
	mustCreateRecord(t, repo, video.ID, KindVideo, windowStart)

	sessions, err := repo.ListVideoSessionsSince(ctx, windowStart)
	if err != nil {
		t.Fatalf("ListVideoSessionsSince() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
	for _, s := range sessions {
		if s.Kind != KindVideo {
			t.Errorf("session kind = %q, want video", s.Kind)
		}
		if s.StartedAt.Before(windowStart) {
			t.Errorf("session started %v, before window start %v", s.StartedAt, windowStart)
		}
	}
}

func TestFinalizeDangling(t *testing.T) {
	db := openTestDB(t)
	repo := NewPlaybackRepository(db)
	ctx := context.Background()

	item := seedMedia(t, db, "dangling", KindVideo, 300)
	started := mustTime(t, "2026-02-15T10:00:00Z")

	openID := mustCreateRecord(t, repo, item.ID, KindVideo, started)

	closedID := mustCreateRecord(t, repo, item.ID, KindVideo, started)
	if err := repo.Finish(ctx, closedID, started.Add(time.Minute), true); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	n, err := repo.FinalizeDangling(ctx)
	if err != nil {
		t.Fatalf("FinalizeDangling() error = %v", err)
	}
	if n != 1 {
		t.Errorf("finalized = %d, want 1", n)
	}

	rec, err := repo.Get(ctx, openID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.EndedAt == nil || !rec.EndedAt.Equal(rec.StartedAt) {
		t.Errorf("dangling EndedAt = %v, want StartedAt %v", rec.EndedAt, rec.StartedAt)
	}
	if rec.Completed {
		t.Error("dangling record marked completed")
	}

	// Already-closed record untouched.
	rec, err = repo.Get(ctx, closedID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !rec.Completed {
		t.Error("closed record lost its completed flag")
	}
}

func mustCreateRecord(t *testing.T, repo *PlaybackRepository, mediaID int64, kind MediaKind, startedAt time.Time) int64 {
	t.Helper()
	id, err := repo.Create(context.Background(), PlaybackRecord{
		MediaID:   mediaID,
		Kind:      kind,
		StartedAt: startedAt,
	})
	if err != nil {
		t.Fatalf("creating playback record: %v", err)
	}
	return id
}

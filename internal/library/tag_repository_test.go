package library

import (
	"context"
	"errors"
	"testing"
)

func TestTagBindAndResolve(t *testing.T) {
	db := openTestDB(t)
	repo := NewTagRepository(db)
	ctx := context.Background()

	item := seedMedia(t, db, "frozen", KindVideo, 5400)

	if err := repo.Bind(ctx, TagBinding{UID: "04DEADBEEF", MediaID: item.ID, Label: "snowflake card"}); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	got, err := repo.Resolve(ctx, "04DEADBEEF")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.ID != item.ID {
		t.Errorf("Resolve() media ID = %d, want %d", got.ID, item.ID)
	}
	if got.Title != "frozen" {
		t.Errorf("Resolve() title = %q, want %q", got.Title, "frozen")
	}
}

func TestTagResolveUnknown(t *testing.T) {
	db := openTestDB(t)
	repo := NewTagRepository(db)

	_, err := repo.Resolve(context.Background(), "NOSUCHTAG")
	if !errors.Is(err, ErrTagNotFound) {
		t.Errorf("Resolve() error = %v, want ErrTagNotFound", err)
	}
}

func TestTagRebind(t *testing.T) {
	db := openTestDB(t)
	repo := NewTagRepository(db)
	ctx := context.Background()

	first := seedMedia(t, db, "first", KindVideo, 100)
	second := seedMedia(t, db, "second", KindAudio, 200)

	if err := repo.Bind(ctx, TagBinding{UID: "04CAFE", MediaID: first.ID}); err != nil {
		t.Fatalf("first Bind() error = %v", err)
	}
	if err := repo.Bind(ctx, TagBinding{UID: "04CAFE", MediaID: second.ID, Label: "rebound"}); err != nil {
		t.Fatalf("second Bind() error = %v", err)
	}

	got, err := repo.Resolve(ctx, "04CAFE")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.ID != second.ID {
		t.Errorf("Resolve() after rebind = media %d, want %d", got.ID, second.ID)
	}

	binding, err := repo.Get(ctx, "04CAFE")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if binding.Label != "rebound" {
		t.Errorf("Label = %q, want %q", binding.Label, "rebound")
	}
}

func TestTagUnbind(t *testing.T) {
	db := openTestDB(t)
	repo := NewTagRepository(db)
	ctx := context.Background()

	item := seedMedia(t, db, "unbind", KindVideo, 60)
	if err := repo.Bind(ctx, TagBinding{UID: "04FEED", MediaID: item.ID}); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if err := repo.Unbind(ctx, "04FEED"); err != nil {
		t.Fatalf("Unbind() error = %v", err)
	}
	if err := repo.Unbind(ctx, "04FEED"); !errors.Is(err, ErrTagNotFound) {
		t.Errorf("second Unbind() error = %v, want ErrTagNotFound", err)
	}
}

package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/niconistal/BabyBox/internal/infrastructure/database"
)

// TagRepository provides access to the tags table.
type TagRepository struct {
	db *database.DB
}

// NewTagRepository creates a repository backed by the given database.
func NewTagRepository(db *database.DB) *TagRepository {
	return &TagRepository{db: db}
}

// Bind associates a tag UID with a media item, replacing any existing
// binding for that UID. Re-binding a card to new media is the normal
// workflow when a child outgrows a video.
func (r *TagRepository) Bind(ctx context.Context, binding TagBinding) error {
	if binding.CreatedAt.IsZero() {
		binding.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tags (uid, media_id, label, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET media_id = excluded.media_id, label = excluded.label`,
		binding.UID,
		binding.MediaID,
		nullableString(binding.Label),
		binding.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("binding tag %s: %w", binding.UID, err)
	}
	return nil
}

// Resolve returns the media item bound to a tag UID.
// Returns ErrTagNotFound for unknown tags.
func (r *TagRepository) Resolve(ctx context.Context, uid string) (MediaItem, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT m.id, m.title, m.kind, m.duration_s, m.file_path, m.thumbnail, m.source_url, m.created_at
		FROM tags t JOIN media m ON m.id = t.media_id
		WHERE t.uid = ?`, uid)

	item, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return MediaItem{}, ErrTagNotFound
	}
	if err != nil {
		return MediaItem{}, fmt.Errorf("resolving tag %s: %w", uid, err)
	}
	return item, nil
}

// Get returns the binding for a tag UID.
func (r *TagRepository) Get(ctx context.Context, uid string) (TagBinding, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT uid, media_id, label, created_at FROM tags WHERE uid = ?`, uid)

	binding, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return TagBinding{}, ErrTagNotFound
	}
	if err != nil {
		return TagBinding{}, fmt.Errorf("querying tag %s: %w", uid, err)
	}
	return binding, nil
}

// List returns all tag bindings ordered by creation time.
func (r *TagRepository) List(ctx context.Context) ([]TagBinding, error) {
	rows, err := r.db.DB.QueryContext(ctx, `
		SELECT uid, media_id, label, created_at FROM tags ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	var bindings []TagBinding
	for rows.Next() {
		binding, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tag row: %w", err)
		}
		bindings = append(bindings, binding)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tags: %w", err)
	}
	return bindings, nil
}

// Unbind removes the binding for a tag UID.
func (r *TagRepository) Unbind(ctx context.Context, uid string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM tags WHERE uid = ?", uid)
	if err != nil {
		return fmt.Errorf("unbinding tag %s: %w", uid, err)
	}
	return requireRowAffected(res, ErrTagNotFound)
}

func scanTag(row rowScanner) (TagBinding, error) {
	var (
		binding   TagBinding
		label     sql.NullString
		createdAt string
	)
	if err := row.Scan(&binding.UID, &binding.MediaID, &label, &createdAt); err != nil {
		return TagBinding{}, err
	}
	binding.Label = label.String

	var err error
	binding.CreatedAt, err = parseStoredTime(createdAt)
	if err != nil {
		return TagBinding{}, err
	}
	return binding, nil
}

package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/niconistal/BabyBox/internal/infrastructure/database"
)

// timeFormat is the storage format for all timestamps, UTC RFC3339.
const timeFormat = time.RFC3339

// MediaRepository provides access to the media table.
type MediaRepository struct {
	db *database.DB
}

// NewMediaRepository creates a repository backed by the given database.
func NewMediaRepository(db *database.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Create inserts a new media item and returns it with the assigned ID.
func (r *MediaRepository) Create(ctx context.Context, item MediaItem) (MediaItem, error) {
	if !item.Kind.Valid() {
		return MediaItem{}, fmt.Errorf("%w: %q", ErrInvalidKind, item.Kind)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO media (title, kind, file_path, duration_s, thumbnail, source_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.Title,
		string(item.Kind),
		item.FilePath,
		nullableInt(item.DurationSeconds),
		nullableString(item.Thumbnail),
		nullableString(item.SourceURL),
		item.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return MediaItem{}, fmt.Errorf("inserting media: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return MediaItem{}, fmt.Errorf("reading media id: %w", err)
	}
	item.ID = id
	return item, nil
}

// Get returns the media item with the given ID.
func (r *MediaRepository) Get(ctx context.Context, id int64) (MediaItem, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, kind, duration_s, file_path, thumbnail, source_url, created_at
		FROM media WHERE id = ?`, id)

	item, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return MediaItem{}, ErrMediaNotFound
	}
	if err != nil {
		return MediaItem{}, fmt.Errorf("querying media %d: %w", id, err)
	}
	return item, nil
}

// List returns all media items ordered by title.
func (r *MediaRepository) List(ctx context.Context) ([]MediaItem, error) {
	rows, err := r.db.DB.QueryContext(ctx, `
		SELECT id, title, kind, duration_s, file_path, thumbnail, source_url, created_at
		FROM media ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("listing media: %w", err)
	}
	defer rows.Close()

	var items []MediaItem
	for rows.Next() {
		item, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning media row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating media: %w", err)
	}
	return items, nil
}

// Update replaces the mutable fields of a media item.
func (r *MediaRepository) Update(ctx context.Context, item MediaItem) error {
	if !item.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, item.Kind)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE media
		SET title = ?, kind = ?, file_path = ?, duration_s = ?, thumbnail = ?, source_url = ?
		WHERE id = ?`,
		item.Title,
		string(item.Kind),
		item.FilePath,
		nullableInt(item.DurationSeconds),
		nullableString(item.Thumbnail),
		nullableString(item.SourceURL),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("updating media %d: %w", item.ID, err)
	}
	return requireRowAffected(res, ErrMediaNotFound)
}

// Delete removes a media item. Tag bindings and playback history cascade.
func (r *MediaRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM media WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting media %d: %w", id, err)
	}
	return requireRowAffected(res, ErrMediaNotFound)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedia(row rowScanner) (MediaItem, error) {
	var (
		item      MediaItem
		kind      string
		duration  sql.NullInt64
		thumbnail sql.NullString
		sourceURL sql.NullString
		createdAt string
	)
	err := row.Scan(&item.ID, &item.Title, &kind, &duration,
		&item.FilePath, &thumbnail, &sourceURL, &createdAt)
	if err != nil {
		return MediaItem{}, err
	}

	item.Kind = MediaKind(kind)
	item.DurationSeconds = duration.Int64
	item.Thumbnail = thumbnail.String
	item.SourceURL = sourceURL.String
	item.CreatedAt, err = parseStoredTime(createdAt)
	if err != nil {
		return MediaItem{}, err
	}
	return item, nil
}

// parseStoredTime accepts both the Go-written RFC3339 form and the
// SQLite strftime default applied by the schema.
func parseStoredTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02T15:04:05.999Z", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(i int64) any {
	if i == 0 {
		return nil
	}
	return i
}

func requireRowAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

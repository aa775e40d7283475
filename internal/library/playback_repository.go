package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/niconistal/BabyBox/internal/infrastructure/database"
)

// PlaybackRepository provides access to the playback_log table.
type PlaybackRepository struct {
	db *database.DB
}

// NewPlaybackRepository creates a repository backed by the given database.
func NewPlaybackRepository(db *database.DB) *PlaybackRepository {
	return &PlaybackRepository{db: db}
}

// Create inserts a new playback record with no end time and returns its ID.
// The record is opened before the player starts so the history never
// misses a session that crashed mid-play.
func (r *PlaybackRepository) Create(ctx context.Context, rec PlaybackRecord) (int64, error) {
	if !rec.Kind.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidKind, rec.Kind)
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO playback_log (media_id, tag_uid, kind, started_at, completed)
		VALUES (?, ?, ?, ?, 0)`,
		rec.MediaID,
		nullableString(rec.TagUID),
		string(rec.Kind),
		rec.StartedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting playback record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading playback record id: %w", err)
	}
	return id, nil
}

// Finish closes a playback record with its end time and completion flag.
func (r *PlaybackRepository) Finish(ctx context.Context, id int64, endedAt time.Time, completed bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE playback_log SET ended_at = ?, completed = ? WHERE id = ?`,
		endedAt.UTC().Format(timeFormat),
		boolToInt(completed),
		id,
	)
	if err != nil {
		return fmt.Errorf("finishing playback record %d: %w", id, err)
	}
	return requireRowAffected(res, ErrRecordNotFound)
}

// Delete removes a playback record. Used to roll back the record opened
// for a session whose player failed to start.
func (r *PlaybackRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM playback_log WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting playback record %d: %w", id, err)
	}
	return requireRowAffected(res, ErrRecordNotFound)
}

// Get returns a single playback record.
func (r *PlaybackRepository) Get(ctx context.Context, id int64) (PlaybackRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, media_id, tag_uid, kind, started_at, ended_at, completed
		FROM playback_log WHERE id = ?`, id)

	rec, err := scanPlayback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PlaybackRecord{}, ErrRecordNotFound
	}
	if err != nil {
		return PlaybackRecord{}, fmt.Errorf("querying playback record %d: %w", id, err)
	}
	return rec, nil
}

// ListVideoSessionsSince returns all video playback records that started
// at or after the given time, including still-open ones. This is the
// quota's view of the current daily window.
func (r *PlaybackRepository) ListVideoSessionsSince(ctx context.Context, since time.Time) ([]PlaybackRecord, error) {
	rows, err := r.db.DB.QueryContext(ctx, `
		SELECT id, media_id, tag_uid, kind, started_at, ended_at, completed
		FROM playback_log
		WHERE kind = 'video' AND started_at >= ?
		ORDER BY started_at`,
		since.UTC().Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("listing video sessions: %w", err)
	}
	defer rows.Close()

	return collectPlayback(rows)
}

// ListVideoUsageSince returns the quota-relevant view of video sessions
// started at or after the given time: start/end times joined with the
// media duration. Still-open sessions have a nil EndedAt.
func (r *PlaybackRepository) ListVideoUsageSince(ctx context.Context, since time.Time) ([]VideoSession, error) {
	rows, err := r.db.DB.QueryContext(ctx, `
		SELECT p.started_at, p.ended_at, COALESCE(m.duration_s, 0)
		FROM playback_log p JOIN media m ON m.id = p.media_id
		WHERE p.kind = 'video' AND p.started_at >= ?
		ORDER BY p.started_at`,
		since.UTC().Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("listing video usage: %w", err)
	}
	defer rows.Close()

	var sessions []VideoSession
	for rows.Next() {
		var (
			s         VideoSession
			startedAt string
			endedAt   sql.NullString
		)
		if err := rows.Scan(&startedAt, &endedAt, &s.MediaDurationSeconds); err != nil {
			return nil, fmt.Errorf("scanning video usage row: %w", err)
		}
		s.StartedAt, err = parseStoredTime(startedAt)
		if err != nil {
			return nil, err
		}
		if endedAt.Valid {
			t, err := parseStoredTime(endedAt.String)
			if err != nil {
				return nil, err
			}
			s.EndedAt = &t
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating video usage: %w", err)
	}
	return sessions, nil
}

// ListRecent returns the most recent playback records, newest first.
func (r *PlaybackRepository) ListRecent(ctx context.Context, limit int) ([]PlaybackRecord, error) {
	rows, err := r.db.DB.QueryContext(ctx, `
		SELECT id, media_id, tag_uid, kind, started_at, ended_at, completed
		FROM playback_log
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent playback: %w", err)
	}
	defer rows.Close()

	return collectPlayback(rows)
}

// FinalizeDangling closes records left open by a previous run, marking
// them incomplete with ended_at = started_at. Runs once at startup,
// before any event is processed, so quota evaluation never sees a
// phantom in-progress session.
//
// Returns the number of records finalized.
func (r *PlaybackRepository) FinalizeDangling(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE playback_log SET ended_at = started_at, completed = 0
		WHERE ended_at IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("finalizing dangling records: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return n, nil
}

func collectPlayback(rows *sql.Rows) ([]PlaybackRecord, error) {
	var records []PlaybackRecord
	for rows.Next() {
		rec, err := scanPlayback(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning playback row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating playback records: %w", err)
	}
	return records, nil
}

func scanPlayback(row rowScanner) (PlaybackRecord, error) {
	var (
		rec       PlaybackRecord
		tagUID    sql.NullString
		kind      string
		startedAt string
		endedAt   sql.NullString
		completed int
	)
	err := row.Scan(&rec.ID, &rec.MediaID, &tagUID, &kind, &startedAt, &endedAt, &completed)
	if err != nil {
		return PlaybackRecord{}, err
	}

	rec.TagUID = tagUID.String
	rec.Kind = MediaKind(kind)
	rec.Completed = completed != 0

	rec.StartedAt, err = parseStoredTime(startedAt)
	if err != nil {
		return PlaybackRecord{}, err
	}
	if endedAt.Valid {
		t, err := parseStoredTime(endedAt.String)
		if err != nil {
			return PlaybackRecord{}, err
		}
		rec.EndedAt = &t
	}
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

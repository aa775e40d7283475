package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/niconistal/BabyBox/internal/infrastructure/database"
)

// SettingsRepository provides access to the settings table.
//
// Settings are parent-adjustable at runtime through the admin API, as
// opposed to config.yaml which requires a restart.
type SettingsRepository struct {
	db *database.DB
}

// NewSettingsRepository creates a repository backed by the given database.
func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the value for a settings key.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrSettingNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("querying setting %s: %w", key, err)
	}
	return value, nil
}

// Set stores a value for a settings key, creating it if absent.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// All returns every settings key/value pair.
func (r *SettingsRepository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.DB.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("listing settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning settings row: %w", err)
		}
		settings[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating settings: %w", err)
	}
	return settings, nil
}

// QuotaSettings reads the quota-related keys as one snapshot.
//
// Missing or malformed values fall back to the schema defaults rather
// than failing: a corrupt settings row must never brick playback.
func (r *SettingsRepository) QuotaSettings(ctx context.Context) (QuotaSettings, error) {
	all, err := r.All(ctx)
	if err != nil {
		return QuotaSettings{}, err
	}

	qs := QuotaSettings{
		MaxVideos:  intSetting(all, SettingDailyVideoLimitCount, 5),
		MaxMinutes: intSetting(all, SettingDailyVideoLimitMinutes, 60),
		ResetHour:  intSetting(all, SettingLimitResetHour, 6),
	}
	if qs.ResetHour < 0 || qs.ResetHour > 23 {
		qs.ResetHour = 6
	}
	return qs, nil
}

// SpeakerMAC returns the configured Bluetooth speaker address, or empty
// if none is set.
func (r *SettingsRepository) SpeakerMAC(ctx context.Context) (string, error) {
	mac, err := r.Get(ctx, SettingBTSpeakerMAC)
	if errors.Is(err, ErrSettingNotFound) {
		return "", nil
	}
	return mac, err
}

// PINHash returns the stored parental PIN hash, or empty if no PIN has
// been set yet.
func (r *SettingsRepository) PINHash(ctx context.Context) (string, error) {
	hash, err := r.Get(ctx, SettingParentPINHash)
	if errors.Is(err, ErrSettingNotFound) {
		return "", nil
	}
	return hash, err
}

func intSetting(all map[string]string, key string, fallback int) int {
	raw, ok := all[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

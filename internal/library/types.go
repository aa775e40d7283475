package library

import "time"

// MediaKind distinguishes audio-only media from video.
// Only video counts against the daily quota.
type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// Valid reports whether k is a known media kind.
func (k MediaKind) Valid() bool {
	return k == KindAudio || k == KindVideo
}

// MediaItem is a single playable entry in the catalogue.
type MediaItem struct {
	ID    int64     `json:"id"`
	Title string    `json:"title"`
	Kind  MediaKind `json:"kind"`

	// FilePath is the absolute path to the media file on disk.
	FilePath string `json:"file_path"`

	// DurationSeconds is the media length. Zero means unknown; unknown
	// durations participate in the count limit but not the minutes limit.
	DurationSeconds int64 `json:"duration_seconds"`

	// Thumbnail is an optional path to a preview image for the admin UI.
	Thumbnail string `json:"thumbnail,omitempty"`

	// SourceURL records where downloaded media came from.
	SourceURL string `json:"source_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TagBinding maps an RFID tag UID to a media item.
type TagBinding struct {
	UID       string    `json:"uid"`
	MediaID   int64     `json:"media_id"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PlaybackRecord is one playback session in the history log.
//
// A record is created when a session starts. EndedAt is nil while the
// session is live; Completed is true only when the media played to the
// end rather than being stopped.
type PlaybackRecord struct {
	ID        int64      `json:"id"`
	MediaID   int64      `json:"media_id"`
	TagUID    string     `json:"tag_uid,omitempty"`
	Kind      MediaKind  `json:"kind"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Completed bool       `json:"completed"`
}

// VideoSession is the quota's view of one video playback: when it ran
// and how long the media is. EndedAt is nil for a session still playing.
type VideoSession struct {
	StartedAt time.Time
	EndedAt   *time.Time

	// MediaDurationSeconds is the bound media's length, zero if unknown.
	MediaDurationSeconds int64
}

// QuotaSettings is a point-in-time snapshot of the limit configuration.
//
// The orchestrator reads a snapshot when a tag is evaluated and uses it
// for the whole decision, so a settings change mid-evaluation cannot
// produce a half-old half-new ruling.
type QuotaSettings struct {
	// MaxVideos is the number of videos allowed per day. Zero blocks
	// videos entirely.
	MaxVideos int

	// MaxMinutes is the total video minutes allowed per day. Zero
	// blocks videos entirely.
	MaxMinutes int

	// ResetHour is the local hour (0-23) at which the daily window resets.
	ResetHour int
}

// Settings keys in the settings table.
const (
	SettingDailyVideoLimitCount   = "daily_video_limit_count"
	SettingDailyVideoLimitMinutes = "daily_video_limit_minutes"
	SettingLimitResetHour         = "limit_reset_hour"
	SettingBTSpeakerMAC           = "bt_speaker_mac"
	SettingParentPINHash          = "parent_pin_hash"
)

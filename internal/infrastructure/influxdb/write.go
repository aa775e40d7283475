package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePlaybackSession records a finished playback session.
//
// One point per session, timestamped at the session end, with the
// duration actually watched and whether the media played to completion.
//
// Example:
//
//	client.WritePlaybackSession(12, "video", 423.5, true, endedAt)
func (c *Client) WritePlaybackSession(mediaID int64, kind string, watchedSeconds float64, completed bool, endedAt time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"playback_session",
		map[string]string{
			"kind": kind,
		},
		map[string]interface{}{
			"media_id":        mediaID,
			"watched_seconds": watchedSeconds,
			"completed":       completed,
		},
		endedAt,
	)

	c.writeAPI.WritePoint(point)
}

// WriteQuotaSnapshot records the remaining daily video allowance after a
// quota evaluation. Charting this shows when in the day the allowance
// runs out.
func (c *Client) WriteQuotaSnapshot(videosRemaining int, minutesRemaining float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"quota",
		nil,
		map[string]interface{}{
			"videos_remaining":  videosRemaining,
			"minutes_remaining": minutesRemaining,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteTagScan records a tag presentation and whether it was recognised.
// Tag UIDs are recorded as a tag for per-card history.
func (c *Client) WriteTagScan(uid string, recognised bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"tag_scan",
		map[string]string{
			"uid": uid,
		},
		map[string]interface{}{
			"recognised": recognised,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

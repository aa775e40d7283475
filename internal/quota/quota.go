// Package quota implements the daily video allowance rules.
//
// Everything here is a pure function of its inputs: the settings
// snapshot, the sessions in the current window, and the clock value the
// caller passes in. That keeps the rules testable at any simulated time
// and guarantees a settings change mid-decision cannot split a ruling.
//
// Audio never counts against the quota. A video in progress counts the
// moment it starts; stopping a video early only consumes the minutes
// actually watched.
package quota

import (
	"time"

	"github.com/niconistal/BabyBox/internal/library"
)

// Deny reasons reported in Decision and surfaced to the admin UI.
const (
	ReasonCountLimit   = "count_limit"
	ReasonMinutesLimit = "minutes_limit"
)

// Decision is the outcome of evaluating a video request against the quota.
type Decision struct {
	// Allowed reports whether the video may start.
	Allowed bool

	// Last reports whether this video would exhaust the allowance,
	// meaning the child should get the last-video warning before it plays.
	Last bool

	// Reason names the limit that denied the request. Empty when allowed.
	Reason string
}

// Usage is the consumption within the current daily window.
type Usage struct {
	// Videos is the number of video sessions started in the window,
	// including one still in progress.
	Videos int

	// Minutes is the video time watched in the window.
	Minutes float64
}

// WindowStart returns the beginning of the daily window containing now.
//
// The window starts at resetHour local time. Before the reset hour the
// window began yesterday, so a video watched at 05:59 still counts
// against the previous day when the reset hour is 6.
func WindowStart(now time.Time, resetHour int) time.Time {
	start := time.Date(now.Year(), now.Month(), now.Day(), resetHour, 0, 0, 0, now.Location())
	if now.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	return start
}

// Consumed computes usage from the sessions in the current window.
//
// Ended sessions consume the time between start and end. A session
// still in progress consumes the time elapsed so far. Both are capped
// at the media's duration when it is known, so a paused player cannot
// inflate the count.
func Consumed(sessions []library.VideoSession, now time.Time) Usage {
	u := Usage{Videos: len(sessions)}

	for _, s := range sessions {
		var elapsed time.Duration
		if s.EndedAt != nil {
			elapsed = s.EndedAt.Sub(s.StartedAt)
		} else {
			elapsed = now.Sub(s.StartedAt)
		}
		if elapsed < 0 {
			elapsed = 0
		}
		if s.MediaDurationSeconds > 0 {
			max := time.Duration(s.MediaDurationSeconds) * time.Second
			if elapsed > max {
				elapsed = max
			}
		}
		u.Minutes += elapsed.Minutes()
	}
	return u
}

// Evaluate decides whether a video of the given duration may start.
//
// A request is denied when either the count or the minutes allowance is
// already used up; the minutes check looks at time watched, not time
// requested, so a long video can start on a small remaining allowance
// and becomes the last one. A limit of zero leaves no allowance at all,
// which is how a parent blocks videos for the day.
//
// nextDurationSeconds is the requested video's length, zero if unknown.
// Unknown durations participate in the count limit only.
func Evaluate(settings library.QuotaSettings, sessions []library.VideoSession, nextDurationSeconds int64, now time.Time) Decision {
	u := Consumed(sessions, now)

	if u.Videos >= settings.MaxVideos {
		return Decision{Reason: ReasonCountLimit}
	}
	if u.Minutes >= float64(settings.MaxMinutes) {
		return Decision{Reason: ReasonMinutesLimit}
	}

	d := Decision{Allowed: true}

	if u.Videos+1 >= settings.MaxVideos {
		d.Last = true
	}
	if nextDurationSeconds > 0 {
		projected := u.Minutes + float64(nextDurationSeconds)/60
		if projected >= float64(settings.MaxMinutes) {
			d.Last = true
		}
	}
	return d
}

// Remaining reports the allowance left in the current window, for the
// admin UI and telemetry: max(0, limit - consumed) on both axes.
func Remaining(settings library.QuotaSettings, sessions []library.VideoSession, now time.Time) (videos int, minutes float64) {
	u := Consumed(sessions, now)

	videos = settings.MaxVideos - u.Videos
	if videos < 0 {
		videos = 0
	}

	minutes = float64(settings.MaxMinutes) - u.Minutes
	if minutes < 0 {
		minutes = 0
	}
	return videos, minutes
}

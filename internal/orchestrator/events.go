package orchestrator

import (
	"time"

	"github.com/niconistal/BabyBox/internal/library"
	"github.com/niconistal/BabyBox/internal/player"
)

// Event is anything the state machine reacts to.
//
// External events arrive through Submit and queue in arrival order.
// Internal events are produced by executing commands and are fed back
// into the machine synchronously, within the same evaluation, so no
// external event can interleave a half-finished decision.
type Event interface {
	isEvent()
	// Name identifies the event in logs.
	Name() string
}

// ---- External events ----

// TagPresented is a deduplicated card read from the front panel.
type TagPresented struct {
	UID string
	At  time.Time
}

func (TagPresented) isEvent()     {}
func (TagPresented) Name() string { return "tag_presented" }

// Button identifies a front-panel button.
type Button string

const (
	// ButtonStop ends the current session.
	ButtonStop Button = "stop"

	// ButtonPlayPause toggles pause during playback.
	ButtonPlayPause Button = "play_pause"
)

// ButtonPressed is a debounced front-panel button press.
type ButtonPressed struct {
	Button Button
	At     time.Time
}

func (ButtonPressed) isEvent()     {}
func (ButtonPressed) Name() string { return "button_pressed" }

// PlaybackEnded reports the player session's terminal completion.
type PlaybackEnded struct {
	Reason player.Reason
	Err    error
}

func (PlaybackEnded) isEvent()     {}
func (PlaybackEnded) Name() string { return "playback_ended" }

// ---- Internal events ----

// tagResolved carries the result of looking a UID up in the library.
type tagResolved struct {
	uid   string
	media library.MediaItem
	known bool
}

func (tagResolved) isEvent()     {}
func (tagResolved) Name() string { return "tag_resolved" }

// quotaEvaluated carries the daily-limit ruling for a video request.
type quotaEvaluated struct {
	allowed bool
	last    bool
	reason  string
}

func (quotaEvaluated) isEvent()     {}
func (quotaEvaluated) Name() string { return "quota_evaluated" }

// sessionStarted reports that the player process is running.
type sessionStarted struct {
	recordID int64
}

func (sessionStarted) isEvent()     {}
func (sessionStarted) Name() string { return "session_started" }

// sessionStartFailed reports that the player could not be launched.
// The opened playback record has already been rolled back.
type sessionStartFailed struct {
	err error
}

func (sessionStartFailed) isEvent()     {}
func (sessionStartFailed) Name() string { return "session_start_failed" }

// sessionClosed reports that the playback record has been finalized.
// exhausted is set when this session used up the daily video allowance.
type sessionClosed struct {
	completed bool
	exhausted bool
}

func (sessionClosed) isEvent()     {}
func (sessionClosed) Name() string { return "session_closed" }

// pauseToggled reports the player's new paused state after a toggle.
type pauseToggled struct {
	paused bool
}

func (pauseToggled) isEvent()     {}
func (pauseToggled) Name() string { return "pause_toggled" }

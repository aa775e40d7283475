package orchestrator

import (
	"github.com/niconistal/BabyBox/internal/feedback"
	"github.com/niconistal/BabyBox/internal/library"
)

// Command is a side effect requested by the state machine.
//
// The machine never performs I/O itself; it returns commands and the
// driver executes them. Commands that produce a result (resolving a
// tag, starting the player) feed it back as an internal event.
type Command interface {
	isCommand()
}

// cmdResolveTag looks a UID up in the library. Produces tagResolved.
type cmdResolveTag struct {
	uid string
}

func (cmdResolveTag) isCommand() {}

// cmdEvaluateQuota checks the daily limits for a video request using a
// settings snapshot taken at execution time. Produces quotaEvaluated.
type cmdEvaluateQuota struct {
	media library.MediaItem
}

func (cmdEvaluateQuota) isCommand() {}

// cmdBeginSession opens a playback record, routes audio and launches
// the player. Produces sessionStarted or sessionStartFailed.
type cmdBeginSession struct {
	media library.MediaItem
	uid   string
}

func (cmdBeginSession) isCommand() {}

// cmdTogglePause suspends or resumes the running player. Produces
// pauseToggled on success.
type cmdTogglePause struct{}

func (cmdTogglePause) isCommand() {}

// cmdStopSession asks the running player to stop. The resulting
// PlaybackEnded arrives as an external event from the completion watcher.
type cmdStopSession struct{}

func (cmdStopSession) isCommand() {}

// cmdCloseRecord finalizes the current playback record. Produces
// sessionClosed.
type cmdCloseRecord struct {
	completed bool
}

func (cmdCloseRecord) isCommand() {}

// cmdFeedback queues a pattern on the front panel.
type cmdFeedback struct {
	pattern feedback.Pattern
}

func (cmdFeedback) isCommand() {}

// cmdPublishState pushes the current state snapshot to subscribers
// (retained MQTT topic, WebSocket clients).
type cmdPublishState struct{}

func (cmdPublishState) isCommand() {}

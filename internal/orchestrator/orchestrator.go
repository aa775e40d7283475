// Package orchestrator is the BabyBox control core.
//
// It owns the single playback session and decides, event by event, what
// the appliance does: a pure transition function maps (state, event) to
// (state, commands), and the driver in this file executes the commands
// against the real world. Results of command execution feed back into
// the machine as internal events within the same evaluation, so every
// decision completes atomically with respect to external input.
//
// External events (card reads, button presses, player completions)
// queue in arrival order in a bounded buffer; when the buffer is full
// new events are dropped with a warning rather than blocking a hardware
// listener.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/niconistal/BabyBox/internal/feedback"
	"github.com/niconistal/BabyBox/internal/library"
	"github.com/niconistal/BabyBox/internal/player"
	"github.com/niconistal/BabyBox/internal/quota"
)

// eventQueueSize bounds the external event buffer. The appliance has
// one child and three event sources; a backlog this deep means
// something is wedged and dropping is the right call.
const eventQueueSize = 128

// finalizeAttempts is how many times closing a playback record is
// retried before giving up and moving on. The record stays dangling and
// the startup recovery pass will finalize it next boot.
const finalizeAttempts = 3

// Session is the running player process as the orchestrator sees it.
type Session interface {
	Stop() error
	TogglePause() (bool, error)
	Completion() <-chan player.Completion
	Elapsed() time.Duration
}

// Starter launches playback sessions.
type Starter interface {
	Start(ctx context.Context, item library.MediaItem) (Session, error)
}

// NewPlayerStarter adapts the mpv player to the Starter interface.
func NewPlayerStarter(p *player.Player) Starter {
	return playerStarter{p: p}
}

type playerStarter struct{ p *player.Player }

func (ps playerStarter) Start(ctx context.Context, item library.MediaItem) (Session, error) {
	s, err := ps.p.Start(ctx, item)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FeedbackQueue accepts patterns for the front panel.
type FeedbackQueue interface {
	Enqueue(p feedback.Pattern)
}

// AudioRouter points the audio output at the configured speaker.
type AudioRouter interface {
	Route(ctx context.Context, mac string) error
}

// StatePublisher receives state snapshots for fan-out (retained MQTT
// topic, WebSocket clients). Optional.
type StatePublisher interface {
	PublishState(s Snapshot)
}

// Telemetry records usage metrics. Optional; satisfied by the influxdb
// client.
type Telemetry interface {
	WritePlaybackSession(mediaID int64, kind string, watchedSeconds float64, completed bool, endedAt time.Time)
	WriteQuotaSnapshot(videosRemaining int, minutesRemaining float64)
	WriteTagScan(uid string, recognised bool)
}

// Logger is the logging interface the orchestrator needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Snapshot is the externally visible controller state.
type Snapshot struct {
	State   StateKind `json:"state"`
	MediaID int64     `json:"media_id,omitempty"`
	Title   string    `json:"title,omitempty"`
	Kind    string    `json:"kind,omitempty"`
	Last    bool      `json:"last_video,omitempty"`
	Paused  bool      `json:"paused,omitempty"`
	Since   time.Time `json:"since"`
}

// TagScan is the most recent card read, recognised or not. The admin
// UI's register mode polls this to bind a freshly scanned card.
type TagScan struct {
	UID   string    `json:"uid"`
	Known bool      `json:"known"`
	At    time.Time `json:"at"`
}

// Deps wires the orchestrator to its collaborators.
type Deps struct {
	Tags     *library.TagRepository
	Playback *library.PlaybackRepository
	Settings *library.SettingsRepository

	Player   Starter
	Feedback FeedbackQueue
	Audio    AudioRouter

	// Publisher and Telemetry may be nil.
	Publisher StatePublisher
	Telemetry Telemetry

	Logger Logger

	// Clock defaults to time.Now. Injectable for tests.
	Clock func() time.Time
}

// Orchestrator runs the control loop.
type Orchestrator struct {
	deps   Deps
	logger Logger
	clock  func() time.Time

	events chan Event

	mu        sync.RWMutex
	state     State
	stateAt   time.Time
	session   Session
	startedAt time.Time
	lastScan  TagScan
}

// New creates an orchestrator in the idle state.
func New(deps Deps) *Orchestrator {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Orchestrator{
		deps:    deps,
		logger:  deps.Logger,
		clock:   clock,
		events:  make(chan Event, eventQueueSize),
		state:   State{Kind: StateIdle},
		stateAt: clock(),
	}
}

// Recover finalizes playback records left open by a previous run.
// Must be called before Run so quota evaluation never counts a phantom
// in-progress session.
func (o *Orchestrator) Recover(ctx context.Context) error {
	n, err := o.deps.Playback.FinalizeDangling(ctx)
	if err != nil {
		return fmt.Errorf("recovering playback log: %w", err)
	}
	if n > 0 {
		o.logger.Warn("finalized dangling playback records from previous run", "count", n)
	}
	return nil
}

// Submit queues an external event without blocking.
// Returns false when the queue is full and the event was dropped.
func (o *Orchestrator) Submit(ev Event) bool {
	select {
	case o.events <- ev:
		return true
	default:
		o.logger.Warn("event queue full, dropping event", "event", ev.Name())
		return false
	}
}

// Run processes events until the context is cancelled. It publishes the
// initial idle state and feedback so the panel shows ready-for-a-card.
func (o *Orchestrator) Run(ctx context.Context) {
	o.deps.Feedback.Enqueue(feedback.PatternIdle)
	o.publishState()

	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return
		case ev := <-o.events:
			o.handle(ctx, ev)
		}
	}
}

// shutdown stops a live session so mpv does not outlive the controller,
// then closes its playback record so the history stays accurate across
// clean restarts instead of leaning on the next boot's recovery pass.
func (o *Orchestrator) shutdown() {
	o.mu.Lock()
	session := o.session
	o.mu.Unlock()

	if session == nil {
		return
	}

	o.logger.Info("stopping playback for shutdown")
	if err := session.Stop(); err != nil {
		o.logger.Error("stopping player at shutdown", "error", err)
	}

	// Run's context is already cancelled; the finalize writes get a
	// fresh one so the record does not dangle until the next boot.
	o.handle(context.Background(), PlaybackEnded{Reason: player.ReasonStopped})
}

// Snapshot returns the current externally visible state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	s := Snapshot{
		State: o.state.Kind,
		Since: o.stateAt,
	}
	if o.state.Kind == StatePlaying || o.state.Kind == StateFinishing || o.state.Kind == StateLoading {
		s.MediaID = o.state.Media.ID
		s.Title = o.state.Media.Title
		s.Kind = string(o.state.Media.Kind)
		s.Last = o.state.Last
		s.Paused = o.state.Paused
	}
	return s
}

// LastScan returns the most recent card read, or false if nothing has
// been scanned since startup.
func (o *Orchestrator) LastScan() (TagScan, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastScan, o.lastScan.UID != ""
}

// handle runs one evaluation: the triggering event plus every internal
// event its commands produce, to quiescence.
func (o *Orchestrator) handle(ctx context.Context, ev Event) {
	pending := []Event{ev}

	for len(pending) > 0 {
		cur := pending[0]
		pending = pending[1:]

		o.mu.Lock()
		next, cmds, discard := transition(o.state, cur)
		if next.Kind != o.state.Kind {
			o.stateAt = o.clock()
		}
		o.state = next
		o.mu.Unlock()

		if discard != nil {
			o.logger.Debug("event discarded",
				"event", discard.Event,
				"state", string(discard.State),
				"why", discard.Why,
			)
			continue
		}

		for _, cmd := range cmds {
			if out := o.execute(ctx, cmd); out != nil {
				pending = append(pending, out)
			}
		}
	}
}

// execute performs one command, returning the internal event it
// produced (or nil).
func (o *Orchestrator) execute(ctx context.Context, cmd Command) Event {
	switch c := cmd.(type) {
	case cmdResolveTag:
		return o.resolveTag(ctx, c)
	case cmdEvaluateQuota:
		return o.evaluateQuota(ctx, c)
	case cmdBeginSession:
		return o.beginSession(ctx, c)
	case cmdStopSession:
		o.stopSession()
		return nil
	case cmdTogglePause:
		return o.togglePause()
	case cmdCloseRecord:
		return o.closeRecord(ctx, c)
	case cmdFeedback:
		o.deps.Feedback.Enqueue(c.pattern)
		return nil
	case cmdPublishState:
		o.publishState()
		return nil
	default:
		o.logger.Error("unknown command", "command", fmt.Sprintf("%T", cmd))
		return nil
	}
}

func (o *Orchestrator) resolveTag(ctx context.Context, c cmdResolveTag) Event {
	media, err := o.deps.Tags.Resolve(ctx, c.uid)

	known := err == nil
	o.mu.Lock()
	o.lastScan = TagScan{UID: c.uid, Known: known, At: o.clock()}
	o.mu.Unlock()

	if o.deps.Telemetry != nil {
		o.deps.Telemetry.WriteTagScan(c.uid, known)
	}

	if err != nil {
		if errors.Is(err, library.ErrTagNotFound) {
			o.logger.Info("unrecognised tag", "uid", c.uid)
		} else {
			// Lookup failures behave like an unknown tag; the child
			// gets feedback either way and the error goes to the log.
			o.logger.Error("resolving tag", "uid", c.uid, "error", err)
		}
		return tagResolved{uid: c.uid, known: false}
	}

	o.logger.Info("tag resolved",
		"uid", c.uid,
		"media_id", media.ID,
		"title", media.Title,
		"kind", string(media.Kind),
	)
	return tagResolved{uid: c.uid, media: media, known: true}
}

func (o *Orchestrator) evaluateQuota(ctx context.Context, c cmdEvaluateQuota) Event {
	now := o.clock()

	// Snapshot settings once; the whole ruling uses these values.
	settings, err := o.deps.Settings.QuotaSettings(ctx)
	if err != nil {
		o.logger.Error("reading quota settings", "error", err)
		return quotaEvaluated{allowed: false, reason: "settings_error"}
	}

	window := quota.WindowStart(now, settings.ResetHour)
	sessions, err := o.deps.Playback.ListVideoUsageSince(ctx, window)
	if err != nil {
		o.logger.Error("reading playback history", "error", err)
		return quotaEvaluated{allowed: false, reason: "history_error"}
	}

	d := quota.Evaluate(settings, sessions, c.media.DurationSeconds, now)

	if o.deps.Telemetry != nil {
		videos, minutes := quota.Remaining(settings, sessions, now)
		o.deps.Telemetry.WriteQuotaSnapshot(videos, minutes)
	}

	o.logger.Info("quota evaluated",
		"media_id", c.media.ID,
		"allowed", d.Allowed,
		"last", d.Last,
		"reason", d.Reason,
	)
	return quotaEvaluated{allowed: d.Allowed, last: d.Last, reason: d.Reason}
}

func (o *Orchestrator) beginSession(ctx context.Context, c cmdBeginSession) Event {
	now := o.clock()

	// The record opens before the player starts so a crash mid-launch
	// still leaves a trace for recovery and quota.
	recordID, err := o.deps.Playback.Create(ctx, library.PlaybackRecord{
		MediaID:   c.media.ID,
		TagUID:    c.uid,
		Kind:      c.media.Kind,
		StartedAt: now,
	})
	if err != nil {
		o.logger.Error("opening playback record", "error", err)
		return sessionStartFailed{err: err}
	}

	// Audio routing is best effort: the built-in speaker is the fallback.
	if mac, err := o.deps.Settings.SpeakerMAC(ctx); err == nil && mac != "" {
		if err := o.deps.Audio.Route(ctx, mac); err != nil {
			o.logger.Warn("bluetooth routing failed, using built-in speaker", "error", err)
		}
	}

	session, err := o.deps.Player.Start(ctx, c.media)
	if err != nil {
		o.logger.Error("starting player", "media_id", c.media.ID, "error", err)
		// Roll back the record: a session that never played consumes
		// nothing.
		if delErr := o.deps.Playback.Delete(ctx, recordID); delErr != nil {
			o.logger.Error("rolling back playback record", "record_id", recordID, "error", delErr)
		}
		return sessionStartFailed{err: err}
	}

	o.mu.Lock()
	o.session = session
	o.startedAt = now
	o.mu.Unlock()

	// Completion watcher: exactly one PlaybackEnded per session.
	go func() {
		comp := <-session.Completion()
		o.Submit(PlaybackEnded{Reason: comp.Reason, Err: comp.Err})
	}()

	return sessionStarted{recordID: recordID}
}

// togglePause flips the player's paused state. A failed toggle leaves
// the machine untouched.
func (o *Orchestrator) togglePause() Event {
	o.mu.RLock()
	session := o.session
	o.mu.RUnlock()

	if session == nil {
		o.logger.Warn("pause requested with no live session")
		return nil
	}
	paused, err := session.TogglePause()
	if err != nil {
		o.logger.Error("toggling pause", "error", err)
		return nil
	}
	return pauseToggled{paused: paused}
}

// stopSession asks the player to stop without blocking the event loop;
// the completion watcher delivers the resulting PlaybackEnded.
func (o *Orchestrator) stopSession() {
	o.mu.RLock()
	session := o.session
	o.mu.RUnlock()

	if session == nil {
		o.logger.Warn("stop requested with no live session")
		return
	}
	go func() {
		if err := session.Stop(); err != nil {
			o.logger.Error("stopping player", "error", err)
		}
	}()
}

func (o *Orchestrator) closeRecord(ctx context.Context, c cmdCloseRecord) Event {
	now := o.clock()

	o.mu.Lock()
	recordID := o.state.RecordID
	session := o.session
	startedAt := o.startedAt
	media := o.state.Media
	o.session = nil
	o.mu.Unlock()

	var err error
	for attempt := 1; attempt <= finalizeAttempts; attempt++ {
		err = o.deps.Playback.Finish(ctx, recordID, now, c.completed)
		if err == nil {
			break
		}
		o.logger.Error("finalizing playback record",
			"record_id", recordID,
			"attempt", attempt,
			"error", err,
		)
	}
	if err != nil {
		// Give up; startup recovery will close it next boot.
		o.logger.Error("playback record left dangling", "record_id", recordID)
	}

	if o.deps.Telemetry != nil {
		watched := now.Sub(startedAt).Seconds()
		if session != nil {
			watched = session.Elapsed().Seconds()
		}
		o.deps.Telemetry.WritePlaybackSession(media.ID, string(media.Kind), watched, c.completed, now)
	}

	exhausted := false
	if media.Kind == library.KindVideo {
		exhausted = o.quotaExhausted(ctx, now)
	}

	o.logger.Info("session closed",
		"record_id", recordID,
		"media_id", media.ID,
		"completed", c.completed,
		"quota_exhausted", exhausted,
	)
	return sessionClosed{completed: c.completed, exhausted: exhausted}
}

// quotaExhausted re-checks the allowance after a video session closes,
// so the all-done pattern plays right away instead of on the next scan.
// Errors report not-exhausted; the next scan re-evaluates anyway.
func (o *Orchestrator) quotaExhausted(ctx context.Context, now time.Time) bool {
	settings, err := o.deps.Settings.QuotaSettings(ctx)
	if err != nil {
		o.logger.Warn("re-checking quota after session", "error", err)
		return false
	}
	window := quota.WindowStart(now, settings.ResetHour)
	sessions, err := o.deps.Playback.ListVideoUsageSince(ctx, window)
	if err != nil {
		o.logger.Warn("re-checking quota after session", "error", err)
		return false
	}
	videos, minutes := quota.Remaining(settings, sessions, now)
	return videos == 0 || minutes == 0
}

func (o *Orchestrator) publishState() {
	if o.deps.Publisher == nil {
		return
	}
	o.deps.Publisher.PublishState(o.Snapshot())
}

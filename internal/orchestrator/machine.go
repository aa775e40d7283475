package orchestrator

import (
	"github.com/niconistal/BabyBox/internal/feedback"
	"github.com/niconistal/BabyBox/internal/library"
	"github.com/niconistal/BabyBox/internal/player"
)

// StateKind names the controller's top-level mode.
type StateKind string

const (
	// StateIdle means no session exists and a card may start one.
	StateIdle StateKind = "idle"

	// StateCheckingQuota means a card has been read and its request is
	// being resolved and ruled on. Transient: an evaluation always ends
	// in idle, loading or playing before the next event is taken.
	StateCheckingQuota StateKind = "checking_quota"

	// StateLoading means the session is being set up (record opened,
	// audio routed, player launching).
	StateLoading StateKind = "loading"

	// StatePlaying means a player session owns the output.
	StatePlaying StateKind = "playing"

	// StateFinishing means a stop was requested and the machine is
	// waiting for the player's terminal completion.
	StateFinishing StateKind = "finishing"
)

// State is the machine's complete condition. Values are copied, never
// mutated in place, so a transition is a pure value computation.
type State struct {
	Kind StateKind

	// Media and TagUID identify the session from checking_quota onward.
	Media  library.MediaItem
	TagUID string

	// RecordID is the open playback_log row, set from loading onward.
	RecordID int64

	// Last marks the session that exhausts the daily allowance.
	Last bool

	// Paused tracks the play/pause toggle while playing.
	Paused bool
}

// Discard describes an event the machine chose to ignore, for debug logs.
type Discard struct {
	Event string
	State StateKind
	Why   string
}

// transition is the pure core: given a state and an event it returns
// the next state, the commands to execute, and a non-nil Discard when
// the event was dropped. It performs no I/O and reads no clocks.
func transition(s State, ev Event) (State, []Command, *Discard) {
	switch e := ev.(type) {
	case TagPresented:
		return onTagPresented(s, e)
	case ButtonPressed:
		return onButtonPressed(s, e)
	case PlaybackEnded:
		return onPlaybackEnded(s, e)
	case tagResolved:
		return onTagResolved(s, e)
	case quotaEvaluated:
		return onQuotaEvaluated(s, e)
	case sessionStarted:
		return onSessionStarted(s, e)
	case sessionStartFailed:
		return onSessionStartFailed(s, e)
	case sessionClosed:
		return onSessionClosed(s, e)
	case pauseToggled:
		return onPauseToggled(s, e)
	default:
		return s, nil, &Discard{Event: ev.Name(), State: s.Kind, Why: "unknown event"}
	}
}

func onTagPresented(s State, e TagPresented) (State, []Command, *Discard) {
	if s.Kind != StateIdle {
		// Single-session lock: a card scanned during playback does nothing.
		return s, nil, &Discard{Event: e.Name(), State: s.Kind, Why: "session in progress"}
	}
	next := State{Kind: StateCheckingQuota, TagUID: e.UID}
	return next, []Command{cmdResolveTag{uid: e.UID}}, nil
}

func onTagResolved(s State, e tagResolved) (State, []Command, *Discard) {
	if s.Kind != StateCheckingQuota {
		return s, nil, &Discard{Event: e.Name(), State: s.Kind, Why: "no pending tag"}
	}

	if !e.known {
		return State{Kind: StateIdle}, []Command{
			cmdFeedback{pattern: feedback.PatternUnknownTag},
		}, nil
	}

	next := s
	next.Media = e.media

	if e.media.Kind == library.KindVideo {
		return next, []Command{cmdEvaluateQuota{media: e.media}}, nil
	}

	// Audio is never limited: straight to loading.
	next.Kind = StateLoading
	return next, []Command{
		cmdFeedback{pattern: feedback.PatternAccepted},
		cmdBeginSession{media: e.media, uid: s.TagUID},
	}, nil
}

func onQuotaEvaluated(s State, e quotaEvaluated) (State, []Command, *Discard) {
	if s.Kind != StateCheckingQuota {
		return s, nil, &Discard{Event: e.Name(), State: s.Kind, Why: "no pending evaluation"}
	}

	if !e.allowed {
		return State{Kind: StateIdle}, []Command{
			cmdFeedback{pattern: feedback.PatternAllDone},
			cmdPublishState{},
		}, nil
	}

	next := s
	next.Kind = StateLoading
	next.Last = e.last

	cmds := []Command{cmdFeedback{pattern: feedback.PatternAccepted}}
	if e.last {
		// The warning plays before the video starts, so the child hears
		// it while still paying attention to the box.
		cmds = append(cmds, cmdFeedback{pattern: feedback.PatternLastVideo})
	}
	cmds = append(cmds, cmdBeginSession{media: s.Media, uid: s.TagUID})
	return next, cmds, nil
}

func onSessionStarted(s State, e sessionStarted) (State, []Command, *Discard) {
	if s.Kind != StateLoading {
		return s, nil, &Discard{Event: e.Name(), State: s.Kind, Why: "no loading session"}
	}
	next := s
	next.Kind = StatePlaying
	next.RecordID = e.recordID
	return next, []Command{
		cmdFeedback{pattern: feedback.PatternPlaying},
		cmdPublishState{},
	}, nil
}

func onSessionStartFailed(s State, e sessionStartFailed) (State, []Command, *Discard) {
	if s.Kind != StateLoading {
		return s, nil, &Discard{Event: e.Name(), State: s.Kind, Why: "no loading session"}
	}
	// A launch failure reads as "all done" rather than an error code a
	// child cannot act on; the log carries the real cause.
	return State{Kind: StateIdle}, []Command{
		cmdFeedback{pattern: feedback.PatternAllDone},
		cmdPublishState{},
	}, nil
}

func onButtonPressed(s State, e ButtonPressed) (State, []Command, *Discard) {
	switch e.Button {
	case ButtonPlayPause:
		if s.Kind != StatePlaying {
			return s, nil, &Discard{Event: e.Name(), State: s.Kind, Why: "nothing to pause"}
		}
		return s, []Command{cmdTogglePause{}}, nil

	case ButtonStop:
		switch s.Kind {
		case StatePlaying:
			next := s
			next.Kind = StateFinishing
			return next, []Command{cmdStopSession{}}, nil
		case StateFinishing:
			// Stop is idempotent; a second press just re-asks the player.
			return s, []Command{cmdStopSession{}}, nil
		default:
			return s, nil, &Discard{Event: e.Name(), State: s.Kind, Why: "nothing playing"}
		}

	default:
		return s, nil, &Discard{Event: e.Name(), State: s.Kind, Why: "unknown button"}
	}
}

func onPauseToggled(s State, e pauseToggled) (State, []Command, *Discard) {
	if s.Kind != StatePlaying {
		return s, nil, &Discard{Event: e.Name(), State: s.Kind, Why: "nothing playing"}
	}
	next := s
	next.Paused = e.paused
	return next, []Command{cmdPublishState{}}, nil
}

func onPlaybackEnded(s State, e PlaybackEnded) (State, []Command, *Discard) {
	if s.Kind != StatePlaying && s.Kind != StateFinishing {
		return s, nil, &Discard{Event: e.Name(), State: s.Kind, Why: "no session"}
	}
	next := s
	next.Kind = StateFinishing
	return next, []Command{
		cmdCloseRecord{completed: e.Reason == player.ReasonEnded},
	}, nil
}

func onSessionClosed(s State, e sessionClosed) (State, []Command, *Discard) {
	if s.Kind != StateFinishing {
		return s, nil, &Discard{Event: e.Name(), State: s.Kind, Why: "no finishing session"}
	}

	// If this session used up the allowance, say so now instead of
	// letting the child find out on the next scan.
	pattern := feedback.PatternIdle
	if e.exhausted {
		pattern = feedback.PatternAllDone
	}
	return State{Kind: StateIdle}, []Command{
		cmdFeedback{pattern: pattern},
		cmdPublishState{},
	}, nil
}

// Package feedback sequences the LED/sound patterns the appliance uses
// to talk to a child who cannot read.
//
// Patterns are queued and rendered one at a time by a worker goroutine,
// so a burst of scans cannot interleave two animations. The queue is
// small and drops the oldest entry on overflow: stale feedback is worse
// than no feedback.
package feedback

import "context"

// Pattern names a feedback animation rendered by the front panel.
type Pattern string

const (
	// PatternAccepted confirms a tag was recognised and playback starts.
	PatternAccepted Pattern = "accepted"

	// PatternUnknownTag signals a tag with no media bound to it.
	PatternUnknownTag Pattern = "unrecognized-tag"

	// PatternLastVideo warns that the starting video is the last one today.
	PatternLastVideo Pattern = "last-video-warning"

	// PatternAllDone signals the daily allowance is used up.
	PatternAllDone Pattern = "all-done"

	// PatternIdle is the ambient waiting-for-a-card animation.
	PatternIdle Pattern = "idle"

	// PatternPlaying is the ambient animation while media plays.
	PatternPlaying Pattern = "playing"

	// PatternOff turns the panel indicators off.
	PatternOff Pattern = "off"
)

// queueSize bounds the pattern backlog. Patterns are short; anything
// deeper than this is already stale.
const queueSize = 8

// Sink renders a pattern on real hardware (or a test double).
type Sink interface {
	PlayPattern(ctx context.Context, p Pattern) error
}

// Logger is the minimal logging interface the sequencer needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Sequencer serialises pattern playback onto a single sink.
type Sequencer struct {
	sink   Sink
	queue  chan Pattern
	logger Logger
}

// NewSequencer creates a sequencer for the given sink. The logger may be nil.
func NewSequencer(sink Sink, logger Logger) *Sequencer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Sequencer{
		sink:   sink,
		queue:  make(chan Pattern, queueSize),
		logger: logger,
	}
}

// Enqueue queues a pattern without blocking.
//
// When the queue is full the oldest pending pattern is dropped to make
// room, so the panel always converges on recent state.
func (s *Sequencer) Enqueue(p Pattern) {
	for {
		select {
		case s.queue <- p:
			return
		default:
		}

		select {
		case dropped := <-s.queue:
			s.logger.Warn("feedback queue full, dropping oldest pattern",
				"dropped", string(dropped),
			)
		default:
		}
	}
}

// Run renders queued patterns until the context is cancelled.
// It is intended to run as a goroutine for the life of the process.
func (s *Sequencer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-s.queue:
			if err := s.sink.PlayPattern(ctx, p); err != nil {
				// Feedback is best effort; playback must not stall on a
				// flaky panel connection.
				s.logger.Warn("rendering feedback pattern failed",
					"pattern", string(p),
					"error", err,
				)
			} else {
				s.logger.Debug("feedback pattern rendered", "pattern", string(p))
			}
		}
	}
}

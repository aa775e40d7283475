// Package player runs mpv as a managed subprocess, one session at a time.
//
// A Session owns exactly one mpv process. It reports exactly one
// Completion when the process exits: ended (played to the end), stopped
// (we asked it to stop), or error (mpv failed). Stop is idempotent and
// escalates SIGTERM to SIGKILL after a grace period, signalling the
// whole process group so mpv's children die with it.
package player

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/niconistal/BabyBox/internal/infrastructure/config"
	"github.com/niconistal/BabyBox/internal/library"
)

// Reason classifies why a playback session finished.
type Reason string

const (
	// ReasonEnded means the media played to the end.
	ReasonEnded Reason = "ended"

	// ReasonStopped means Stop was called before the media finished.
	ReasonStopped Reason = "stopped"

	// ReasonError means mpv exited abnormally without a stop request.
	ReasonError Reason = "error"
)

// Completion is the single terminal report of a session.
type Completion struct {
	Reason Reason

	// Err carries the process error for ReasonError, nil otherwise.
	Err error
}

// Logger defines the logging interface for the player.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Player launches playback sessions with the configured mpv binary.
type Player struct {
	cfg    config.PlayerConfig
	logger Logger
}

// New creates a Player from config. The logger may be nil.
func New(cfg config.PlayerConfig, logger Logger) *Player {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Player{cfg: cfg, logger: logger}
}

// buildArgs assembles the mpv command line for a media item.
//
// Audio items run without video output so nothing flashes on the screen
// when a music card is scanned. Video items take the full screen.
func (p *Player) buildArgs(item library.MediaItem) []string {
	args := []string{
		"--no-terminal",
		"--really-quiet",
		fmt.Sprintf("--audio-device=%s", p.cfg.AudioDevice),
	}
	if item.Kind == library.KindAudio {
		args = append(args, "--no-video")
	} else {
		args = append(args, "--fullscreen")
	}
	return append(args, item.FilePath)
}

// Start launches mpv for the given media item.
//
// The returned Session is already playing. If mpv cannot be started
// (missing binary, bad permissions) no session exists and the error
// describes the failure.
func (p *Player) Start(ctx context.Context, item library.MediaItem) (*Session, error) {
	args := p.buildArgs(item)

	cmd := exec.CommandContext(ctx, p.cfg.Binary, args...) //nolint:gosec // Binary path validated in config
	// New process group so Stop can signal mpv and any children together.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting player for %q: %w", item.Title, err)
	}

	s := &Session{
		cmd:             cmd,
		done:            make(chan struct{}),
		completion:      make(chan Completion, 1),
		gracefulTimeout: time.Duration(p.cfg.GracefulTimeoutSeconds) * time.Second,
		logger:          p.logger,
		startedAt:       time.Now(),
	}
	if s.gracefulTimeout <= 0 {
		s.gracefulTimeout = 5 * time.Second
	}

	p.logger.Info("playback started",
		"title", item.Title,
		"kind", string(item.Kind),
		"pid", cmd.Process.Pid,
	)

	go s.wait()

	return s, nil
}

// Session is a single running (or finished) mpv process.
type Session struct {
	cmd             *exec.Cmd
	done            chan struct{}
	completion      chan Completion
	gracefulTimeout time.Duration
	logger          Logger
	startedAt       time.Time

	mu            sync.Mutex
	stopRequested bool
	finished      bool
	paused        bool
}

// wait blocks on the process and delivers the session's one Completion.
func (s *Session) wait() {
	err := s.cmd.Wait()

	s.mu.Lock()
	stopRequested := s.stopRequested
	s.finished = true
	s.mu.Unlock()

	var c Completion
	switch {
	case stopRequested:
		c = Completion{Reason: ReasonStopped}
	case err == nil:
		c = Completion{Reason: ReasonEnded}
	default:
		c = Completion{Reason: ReasonError, Err: err}
	}

	s.logger.Debug("playback finished",
		"reason", string(c.Reason),
		"elapsed", time.Since(s.startedAt).String(),
	)

	s.completion <- c
	close(s.done)
}

// Completion returns the channel carrying the session's terminal report.
// Exactly one value is ever sent.
func (s *Session) Completion() <-chan Completion {
	return s.completion
}

// Running reports whether the process is still alive.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.finished
}

// Elapsed returns how long the session has been (or was) playing.
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.startedAt)
}

// PID returns the mpv process ID.
func (s *Session) PID() int {
	if s.cmd.Process != nil {
		return s.cmd.Process.Pid
	}
	return 0
}

// Paused reports whether the session is currently suspended.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// TogglePause suspends or resumes playback by signalling the process
// group with SIGSTOP/SIGCONT. Returns the new paused state.
func (s *Session) TogglePause() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished || s.stopRequested {
		return false, fmt.Errorf("session is not running")
	}
	pid := s.PID()
	if pid == 0 {
		return false, fmt.Errorf("session has no process")
	}

	sig := syscall.SIGSTOP
	if s.paused {
		sig = syscall.SIGCONT
	}
	if err := syscall.Kill(-pid, sig); err != nil {
		return s.paused, fmt.Errorf("signalling player process group: %w", err)
	}
	s.paused = !s.paused

	s.logger.Info("playback pause toggled", "paused", s.paused, "pid", pid)
	return s.paused, nil
}

// Stop asks the session to end early.
//
// It is idempotent and safe to call after the process has already
// exited. The process group gets SIGTERM first; if it has not exited
// within the grace period it gets SIGKILL. Stop returns once the
// process is gone, and the Completion for a stopped session is
// ReasonStopped even if mpv dies to the signal with a nonzero status.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.finished || s.stopRequested {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	s.stopRequested = true
	paused := s.paused
	s.mu.Unlock()

	pid := s.PID()
	if pid == 0 {
		<-s.done
		return nil
	}

	s.logger.Info("stopping playback", "pid", pid)

	// A suspended process queues SIGTERM until it resumes.
	if paused {
		//nolint:errcheck // Best effort; SIGKILL escalation covers failure
		syscall.Kill(-pid, syscall.SIGCONT)
	}

	// Negative PID signals the whole process group (Setpgid above).
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			s.logger.Warn("failed to send SIGTERM to player", "error", err)
		}
	}

	select {
	case <-s.done:
		return nil
	case <-time.After(s.gracefulTimeout):
		s.logger.Warn("player ignored SIGTERM, sending SIGKILL",
			"pid", pid,
			"timeout", s.gracefulTimeout.String(),
		)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("killing player process group: %w", err)
		}
	}

	<-s.done
	return nil
}

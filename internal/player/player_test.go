package player

import (
	"context"
	"testing"
	"time"

	"github.com/niconistal/BabyBox/internal/infrastructure/config"
	"github.com/niconistal/BabyBox/internal/library"
)

func testConfig(binary string) config.PlayerConfig {
	return config.PlayerConfig{
		Binary:                 binary,
		AudioDevice:            "pulse",
		GracefulTimeoutSeconds: 2,
	}
}

func TestBuildArgsVideo(t *testing.T) {
	p := New(testConfig("/usr/bin/mpv"), nil)

	args := p.buildArgs(library.MediaItem{
		Kind:     library.KindVideo,
		FilePath: "/media/video/bluey.mkv",
	})

	want := []string{"--no-terminal", "--really-quiet", "--audio-device=pulse", "--fullscreen", "/media/video/bluey.mkv"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestBuildArgsAudio(t *testing.T) {
	p := New(testConfig("/usr/bin/mpv"), nil)

	args := p.buildArgs(library.MediaItem{
		Kind:     library.KindAudio,
		FilePath: "/media/audio/songs.mp3",
	})

	var hasNoVideo, hasFullscreen bool
	for _, a := range args {
		if a == "--no-video" {
			hasNoVideo = true
		}
		if a == "--fullscreen" {
			hasFullscreen = true
		}
	}
	if !hasNoVideo {
		t.Error("audio args missing --no-video")
	}
	if hasFullscreen {
		t.Error("audio args include --fullscreen")
	}
	if args[len(args)-1] != "/media/audio/songs.mp3" {
		t.Errorf("last arg = %q, want file path", args[len(args)-1])
	}
}

func TestStartMissingBinary(t *testing.T) {
	p := New(testConfig("/nonexistent/mpv"), nil)

	s, err := p.Start(context.Background(), library.MediaItem{
		Kind:     library.KindVideo,
		FilePath: "/media/x.mkv",
	})
	if err == nil {
		s.Stop()
		t.Fatal("Start() error = nil for missing binary")
	}
}

func TestCompletionEnded(t *testing.T) {
	// true ignores its arguments and exits 0, standing in for mpv
	// reaching the end of the file.
	p := New(testConfig("true"), nil)

	s, err := p.Start(context.Background(), library.MediaItem{
		Kind:     library.KindVideo,
		FilePath: "/media/x.mkv",
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case c := <-s.Completion():
		if c.Reason != ReasonEnded {
			t.Errorf("Reason = %q, want %q", c.Reason, ReasonEnded)
		}
		if c.Err != nil {
			t.Errorf("Err = %v, want nil", c.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no completion within 5s")
	}
}

func TestCompletionError(t *testing.T) {
	p := New(testConfig("false"), nil)

	s, err := p.Start(context.Background(), library.MediaItem{
		Kind:     library.KindVideo,
		FilePath: "/media/x.mkv",
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case c := <-s.Completion():
		if c.Reason != ReasonError {
			t.Errorf("Reason = %q, want %q", c.Reason, ReasonError)
		}
		if c.Err == nil {
			t.Error("Err = nil for abnormal exit")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no completion within 5s")
	}
}

func TestStopDeliversStoppedCompletion(t *testing.T) {
	// yes prints its arguments forever, standing in for a long video.
	p := New(testConfig("yes"), nil)

	s, err := p.Start(context.Background(), library.MediaItem{
		Kind:     library.KindVideo,
		FilePath: "/media/x.mkv",
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if !s.Running() {
		t.Error("Running() = false right after start")
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case c := <-s.Completion():
		if c.Reason != ReasonStopped {
			t.Errorf("Reason = %q, want %q", c.Reason, ReasonStopped)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no completion within 5s")
	}

	if s.Running() {
		t.Error("Running() = true after stop")
	}
}

func TestStopIdempotent(t *testing.T) {
	p := New(testConfig("yes"), nil)

	s, err := p.Start(context.Background(), library.MediaItem{
		Kind:     library.KindVideo,
		FilePath: "/media/x.mkv",
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("first Stop() error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("third Stop() error = %v", err)
	}
}

func TestTogglePauseSuspendsAndResumes(t *testing.T) {
	p := New(testConfig("yes"), nil)

	s, err := p.Start(context.Background(), library.MediaItem{
		Kind:     library.KindVideo,
		FilePath: "/media/x.mkv",
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	paused, err := s.TogglePause()
	if err != nil {
		t.Fatalf("TogglePause() error = %v", err)
	}
	if !paused {
		t.Error("first toggle: paused = false, want true")
	}
	if !s.Paused() {
		t.Error("Paused() = false after suspend")
	}

	paused, err = s.TogglePause()
	if err != nil {
		t.Fatalf("second TogglePause() error = %v", err)
	}
	if paused || s.Paused() {
		t.Error("second toggle did not resume")
	}
}

func TestStopWhilePaused(t *testing.T) {
	p := New(testConfig("yes"), nil)

	s, err := p.Start(context.Background(), library.MediaItem{
		Kind:     library.KindVideo,
		FilePath: "/media/x.mkv",
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, err := s.TogglePause(); err != nil {
		t.Fatalf("TogglePause() error = %v", err)
	}

	// Stop must resume the suspended process so SIGTERM is delivered.
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() while paused error = %v", err)
	}

	select {
	case c := <-s.Completion():
		if c.Reason != ReasonStopped {
			t.Errorf("Reason = %q, want %q", c.Reason, ReasonStopped)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no completion within 5s")
	}
}

func TestTogglePauseAfterExit(t *testing.T) {
	p := New(testConfig("true"), nil)

	s, err := p.Start(context.Background(), library.MediaItem{
		Kind:     library.KindVideo,
		FilePath: "/media/x.mkv",
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	<-s.Completion()

	if _, err := s.TogglePause(); err == nil {
		t.Error("TogglePause() error = nil on a finished session")
	}
}

func TestStopAfterNaturalExit(t *testing.T) {
	p := New(testConfig("true"), nil)

	s, err := p.Start(context.Background(), library.MediaItem{
		Kind:     library.KindVideo,
		FilePath: "/media/x.mkv",
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	<-s.Completion()

	// Stop on a finished session is a no-op.
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() after exit error = %v", err)
	}
}

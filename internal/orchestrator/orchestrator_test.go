package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/niconistal/BabyBox/internal/feedback"
	"github.com/niconistal/BabyBox/internal/infrastructure/database"
	"github.com/niconistal/BabyBox/internal/infrastructure/logging"
	"github.com/niconistal/BabyBox/internal/library"
	"github.com/niconistal/BabyBox/internal/player"
	_ "github.com/niconistal/BabyBox/migrations"
)

// ---- fakes ----

type fakeSession struct {
	comp    chan player.Completion
	mu      sync.Mutex
	stopped bool
	paused  bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{comp: make(chan player.Completion, 1)}
}

func (s *fakeSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		s.comp <- player.Completion{Reason: player.ReasonStopped}
	}
	return nil
}

func (s *fakeSession) TogglePause() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = !s.paused
	return s.paused, nil
}

func (s *fakeSession) Completion() <-chan player.Completion { return s.comp }

func (s *fakeSession) Elapsed() time.Duration { return 90 * time.Second }

// end simulates the media playing to its natural end.
func (s *fakeSession) end() {
	s.comp <- player.Completion{Reason: player.ReasonEnded}
}

type fakeStarter struct {
	mu       sync.Mutex
	sessions []*fakeSession
	err      error
}

func (f *fakeStarter) Start(_ context.Context, _ library.MediaItem) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s := newFakeSession()
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *fakeStarter) last(t *testing.T) *fakeSession {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) == 0 {
		t.Fatal("no session was started")
	}
	return f.sessions[len(f.sessions)-1]
}

type fakeFeedback struct {
	mu       sync.Mutex
	patterns []feedback.Pattern
}

func (f *fakeFeedback) Enqueue(p feedback.Pattern) {
	f.mu.Lock()
	f.patterns = append(f.patterns, p)
	f.mu.Unlock()
}

func (f *fakeFeedback) all() []feedback.Pattern {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]feedback.Pattern(nil), f.patterns...)
}

func (f *fakeFeedback) has(want feedback.Pattern) bool {
	for _, p := range f.all() {
		if p == want {
			return true
		}
	}
	return false
}

type fakeAudio struct {
	mu   sync.Mutex
	macs []string
}

func (f *fakeAudio) Route(_ context.Context, mac string) error {
	f.mu.Lock()
	f.macs = append(f.macs, mac)
	f.mu.Unlock()
	return nil
}

// ---- harness ----

type harness struct {
	orch     *Orchestrator
	db       *database.DB
	media    *library.MediaRepository
	tags     *library.TagRepository
	playback *library.PlaybackRepository
	settings *library.SettingsRepository
	starter  *fakeStarter
	feedback *fakeFeedback
	audio    *fakeAudio
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "babybox.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating database: %v", err)
	}

	h := &harness{
		db:       db,
		media:    library.NewMediaRepository(db),
		tags:     library.NewTagRepository(db),
		playback: library.NewPlaybackRepository(db),
		settings: library.NewSettingsRepository(db),
		starter:  &fakeStarter{},
		feedback: &fakeFeedback{},
		audio:    &fakeAudio{},
		now:      time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC),
	}

	h.orch = New(Deps{
		Tags:     h.tags,
		Playback: h.playback,
		Settings: h.settings,
		Player:   h.starter,
		Feedback: h.feedback,
		Audio:    h.audio,
		Logger:   logging.Default(),
		Clock:    func() time.Time { return h.now },
	})
	return h
}

// seedBoundMedia creates a media item bound to a tag UID.
func (h *harness) seedBoundMedia(t *testing.T, uid, title string, kind library.MediaKind, durationS int64) library.MediaItem {
	t.Helper()
	ctx := context.Background()

	item, err := h.media.Create(ctx, library.MediaItem{
		Title:           title,
		Kind:            kind,
		FilePath:        "/media/" + title,
		DurationSeconds: durationS,
	})
	if err != nil {
		t.Fatalf("seeding media: %v", err)
	}
	if err := h.tags.Bind(ctx, library.TagBinding{UID: uid, MediaID: item.ID}); err != nil {
		t.Fatalf("binding tag: %v", err)
	}
	return item
}

// seedWatchedVideo records a finished video session inside today's window.
func (h *harness) seedWatchedVideo(t *testing.T, item library.MediaItem, watched time.Duration) {
	t.Helper()
	ctx := context.Background()

	started := h.now.Add(-2 * time.Hour)
	id, err := h.playback.Create(ctx, library.PlaybackRecord{
		MediaID:   item.ID,
		Kind:      library.KindVideo,
		StartedAt: started,
	})
	if err != nil {
		t.Fatalf("seeding playback record: %v", err)
	}
	if err := h.playback.Finish(ctx, id, started.Add(watched), true); err != nil {
		t.Fatalf("finishing seeded record: %v", err)
	}
}

// nextEvent receives the next queued external event (from a completion
// watcher) so tests can drive the loop deterministically.
func (h *harness) nextEvent(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-h.orch.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event queued within 2s")
		return nil
	}
}

// ---- tests ----

func TestVideoSessionHappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.seedBoundMedia(t, "04A1", "bluey.mkv", library.KindVideo, 420)

	h.orch.handle(ctx, TagPresented{UID: "04A1", At: h.now})

	snap := h.orch.Snapshot()
	if snap.State != StatePlaying {
		t.Fatalf("State = %q, want playing", snap.State)
	}
	if snap.MediaID != item.ID {
		t.Errorf("MediaID = %d, want %d", snap.MediaID, item.ID)
	}
	if !h.feedback.has(feedback.PatternAccepted) {
		t.Errorf("patterns = %v, missing accepted", h.feedback.all())
	}

	// The record is open while playing.
	records, err := h.playback.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("listing records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].EndedAt != nil {
		t.Error("record closed while still playing")
	}

	// Natural end: completion flows back as an event and closes the record.
	h.starter.last(t).end()
	h.orch.handle(ctx, h.nextEvent(t))

	if got := h.orch.Snapshot().State; got != StateIdle {
		t.Errorf("State after end = %q, want idle", got)
	}

	records, err = h.playback.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("listing records: %v", err)
	}
	if records[0].EndedAt == nil {
		t.Fatal("record not closed after playback ended")
	}
	if !records[0].Completed {
		t.Error("naturally ended session not marked completed")
	}
}

func TestUnknownTag(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.orch.handle(ctx, TagPresented{UID: "NOPE", At: h.now})

	if got := h.orch.Snapshot().State; got != StateIdle {
		t.Errorf("State = %q, want idle", got)
	}
	if !h.feedback.has(feedback.PatternUnknownTag) {
		t.Errorf("patterns = %v, missing unrecognized-tag", h.feedback.all())
	}

	records, err := h.playback.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("listing records: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %d, want 0", len(records))
	}
}

func TestQuotaExhaustedDeniesVideo(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.seedBoundMedia(t, "04A1", "bluey.mkv", library.KindVideo, 420)

	if err := h.settings.Set(ctx, library.SettingDailyVideoLimitCount, "1"); err != nil {
		t.Fatalf("setting limit: %v", err)
	}
	h.seedWatchedVideo(t, item, 7*time.Minute)

	h.orch.handle(ctx, TagPresented{UID: "04A1", At: h.now})

	if got := h.orch.Snapshot().State; got != StateIdle {
		t.Errorf("State = %q, want idle", got)
	}
	if !h.feedback.has(feedback.PatternAllDone) {
		t.Errorf("patterns = %v, missing all-done", h.feedback.all())
	}
	if len(h.starter.sessions) != 0 {
		t.Error("player started despite exhausted quota")
	}
}

func TestLastVideoWarning(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.seedBoundMedia(t, "04A1", "bluey.mkv", library.KindVideo, 420)

	if err := h.settings.Set(ctx, library.SettingDailyVideoLimitCount, "2"); err != nil {
		t.Fatalf("setting limit: %v", err)
	}
	h.seedWatchedVideo(t, item, 7*time.Minute)

	h.orch.handle(ctx, TagPresented{UID: "04A1", At: h.now})

	snap := h.orch.Snapshot()
	if snap.State != StatePlaying {
		t.Fatalf("State = %q, want playing", snap.State)
	}
	if !snap.Last {
		t.Error("Last = false for the final allowed video")
	}
	if !h.feedback.has(feedback.PatternLastVideo) {
		t.Errorf("patterns = %v, missing last-video-warning", h.feedback.all())
	}
}

func TestAudioIgnoresQuota(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	video := h.seedBoundMedia(t, "04A1", "bluey.mkv", library.KindVideo, 420)
	h.seedBoundMedia(t, "04B2", "songs.m4a", library.KindAudio, 0)

	if err := h.settings.Set(ctx, library.SettingDailyVideoLimitCount, "1"); err != nil {
		t.Fatalf("setting limit: %v", err)
	}
	h.seedWatchedVideo(t, video, 7*time.Minute)

	h.orch.handle(ctx, TagPresented{UID: "04B2", At: h.now})

	if got := h.orch.Snapshot().State; got != StatePlaying {
		t.Errorf("State = %q, want playing (audio is unlimited)", got)
	}
}

func TestButtonStopsSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedBoundMedia(t, "04A1", "bluey.mkv", library.KindVideo, 420)

	h.orch.handle(ctx, TagPresented{UID: "04A1", At: h.now})
	if got := h.orch.Snapshot().State; got != StatePlaying {
		t.Fatalf("State = %q, want playing", got)
	}

	h.orch.handle(ctx, ButtonPressed{Button: ButtonStop, At: h.now})

	// Stop runs asynchronously; the completion watcher queues the end event.
	h.orch.handle(ctx, h.nextEvent(t))

	if got := h.orch.Snapshot().State; got != StateIdle {
		t.Errorf("State = %q, want idle", got)
	}

	records, err := h.playback.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("listing records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].Completed {
		t.Error("stopped session marked completed")
	}
	if records[0].EndedAt == nil {
		t.Error("stopped session record not closed")
	}
}

func TestTagDuringPlaybackIsIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedBoundMedia(t, "04A1", "bluey.mkv", library.KindVideo, 420)
	h.seedBoundMedia(t, "04B2", "other.mkv", library.KindVideo, 420)

	h.orch.handle(ctx, TagPresented{UID: "04A1", At: h.now})
	h.orch.handle(ctx, TagPresented{UID: "04B2", At: h.now})

	if len(h.starter.sessions) != 1 {
		t.Errorf("sessions started = %d, want 1 (single-session lock)", len(h.starter.sessions))
	}

	records, err := h.playback.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("listing records: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("records = %d, want 1", len(records))
	}
}

func TestStartFailureRollsBackRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedBoundMedia(t, "04A1", "bluey.mkv", library.KindVideo, 420)
	h.starter.err = errors.New("mpv: no such file")

	h.orch.handle(ctx, TagPresented{UID: "04A1", At: h.now})

	if got := h.orch.Snapshot().State; got != StateIdle {
		t.Errorf("State = %q, want idle after start failure", got)
	}

	// The opened record was rolled back: a session that never played
	// must not consume quota.
	records, err := h.playback.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("listing records: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %d, want 0 after rollback", len(records))
	}
}

func TestBluetoothRoutedBeforeStart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedBoundMedia(t, "04A1", "bluey.mkv", library.KindVideo, 420)

	if err := h.settings.Set(ctx, library.SettingBTSpeakerMAC, "AA:BB:CC:DD:EE:FF"); err != nil {
		t.Fatalf("setting speaker: %v", err)
	}

	h.orch.handle(ctx, TagPresented{UID: "04A1", At: h.now})

	h.audio.mu.Lock()
	defer h.audio.mu.Unlock()
	if len(h.audio.macs) != 1 || h.audio.macs[0] != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("routed macs = %v, want the configured speaker", h.audio.macs)
	}
}

func TestRecoverFinalizesDanglingRecords(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.seedBoundMedia(t, "04A1", "bluey.mkv", library.KindVideo, 420)

	// Simulate a crash: record opened, never closed.
	id, err := h.playback.Create(ctx, library.PlaybackRecord{
		MediaID:   item.ID,
		Kind:      library.KindVideo,
		StartedAt: h.now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("creating record: %v", err)
	}

	if err := h.orch.Recover(ctx); err != nil {
		t.Fatalf("Recover() error = %v", err)
	}

	rec, err := h.playback.Get(ctx, id)
	if err != nil {
		t.Fatalf("getting record: %v", err)
	}
	if rec.EndedAt == nil {
		t.Fatal("dangling record not finalized")
	}
	if rec.Completed {
		t.Error("recovered record marked completed")
	}
}

func TestShutdownFinalizesOpenRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedBoundMedia(t, "04A1", "bluey.mkv", library.KindVideo, 420)

	h.orch.handle(ctx, TagPresented{UID: "04A1", At: h.now})
	if got := h.orch.Snapshot().State; got != StatePlaying {
		t.Fatalf("State = %q, want playing", got)
	}

	// Clean SIGTERM path: the record must close now, not on next boot.
	h.orch.shutdown()

	if got := h.orch.Snapshot().State; got != StateIdle {
		t.Errorf("State after shutdown = %q, want idle", got)
	}

	records, err := h.playback.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("listing records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].EndedAt == nil {
		t.Fatal("record left open across a clean shutdown")
	}
	if records[0].Completed {
		t.Error("shutdown-stopped session marked completed")
	}
}

func TestPlayPauseTogglesSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedBoundMedia(t, "04A1", "bluey.mkv", library.KindVideo, 420)

	h.orch.handle(ctx, TagPresented{UID: "04A1", At: h.now})

	h.orch.handle(ctx, ButtonPressed{Button: ButtonPlayPause, At: h.now})
	if snap := h.orch.Snapshot(); !snap.Paused {
		t.Error("Paused = false after first toggle")
	}

	h.orch.handle(ctx, ButtonPressed{Button: ButtonPlayPause, At: h.now})
	if snap := h.orch.Snapshot(); snap.Paused {
		t.Error("Paused = true after second toggle")
	}
}

func TestFinalVideoPlaysAllDoneOnClose(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedBoundMedia(t, "04A1", "bluey.mkv", library.KindVideo, 420)

	if err := h.settings.Set(ctx, library.SettingDailyVideoLimitCount, "1"); err != nil {
		t.Fatalf("setting limit: %v", err)
	}

	h.orch.handle(ctx, TagPresented{UID: "04A1", At: h.now})
	h.starter.last(t).end()
	h.orch.handle(ctx, h.nextEvent(t))

	if !h.feedback.has(feedback.PatternAllDone) {
		t.Errorf("patterns = %v, missing all-done after exhausting session", h.feedback.all())
	}
}

func TestLastScanTracked(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, ok := h.orch.LastScan(); ok {
		t.Error("LastScan reported before any scan")
	}

	h.orch.handle(ctx, TagPresented{UID: "UNKNOWN1", At: h.now})

	scan, ok := h.orch.LastScan()
	if !ok {
		t.Fatal("LastScan empty after a scan")
	}
	if scan.UID != "UNKNOWN1" || scan.Known {
		t.Errorf("LastScan = %+v, want unknown UNKNOWN1", scan)
	}
}

func TestSubmitDropsWhenQueueFull(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < eventQueueSize; i++ {
		if !h.orch.Submit(ButtonPressed{Button: ButtonStop, At: h.now}) {
			t.Fatalf("Submit() = false at %d, queue should hold %d", i, eventQueueSize)
		}
	}
	if h.orch.Submit(ButtonPressed{Button: ButtonStop, At: h.now}) {
		t.Error("Submit() = true on a full queue")
	}
}

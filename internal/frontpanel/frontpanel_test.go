package frontpanel

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/niconistal/BabyBox/internal/feedback"
	"github.com/niconistal/BabyBox/internal/infrastructure/config"
	"github.com/niconistal/BabyBox/internal/infrastructure/logging"
	"github.com/niconistal/BabyBox/internal/infrastructure/mqtt"
	"github.com/niconistal/BabyBox/internal/orchestrator"
)

type published struct {
	topic    string
	payload  []byte
	retained bool
}

type fakeBroker struct {
	subs      map[string]mqtt.MessageHandler
	published []published
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subs: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeBroker) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.subs[topic] = handler
	return nil
}

func (f *fakeBroker) Publish(topic string, payload []byte, _ byte, retained bool) error {
	f.published = append(f.published, published{topic: topic, payload: payload, retained: retained})
	return nil
}

func (f *fakeBroker) PublishRetained(topic string, payload []byte) error {
	return f.Publish(topic, payload, 1, true)
}

// deliver invokes the registered handler as the paho client would.
func (f *fakeBroker) deliver(t *testing.T, topic string, payload string) error {
	t.Helper()
	h, ok := f.subs[topic]
	if !ok {
		t.Fatalf("no subscription for %q", topic)
	}
	return h(topic, []byte(payload))
}

type fakeCore struct {
	events []orchestrator.Event
}

func (f *fakeCore) Submit(ev orchestrator.Event) bool {
	f.events = append(f.events, ev)
	return true
}

func newTestBridge(t *testing.T) (*Bridge, *fakeBroker, *fakeCore) {
	t.Helper()
	broker := newFakeBroker()
	core := &fakeCore{}
	hw := config.HardwareConfig{TagDedupWindowMS: 2000, ButtonDebounceMS: 250}

	b := New(broker, core, hw, 1, logging.Default())
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return b, broker, core
}

func TestTagEventSubmitted(t *testing.T) {
	_, broker, core := newTestBridge(t)

	err := broker.deliver(t, "babybox/event/tag", `{"uid":"04A1B2","at":"2026-02-15T10:00:00Z"}`)
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	if len(core.events) != 1 {
		t.Fatalf("events = %d, want 1", len(core.events))
	}
	tag, ok := core.events[0].(orchestrator.TagPresented)
	if !ok {
		t.Fatalf("event = %T, want TagPresented", core.events[0])
	}
	if tag.UID != "04A1B2" {
		t.Errorf("UID = %q, want %q", tag.UID, "04A1B2")
	}
	if !tag.At.Equal(time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("At = %v, want payload timestamp", tag.At)
	}
}

func TestRestingTagSuppressed(t *testing.T) {
	_, broker, core := newTestBridge(t)

	payload := func(at time.Time) string {
		b, _ := json.Marshal(tagEvent{UID: "04A1B2", At: at})
		return string(b)
	}
	base := time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)

	broker.deliver(t, "babybox/event/tag", payload(base))
	broker.deliver(t, "babybox/event/tag", payload(base.Add(500*time.Millisecond)))
	broker.deliver(t, "babybox/event/tag", payload(base.Add(time.Second)))

	if len(core.events) != 1 {
		t.Errorf("events = %d, want 1 (resting card suppressed)", len(core.events))
	}
}

func TestTagMissingUIDRejected(t *testing.T) {
	_, broker, core := newTestBridge(t)

	if err := broker.deliver(t, "babybox/event/tag", `{"at":"2026-02-15T10:00:00Z"}`); err == nil {
		t.Error("missing uid accepted")
	}
	if err := broker.deliver(t, "babybox/event/tag", `not json`); err == nil {
		t.Error("malformed payload accepted")
	}
	if len(core.events) != 0 {
		t.Errorf("events = %d, want 0", len(core.events))
	}
}

func TestTagWithoutTimestampGetsClock(t *testing.T) {
	b, broker, core := newTestBridge(t)
	now := time.Date(2026, 2, 15, 11, 0, 0, 0, time.UTC)
	b.clock = func() time.Time { return now }

	broker.deliver(t, "babybox/event/tag", `{"uid":"04A1B2"}`)

	if len(core.events) != 1 {
		t.Fatalf("events = %d, want 1", len(core.events))
	}
	if got := core.events[0].(orchestrator.TagPresented).At; !got.Equal(now) {
		t.Errorf("At = %v, want clock time %v", got, now)
	}
}

func TestButtonDebounced(t *testing.T) {
	_, broker, core := newTestBridge(t)

	payload := func(at time.Time) string {
		b, _ := json.Marshal(buttonEvent{Button: "stop", At: at})
		return string(b)
	}
	base := time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)

	broker.deliver(t, "babybox/event/button", payload(base))
	broker.deliver(t, "babybox/event/button", payload(base.Add(50*time.Millisecond)))
	broker.deliver(t, "babybox/event/button", payload(base.Add(400*time.Millisecond)))

	if len(core.events) != 2 {
		t.Errorf("events = %d, want 2 (bounce at +50ms suppressed)", len(core.events))
	}
}

func TestStopAfterPlayPauseNotDebounced(t *testing.T) {
	_, broker, core := newTestBridge(t)

	payload := func(button string, at time.Time) string {
		b, _ := json.Marshal(buttonEvent{Button: button, At: at})
		return string(b)
	}
	base := time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)

	broker.deliver(t, "babybox/event/button", payload("play_pause", base))
	broker.deliver(t, "babybox/event/button", payload("stop", base.Add(100*time.Millisecond)))

	// Stop must always reach the core; it never shares a debounce
	// window with the other button.
	if len(core.events) != 2 {
		t.Fatalf("events = %d, want 2 (stop press swallowed)", len(core.events))
	}
	press, ok := core.events[1].(orchestrator.ButtonPressed)
	if !ok {
		t.Fatalf("event = %T, want ButtonPressed", core.events[1])
	}
	if press.Button != orchestrator.ButtonStop {
		t.Errorf("second press = %q, want stop", press.Button)
	}
}

func TestUnknownButtonIgnored(t *testing.T) {
	_, broker, core := newTestBridge(t)

	err := broker.deliver(t, "babybox/event/button", `{"button":"volume_up","at":"2026-02-15T10:00:00Z"}`)
	if err != nil {
		t.Errorf("unknown button returned error: %v", err)
	}
	if len(core.events) != 0 {
		t.Errorf("events = %d, want 0", len(core.events))
	}
}

func TestPlayPatternPublishes(t *testing.T) {
	b, broker, _ := newTestBridge(t)

	if err := b.PlayPattern(context.Background(), feedback.PatternAccepted); err != nil {
		t.Fatalf("PlayPattern() error = %v", err)
	}

	if len(broker.published) != 1 {
		t.Fatalf("published = %d, want 1", len(broker.published))
	}
	p := broker.published[0]
	if p.topic != "babybox/command/feedback" {
		t.Errorf("topic = %q, want command/feedback", p.topic)
	}
	if p.retained {
		t.Error("feedback command published retained")
	}

	var cmd feedbackCommand
	if err := json.Unmarshal(p.payload, &cmd); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if cmd.Pattern != string(feedback.PatternAccepted) {
		t.Errorf("pattern = %q, want %q", cmd.Pattern, feedback.PatternAccepted)
	}
}

func TestPublishStateRetained(t *testing.T) {
	b, broker, _ := newTestBridge(t)

	b.PublishState(orchestrator.Snapshot{State: orchestrator.StatePlaying, MediaID: 12, Title: "Bluey S1E3"})

	if len(broker.published) != 1 {
		t.Fatalf("published = %d, want 1", len(broker.published))
	}
	p := broker.published[0]
	if p.topic != "babybox/core/state" {
		t.Errorf("topic = %q, want core/state", p.topic)
	}
	if !p.retained {
		t.Error("state snapshot not retained")
	}

	var snap orchestrator.Snapshot
	if err := json.Unmarshal(p.payload, &snap); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if snap.State != orchestrator.StatePlaying || snap.MediaID != 12 {
		t.Errorf("snapshot round-trip = %+v", snap)
	}
}

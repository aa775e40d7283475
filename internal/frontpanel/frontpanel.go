// Package frontpanel bridges the MQTT panel firmware and the control core.
//
// The panel is dumb on purpose: it publishes raw tag reads and button
// presses and renders whatever feedback pattern it is told. This package
// owns the translation in both directions, including the input filtering
// (tag dedup, button debounce) so the core only ever sees clean events.
package frontpanel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/niconistal/BabyBox/internal/downloader"
	"github.com/niconistal/BabyBox/internal/feedback"
	"github.com/niconistal/BabyBox/internal/infrastructure/config"
	"github.com/niconistal/BabyBox/internal/infrastructure/mqtt"
	"github.com/niconistal/BabyBox/internal/listeners"
	"github.com/niconistal/BabyBox/internal/orchestrator"
)

// Broker is the slice of the MQTT client the bridge uses.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishRetained(topic string, payload []byte) error
}

// Submitter accepts events for the control core.
type Submitter interface {
	Submit(ev orchestrator.Event) bool
}

// Logger is the logging interface the bridge needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// tagEvent is the panel's payload on babybox/event/tag.
type tagEvent struct {
	UID string    `json:"uid"`
	At  time.Time `json:"at"`
}

// buttonEvent is the panel's payload on babybox/event/button.
type buttonEvent struct {
	Button string    `json:"button"`
	At     time.Time `json:"at"`
}

// feedbackCommand is published on babybox/command/feedback.
type feedbackCommand struct {
	Pattern string `json:"pattern"`
}

// Bridge connects panel topics to the orchestrator and back.
//
// It implements feedback.Sink (patterns out) and
// orchestrator.StatePublisher (state snapshots out).
type Bridge struct {
	broker Broker
	core   Submitter
	logger Logger
	topics mqtt.Topics
	qos    byte

	deduper   *listeners.TagDeduper
	debouncer *listeners.ButtonDebouncer

	// clock stamps events whose payload carries no timestamp.
	clock func() time.Time
}

// New creates a bridge. The hardware config supplies the input filter
// windows; qos applies to everything the bridge publishes and subscribes.
func New(broker Broker, core Submitter, hw config.HardwareConfig, qos byte, logger Logger) *Bridge {
	return &Bridge{
		broker:    broker,
		core:      core,
		logger:    logger,
		qos:       qos,
		deduper:   listeners.NewTagDeduper(hw.TagDedupWindow()),
		debouncer: listeners.NewButtonDebouncer(hw.ButtonDebounce()),
		clock:     time.Now,
	}
}

// Start subscribes to the panel's event topics.
func (b *Bridge) Start() error {
	if err := b.broker.Subscribe(b.topics.EventTag(), b.qos, b.handleTag); err != nil {
		return fmt.Errorf("subscribing to tag events: %w", err)
	}
	if err := b.broker.Subscribe(b.topics.EventButton(), b.qos, b.handleButton); err != nil {
		return fmt.Errorf("subscribing to button events: %w", err)
	}
	return nil
}

func (b *Bridge) handleTag(_ string, payload []byte) error {
	var ev tagEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decoding tag event: %w", err)
	}
	if ev.UID == "" {
		return fmt.Errorf("tag event missing uid")
	}
	if ev.At.IsZero() {
		ev.At = b.clock()
	}

	if !b.deduper.Accept(ev.UID, ev.At) {
		b.logger.Debug("duplicate tag read suppressed", "uid", ev.UID)
		return nil
	}

	b.logger.Info("tag presented", "uid", ev.UID)
	b.core.Submit(orchestrator.TagPresented{UID: ev.UID, At: ev.At})
	return nil
}

func (b *Bridge) handleButton(_ string, payload []byte) error {
	var ev buttonEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decoding button event: %w", err)
	}
	var button orchestrator.Button
	switch ev.Button {
	case "stop":
		button = orchestrator.ButtonStop
	case "play_pause":
		button = orchestrator.ButtonPlayPause
	default:
		// Anything else is a firmware mismatch worth logging, not an
		// error worth retrying.
		b.logger.Warn("unknown button ignored", "button", ev.Button)
		return nil
	}
	if ev.At.IsZero() {
		ev.At = b.clock()
	}

	if !b.debouncer.Accept(string(button), ev.At) {
		b.logger.Debug("button bounce suppressed", "button", string(button))
		return nil
	}

	b.logger.Info("button pressed", "button", string(button))
	b.core.Submit(orchestrator.ButtonPressed{Button: button, At: ev.At})
	return nil
}

// PlayPattern publishes a feedback pattern for the panel to render.
// Implements feedback.Sink.
func (b *Bridge) PlayPattern(_ context.Context, p feedback.Pattern) error {
	payload, err := json.Marshal(feedbackCommand{Pattern: string(p)})
	if err != nil {
		return fmt.Errorf("encoding feedback command: %w", err)
	}
	if err := b.broker.Publish(b.topics.CommandFeedback(), payload, b.qos, false); err != nil {
		return fmt.Errorf("publishing feedback command: %w", err)
	}
	return nil
}

// PublishState publishes the controller state, retained, so the panel
// and admin UI see the current state as soon as they connect.
// Implements orchestrator.StatePublisher.
func (b *Bridge) PublishState(s orchestrator.Snapshot) {
	payload, err := json.Marshal(s)
	if err != nil {
		b.logger.Error("encoding state snapshot", "error", err)
		return
	}
	if err := b.broker.PublishRetained(b.topics.CoreState(), payload); err != nil {
		b.logger.Error("publishing state snapshot", "error", err)
	}
}

// PublishDownload publishes download job progress on the job's topic.
// Wired as the download manager's progress callback.
func (b *Bridge) PublishDownload(job downloader.Job) {
	payload, err := json.Marshal(job)
	if err != nil {
		b.logger.Error("encoding download progress", "error", err)
		return
	}
	topic := b.topics.CoreDownload(job.ID)
	if err := b.broker.Publish(topic, payload, b.qos, false); err != nil {
		b.logger.Error("publishing download progress", "job_id", job.ID, "error", err)
	}
}

// Package audioroute points PulseAudio output at the configured
// Bluetooth speaker, falling back to the built-in speaker when none is
// configured or the connection fails.
//
// Routing is best effort: a dead speaker battery must never stop a
// session from playing on the internal speaker.
package audioroute

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// commandTimeout bounds each bluetoothctl/pactl invocation.
// bluetoothctl can hang indefinitely on a powered-off adapter.
const commandTimeout = 10 * time.Second

// Runner executes an external command and returns its combined output.
// Swapped for a fake in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return exec.CommandContext(runCtx, name, args...).CombinedOutput()
}

// Logger is the minimal logging interface the router needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Router manages the audio output route.
type Router struct {
	run    Runner
	logger Logger
}

// New creates a Router using the system bluetoothctl and pactl binaries.
// The logger may be nil.
func New(logger Logger) *Router {
	return NewWithRunner(execRunner{}, logger)
}

// NewWithRunner creates a Router with a custom command runner.
func NewWithRunner(run Runner, logger Logger) *Router {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Router{run: run, logger: logger}
}

// SinkName returns the PulseAudio sink name bluez creates for a speaker.
//
// Example: AA:BB:CC:DD:EE:FF -> bluez_sink.AA_BB_CC_DD_EE_FF.a2dp_sink
func SinkName(mac string) string {
	return fmt.Sprintf("bluez_sink.%s.a2dp_sink", strings.ReplaceAll(mac, ":", "_"))
}

// Route connects the speaker and makes it the default sink.
//
// An empty MAC means no speaker is configured and the built-in output
// stays in place. Errors are returned for logging but callers should
// treat them as non-fatal.
func (r *Router) Route(ctx context.Context, mac string) error {
	if mac == "" {
		r.logger.Debug("no bluetooth speaker configured, using built-in output")
		return nil
	}

	if err := r.EnsureConnected(ctx, mac); err != nil {
		return err
	}
	return r.SetDefaultSink(ctx, mac)
}

// IsConnected reports whether the speaker shows as connected.
func (r *Router) IsConnected(ctx context.Context, mac string) bool {
	out, err := r.run.Run(ctx, "bluetoothctl", "info", mac)
	if err != nil {
		return false
	}
	return strings.Contains(string(out), "Connected: yes")
}

// EnsureConnected pairs, trusts and connects the speaker if it is not
// already connected. Pairing an already-paired device is harmless, so
// the sequence is not conditional.
func (r *Router) EnsureConnected(ctx context.Context, mac string) error {
	if r.IsConnected(ctx, mac) {
		r.logger.Debug("bluetooth speaker already connected", "mac", mac)
		return nil
	}

	r.logger.Info("connecting bluetooth speaker", "mac", mac)

	// pair and trust failures are expected for known devices.
	if out, err := r.run.Run(ctx, "bluetoothctl", "pair", mac); err != nil {
		r.logger.Debug("bluetoothctl pair", "mac", mac, "output", strings.TrimSpace(string(out)))
	}
	if out, err := r.run.Run(ctx, "bluetoothctl", "trust", mac); err != nil {
		r.logger.Debug("bluetoothctl trust", "mac", mac, "output", strings.TrimSpace(string(out)))
	}

	out, err := r.run.Run(ctx, "bluetoothctl", "connect", mac)
	if err != nil {
		return fmt.Errorf("connecting speaker %s: %w (%s)", mac, err, strings.TrimSpace(string(out)))
	}
	if !r.IsConnected(ctx, mac) {
		return fmt.Errorf("speaker %s did not connect", mac)
	}
	return nil
}

// SetDefaultSink makes the speaker's bluez sink the PulseAudio default.
func (r *Router) SetDefaultSink(ctx context.Context, mac string) error {
	sink := SinkName(mac)
	out, err := r.run.Run(ctx, "pactl", "set-default-sink", sink)
	if err != nil {
		return fmt.Errorf("setting default sink %s: %w (%s)", sink, err, strings.TrimSpace(string(out)))
	}
	r.logger.Info("audio routed to bluetooth speaker", "sink", sink)
	return nil
}

// Device is a Bluetooth device known to the adapter.
type Device struct {
	MAC       string `json:"mac"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// Scan discovers nearby devices for the given duration, then returns
// everything the adapter knows about. Used by the admin UI's speaker
// picker.
func (r *Router) Scan(ctx context.Context, duration time.Duration) ([]Device, error) {
	seconds := int(duration.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	// scan on exits when its timeout elapses; output is irrelevant.
	if out, err := r.run.Run(ctx, "bluetoothctl", "--timeout", fmt.Sprintf("%d", seconds), "scan", "on"); err != nil {
		r.logger.Warn("bluetooth scan", "error", err, "output", strings.TrimSpace(string(out)))
	}
	return r.Devices(ctx)
}

// Devices lists the devices the adapter knows about.
func (r *Router) Devices(ctx context.Context) ([]Device, error) {
	out, err := r.run.Run(ctx, "bluetoothctl", "devices")
	if err != nil {
		return nil, fmt.Errorf("listing bluetooth devices: %w", err)
	}

	var devices []Device
	for _, line := range strings.Split(string(out), "\n") {
		d, ok := parseDeviceLine(line)
		if !ok {
			continue
		}
		d.Connected = r.IsConnected(ctx, d.MAC)
		devices = append(devices, d)
	}
	return devices, nil
}

// parseDeviceLine parses one line of bluetoothctl devices output:
//
//	Device AA:BB:CC:DD:EE:FF JBL Flip 5
func parseDeviceLine(line string) (Device, bool) {
	fields := strings.SplitN(strings.TrimSpace(line), " ", 3)
	if len(fields) < 2 || fields[0] != "Device" {
		return Device{}, false
	}
	d := Device{MAC: fields[1]}
	if len(fields) == 3 {
		d.Name = fields[2]
	}
	return d, true
}

// Disconnect drops the speaker connection. Used by the admin API when a
// parent unpairs the speaker.
func (r *Router) Disconnect(ctx context.Context, mac string) error {
	out, err := r.run.Run(ctx, "bluetoothctl", "disconnect", mac)
	if err != nil {
		return fmt.Errorf("disconnecting speaker %s: %w (%s)", mac, err, strings.TrimSpace(string(out)))
	}
	return nil
}

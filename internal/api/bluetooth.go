package api

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/niconistal/BabyBox/internal/audioroute"
	"github.com/niconistal/BabyBox/internal/library"
)

// macRe matches a colon-separated Bluetooth MAC address.
var macRe = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

const (
	defaultScanSeconds = 8
	maxScanSeconds     = 30
)

// setSpeakerRequest is the body of PUT /bluetooth/speaker.
type setSpeakerRequest struct {
	MAC string `json:"mac"`
}

// handleBluetoothDevices lists devices the adapter knows about.
// With ?scan=<seconds> it discovers nearby devices first.
func (s *Server) handleBluetoothDevices(w http.ResponseWriter, r *http.Request) {
	if s.bluetooth == nil {
		writeNotFound(w, "bluetooth is not configured")
		return
	}

	var (
		devices []audioroute.Device
		err     error
	)
	if r.URL.Query().Has("scan") {
		seconds := defaultScanSeconds
		if raw := r.URL.Query().Get("scan"); raw != "" {
			n, convErr := strconv.Atoi(raw)
			if convErr != nil || n < 1 {
				writeBadRequest(w, "scan must be a positive number of seconds")
				return
			}
			seconds = n
		}
		if seconds > maxScanSeconds {
			seconds = maxScanSeconds
		}
		devices, err = s.bluetooth.Scan(r.Context(), time.Duration(seconds)*time.Second)
	} else {
		devices, err = s.bluetooth.Devices(r.Context())
	}
	if err != nil {
		s.logger.Error("listing bluetooth devices", "error", err)
		writeInternalError(w, "failed to list bluetooth devices")
		return
	}
	if devices == nil {
		devices = []audioroute.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleSetSpeaker stores the speaker MAC and tries to connect it.
// A failed connect still stores the setting: routing is retried at
// every session start.
func (s *Server) handleSetSpeaker(w http.ResponseWriter, r *http.Request) {
	if s.bluetooth == nil {
		writeNotFound(w, "bluetooth is not configured")
		return
	}

	var req setSpeakerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if !macRe.MatchString(req.MAC) {
		writeBadRequest(w, "mac must look like AA:BB:CC:DD:EE:FF")
		return
	}

	if err := s.settings.Set(r.Context(), library.SettingBTSpeakerMAC, req.MAC); err != nil {
		s.logger.Error("storing speaker mac", "error", err)
		writeInternalError(w, "failed to store speaker")
		return
	}

	connected := true
	if err := s.bluetooth.Route(r.Context(), req.MAC); err != nil {
		s.logger.Warn("connecting new speaker", "mac", req.MAC, "error", err)
		connected = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mac":       req.MAC,
		"connected": connected,
	})
}

// handleClearSpeaker removes the speaker setting and disconnects it.
func (s *Server) handleClearSpeaker(w http.ResponseWriter, r *http.Request) {
	if s.bluetooth == nil {
		writeNotFound(w, "bluetooth is not configured")
		return
	}

	mac, err := s.settings.SpeakerMAC(r.Context())
	if err != nil {
		s.logger.Error("reading speaker mac", "error", err)
		writeInternalError(w, "failed to read speaker")
		return
	}

	if err := s.settings.Set(r.Context(), library.SettingBTSpeakerMAC, ""); err != nil {
		s.logger.Error("clearing speaker mac", "error", err)
		writeInternalError(w, "failed to clear speaker")
		return
	}

	if mac != "" {
		if err := s.bluetooth.Disconnect(r.Context(), mac); err != nil {
			s.logger.Warn("disconnecting speaker", "mac", mac, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "cleared"})
}

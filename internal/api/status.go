package api

import (
	"net/http"
	"time"

	"github.com/niconistal/BabyBox/internal/orchestrator"
	"github.com/niconistal/BabyBox/internal/quota"
)

// quotaStatus reports the daily allowance for the admin UI.
type quotaStatus struct {
	MaxVideos        int     `json:"max_videos"`
	MaxMinutes       int     `json:"max_minutes"`
	ResetHour        int     `json:"reset_hour"`
	RemainingVideos  int     `json:"remaining_videos"`
	RemainingMinutes float64 `json:"remaining_minutes"`
}

// statusResponse is the body of GET /status.
type statusResponse struct {
	Controller orchestrator.Snapshot `json:"controller"`
	Quota      *quotaStatus          `json:"quota,omitempty"`
}

// handleStatus returns the controller state and quota usage.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Controller: s.controller.Snapshot()}

	settings, err := s.settings.QuotaSettings(r.Context())
	if err != nil {
		s.logger.Warn("reading quota settings for status", "error", err)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	now := time.Now()
	window := quota.WindowStart(now, settings.ResetHour)
	sessions, err := s.playback.ListVideoUsageSince(r.Context(), window)
	if err != nil {
		s.logger.Warn("reading playback history for status", "error", err)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	videos, minutes := quota.Remaining(settings, sessions, now)
	resp.Quota = &quotaStatus{
		MaxVideos:        settings.MaxVideos,
		MaxMinutes:       settings.MaxMinutes,
		ResetHour:        settings.ResetHour,
		RemainingVideos:  videos,
		RemainingMinutes: minutes,
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStop submits a stop press, same as the hardware button.
func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	accepted := s.controller.Submit(orchestrator.ButtonPressed{
		Button: orchestrator.ButtonStop,
		At:     time.Now(),
	})
	if !accepted {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "event queue full")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

// handlePause submits a play/pause toggle.
func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	accepted := s.controller.Submit(orchestrator.ButtonPressed{
		Button: orchestrator.ButtonPlayPause,
		At:     time.Now(),
	})
	if !accepted {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "event queue full")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

package api

import (
	"net/http"
	"strconv"

	"github.com/niconistal/BabyBox/internal/library"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// handleHistory returns the most recent playback records.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := s.playback.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing playback history", "error", err)
		writeInternalError(w, "failed to read history")
		return
	}
	if records == nil {
		records = []library.PlaybackRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

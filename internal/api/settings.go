package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/niconistal/BabyBox/internal/library"
)

// settableKeys whitelists what PUT /settings may touch. The PIN hash
// and speaker MAC have dedicated routes with their own validation.
var settableKeys = map[string]func(string) bool{
	library.SettingDailyVideoLimitCount:   isNonNegativeInt,
	library.SettingDailyVideoLimitMinutes: isNonNegativeInt,
	library.SettingLimitResetHour:         isHourOfDay,
}

func isNonNegativeInt(v string) bool {
	n, err := strconv.Atoi(v)
	return err == nil && n >= 0
}

func isHourOfDay(v string) bool {
	n, err := strconv.Atoi(v)
	return err == nil && n >= 0 && n <= 23
}

// handleGetSettings returns the runtime settings, minus credentials.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	all, err := s.settings.All(r.Context())
	if err != nil {
		s.logger.Error("listing settings", "error", err)
		writeInternalError(w, "failed to read settings")
		return
	}
	delete(all, library.SettingParentPINHash)
	writeJSON(w, http.StatusOK, all)
}

// handlePutSettings applies a partial settings update. Changes become
// effective at the next quota check; a running session is never
// interrupted by a limit change.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req) == 0 {
		writeBadRequest(w, "no settings provided")
		return
	}

	for key, value := range req {
		valid, ok := settableKeys[key]
		if !ok {
			writeBadRequest(w, "unknown setting: "+key)
			return
		}
		if !valid(value) {
			writeBadRequest(w, "invalid value for "+key)
			return
		}
	}

	for key, value := range req {
		if err := s.settings.Set(r.Context(), key, value); err != nil {
			s.logger.Error("storing setting", "key", key, "error", err)
			writeInternalError(w, "failed to store settings")
			return
		}
	}

	s.logger.Info("settings updated", "keys", len(req))
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

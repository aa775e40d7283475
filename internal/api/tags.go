package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/niconistal/BabyBox/internal/library"
)

// bindTagRequest is the body of PUT /tags/{uid}.
type bindTagRequest struct {
	MediaID int64  `json:"media_id"`
	Label   string `json:"label"`
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	bindings, err := s.tags.List(r.Context())
	if err != nil {
		s.logger.Error("listing tags", "error", err)
		writeInternalError(w, "failed to list tags")
		return
	}
	if bindings == nil {
		bindings = []library.TagBinding{}
	}
	writeJSON(w, http.StatusOK, bindings)
}

// handleLastScan returns the most recent card read. The admin UI's
// register mode polls this: scan a new card on the box, then bind the
// reported UID to a media item.
func (s *Server) handleLastScan(w http.ResponseWriter, _ *http.Request) {
	scan, ok := s.controller.LastScan()
	if !ok {
		writeNotFound(w, "nothing scanned yet")
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

func (s *Server) handleBindTag(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if uid == "" {
		writeBadRequest(w, "tag uid is required")
		return
	}

	var req bindTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	// Verify the target exists so a typo doesn't create a dead card.
	if _, err := s.media.Get(r.Context(), req.MediaID); err != nil {
		if errors.Is(err, library.ErrMediaNotFound) {
			writeBadRequest(w, "media_id does not exist")
			return
		}
		s.logger.Error("checking media for binding", "media_id", req.MediaID, "error", err)
		writeInternalError(w, "failed to bind tag")
		return
	}

	binding := library.TagBinding{UID: uid, MediaID: req.MediaID, Label: req.Label}
	if err := s.tags.Bind(r.Context(), binding); err != nil {
		s.logger.Error("binding tag", "uid", uid, "error", err)
		writeInternalError(w, "failed to bind tag")
		return
	}
	writeJSON(w, http.StatusOK, binding)
}

func (s *Server) handleUnbindTag(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	err := s.tags.Unbind(r.Context(), uid)
	if errors.Is(err, library.ErrTagNotFound) {
		writeNotFound(w, "tag not bound")
		return
	}
	if err != nil {
		s.logger.Error("unbinding tag", "uid", uid, "error", err)
		writeInternalError(w, "failed to unbind tag")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "unbound"})
}

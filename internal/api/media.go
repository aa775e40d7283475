package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/niconistal/BabyBox/internal/library"
)

// createMediaRequest registers a file already present on disk. Web
// content goes through /downloads instead.
type createMediaRequest struct {
	Title           string `json:"title"`
	Kind            string `json:"kind"`
	FilePath        string `json:"file_path"`
	DurationSeconds int64  `json:"duration_seconds"`
	Thumbnail       string `json:"thumbnail"`
}

// updateMediaRequest carries the admin-editable metadata. Pointer
// fields distinguish "not sent" from "set to empty".
type updateMediaRequest struct {
	Title     *string `json:"title"`
	Thumbnail *string `json:"thumbnail"`
}

func (s *Server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	items, err := s.media.List(r.Context())
	if err != nil {
		s.logger.Error("listing media", "error", err)
		writeInternalError(w, "failed to list media")
		return
	}
	if items == nil {
		items = []library.MediaItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateMedia(w http.ResponseWriter, r *http.Request) {
	var req createMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Title == "" || req.FilePath == "" {
		writeBadRequest(w, "title and file_path are required")
		return
	}

	item, err := s.media.Create(r.Context(), library.MediaItem{
		Title:           req.Title,
		Kind:            library.MediaKind(req.Kind),
		FilePath:        req.FilePath,
		DurationSeconds: req.DurationSeconds,
		Thumbnail:       req.Thumbnail,
	})
	if errors.Is(err, library.ErrInvalidKind) {
		writeBadRequest(w, "kind must be audio or video")
		return
	}
	if err != nil {
		s.logger.Error("creating media", "error", err)
		writeInternalError(w, "failed to create media")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := mediaID(w, r)
	if !ok {
		return
	}
	item, err := s.media.Get(r.Context(), id)
	if errors.Is(err, library.ErrMediaNotFound) {
		writeNotFound(w, "media not found")
		return
	}
	if err != nil {
		s.logger.Error("getting media", "id", id, "error", err)
		writeInternalError(w, "failed to get media")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleUpdateMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := mediaID(w, r)
	if !ok {
		return
	}

	var req updateMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	item, err := s.media.Get(r.Context(), id)
	if errors.Is(err, library.ErrMediaNotFound) {
		writeNotFound(w, "media not found")
		return
	}
	if err != nil {
		s.logger.Error("getting media for update", "id", id, "error", err)
		writeInternalError(w, "failed to update media")
		return
	}

	if req.Title != nil {
		if *req.Title == "" {
			writeBadRequest(w, "title cannot be empty")
			return
		}
		item.Title = *req.Title
	}
	if req.Thumbnail != nil {
		item.Thumbnail = *req.Thumbnail
	}

	if err := s.media.Update(r.Context(), item); err != nil {
		s.logger.Error("updating media", "id", id, "error", err)
		writeInternalError(w, "failed to update media")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := mediaID(w, r)
	if !ok {
		return
	}
	err := s.media.Delete(r.Context(), id)
	if errors.Is(err, library.ErrMediaNotFound) {
		writeNotFound(w, "media not found")
		return
	}
	if err != nil {
		s.logger.Error("deleting media", "id", id, "error", err)
		writeInternalError(w, "failed to delete media")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// mediaID parses the {id} URL parameter, writing a 400 on failure.
func mediaID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, "invalid media id")
		return 0, false
	}
	return id, true
}

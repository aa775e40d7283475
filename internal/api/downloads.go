package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/niconistal/BabyBox/internal/library"
)

// createDownloadRequest is the body of POST /downloads.
type createDownloadRequest struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

func (s *Server) handleCreateDownload(w http.ResponseWriter, r *http.Request) {
	if s.downloads == nil {
		writeNotFound(w, "downloads are not configured")
		return
	}

	var req createDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	job, err := s.downloads.Enqueue(req.URL, library.MediaKind(req.Kind))
	if errors.Is(err, library.ErrInvalidKind) {
		writeBadRequest(w, "kind must be audio or video")
		return
	}
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleListDownloads(w http.ResponseWriter, _ *http.Request) {
	if s.downloads == nil {
		writeNotFound(w, "downloads are not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.downloads.List())
}

func (s *Server) handleGetDownload(w http.ResponseWriter, r *http.Request) {
	if s.downloads == nil {
		writeNotFound(w, "downloads are not configured")
		return
	}
	job, ok := s.downloads.Get(chi.URLParam(r, "id"))
	if !ok {
		writeNotFound(w, "download job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

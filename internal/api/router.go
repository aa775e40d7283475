package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Thumbnails are public read-only static files for the admin UI.
	thumbs := http.FileServer(http.Dir(s.mediaCfg.ThumbnailDir()))
	r.Handle("/thumbnails/*", http.StripPrefix("/thumbnails", thumbs))

	r.Route("/api/v1", func(r chi.Router) {
		// No auth: health, login, first-run PIN setup.
		r.Get("/health", s.handleHealth)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/setup", s.handleSetup)

		// WebSocket authenticates via single-use ticket in the handler.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)
			r.Put("/auth/pin", s.handleChangePIN)

			r.Get("/status", s.handleStatus)
			r.Post("/playback/stop", s.handleStop)
			r.Post("/playback/pause", s.handlePause)

			r.Route("/media", func(r chi.Router) {
				r.Get("/", s.handleListMedia)
				r.Post("/", s.handleCreateMedia)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetMedia)
					r.Patch("/", s.handleUpdateMedia)
					r.Delete("/", s.handleDeleteMedia)
				})
			})

			r.Route("/tags", func(r chi.Router) {
				r.Get("/", s.handleListTags)
				r.Get("/last-scan", s.handleLastScan)
				r.Put("/{uid}", s.handleBindTag)
				r.Delete("/{uid}", s.handleUnbindTag)
			})

			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handlePutSettings)

			r.Get("/history", s.handleHistory)

			r.Route("/downloads", func(r chi.Router) {
				r.Get("/", s.handleListDownloads)
				r.Post("/", s.handleCreateDownload)
				r.Get("/{id}", s.handleGetDownload)
			})

			r.Route("/bluetooth", func(r chi.Router) {
				r.Get("/devices", s.handleBluetoothDevices)
				r.Put("/speaker", s.handleSetSpeaker)
				r.Delete("/speaker", s.handleClearSpeaker)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// defaultWSPath is used when websocket.path is not configured.
const defaultWSPath = "/ws"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = defaultWSPath
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/devices", s.handleListDevices)
		r.Get(wsPath, s.handleWebSocket)

		r.Route("/modules", func(r chi.Router) {
			r.Get("/", s.handleListModules)

			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetModule)
				r.Get("/dispatches", s.handleListDispatches)

				r.Group(func(r chi.Router) {
					r.Use(s.authMiddleware)
					r.Post("/config/apply", s.handleApplyConfig)
					r.Put("/actuators/state", s.handleSetActuators)
				})
			})
		})

		r.Route("/network", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware)
				r.Get("/audit", s.handleNetworkAudit)
				r.Post("/inclusion", s.handleBeginInclusion)
				r.Delete("/inclusion", s.handleStopInclusion)
				r.Post("/exclusion", s.handleBeginExclusion)
				r.Delete("/exclusion", s.handleStopExclusion)
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
		"router":  s.modules.State(),
	})
}

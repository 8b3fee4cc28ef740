package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/farm-bridge/internal/infrastructure/metrics"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsHandler().Handler)
	r.Use(s.bodySizeLimitMiddleware)

	if s.metrics != nil {
		r.Handle("/metrics", metrics.Handler(s.metrics))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/check-plant", func(r chi.Router) {
				r.Get("/", s.handleCheckPlant)
				r.Get("/realtime", s.handleRealtime)
			})

			r.Route("/data", func(r chi.Router) {
				r.Post("/default", s.handleCreateDevice)
				r.Put("/default/{deviceName}", s.handleUpdateDevice)
				r.Get("/graph/{attribute}/{deviceName}", s.handleGraph)
			})

			r.Route("/device", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Get("/{deviceName}", s.handleGetDevice)
				r.Delete("/{deviceName}", s.handleDeleteDevice)
			})

			r.Post("/control/{endpoint}/{deviceName}", s.handleControl)

			r.Get(s.wsPath(), s.handleWebSocket)
		})
	})

	return r
}

// handleHealth reports whether the database and the bus are reachable.
// It answers 503 when either is down.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := map[string]string{}
	for name, c := range map[string]HealthChecker{"database": s.db, "mqtt": s.bus} {
		if c == nil {
			checks[name] = "disabled"
			continue
		}
		if err := c.HealthCheck(r.Context()); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	writeData(w, status, map[string]any{
		"status":    state,
		"version":   s.version,
		"checks":    checks,
		"websocket": map[string]int{"clients": s.hub.ClientCount()},
	})
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/plaf203-core/internal/auth"
)

// healthCheckTimeout bounds each dependency check in /health.
const healthCheckTimeout = 3 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health and metrics (no auth required)
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Reads
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermFeederRead))

				r.Get("/status", s.handleStatus)
				r.Get("/attributes", s.handleGetAttributes)
				r.Get("/settings", s.handleListSettings)
				r.Get("/settings/{group}", s.handleGetSettings)
				r.Get("/plans", s.handleListPlans)
				r.Get("/plans/{id}", s.handleGetPlan)
				r.Get("/feed/quantity", s.handleGetFeedQuantity)
				r.Get("/feed-log", s.handleListFeedLog)
				r.Get("/ws", s.handleWebSocket)
			})

			// Feeding
			r.With(s.requirePermission(auth.PermFeederOperate)).Post("/feed", s.handleManualFeed)

			// Configuration
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermFeederConfigure))

				r.Post("/attributes/refresh", s.handleRefreshAttributes)
				r.Put("/settings/{group}", s.handleUpdateSettings)
				r.Put("/plans", s.handleReplacePlans)
				r.Put("/plans/{id}", s.handlePutPlan)
				r.Delete("/plans/{id}", s.handleDeletePlan)
				r.Put("/feed/quantity", s.handleSetFeedQuantity)
			})

			// Device actions
			r.Route("/device", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermSystemAdmin))

				r.Post("/reboot", s.handleReboot)
				r.Post("/factory-reset", s.handleFactoryReset)
				r.Post("/wifi/reconnect", s.handleReconnectWifi)
				r.Put("/wifi", s.handleChangeWifi)
				r.Post("/sd-card/format", s.handleFormatSDCard)
				r.Post("/firmware", s.handleUpgradeFirmware)
			})
		})
	})

	return r
}

// handleHealth runs every registered dependency check.
// It returns 503 if any check fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status":  overall,
		"version": s.version,
		"online":  s.feeder.Status().Online,
		"checks":  checks,
	})
}

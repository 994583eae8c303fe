// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router builds the chi route tree.
type Router struct {
	handler    *Handler
	middleware *ChiMiddleware
}

// NewRouter creates a Router. A nil config uses DefaultChiMiddlewareConfig.
func NewRouter(handler *Handler, cfg *ChiMiddlewareConfig) *Router {
	return &Router{handler: handler, middleware: NewChiMiddleware(cfg)}
}

// SetupChi returns the complete handler.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()
	h := router.handler

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(PrometheusMetrics)
	r.Use(RequestLogging)

	r.Get("/ws", h.WebSocket)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.middleware.CORS())
		r.Use(APISecurityHeaders())
		r.Use(router.middleware.RateLimit())

		r.Get("/health", h.Health)
		r.Get("/status", h.Status)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Post("/", h.AddNotification)
			r.Delete("/", h.ClearNotifications)
			r.Delete("/{id}", h.DismissNotification)
		})

		r.Route("/requests", func(r chi.Router) {
			r.Get("/pending", h.ListPending)
			r.Post("/refresh", h.RefreshPending)
			r.Put("/{id}/attended", h.MarkAttended)
		})

		r.Post("/realtime/reconnect", h.Reconnect)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("Not found")
	})
	return r
}

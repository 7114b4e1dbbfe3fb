package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pumpwatch/internal/api/http/handlers"
	"pumpwatch/internal/api/http/mw"
	"pumpwatch/internal/metrics"
)

func BuildRouter(
	h *handlers.Handler,
	logMW *mw.LoggingMiddleware,
	gzipMW *mw.GzipMiddleware,
	rateLimitMW *mw.RateLimitMiddleware,
	jwtMW *mw.JWTMiddleware,
	corsMW *mw.CORSMiddleware,
) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	if logMW != nil {
		r.Use(logMW.Handler)
	}
	if gzipMW != nil {
		r.Use(gzipMW.Handler)
	}
	if corsMW != nil {
		r.Use(corsMW.Handler())
	}

	// tech endpoint not auth
	r.Get("/healthz", h.Healthz)
	r.Get("/readiness", h.Readiness)
	r.Mount("/metrics", metrics.Handler())

	// data endpoints behind rate limit and jwt
	r.Route("/api", func(apiR chi.Router) {
		if rateLimitMW != nil {
			apiR.Use(rateLimitMW.Handler)
		}
		if jwtMW != nil {
			apiR.Use(jwtMW.Handler)
		}

		apiR.Get("/rankings", h.Rankings)
		apiR.Get("/peaks", h.Peaks)
		apiR.Get("/alert", h.Alert)
		apiR.Post("/reset", h.Reset)
		apiR.Route("/tokens", func(tt chi.Router) {
			tt.Get("/{mint}/stats", h.TokenStats)
		})
	})

	return r
}

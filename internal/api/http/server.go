package http

import (
	"context"
	"errors"
	"net/http"

	"gitlab.com/nevasik7/alerting/logger"

	"pumpwatch/internal/api/http/handlers"
	"pumpwatch/internal/api/http/mw"
	"pumpwatch/internal/config"
	"pumpwatch/internal/security"
	"pumpwatch/internal/service"
	rds "pumpwatch/internal/stores/redis"
)

type ServerDeps struct {
	Logger    logger.Logger
	Cfg       *config.Config
	RdbClient *rds.Client             // optional, enables the redis rate limiter
	Verifier  *security.RS256Verifier // optional, enables JWT auth on /api
	Monitor   *service.Monitor
}

type Server struct {
	log logger.Logger
	srv *http.Server
}

func NewServer(d *ServerDeps) *Server {
	h := handlers.NewHandler(d.Logger, d.Monitor)

	logMW := mw.NewLogging(d.Logger)
	gzipMW := mw.NewGzip(0, d.Logger)

	var corsMW *mw.CORSMiddleware
	if d.Cfg.API.HTTP.CORS.Enabled {
		corsMW = mw.NewCORS(&d.Cfg.API.HTTP.CORS)
	}

	var rateLimitMW *mw.RateLimitMiddleware
	if d.Cfg.API.HTTP.RateLimit.Enabled && d.RdbClient != nil {
		rateLimitMW = mw.NewRateLimit(d.RdbClient.Client, d.Cfg.API.HTTP.RateLimit, d.Verifier)
	}

	var jwtMW *mw.JWTMiddleware
	if d.Cfg.Security.JWT.Enabled && d.Verifier != nil {
		jwtMW = mw.NewJWTMiddleware(d.Verifier)
	}

	router := BuildRouter(h, logMW, gzipMW, rateLimitMW, jwtMW, corsMW)

	return &Server{
		log: d.Logger,
		srv: &http.Server{
			Addr:         d.Cfg.API.HTTP.Addr,
			Handler:      router,
			ReadTimeout:  d.Cfg.API.HTTP.ReadTimeout,
			WriteTimeout: d.Cfg.API.HTTP.WriteTimeout,
			IdleTimeout:  d.Cfg.API.HTTP.IdleTimeout,
		},
	}
}

func (s *Server) Start() error {
	s.log.Infof("HTTP server listening on %s", s.srv.Addr)

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

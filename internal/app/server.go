package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"socialcore/internal/telemetry"
)

// Server serves health and metrics for a running App.
type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

func (a *App) NewServer(addr string) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           telemetry.NewRouter(a.Registry, a.Health),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: a.Logger.With().Str("component", "server").Logger(),
	}
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting telemetry server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

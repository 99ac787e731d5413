package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/dnt-protocol/dnt-staking-engine/internal/config"
	"github.com/dnt-protocol/dnt-staking-engine/internal/governance"
	"github.com/dnt-protocol/dnt-staking-engine/internal/services"
)

type Server struct {
	httpServer *http.Server
}

func New(cfg *config.APIConfig, svc *services.Service, governanceStore *governance.Store) *Server {
	h := &Handler{
		svc:         svc,
		governance:  governanceStore,
		maxPageSize: cfg.MaxPageSize,
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      h.Router(),
			WriteTimeout: cfg.WriteTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	log.Ctx(ctx).Info().Msgf("Starting api server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the router served by the server.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

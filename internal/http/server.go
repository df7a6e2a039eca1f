package http

import (
	"context"
	"net/http"
	"time"

	"github.com/talentdock/authcore/internal/observability/logger"
)

// Server envuelve http.Server con defaults razonables y shutdown limpio.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start bloquea hasta que el listener cierre. http.ErrServerClosed no
// es un error para el caller.
func (s *Server) Start() error {
	logger.L().Info("http server listening", logger.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drena conexiones en curso.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

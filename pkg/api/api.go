// Package api exposes the tracker over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/regressoor/pkg/config"
	"github.com/ethpandaops/regressoor/pkg/tracker"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.Config
	tracker    tracker.Tracker
	httpServer *http.Server
	wg         sync.WaitGroup
}

// NewServer creates a new API server on top of an already-started
// tracker.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.Config,
	tr tracker.Tracker,
) Server {
	return &server{
		log:     log.WithField("component", "api"),
		cfg:     cfg,
		tracker: tr,
	}
}

// Start binds the listen address and serves requests until Stop.
func (s *server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.API.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.API.Listen, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.WithField("listen", listener.Addr().String()).
		Info("API server listening")

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		if err := s.httpServer.Serve(listener); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("API server failed")
		}
	}()

	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(
		context.Background(), shutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	s.wg.Wait()

	s.log.Info("API server stopped")

	return nil
}

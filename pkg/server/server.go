// Package server drives the engagement event router and the HTTP server lifecycle.
package server

import (
	"context"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/pattern-space/pkg/events"
)

const (
	EngagePath      = "/engage"
	ShutdownTimeout = 30 * time.Second
)

// NewHandler mounts the engage handler and, when static is non-nil, serves it at "/".
func NewHandler(engage http.Handler, static fs.FS) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(EngagePath, engage)
	if static != nil {
		mux.Handle("/", http.FileServer(http.FS(static)))
	}
	return mux
}

type Server struct {
	router  *events.Router
	httpSrv *http.Server
}

func New(addr string, handler http.Handler, router *events.Router) (*Server, error) {
	if handler == nil {
		return nil, errors.New("handler is nil")
	}
	if router == nil {
		return nil, errors.New("event router is nil")
	}
	return &Server{
		router: router,
		httpSrv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *Server) HTTPServer() *http.Server {
	if s == nil {
		return nil
	}
	return s.httpSrv
}

// Run serves until ctx is cancelled, SIGINT/SIGTERM arrives, or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("ctx is nil")
	}
	if s == nil || s.router == nil || s.httpSrv == nil {
		return errors.New("server is not initialized")
	}

	srvCtx, srvCancel := context.WithCancel(ctx)
	defer srvCancel()
	eg, egCtx := errgroup.WithContext(srvCtx)

	eg.Go(func() error { return s.router.Run(egCtx) })

	eg.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case <-sigChan:
			log.Info().Msg("received interrupt signal, shutting down gracefully...")
		case <-egCtx.Done():
		}
		srvCancel()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
			return err
		}
		if err := s.router.Close(); err != nil {
			log.Error().Err(err).Msg("router close error")
		} else {
			log.Info().Msg("router closed")
		}
		log.Info().Msg("server shutdown complete")
		return nil
	})

	eg.Go(func() error {
		log.Info().Str("addr", s.httpSrv.Addr).Msg("starting pattern-space server")
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server listen error")
			return err
		}
		return nil
	})

	return eg.Wait()
}

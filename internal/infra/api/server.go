package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"autoapply-agent/internal/domain/ports/usecase"
)

// Server exposes the admin agent controls and the per-user dashboard.
type Server struct {
	agents  usecase.AgentController
	apps    usecase.ApplicationQuery
	auth    *AuthManager
	apiKey  string
	timeout time.Duration
	log     *zerolog.Logger

	// base outlives requests; agent starts run on it.
	base    context.Context
	starts  sync.WaitGroup
	mu      sync.Mutex
	httpSrv *http.Server
}

func NewServer(
	base context.Context,
	agents usecase.AgentController,
	apps usecase.ApplicationQuery,
	auth *AuthManager,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "api").Logger()
	return &Server{
		agents:  agents,
		apps:    apps,
		auth:    auth,
		apiKey:  apiKey,
		timeout: 15 * time.Second,
		log:     &l,
		base:    base,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(TraceID())
	r.Use(RequestLog(s.log))
	r.Use(Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Timeout(s.timeout))

		r.Group(func(r chi.Router) {
			r.Use(apiKeyAuth(s.apiKey))
			r.Post("/agents/{userID}", s.startAgent)
			r.Delete("/agents/{userID}", s.stopAgent)
			r.Get("/agents/{userID}", s.agentStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.auth.userAuth)
			r.Get("/me/applications", s.listApplications)
			r.Get("/me/applications/{id}/logs", s.listApplicationLogs)
		})
	})
	return r
}

// ListenAndServe blocks until the server stops. A graceful Shutdown returns nil.
func (s *Server) ListenAndServe(port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()
	s.log.Info().Int("port", port).Msg("http server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for pending agent starts.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	done := make(chan struct{})
	go func() {
		s.starts.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

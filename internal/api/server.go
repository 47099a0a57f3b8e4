// Package api is the HTTP transport over the engine. It authenticates
// nothing itself: the upstream gateway establishes identity and forwards it
// in the X-User-ID header. The only job here is translating engine outcomes
// to statuses and JSON.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/likebank/likebank/internal/config"
	"github.com/likebank/likebank/internal/engine"
)

type Server struct {
	engine *engine.Engine
	cfg    *config.Config
	log    zerolog.Logger
	router chi.Router
}

func NewServer(eng *engine.Engine, cfg *config.Config, log zerolog.Logger) *Server {
	s := &Server{engine: eng, cfg: cfg, log: log}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(recoverer(log))
	r.Use(requestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.principal)
		r.Use(s.rateLimit())
		r.Post("/orders", s.handlePlaceOrder)
		r.Get("/orders", s.handleListOrders)
		r.Post("/orders/{orderID}/cancel", s.handleCancelOrder)
		r.Post("/tasks/take", s.handleTakeTask)
		r.Post("/tasks/{taskID}/complete", s.handleCompleteTask)
		r.Get("/balance", s.handleBalance)
	})

	s.router = r
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	httpServer := http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", port).Msg("api server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// Handler exposes the router; used by tests.
func (s *Server) Handler() http.Handler { return s.router }

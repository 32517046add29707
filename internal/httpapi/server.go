// Package httpapi is the REST+SSE surface of spec.md §6, exposing the
// scheduler's run(trigger) and its passthrough mutations over HTTP. It
// generalizes the teacher's internal/ui.Server (chi router + middleware
// stack, errgroup-driven listen/shutdown) from the dev UI's templ/datastar
// page server to a small JSON API plus one hand-rolled SSE stream.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/leapsql/internal/events"
	"github.com/leapstack-labs/leapsql/internal/scheduler"
	"golang.org/x/sync/errgroup"
)

// Server is the notebook HTTP+SSE server.
type Server struct {
	addr   string
	sched  *scheduler.Scheduler
	bus    *events.Bus
	logger *slog.Logger
}

// Config holds the Server's dependencies.
type Config struct {
	Addr      string
	Scheduler *scheduler.Scheduler
	Bus       *events.Bus
	Logger    *slog.Logger
}

// New returns a Server ready to Serve.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{addr: cfg.Addr, sched: cfg.Scheduler, bus: cfg.Bus, logger: logger}
}

func (s *Server) routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	h := &handlers{sched: s.sched, bus: s.bus, logger: s.logger}

	r.Get("/notebook", h.getNotebook)
	r.Patch("/notebook/settings", h.patchSettings)
	r.Post("/notebook/cells", h.createCell)
	r.Patch("/notebook/cells/{id}", h.patchCell)
	r.Delete("/notebook/cells/{id}", h.deleteCell)
	r.Post("/notebook/run", h.runNotebook)
	r.Post("/notebook/test-connection", h.testConnection)
	r.Get("/notebook/events", h.events)

	return r
}

// Serve starts the server and blocks until ctx is cancelled, mirroring the
// teacher's Server.Serve (internal/ui/server.go): one errgroup goroutine
// for ListenAndServe, one for graceful shutdown.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting notebook server", "addr", s.addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Debug("shutting down notebook server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

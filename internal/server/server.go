// Package server exposes a Guard over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"goflare.io/urlguard/internal/config"
	"goflare.io/urlguard/internal/models"
)

const defaultShutdownTimeout = 15 * time.Second

// Guard is the service behind the HTTP API. *urlguard.Guard implements it.
type Guard interface {
	Check(ctx context.Context, rawURL string) (models.Verdict, error)
	Stats(ctx context.Context) (models.Report, error)
	Purge(ctx context.Context) (int, error)
}

// Server serves the URL check API.
type Server struct {
	guard    Guard
	gatherer prometheus.Gatherer
	cfg      config.ServerConfig
	logger   *zap.Logger
}

// New creates a Server. gatherer backs /metrics and may be nil.
func New(guard Guard, gatherer prometheus.Gatherer, cfg config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{guard: guard, gatherer: gatherer, cfg: cfg, logger: logger}
}

// Handler returns the routed handler with middleware and CORS applied. The
// request ID wraps everything so unmatched routes and preflights carry one too.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(recovery(s.logger), accessLog(s.logger), limitBody)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/check_url", s.handleCheckURL).Methods(http.MethodPost)
	api.HandleFunc("/cache_stats", s.handleCacheStats).Methods(http.MethodGet)
	api.HandleFunc("/cache/purge", s.handlePurge).Methods(http.MethodPost)

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	})
	return requestID(c.Handler(router))
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/teemow/gmail-sender/internal/google"
	"github.com/teemow/gmail-sender/internal/instrumentation"
	"github.com/teemow/gmail-sender/internal/logging"
)

const (
	// DefaultAuthReadHeaderTimeout bounds reading request headers on the
	// authorization listener.
	DefaultAuthReadHeaderTimeout = 10 * time.Second

	// DefaultAuthWriteTimeout covers the token exchange done inside the
	// callback handler.
	DefaultAuthWriteTimeout = 60 * time.Second

	// DefaultAuthIdleTimeout is the keep-alive timeout for browser connections.
	DefaultAuthIdleTimeout = 120 * time.Second

	pathOther = "other"
)

// AuthServerConfig holds configuration for the authorization listener.
type AuthServerConfig struct {
	// Addr defaults to google.AuthAddr (localhost:3500).
	Addr string

	// Authorizer is required.
	Authorizer *google.Authorizer

	// Health adds /healthz and /readyz when set.
	Health *HealthChecker

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// AuthServer is the local HTTP listener that drives the one-time consent:
// GET /auth redirects to Google, GET /oauth2callback completes the exchange.
type AuthServer struct {
	addr       string
	handler    http.Handler
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
}

// NewAuthServer creates the authorization listener. It does not bind.
func NewAuthServer(config AuthServerConfig) (*AuthServer, error) {
	if config.Authorizer == nil {
		return nil, fmt.Errorf("authorizer is required for auth server")
	}
	if config.Addr == "" {
		config.Addr = google.AuthAddr
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	logger := logging.WithComponent(config.Logger, "auth_server")

	mux := http.NewServeMux()
	config.Authorizer.RegisterHandlers(mux)
	if config.Health != nil {
		config.Health.RegisterHealthEndpoints(mux)
	}

	s := &AuthServer{
		addr:    config.Addr,
		handler: instrumentHTTP(mux, config.Metrics, logger),
		logger:  logger,
	}
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: DefaultAuthReadHeaderTimeout,
		WriteTimeout:      DefaultAuthWriteTimeout,
		IdleTimeout:       DefaultAuthIdleTimeout,
		ErrorLog:          logging.StdLogger(logger),
	}
	return s, nil
}

// Handler returns the routed and instrumented handler.
func (s *AuthServer) Handler() http.Handler {
	return s.handler
}

// Listen binds the listener address. Calling it before Serve lets startup
// report a port that is already in use.
func (s *AuthServer) Listen() error {
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	return nil
}

// Serve accepts connections until Shutdown. It binds first if Listen was
// not called. The returned error is nil after a graceful shutdown.
func (s *AuthServer) Serve() error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.logger.Info("Authorization listener started", slog.String("addr", s.Addr()))
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the bound address once listening, otherwise the configured
// address.
func (s *AuthServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown gracefully stops the listener.
func (s *AuthServer) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	s.logger.Info("Shutting down authorization listener")
	return s.httpServer.Shutdown(ctx)
}

// statusRecorder captures the status code written by downstream handlers.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// instrumentHTTP records request metrics and a debug log line per request.
func instrumentHTTP(next http.Handler, metrics *instrumentation.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := metricPath(r.URL.Path)
		metrics.RecordHTTPRequest(r.Context(), r.Method, path, rec.statusCode, duration)
		logger.Debug("HTTP request",
			slog.String("method", r.Method),
			slog.String("path", path),
			slog.Int("status", rec.statusCode),
			slog.Duration(logging.KeyDuration, duration))
	})
}

// metricPath folds unknown paths into one label value.
func metricPath(path string) string {
	switch path {
	case google.AuthPath, google.CallbackPath, "/healthz", "/readyz", "/healthz/detailed":
		return path
	default:
		return pathOther
	}
}

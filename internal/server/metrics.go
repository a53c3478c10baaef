package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/teemow/gmail-sender/internal/instrumentation"
	"github.com/teemow/gmail-sender/internal/logging"
)

const (
	// DefaultMetricsAddr is the default address for the metrics server.
	DefaultMetricsAddr = ":9090"

	DefaultMetricsReadTimeout  = 10 * time.Second
	DefaultMetricsWriteTimeout = 10 * time.Second
	DefaultMetricsIdleTimeout  = 60 * time.Second

	// DefaultShutdownTimeout bounds graceful shutdown of every listener.
	DefaultShutdownTimeout = 30 * time.Second
)

// MetricsServerConfig holds configuration for the metrics server.
type MetricsServerConfig struct {
	// Addr defaults to DefaultMetricsAddr.
	Addr string

	// Enabled mirrors --metrics-enabled; a disabled config is rejected.
	Enabled bool

	// InstrumentationProvider must use the prometheus exporter.
	InstrumentationProvider *instrumentation.Provider

	Logger *slog.Logger
}

// MetricsServer serves the provider's Prometheus registry on /metrics,
// away from the authorization listener.
type MetricsServer struct {
	addr       string
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
}

// NewMetricsServer creates the metrics server. It does not bind.
func NewMetricsServer(config MetricsServerConfig) (*MetricsServer, error) {
	if !config.Enabled {
		return nil, fmt.Errorf("metrics server is disabled")
	}
	provider := config.InstrumentationProvider
	switch {
	case provider == nil:
		return nil, fmt.Errorf("instrumentation provider is required for metrics server")
	case !provider.Enabled():
		return nil, fmt.Errorf("instrumentation provider is not enabled")
	case !provider.PrometheusEnabled():
		return nil, fmt.Errorf("metrics exporter is not prometheus")
	}

	if config.Addr == "" {
		config.Addr = DefaultMetricsAddr
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	logger := logging.WithComponent(config.Logger, "metrics_server")

	mux := http.NewServeMux()
	mux.Handle("/metrics", provider.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &MetricsServer{
		addr: config.Addr,
		httpServer: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: DefaultMetricsReadTimeout,
			WriteTimeout:      DefaultMetricsWriteTimeout,
			IdleTimeout:       DefaultMetricsIdleTimeout,
			ErrorLog:          logging.StdLogger(logger),
		},
		logger: logger,
	}, nil
}

// Handler returns the /metrics and /healthz mux.
func (s *MetricsServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// Listen binds the metrics address.
func (s *MetricsServer) Listen() error {
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

// Serve blocks until Shutdown; call it in a goroutine. It returns nil after
// a graceful shutdown.
func (s *MetricsServer) Serve() error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.logger.Info("Metrics server started", slog.String("addr", s.Addr()))
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the metrics server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	s.logger.Info("Shutting down metrics server")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the bound address once listening, otherwise the configured
// address.
func (s *MetricsServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

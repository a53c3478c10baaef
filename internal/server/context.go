package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teemow/gmail-sender/internal/gmail"
	"github.com/teemow/gmail-sender/internal/google"
	"github.com/teemow/gmail-sender/internal/instrumentation"
)

// ServerContext holds the context for the MCP server
type ServerContext struct {
	ctx         context.Context
	cancel      context.CancelFunc
	authorizer  *google.Authorizer
	mailer      *gmail.Mailer
	logger      *slog.Logger
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	authURL     string
	mu          sync.RWMutex
	shutdown    bool
}

// NewServerContext creates a new server context. The authorizer and the
// mailer must share the same OAuth client so that a completed authorization
// is visible to the next mail operation.
func NewServerContext(ctx context.Context, authorizer *google.Authorizer, mailer *gmail.Mailer, logger *slog.Logger) (*ServerContext, error) {
	if authorizer == nil {
		return nil, fmt.Errorf("authorizer is required")
	}
	if mailer == nil {
		return nil, fmt.Errorf("mailer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)

	return &ServerContext{
		ctx:        shutdownCtx,
		cancel:     cancel,
		authorizer: authorizer,
		mailer:     mailer,
		logger:     logger,
		authURL:    google.AuthURL,
	}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Authorizer returns the authorization flow driving the callback listener.
func (sc *ServerContext) Authorizer() *google.Authorizer {
	return sc.authorizer
}

// Mailer returns the mail operations used by the tools.
func (sc *ServerContext) Mailer() *gmail.Mailer {
	return sc.mailer
}

// Logger returns the process logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// SetAuthURL sets the address users are sent to when no credential is
// stored. It must match the listener address.
func (sc *ServerContext) SetAuthURL(url string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.authURL = url
}

// AuthURL returns the listener's /auth address.
func (sc *ServerContext) AuthURL() string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.authURL
}

// SetMetrics sets the metrics recorder used by tool instrumentation.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the metrics recorder, or nil when instrumentation is off.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAuditLogger sets the audit logger used by tool instrumentation.
func (sc *ServerContext) SetAuditLogger(al *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = al
}

// AuditLogger returns the audit logger, or nil when auditing is off.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}

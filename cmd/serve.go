package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/gmail-sender/internal/instrumentation"
	"github.com/teemow/gmail-sender/internal/logging"
	"github.com/teemow/gmail-sender/internal/server"
	"github.com/teemow/gmail-sender/internal/tools/mail_tools"
)

func newServeCmd() *cobra.Command {
	var (
		opts          options
		metricsConfig MetricsConfig
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the gmail-sender MCP server on stdio.

The server exposes two tools, sendEmail and createDraft. It also starts a
local authorization listener (localhost:3500 by default). Until a credential
is stored, both tools answer with the address of that listener's /auth page.

Logs go to stderr; stdout carries only the MCP protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.loadEnv(cmd); err != nil {
				return err
			}
			if err := envBool(cmd, "metrics-enabled", envMetricsEnabled, &metricsConfig.Enabled); err != nil {
				return err
			}
			envString(cmd, "metrics-addr", envMetricsAddr, &metricsConfig.Addr)

			if err := opts.validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), &opts, metricsConfig)
		},
	}

	addOptionFlags(cmd, &opts)
	cmd.Flags().BoolVar(&metricsConfig.Enabled, "metrics-enabled", false, "Serve Prometheus metrics on a separate port. Can also use "+envMetricsEnabled+" env var.")
	cmd.Flags().StringVar(&metricsConfig.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use "+envMetricsAddr+" env var.")

	return cmd
}

func runServe(ctx context.Context, opts *options, metricsConfig MetricsConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	logger := a.logger

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := a.provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error during instrumentation shutdown", logging.Err(err))
		}
	}()

	serverContext, err := server.NewServerContext(ctx, a.authorizer, a.mailer, logger)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	serverContext.SetAuthURL(a.authURL)
	if a.provider.Enabled() {
		serverContext.SetMetrics(a.provider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(logger, a.instrConfig.AuditLogging))
	}

	health := server.NewHealthChecker(serverContext)
	authServer, err := server.NewAuthServer(server.AuthServerConfig{
		Addr:       opts.AuthAddr,
		Authorizer: a.authorizer,
		Health:     health,
		Metrics:    serverContext.Metrics(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	listening := startAuthListener(authServer, logger)

	var metricsServer *server.MetricsServer
	if metricsConfig.Enabled {
		metricsServer, err = startMetricsServer(metricsConfig, a.provider, logger)
		if err != nil {
			logger.Warn("Metrics server not started", logging.Err(err))
		}
	}

	defer func() {
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := authServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error during authorization listener shutdown", logging.Err(err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Error during metrics server shutdown", logging.Err(err))
			}
		}
		_ = serverContext.Shutdown()
	}()

	mcpSrv := mcpserver.NewMCPServer("gmail-sender", version,
		mcpserver.WithToolCapabilities(true),
	)
	if err := mail_tools.RegisterMailTools(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register mail tools: %w", err)
	}

	if listening {
		logger.Info("Authorization listener ready", "addr", authServer.Addr())
	}
	if !a.client.HasToken() {
		logger.Info("To authenticate, visit: " + a.authURL)
	}
	logger.Info("Gmail Sender MCP server running on stdio",
		"version", version, "token_file", a.store.Path())

	return runStdioServer(ctx, mcpSrv, logger)
}

// startAuthListener binds and serves the authorization listener. A bind
// failure is logged and the tools keep serving: another instance on the same
// address answers /auth and both read the same token file.
func startAuthListener(authServer *server.AuthServer, logger *slog.Logger) bool {
	if err := authServer.Listen(); err != nil {
		logger.Warn("Authorization listener not started, /auth must be served by another instance",
			"addr", authServer.Addr(), logging.Err(err))
		return false
	}
	go func() {
		if err := authServer.Serve(); err != nil {
			logger.Error("Authorization listener stopped", logging.Err(err))
		}
	}()
	return true
}

// runStdioServer serves MCP on stdin/stdout until the client closes stdin or
// ctx is cancelled.
func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, logger *slog.Logger) error {
	stdio := mcpserver.NewStdioServer(mcpSrv)
	stdio.SetErrorLogger(logging.StdLogger(logger))

	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("server stopped with error: %w", err)
}

func startMetricsServer(config MetricsConfig, provider *instrumentation.Provider, logger *slog.Logger) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    config.Addr,
		Enabled:                 config.Enabled,
		InstrumentationProvider: provider,
		Logger:                  logger,
	})
	if err != nil {
		return nil, err
	}
	if err := metricsServer.Listen(); err != nil {
		return nil, err
	}

	go func() {
		if err := metricsServer.Serve(); err != nil {
			logger.Error("Metrics server error", logging.Err(err))
		}
	}()
	return metricsServer, nil
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/gmail-sender/internal/gmail"
	"github.com/teemow/gmail-sender/internal/google"
	"github.com/teemow/gmail-sender/internal/instrumentation"
	"github.com/teemow/gmail-sender/internal/logging"
)

// Environment variables backing the flags. A flag set on the command line
// always wins.
const (
	envClientID       = "GMAIL_CLIENT_ID"
	envClientSecret   = "GMAIL_CLIENT_SECRET"
	envTokenFile      = "GMAIL_TOKEN_FILE"
	envEncryptionKey  = "GMAIL_TOKEN_ENCRYPTION_KEY"
	envAuthAddr       = "GMAIL_AUTH_ADDR"
	envRequestTimeout = "GMAIL_REQUEST_TIMEOUT"
	envDebug          = "GMAIL_DEBUG"
	envMetricsEnabled = "METRICS_ENABLED"
	envMetricsAddr    = "METRICS_ADDR"
)

// options holds the settings shared by serve and auth.
type options struct {
	ClientID       string
	ClientSecret   string
	TokenFile      string
	EncryptionKey  string
	AuthAddr       string
	RequestTimeout time.Duration
	Debug          bool
}

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func addOptionFlags(cmd *cobra.Command, o *options) {
	cmd.Flags().StringVar(&o.ClientID, "client-id", "", "Google OAuth client ID. Can also use "+envClientID+" env var.")
	cmd.Flags().StringVar(&o.ClientSecret, "client-secret", "", "Google OAuth client secret. Can also use "+envClientSecret+" env var.")
	cmd.Flags().StringVar(&o.TokenFile, "token-file", "", "Credential file (default: $XDG_CONFIG_HOME/gmail-sender-mcp-server/token.json). Can also use "+envTokenFile+" env var.")
	cmd.Flags().StringVar(&o.EncryptionKey, "token-encryption-key", "", "AES-256 key for the credential file (32 bytes, base64 encoded). Can also use "+envEncryptionKey+" env var. Generate with: openssl rand -base64 32")
	cmd.Flags().StringVar(&o.AuthAddr, "auth-addr", google.AuthAddr, "Address of the local authorization listener. Can also use "+envAuthAddr+" env var.")
	cmd.Flags().DurationVar(&o.RequestTimeout, "request-timeout", gmail.DefaultRequestTimeout, "Timeout for a single Gmail API call. Can also use "+envRequestTimeout+" env var.")
	cmd.Flags().BoolVar(&o.Debug, "debug", false, "Enable debug logging. Can also use "+envDebug+" env var.")
}

// loadEnv fills every option whose flag was not set explicitly from its
// environment variable.
func (o *options) loadEnv(cmd *cobra.Command) error {
	envString(cmd, "client-id", envClientID, &o.ClientID)
	envString(cmd, "client-secret", envClientSecret, &o.ClientSecret)
	envString(cmd, "token-file", envTokenFile, &o.TokenFile)
	envString(cmd, "token-encryption-key", envEncryptionKey, &o.EncryptionKey)
	envString(cmd, "auth-addr", envAuthAddr, &o.AuthAddr)

	if !cmd.Flags().Changed("request-timeout") {
		if v := os.Getenv(envRequestTimeout); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", envRequestTimeout, v, err)
			}
			o.RequestTimeout = d
		}
	}

	if err := envBool(cmd, "debug", envDebug, &o.Debug); err != nil {
		return err
	}
	return nil
}

// validate checks the options needed to talk to Google.
func (o *options) validate() error {
	if o.ClientID == "" {
		return fmt.Errorf("client ID is required (--client-id or %s)", envClientID)
	}
	if o.ClientSecret == "" {
		return fmt.Errorf("client secret is required (--client-secret or %s)", envClientSecret)
	}
	if o.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", o.RequestTimeout)
	}
	if _, _, err := net.SplitHostPort(o.AuthAddr); err != nil {
		return fmt.Errorf("invalid auth address %q: %w", o.AuthAddr, err)
	}
	return nil
}

// authURLs returns the /auth page and the OAuth redirect URL for the
// listener address. An empty host means localhost, which is what Google
// accepts for desktop clients.
func (o *options) authURLs() (authURL, redirectURL string) {
	host, port, err := net.SplitHostPort(o.AuthAddr)
	if err != nil || host == "" {
		host = "localhost"
	}
	base := "http://" + net.JoinHostPort(host, port)
	return base + google.AuthPath, base + google.CallbackPath
}

func envString(cmd *cobra.Command, flag, env string, dst *string) {
	if cmd.Flags().Changed(flag) {
		return
	}
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func envBool(cmd *cobra.Command, flag, env string, dst *bool) error {
	if cmd.Flags().Changed(flag) {
		return nil
	}
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q (expected true/false): %w", env, v, err)
	}
	*dst = b
	return nil
}

// app is everything built from options: the credential store, the OAuth
// client shared by the listener and the tools, and instrumentation.
type app struct {
	logger      *slog.Logger
	store       *google.FileStore
	client      *google.OAuthClient
	authorizer  *google.Authorizer
	mailer      *gmail.Mailer
	provider    *instrumentation.Provider
	instrConfig instrumentation.Config
	authURL     string
}

// newApp builds the runtime. The credential directory is created here so a
// permission problem stops startup.
func newApp(ctx context.Context, o *options) (*app, error) {
	logger := logging.NewLogger(os.Stderr, o.Debug)
	slog.SetDefault(logger)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	if err := instrConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid instrumentation config: %w", err)
	}
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}

	a, err := buildApp(o, logger, provider)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}
	a.instrConfig = instrConfig
	return a, nil
}

func buildApp(o *options, logger *slog.Logger, provider *instrumentation.Provider) (*app, error) {
	tokenFile := o.TokenFile
	if tokenFile == "" {
		path, err := google.DefaultTokenPath()
		if err != nil {
			return nil, err
		}
		tokenFile = path
	}

	key, err := google.EncryptionKeyFromBase64(o.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid token encryption key: %w", err)
	}
	enc, err := google.NewTokenEncryption(key)
	if err != nil {
		return nil, err
	}

	store := google.NewFileStore(tokenFile, enc, logging.WithComponent(logger, "token_store"))
	if err := store.EnsureDir(); err != nil {
		return nil, err
	}

	authURL, redirectURL := o.authURLs()
	client, err := google.NewOAuthClient(google.Config{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		RedirectURL:  redirectURL,
		Store:        store,
		Logger:       logging.WithComponent(logger, "oauth"),
		Metrics:      provider.Metrics(),
	})
	if err != nil {
		return nil, err
	}

	mailer, err := gmail.NewMailer(gmail.MailerConfig{
		Credentials: client,
		Timeout:     o.RequestTimeout,
		Logger:      logger,
		Metrics:     provider.Metrics(),
	})
	if err != nil {
		return nil, err
	}

	return &app{
		logger:     logger,
		store:      store,
		client:     client,
		authorizer: google.NewAuthorizer(client, logging.WithComponent(logger, "authorizer")),
		mailer:     mailer,
		provider:   provider,
		authURL:    authURL,
	}, nil
}

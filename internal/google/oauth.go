package google

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/gmail-sender/internal/instrumentation"
	"github.com/teemow/gmail-sender/internal/logging"
)

const (
	// AuthPort is the fixed loopback port of the authorization listener.
	AuthPort = 3500

	// AuthAddr is the address the authorization listener binds to.
	AuthAddr = "localhost:3500"

	// AuthURL is the page users open to start authorization.
	AuthURL = "http://localhost:3500/auth"

	// RedirectURL is registered with Google as the OAuth redirect URI.
	RedirectURL = "http://localhost:3500/oauth2callback"
)

// Metrics is the subset of instrumentation.Metrics used by the OAuth client.
type Metrics interface {
	RecordOAuthAuth(ctx context.Context, result string)
	RecordOAuthTokenRefresh(ctx context.Context, result string)
}

// Config configures an OAuthClient.
type Config struct {
	ClientID     string
	ClientSecret string

	// RedirectURL defaults to RedirectURL.
	RedirectURL string

	// Scopes default to DefaultOAuthScopes.
	Scopes []string

	// Endpoint defaults to Google's OAuth endpoint.
	Endpoint oauth2.Endpoint

	// Store persists the credential record. Required.
	Store TokenStore

	// HTTPClient, if set, is used for code exchange and token refresh.
	HTTPClient *http.Client

	Logger  *slog.Logger
	Metrics Metrics
}

// OAuthClient holds the application identity and the credential store. It is
// built once at startup and shared by the authorization flow and the mail
// operations.
type OAuthClient struct {
	config     *oauth2.Config
	store      TokenStore
	httpClient *http.Client
	logger     *slog.Logger
	metrics    Metrics
}

// NewOAuthClient validates cfg and creates an OAuthClient.
func NewOAuthClient(cfg Config) (*OAuthClient, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client secret is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("token store is required")
	}

	redirectURL := cfg.RedirectURL
	if redirectURL == "" {
		redirectURL = RedirectURL
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultOAuthScopes
	}
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" && endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &OAuthClient{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
		},
		store:      cfg.Store,
		httpClient: cfg.HTTPClient,
		logger:     logger,
		metrics:    cfg.Metrics,
	}, nil
}

// AuthCodeURL returns the consent URL for state. Offline access and a forced
// consent prompt make Google issue a refresh token every time; verifier binds
// the later exchange with PKCE (S256).
func (c *OAuthClient) AuthCodeURL(state, verifier string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
	}
	if verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return c.config.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for a token and persists it. Any
// failure is an *ExchangeError and leaves the stored record untouched.
func (c *OAuthClient) Exchange(ctx context.Context, code, verifier string) (*TokenRecord, error) {
	if code == "" {
		c.recordAuth(ctx, instrumentation.OAuthResultFailure)
		return nil, &ExchangeError{Reason: "missing authorization code"}
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceOAuth, instrumentation.OperationExchange)
	defer span.End()

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	tok, err := c.config.Exchange(c.httpContext(ctx), code, opts...)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		c.recordAuth(ctx, instrumentation.OAuthResultFailure)
		return nil, newExchangeError(err)
	}

	rec := RecordFromToken(tok)
	if rec.RefreshToken == "" {
		// Google omits the refresh token on repeat consent for some
		// clients; keep the one we already have.
		if prev, ok := c.store.Load(); ok {
			rec.RefreshToken = prev.RefreshToken
		}
	}

	if err := c.store.Save(rec); err != nil {
		instrumentation.SetSpanError(span, err)
		c.recordAuth(ctx, instrumentation.OAuthResultFailure)
		return nil, &ExchangeError{Reason: fmt.Sprintf("failed to save credential: %v", err), Err: err}
	}

	instrumentation.SetSpanSuccess(span)
	c.recordAuth(ctx, instrumentation.OAuthResultSuccess)
	c.logger.Info("Authorization completed",
		"access_token", logging.SanitizeToken(rec.AccessToken),
		"has_refresh_token", rec.RefreshToken != "")
	return rec, nil
}

// HasToken reports whether a usable credential is stored.
func (c *OAuthClient) HasToken() bool {
	_, ok := c.store.Load()
	return ok
}

// TokenSource reloads the stored credential and returns a source that
// refreshes it when expired and writes refreshed tokens back to the store.
// It returns ErrNotAuthenticated without any network call when no usable
// credential exists.
func (c *OAuthClient) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	rec, ok := c.store.Load()
	if !ok {
		return nil, ErrNotAuthenticated
	}

	tok := rec.Token()
	if tok.RefreshToken == "" && isTokenExpired(tok, 0) {
		c.recordRefresh(ctx, instrumentation.OAuthResultExpired)
		return nil, fmt.Errorf("stored access token expired and no refresh token is available: %w", ErrNotAuthenticated)
	}

	return &persistingTokenSource{
		base:    c.config.TokenSource(c.httpContext(ctx), tok),
		store:   c.store,
		last:    tok.AccessToken,
		prev:    rec,
		ctx:     ctx,
		logger:  c.logger,
		metrics: c.metrics,
	}, nil
}

func (c *OAuthClient) httpContext(ctx context.Context) context.Context {
	if c.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}
	return ctx
}

func (c *OAuthClient) recordAuth(ctx context.Context, result string) {
	if c.metrics != nil {
		c.metrics.RecordOAuthAuth(ctx, result)
	}
}

func (c *OAuthClient) recordRefresh(ctx context.Context, result string) {
	if c.metrics != nil {
		c.metrics.RecordOAuthTokenRefresh(ctx, result)
	}
}

// isTokenExpired reports whether token has expired or will within threshold.
// Tokens without an expiry never expire.
func isTokenExpired(token *oauth2.Token, threshold time.Duration) bool {
	if token.Expiry.IsZero() {
		return false
	}
	return time.Now().Add(threshold).After(token.Expiry)
}

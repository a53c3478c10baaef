package google

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"

	"github.com/teemow/gmail-sender/internal/instrumentation"
)

// persistingTokenSource wraps the oauth2 refreshing source and saves every
// newly issued token so the next invocation starts from it.
type persistingTokenSource struct {
	base  oauth2.TokenSource
	store TokenStore

	ctx     context.Context
	logger  *slog.Logger
	metrics Metrics

	mu   sync.Mutex
	last string
	prev *TokenRecord
}

// Token implements oauth2.TokenSource.
func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		// The base source only errors when it had to refresh.
		s.recordRefresh(instrumentation.OAuthResultFailure)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tok.AccessToken == s.last {
		return tok, nil
	}

	rec := RecordFromToken(tok)
	if rec.RefreshToken == "" {
		rec.RefreshToken = s.prev.RefreshToken
	}
	if rec.Scope == "" {
		rec.Scope = s.prev.Scope
	}

	if err := s.store.Save(rec); err != nil {
		// The new token is still good for this call.
		s.logger.Warn("Failed to save refreshed token", "error", err)
	} else {
		s.logger.Debug("Saved refreshed token", "expiry", rec.Expiry)
	}

	s.last = tok.AccessToken
	s.prev = rec
	s.recordRefresh(instrumentation.OAuthResultSuccess)
	return tok, nil
}

func (s *persistingTokenSource) recordRefresh(result string) {
	if s.metrics != nil {
		s.metrics.RecordOAuthTokenRefresh(s.ctx, result)
	}
}

package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeTokenEndpoint stands in for Google's token endpoint.
type fakeTokenEndpoint struct {
	*httptest.Server

	mu       sync.Mutex
	requests []url.Values
	status   int
	body     map[string]any
}

func newFakeTokenEndpoint(t *testing.T) *fakeTokenEndpoint {
	t.Helper()
	f := &fakeTokenEndpoint{
		status: http.StatusOK,
		body: map[string]any{
			"access_token":  "ya29.fresh",
			"refresh_token": "1//fresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"scope":         "https://www.googleapis.com/auth/gmail.compose",
		},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.mu.Lock()
		f.requests = append(f.requests, r.PostForm)
		status, body := f.status, f.body
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeTokenEndpoint) respond(status int, body map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.body = body
}

func (f *fakeTokenEndpoint) calls() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.requests...)
}

func (f *fakeTokenEndpoint) lastCall(t *testing.T) url.Values {
	t.Helper()
	calls := f.calls()
	require.NotEmpty(t, calls, "token endpoint was not called")
	return calls[len(calls)-1]
}

type fakeMetrics struct {
	mu      sync.Mutex
	auth    []string
	refresh []string
}

func (m *fakeMetrics) RecordOAuthAuth(_ context.Context, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auth = append(m.auth, result)
}

func (m *fakeMetrics) RecordOAuthTokenRefresh(_ context.Context, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh = append(m.refresh, result)
}

func newTestClient(t *testing.T, endpoint *fakeTokenEndpoint) (*OAuthClient, *FileStore, *fakeMetrics) {
	t.Helper()
	store := NewFileStore(filepath.Join(t.TempDir(), AppDirName, TokenFileName), nil, nil)
	metrics := &fakeMetrics{}
	client, err := NewOAuthClient(Config{
		ClientID:     "client-id.apps.googleusercontent.com",
		ClientSecret: "client-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example.test/o/oauth2/auth",
			TokenURL:  endpoint.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Store:   store,
		Metrics: metrics,
	})
	require.NoError(t, err)
	return client, store, metrics
}

func TestNewOAuthClient_Validation(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "token.json"), nil, nil)

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing client id", cfg: Config{ClientSecret: "s", Store: store}},
		{name: "missing client secret", cfg: Config{ClientID: "id", Store: store}},
		{name: "missing store", cfg: Config{ClientID: "id", ClientSecret: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOAuthClient(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestOAuthClient_AuthCodeURL(t *testing.T) {
	client, _, _ := newTestClient(t, newFakeTokenEndpoint(t))

	raw := client.AuthCodeURL("state-123", oauth2.GenerateVerifier())
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "accounts.example.test", u.Host)
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "client-id.apps.googleusercontent.com", q.Get("client_id"))
	assert.Equal(t, RedirectURL, q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Equal(t, "https://www.googleapis.com/auth/gmail.compose", q.Get("scope"))
}

func TestOAuthClient_Exchange(t *testing.T) {
	endpoint := newFakeTokenEndpoint(t)
	client, store, metrics := newTestClient(t, endpoint)

	assert.False(t, client.HasToken())

	rec, err := client.Exchange(context.Background(), "auth-code", "verifier-abc")
	require.NoError(t, err)
	assert.Equal(t, "ya29.fresh", rec.AccessToken)
	assert.Equal(t, "1//fresh", rec.RefreshToken)
	assert.Equal(t, "https://www.googleapis.com/auth/gmail.compose", rec.Scope)
	assert.WithinDuration(t, time.Now().Add(time.Hour), rec.Expiry, time.Minute)

	form := endpoint.lastCall(t)
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "auth-code", form.Get("code"))
	assert.Equal(t, "verifier-abc", form.Get("code_verifier"))
	assert.Equal(t, RedirectURL, form.Get("redirect_uri"))

	stored, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, "ya29.fresh", stored.AccessToken)
	assert.True(t, client.HasToken())
	assert.Equal(t, []string{"success"}, metrics.auth)
}

func TestOAuthClient_Exchange_KeepsRefreshToken(t *testing.T) {
	endpoint := newFakeTokenEndpoint(t)
	client, store, _ := newTestClient(t, endpoint)
	require.NoError(t, store.Save(testRecord()))

	endpoint.respond(http.StatusOK, map[string]any{
		"access_token": "ya29.second",
		"token_type":   "Bearer",
		"expires_in":   3600,
	})

	rec, err := client.Exchange(context.Background(), "code", "")
	require.NoError(t, err)
	assert.Equal(t, "ya29.second", rec.AccessToken)
	assert.Equal(t, "1//refresh", rec.RefreshToken)
}

func TestOAuthClient_Exchange_Failure(t *testing.T) {
	endpoint := newFakeTokenEndpoint(t)
	client, store, metrics := newTestClient(t, endpoint)
	require.NoError(t, store.Save(testRecord()))

	endpoint.respond(http.StatusBadRequest, map[string]any{
		"error":             "invalid_grant",
		"error_description": "Bad Request",
	})

	_, err := client.Exchange(context.Background(), "stale-code", "v")
	require.Error(t, err)

	var exchangeErr *ExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, "invalid_grant: Bad Request", exchangeErr.Error())

	var retrieveErr *oauth2.RetrieveError
	assert.ErrorAs(t, err, &retrieveErr)

	stored, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, testRecord(), stored, "prior record must be untouched")
	assert.Equal(t, []string{"failure"}, metrics.auth)
}

func TestOAuthClient_Exchange_MissingCode(t *testing.T) {
	endpoint := newFakeTokenEndpoint(t)
	client, _, _ := newTestClient(t, endpoint)

	_, err := client.Exchange(context.Background(), "", "v")
	var exchangeErr *ExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Empty(t, endpoint.calls())
}

func TestOAuthClient_TokenSource_NotAuthenticated(t *testing.T) {
	endpoint := newFakeTokenEndpoint(t)
	client, _, _ := newTestClient(t, endpoint)

	ts, err := client.TokenSource(context.Background())
	assert.Nil(t, ts)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Empty(t, endpoint.calls(), "no network call without a credential")
}

func TestOAuthClient_TokenSource_Valid(t *testing.T) {
	endpoint := newFakeTokenEndpoint(t)
	client, store, metrics := newTestClient(t, endpoint)
	require.NoError(t, store.Save(testRecord()))

	ts, err := client.TokenSource(context.Background())
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "ya29.access", tok.AccessToken)
	assert.Empty(t, endpoint.calls(), "valid token needs no refresh")
	assert.Empty(t, metrics.refresh)
}

func TestOAuthClient_TokenSource_RefreshPersists(t *testing.T) {
	endpoint := newFakeTokenEndpoint(t)
	client, store, metrics := newTestClient(t, endpoint)

	expired := testRecord()
	expired.Expiry = time.Now().Add(-time.Hour)
	require.NoError(t, store.Save(expired))

	endpoint.respond(http.StatusOK, map[string]any{
		"access_token": "ya29.refreshed",
		"token_type":   "Bearer",
		"expires_in":   3600,
	})

	ts, err := client.TokenSource(context.Background())
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "ya29.refreshed", tok.AccessToken)

	form := endpoint.lastCall(t)
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "1//refresh", form.Get("refresh_token"))

	stored, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, "ya29.refreshed", stored.AccessToken)
	assert.Equal(t, "1//refresh", stored.RefreshToken, "refresh token carried over")
	assert.Equal(t, expired.Scope, stored.Scope)
	assert.True(t, stored.Expiry.After(time.Now()))

	// second call reuses the cached token
	_, err = ts.Token()
	require.NoError(t, err)
	assert.Len(t, endpoint.calls(), 1)
	assert.Equal(t, []string{"success"}, metrics.refresh)
}

func TestOAuthClient_TokenSource_RefreshRejected(t *testing.T) {
	endpoint := newFakeTokenEndpoint(t)
	client, store, metrics := newTestClient(t, endpoint)

	expired := testRecord()
	expired.Expiry = time.Now().Add(-time.Hour)
	require.NoError(t, store.Save(expired))

	endpoint.respond(http.StatusBadRequest, map[string]any{
		"error":             "invalid_grant",
		"error_description": "Token has been expired or revoked.",
	})

	ts, err := client.TokenSource(context.Background())
	require.NoError(t, err)

	_, err = ts.Token()
	var retrieveErr *oauth2.RetrieveError
	require.ErrorAs(t, err, &retrieveErr)
	assert.Equal(t, "Token has been expired or revoked.", retrieveErr.ErrorDescription)

	stored, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, "ya29.access", stored.AccessToken)
	assert.Equal(t, []string{"failure"}, metrics.refresh)
}

func TestOAuthClient_TokenSource_ExpiredWithoutRefreshToken(t *testing.T) {
	endpoint := newFakeTokenEndpoint(t)
	client, store, metrics := newTestClient(t, endpoint)

	rec := testRecord()
	rec.RefreshToken = ""
	rec.Expiry = time.Now().Add(-time.Minute)
	require.NoError(t, store.Save(rec))

	_, err := client.TokenSource(context.Background())
	assert.True(t, errors.Is(err, ErrNotAuthenticated))
	assert.Empty(t, endpoint.calls())
	assert.Equal(t, []string{"expired"}, metrics.refresh)
}

func TestIsTokenExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiry    time.Time
		threshold time.Duration
		want      bool
	}{
		{name: "no expiry", expiry: time.Time{}, want: false},
		{name: "future", expiry: time.Now().Add(time.Hour), want: false},
		{name: "past", expiry: time.Now().Add(-time.Second), want: true},
		{name: "within threshold", expiry: time.Now().Add(time.Minute), threshold: 5 * time.Minute, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isTokenExpired(&oauth2.Token{Expiry: tt.expiry}, tt.threshold)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExchangeError_Reason(t *testing.T) {
	err := newExchangeError(errors.New("dial tcp: connection refused"))
	assert.Equal(t, "dial tcp: connection refused", err.Error())
	assert.True(t, strings.Contains((&ExchangeError{}).Error(), "exchange failed"))
}

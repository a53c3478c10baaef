package google

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const (
	// AuthPath starts the authorization flow.
	AuthPath = "/auth"

	// CallbackPath receives Google's redirect.
	CallbackPath = "/oauth2callback"

	// SuccessMessage is shown after a successful authorization.
	SuccessMessage = "Authentication successful! You can close this window."

	// pendingStateTTL bounds how long a consent page may stay open.
	pendingStateTTL = 10 * time.Minute

	// maxPendingFlows caps concurrently open consent pages; the oldest is
	// dropped first.
	maxPendingFlows = 8
)

// AuthState is the authorization status as seen by the running process.
type AuthState int

const (
	StateUnauthenticated AuthState = iota
	StateAwaitingRedirect
	StateAuthenticated
)

func (s AuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAwaitingRedirect:
		return "awaiting_redirect"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// CallbackError is an authorization failure reported on the redirect page.
type CallbackError struct {
	// Status is the HTTP status for the redirect page.
	Status int
	Err    error
}

func (e *CallbackError) Error() string {
	return e.Err.Error()
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

type pendingAuth struct {
	verifier string
	created  time.Time
}

// Authorizer drives the consent flow: it hands out consent URLs, validates
// the redirect, and exchanges the code through the OAuthClient. State lives
// only in this process.
type Authorizer struct {
	client *OAuthClient
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending map[string]pendingAuth

	done     chan struct{}
	doneOnce sync.Once
}

// NewAuthorizer creates an Authorizer.
func NewAuthorizer(client *OAuthClient, logger *slog.Logger) *Authorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{
		client:  client,
		logger:  logger,
		now:     time.Now,
		pending: make(map[string]pendingAuth),
		done:    make(chan struct{}),
	}
}

// State returns the current authorization state. An open consent page means
// AwaitingRedirect; otherwise the stored credential decides, so a token file
// removed while the process runs is reported as Unauthenticated.
func (a *Authorizer) State() AuthState {
	a.mu.Lock()
	a.pruneLocked()
	awaiting := len(a.pending) > 0
	a.mu.Unlock()

	switch {
	case awaiting:
		return StateAwaitingRedirect
	case a.client.HasToken():
		return StateAuthenticated
	default:
		return StateUnauthenticated
	}
}

// Done is closed after the first successful authorization.
func (a *Authorizer) Done() <-chan struct{} {
	return a.done
}

// Begin registers a new pending flow and returns its consent URL.
func (a *Authorizer) Begin() (string, error) {
	state, err := randomState()
	if err != nil {
		return "", err
	}
	verifier := oauth2.GenerateVerifier()

	a.mu.Lock()
	a.pruneLocked()
	for len(a.pending) >= maxPendingFlows {
		a.dropOldestLocked()
	}
	a.pending[state] = pendingAuth{verifier: verifier, created: a.now()}
	a.mu.Unlock()

	return a.client.AuthCodeURL(state, verifier), nil
}

// Complete handles the redirect parameters. On success the new credential is
// stored, every other open consent page is invalidated and the state becomes
// Authenticated. On failure the stored credential is unchanged.
func (a *Authorizer) Complete(ctx context.Context, state, code, providerErr string) error {
	a.mu.Lock()
	pending, ok := a.pending[state]
	if ok {
		delete(a.pending, state)
	}
	a.mu.Unlock()

	if providerErr != "" {
		return &CallbackError{Status: http.StatusBadRequest, Err: fmt.Errorf("authorization was not granted: %s", providerErr)}
	}
	if !ok || a.now().Sub(pending.created) > pendingStateTTL {
		return &CallbackError{Status: http.StatusBadRequest, Err: errors.New("invalid or expired state parameter")}
	}
	if code == "" {
		return &CallbackError{Status: http.StatusBadRequest, Err: errors.New("missing authorization code")}
	}

	if _, err := a.client.Exchange(ctx, code, pending.verifier); err != nil {
		return &CallbackError{Status: http.StatusInternalServerError, Err: err}
	}

	a.mu.Lock()
	clear(a.pending)
	a.mu.Unlock()
	a.doneOnce.Do(func() { close(a.done) })
	return nil
}

func (a *Authorizer) pruneLocked() {
	now := a.now()
	for state, p := range a.pending {
		if now.Sub(p.created) > pendingStateTTL {
			delete(a.pending, state)
		}
	}
}

func (a *Authorizer) dropOldestLocked() {
	var (
		oldest  string
		created time.Time
	)
	for state, p := range a.pending {
		if oldest == "" || p.created.Before(created) {
			oldest, created = state, p.created
		}
	}
	delete(a.pending, oldest)
}

// RegisterHandlers mounts the /auth and /oauth2callback endpoints on mux.
func (a *Authorizer) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc(AuthPath, a.handleAuth)
	mux.HandleFunc(CallbackPath, a.handleCallback)
}

func (a *Authorizer) handleAuth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	url, err := a.Begin()
	if err != nil {
		a.logger.Error("Failed to start authorization", "error", err)
		writeText(w, http.StatusInternalServerError, "Authentication failed: "+err.Error())
		return
	}

	a.logger.Debug("Redirecting to consent page")
	http.Redirect(w, r, url, http.StatusFound)
}

func (a *Authorizer) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	err := a.Complete(r.Context(), q.Get("state"), q.Get("code"), q.Get("error"))
	if err != nil {
		status := http.StatusInternalServerError
		var cbErr *CallbackError
		if errors.As(err, &cbErr) {
			status = cbErr.Status
		}
		a.logger.Warn("Authorization failed", "status", status, "error", err)
		writeText(w, status, "Authentication failed: "+err.Error())
		return
	}

	writeText(w, http.StatusOK, SuccessMessage)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// randomState returns an unguessable value for the OAuth state parameter.
func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
)

// HealthChecker serves liveness and readiness endpoints on the callback
// listener. Readiness also reports the authorization state so a supervisor
// can tell whether the one-time consent has been completed. A missing
// credential does not make the server unready: the tools still answer, with
// guidance.
type HealthChecker struct {
	ready         atomic.Bool
	serverContext *ServerContext
	startTime     time.Time
}

// NewHealthChecker creates a HealthChecker that starts out ready. sc may be
// nil, in which case only the ready flag is checked.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{
		serverContext: sc,
		startTime:     time.Now(),
	}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse adds uptime and the authorization state.
type DetailedHealthResponse struct {
	Status    string            `json:"status"`
	Uptime    string            `json:"uptime"`
	AuthState string            `json:"auth_state,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// RegisterHealthEndpoints registers health check endpoints on the given mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

// LivenessHandler answers 200 for as long as the process serves HTTP.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler answers 503 once the server is marked unready or is
// shutting down.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks, status := h.runChecks()
		writeJSON(w, statusCode(status), HealthResponse{
			Status: readinessStatus(status),
			Checks: checks,
		})
	})
}

// DetailedHealthHandler reports the same checks plus uptime and the
// authorization state.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks, status := h.runChecks()
		writeJSON(w, statusCode(status), DetailedHealthResponse{
			Status:    status,
			Uptime:    time.Since(h.startTime).Truncate(time.Second).String(),
			AuthState: h.authState(),
			Checks:    checks,
		})
	})
}

// runChecks runs the readiness checks. The returned status is ok, not ready or
// shutting down; an explicit not-ready wins over shutdown.
func (h *HealthChecker) runChecks() (map[string]string, string) {
	checks := map[string]string{
		"ready":    healthStatusOK,
		"shutdown": healthStatusOK,
	}
	status := healthStatusOK

	if h.serverContext != nil && h.serverContext.IsShutdown() {
		checks["shutdown"] = healthStatusShuttingDown
		status = healthStatusShuttingDown
	}
	if !h.ready.Load() {
		checks["ready"] = healthStatusNotReady
		status = healthStatusNotReady
	}
	if state := h.authState(); state != "" {
		checks["auth"] = state
	}
	return checks, status
}

func (h *HealthChecker) authState() string {
	if h.serverContext == nil || h.serverContext.Authorizer() == nil {
		return ""
	}
	return h.serverContext.Authorizer().State().String()
}

// readinessStatus collapses shutting down into not ready for /readyz.
func readinessStatus(status string) string {
	if status == healthStatusOK {
		return healthStatusOK
	}
	return healthStatusNotReady
}

func statusCode(status string) int {
	if status == healthStatusOK {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Package server holds the shared MCP server context and the HTTP listeners
// that run next to the stdio transport.
//
// # Key Components
//
// ServerContext carries the dependencies the tools need: the Authorizer that
// drives the consent flow, the Mailer that talks to Gmail, and the optional
// metrics recorder and audit logger.
//
// AuthServer is the local listener (localhost:3500 by default) serving:
//   - GET /auth: redirect to Google's consent page
//   - GET /oauth2callback: code exchange and the plain-text result page
//   - /healthz, /readyz, /healthz/detailed: liveness and readiness, with the
//     current authorization state in the readiness checks
//
// MetricsServer exposes /metrics for Prometheus on a separate address.
//
// The stdio dispatcher and the AuthServer run in separate goroutines and
// share only the credential file.
package server

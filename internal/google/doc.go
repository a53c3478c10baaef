// Package google handles the Gmail OAuth credential: the application
// identity, the on-disk token record and the loopback consent flow.
//
// OAuthClient is created once at startup and shared by the Authorizer, which
// serves /auth and /oauth2callback on localhost:3500, and by the mail
// operations, which call TokenSource on every invocation. TokenSource always
// reloads the record from the FileStore, refreshes it when it has expired,
// and writes the refreshed token back.
//
// The token file lives at $XDG_CONFIG_HOME/gmail-sender-mcp-server/token.json
// (or ~/.config/..., %APPDATA%\... on Windows). It is written with mode 0600
// in a 0700 directory and can be sealed with AES-256-GCM via
// TokenEncryption.
package google

// Package cmd implements the command-line interface for gmail-sender.
//
// This package provides the following commands:
//   - serve: Start the MCP server on stdio together with the local
//     authorization listener
//   - auth: Run only the authorization listener and exit once the consent
//     has been completed
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
//
// Every flag falls back to an environment variable (GMAIL_CLIENT_ID,
// GMAIL_CLIENT_SECRET, GMAIL_TOKEN_FILE, ...); main loads a .env file from
// the working directory first.
package cmd

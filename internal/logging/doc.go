// Package logging holds the slog conventions for gmail-sender.
//
// Every component logs through a *slog.Logger built by NewLogger and writes
// to stderr; stdout belongs to the MCP stdio transport and must stay clean.
//
// Recipients are personal data. Log them through Recipient (a truncated
// SHA-256) or RecipientDomain, never as plain strings:
//
//	logger := logging.WithOperation(logger, "gmail.send")
//	logger.Info("message sent",
//	    logging.Recipient(req.Recipient),
//	    logging.Status(logging.StatusSuccess))
//
// Tokens go through SanitizeToken, which keeps only their length.
package logging

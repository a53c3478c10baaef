package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"
)

// Attribute keys shared by every log line the server writes.
const (
	KeyComponent       = "component"
	KeyOperation       = "operation"
	KeyTool            = "tool"
	KeyStatus          = "status"
	KeyError           = "error"
	KeyErrorKind       = "error_kind"
	KeyRecipientHash   = "recipient_hash"
	KeyRecipientDomain = "recipient_domain"
	KeyDuration        = "duration"
)

// Status values for consistent logging.
// Duplicated from instrumentation, which imports this package.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// NewLogger builds the process logger. Output always goes to w as text;
// the MCP stdio transport owns stdout, so callers pass stderr.
func NewLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// StdLogger bridges a slog.Logger into a *log.Logger at error level, for
// libraries that only accept the standard logger.
func StdLogger(logger *slog.Logger) *log.Logger {
	return slog.NewLogLogger(logger.Handler(), slog.LevelError)
}

// WithComponent returns a logger tagged with the emitting component.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String(KeyComponent, component))
}

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithTool returns a logger with the tool attribute set.
func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(slog.String(KeyTool, tool))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Tool returns a slog attribute for the tool name.
func Tool(tool string) slog.Attr {
	return slog.String(KeyTool, tool)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// ErrorKind returns a slog attribute for a classified failure.
func ErrorKind(kind string) slog.Attr {
	return slog.String(KeyErrorKind, kind)
}

// Err returns a slog attribute for an error.
// A nil error yields an empty group, which slog omits.
//
//	logger.Info("operation", logging.Err(err))  // safe even if err is nil
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail returns a stable hash of an address so log lines can be
// correlated without exposing the address itself.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "rcpt:" + hex.EncodeToString(hash[:8])
}

// Recipient returns the hashed recipient attribute.
//
//	logger.Info("message sent", logging.Recipient(req.Recipient))
func Recipient(email string) slog.Attr {
	return slog.String(KeyRecipientHash, AnonymizeEmail(email))
}

// RecipientDomain returns the lower-cardinality domain of a recipient.
func RecipientDomain(email string) slog.Attr {
	return slog.String(KeyRecipientDomain, ExtractDomain(email))
}

// SanitizeToken masks a token for logging. Only the length is kept;
// even a prefix can help an attacker.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

// ExtractDomain extracts the domain part of an email address, or "" when
// the value is not a single-@ address.
func ExtractDomain(email string) string {
	if email == "" {
		return ""
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(parts[1])
}

package instrumentation

import "strings"

// Cardinality helpers. Recipient addresses are unbounded; metrics and spans
// only ever carry the domain.

// ExtractRecipientDomain returns the lower-cased domain part of an email
// address, or "unknown" when there is no single "@" with a non-empty domain.
//
// Example:
//
//	ExtractRecipientDomain("Jane@Example.com")  // "example.com"
//	ExtractRecipientDomain("invalid")           // "unknown"
//	ExtractRecipientDomain("")                  // "unknown"
func ExtractRecipientDomain(address string) string {
	if address == "" {
		return "unknown"
	}

	parts := strings.Split(strings.TrimSpace(address), "@")
	if len(parts) == 2 && parts[1] != "" {
		return strings.ToLower(parts[1])
	}

	return "unknown"
}

// Operation types for Gmail API metrics and spans.
// Status, OAuth, and Service constants are defined in config.go.
const (
	OperationSend        = "send"
	OperationCreateDraft = "create_draft"
	OperationExchange    = "exchange"
)

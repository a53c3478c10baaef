// Package mail_tools provides the MCP tools sendEmail and createDraft.
//
// Both take recipient, subject and body (required) and an optional absolute
// attachmentPath. Results are plain text:
//
//	Email sent successfully! Message ID: <id>
//	Draft created successfully! Draft ID: <id>
//
// Failures are error-flagged results of the form "Error: <message>", with
// Gmail's own message kept verbatim. When no credential is stored the tools
// answer, without touching the network, with a normal text result pointing
// at the local /auth page.
package mail_tools

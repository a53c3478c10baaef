// Package gmail composes outgoing mail and submits it through the Gmail API.
//
// Compose renders a Message as an RFC 2822 document: single-part text/plain
// when there is no attachment, otherwise multipart/mixed with a text part
// and one base64 attachment part. EncodeBase64URL turns the document into
// the unpadded base64url form the API expects in its raw field.
//
// Mailer ties it together. SendMessage and CreateDraft load the stored
// credential, compose and encode the message, and call users.messages.send
// or users.drafts.create with a bounded timeout. Failures come back as *Error
// values whose Kind tells callers how to present them.
package gmail

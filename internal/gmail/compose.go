package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	crlf = "\r\n"

	// base64LineLength is the RFC 2045 limit for encoded body lines.
	base64LineLength = 76

	contentTypeTextPlain = "text/plain; charset=UTF-8"
)

// Attachment is a file carried as the second part of a multipart message.
type Attachment struct {
	Filename string
	Data     []byte
}

// Message is a single outgoing email before MIME framing.
type Message struct {
	Recipient  string
	Subject    string
	Body       string
	Attachment *Attachment
}

// NewBoundary returns a fresh multipart boundary. It never depends on the
// message content.
func NewBoundary() string {
	return fmt.Sprintf("----=_Part_%d_%s",
		time.Now().UnixNano(),
		strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// Compose renders msg as an RFC 2822 document with a freshly generated
// boundary.
func Compose(msg *Message) ([]byte, error) {
	return ComposeWithBoundary(msg, NewBoundary())
}

// ComposeWithBoundary renders msg using the given boundary. Output is
// deterministic for a fixed boundary. Without an attachment the boundary is
// unused and the document is single-part text/plain.
//
// Header values are written verbatim; the recipient is not validated beyond
// being non-empty, Gmail reports malformed addresses.
func ComposeWithBoundary(msg *Message, boundary string) ([]byte, error) {
	if msg == nil {
		return nil, newError(KindInvalidMessage, nil, "message is required")
	}
	if strings.TrimSpace(msg.Recipient) == "" {
		return nil, newError(KindInvalidMessage, nil, "recipient is required")
	}

	var b strings.Builder

	b.WriteString("To: " + msg.Recipient + crlf)
	b.WriteString("Subject: " + msg.Subject + crlf)
	b.WriteString("MIME-Version: 1.0" + crlf)

	if msg.Attachment == nil {
		b.WriteString("Content-Type: " + contentTypeTextPlain + crlf)
		b.WriteString(crlf)
		b.WriteString(msg.Body)
		return []byte(b.String()), nil
	}

	if boundary == "" {
		return nil, newError(KindInvalidMessage, nil, "multipart boundary is required")
	}

	filename := msg.Attachment.Filename
	contentType := ContentTypeForFilename(filename)

	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%q%s", boundary, crlf)
	b.WriteString(crlf)

	// text part
	b.WriteString("--" + boundary + crlf)
	b.WriteString("Content-Type: " + contentTypeTextPlain + crlf)
	b.WriteString(crlf)
	b.WriteString(msg.Body + crlf)
	b.WriteString(crlf)

	// attachment part
	b.WriteString("--" + boundary + crlf)
	b.WriteString("Content-Type: " + contentType + "; name=" + quoteParam(filename) + crlf)
	b.WriteString("Content-Transfer-Encoding: base64" + crlf)
	b.WriteString("Content-Disposition: attachment; filename=" + quoteParam(filename) + crlf)
	b.WriteString(crlf)
	writeBase64Lines(&b, msg.Attachment.Data)
	b.WriteString(crlf)

	b.WriteString("--" + boundary + "--")

	return []byte(b.String()), nil
}

// quoteParam renders a MIME parameter value as an RFC 2045 quoted-string.
// Backslash and double quote are escaped, control characters (including
// CR and LF) become spaces, invalid UTF-8 becomes U+FFFD and valid UTF-8 is
// written as is.
func quoteParam(v string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range strings.ToValidUTF8(v, "\uFFFD") {
		switch {
		case r == '\\' || r == '"':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// writeBase64Lines writes data as padded standard base64, folded at
// base64LineLength characters. Every line, including the last, ends in CRLF.
func writeBase64Lines(b *strings.Builder, data []byte) {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > base64LineLength {
		b.WriteString(encoded[:base64LineLength] + crlf)
		encoded = encoded[base64LineLength:]
	}
	b.WriteString(encoded + crlf)
}

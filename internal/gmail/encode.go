package gmail

import (
	"encoding/base64"
	"strings"
)

// EncodeBase64URL encodes a composed message for the Gmail "raw" field:
// standard base64 with '+' -> '-', '/' -> '_' and the trailing '=' padding
// removed. This is exactly base64.RawURLEncoding.
func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeBase64URL reverses EncodeBase64URL. Padded input is accepted too.
func DecodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

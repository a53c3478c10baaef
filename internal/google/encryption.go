package google

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// encryptionKeySize is the AES-256 key length in bytes.
const encryptionKeySize = 32

// TokenEncryption seals the token file with AES-256-GCM.
//
// The sealed form is base64(nonce || ciphertext || tag). A nil
// *TokenEncryption, or one built from an empty key, passes data through
// unchanged so the file stays plain JSON.
type TokenEncryption struct {
	key []byte
}

// NewTokenEncryption creates a TokenEncryption for key. An empty key disables
// encryption.
func NewTokenEncryption(key []byte) (*TokenEncryption, error) {
	if len(key) == 0 {
		return &TokenEncryption{}, nil
	}
	if len(key) != encryptionKeySize {
		return nil, fmt.Errorf("encryption key must be exactly %d bytes (256 bits), got %d bytes", encryptionKeySize, len(key))
	}
	return &TokenEncryption{key: key}, nil
}

// Enabled reports whether data is actually encrypted.
func (e *TokenEncryption) Enabled() bool {
	return e != nil && len(e.key) > 0
}

// Seal encrypts plaintext. With encryption disabled it returns plaintext.
func (e *TokenEncryption) Seal(plaintext []byte) ([]byte, error) {
	if !e.Enabled() {
		return plaintext, nil
	}

	gcm, err := e.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sealed)))
	base64.StdEncoding.Encode(out, sealed)
	return out, nil
}

// Open reverses Seal. With encryption disabled it returns data unchanged.
func (e *TokenEncryption) Open(data []byte) ([]byte, error) {
	if !e.Enabled() {
		return data, nil
	}

	sealed := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(sealed, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	sealed = sealed[:n]

	gcm, err := e.gcm()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	plaintext, err := gcm.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

func (e *TokenEncryption) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// EncryptionKeyFromBase64 decodes a base64 key as found in
// GMAIL_TOKEN_ENCRYPTION_KEY. An empty string yields a nil key.
func EncryptionKeyFromBase64(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 key: %w", err)
	}
	if len(key) != encryptionKeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d bytes", encryptionKeySize, len(key))
	}
	return key, nil
}

// GenerateEncryptionKey returns a random key suitable for NewTokenEncryption.
func GenerateEncryptionKey() ([]byte, error) {
	key := make([]byte, encryptionKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	return key, nil
}

package google

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenEncryption_SealOpen(t *testing.T) {
	key, err := GenerateEncryptionKey()
	require.NoError(t, err)
	enc, err := NewTokenEncryption(key)
	require.NoError(t, err)
	require.True(t, enc.Enabled())

	plaintext := []byte(`{"access_token":"ya29.secret"}`)

	sealed, err := enc.Seal(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)

	_, err = base64.StdEncoding.DecodeString(string(sealed))
	assert.NoError(t, err, "sealed form should be base64")

	// fresh nonce every time
	again, err := enc.Seal(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again)

	opened, err := enc.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestTokenEncryption_Tampered(t *testing.T) {
	key, err := GenerateEncryptionKey()
	require.NoError(t, err)
	enc, err := NewTokenEncryption(key)
	require.NoError(t, err)

	sealed, err := enc.Seal([]byte("secret"))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(string(sealed))
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := []byte(base64.StdEncoding.EncodeToString(raw))

	_, err = enc.Open(tampered)
	assert.Error(t, err)

	_, err = enc.Open([]byte("not base64!"))
	assert.Error(t, err)

	_, err = enc.Open([]byte(base64.StdEncoding.EncodeToString([]byte("short"))))
	assert.Error(t, err)
}

func TestTokenEncryption_Disabled(t *testing.T) {
	enc, err := NewTokenEncryption(nil)
	require.NoError(t, err)
	assert.False(t, enc.Enabled())

	data := []byte(`{"a":1}`)
	sealed, err := enc.Seal(data)
	require.NoError(t, err)
	assert.Equal(t, data, sealed)

	var nilEnc *TokenEncryption
	opened, err := nilEnc.Open(data)
	require.NoError(t, err)
	assert.Equal(t, data, opened)
}

func TestNewTokenEncryption_BadKey(t *testing.T) {
	_, err := NewTokenEncryption([]byte("too short"))
	assert.Error(t, err)
}

func TestEncryptionKeyFromBase64(t *testing.T) {
	key, err := GenerateEncryptionKey()
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{name: "valid", input: base64.StdEncoding.EncodeToString(key), want: key},
		{name: "empty disables", input: "", want: nil},
		{name: "not base64", input: "%%%", wantErr: true},
		{name: "wrong length", input: base64.StdEncoding.EncodeToString([]byte("sixteen bytes!!!")), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncryptionKeyFromBase64(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

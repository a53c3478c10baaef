package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/oauth2"
)

const (
	// AppDirName is the per-user configuration directory name.
	AppDirName = "gmail-sender-mcp-server"

	// TokenFileName is the credential file inside AppDirName.
	TokenFileName = "token.json"
)

// TokenRecord is the persisted credential. Field names are stable across
// versions.
type TokenRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
	Scope        string    `json:"scope"`
	TokenType    string    `json:"token_type"`
}

// RecordFromToken converts an oauth2 token into a TokenRecord. The granted
// scope is taken from the token response's extra fields when present.
func RecordFromToken(tok *oauth2.Token) *TokenRecord {
	if tok == nil {
		return nil
	}
	rec := &TokenRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		TokenType:    tok.TokenType,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		rec.Scope = scope
	}
	return rec
}

// Token converts the record back into an oauth2 token.
func (r *TokenRecord) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		Expiry:       r.Expiry,
		TokenType:    r.TokenType,
	}
	if r.Scope != "" {
		tok = tok.WithExtra(map[string]interface{}{"scope": r.Scope})
	}
	return tok
}

// usable reports whether the record can authorize a request now or after a
// refresh.
func (r *TokenRecord) usable() bool {
	return r != nil && (r.AccessToken != "" || r.RefreshToken != "")
}

// TokenStore persists the single credential record.
type TokenStore interface {
	// Load returns the stored record and true, or nil and false when the
	// record is absent or cannot be read.
	Load() (*TokenRecord, bool)

	// Save writes rec, replacing any previous record.
	Save(rec *TokenRecord) error
}

// FileStore keeps the credential as a JSON file, optionally sealed with
// TokenEncryption. It holds no in-memory copy; every Load reads the file.
type FileStore struct {
	path       string
	encryption *TokenEncryption
	logger     *slog.Logger
}

// NewFileStore creates a store for the file at path. encryption may be nil.
func NewFileStore(path string, encryption *TokenEncryption, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		path:       path,
		encryption: encryption,
		logger:     logger,
	}
}

// Path returns the credential file location.
func (s *FileStore) Path() string {
	return s.path
}

// EnsureDir creates the directory holding the credential file with
// owner-only permissions. An existing directory is fine; a permission error
// or a non-directory in the way is returned.
func (s *FileStore) EnsureDir() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("permission denied creating credential directory %s: %w", dir, err)
		}
		return fmt.Errorf("failed to create credential directory %s: %w", dir, err)
	}
	return nil
}

// Load implements TokenStore. A missing, unreadable, undecryptable or
// malformed file is reported as absent.
func (s *FileStore) Load() (*TokenRecord, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Failed to read credential file", "path", s.path, "error", err)
		}
		return nil, false
	}

	data, err = s.encryption.Open(data)
	if err != nil {
		s.logger.Warn("Failed to decrypt credential file", "path", s.path, "error", err)
		return nil, false
	}

	var rec TokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("Ignoring malformed credential file", "path", s.path, "error", err)
		return nil, false
	}
	if !rec.usable() {
		return nil, false
	}

	return &rec, true
}

// Save implements TokenStore.
func (s *FileStore) Save(rec *TokenRecord) error {
	if rec == nil {
		return fmt.Errorf("token record is nil")
	}

	if err := s.EnsureDir(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token record: %w", err)
	}

	data, err = s.encryption.Seal(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt token record: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}

	s.logger.Debug("Saved credential", "path", s.path, "encrypted", s.encryption.Enabled())
	return nil
}

// DefaultTokenPath returns <config dir>/gmail-sender-mcp-server/token.json,
// where the config dir is XDG_CONFIG_HOME, ~/.config, or %APPDATA% on
// Windows.
func DefaultTokenPath() (string, error) {
	dir, err := userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppDirName, TokenFileName), nil
}

func userConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("APPDATA"); dir != "" {
			return dir, nil
		}
		return "", fmt.Errorf("APPDATA is not set")
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg, nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", fmt.Errorf("neither XDG_CONFIG_HOME nor HOME is set")
	}
	return filepath.Join(home, ".config"), nil
}

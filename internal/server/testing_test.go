package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/gmail-sender/internal/gmail"
	"github.com/teemow/gmail-sender/internal/google"
)

// newTestServerContext builds a context backed by a token file in a temp
// dir, seeded with stored when non-nil.
func newTestServerContext(t *testing.T, stored ...*google.TokenRecord) (*ServerContext, *google.FileStore) {
	t.Helper()

	store := google.NewFileStore(filepath.Join(t.TempDir(), "token.json"), nil, nil)
	for _, rec := range stored {
		if err := store.Save(rec); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	client, err := google.NewOAuthClient(google.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Store:        store,
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.example.test/o/oauth2/auth",
			TokenURL: "https://accounts.example.test/token",
		},
	})
	if err != nil {
		t.Fatalf("NewOAuthClient() error = %v", err)
	}

	mailer, err := gmail.NewMailer(gmail.MailerConfig{Credentials: client})
	if err != nil {
		t.Fatalf("NewMailer() error = %v", err)
	}

	sc, err := NewServerContext(context.Background(), google.NewAuthorizer(client, nil), mailer, nil)
	if err != nil {
		t.Fatalf("NewServerContext() error = %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc, store
}

func testRecord() *google.TokenRecord {
	return &google.TokenRecord{
		AccessToken:  "ya29.test",
		RefreshToken: "1//refresh",
		Expiry:       time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		Scope:        "https://www.googleapis.com/auth/gmail.compose",
		TokenType:    "Bearer",
	}
}

package google

import (
	gmail "google.golang.org/api/gmail/v1"
)

// DefaultOAuthScopes are the scopes requested during authorization.
//
// gmail.compose covers both users.messages.send and users.drafts.create
// without granting read access to the mailbox.
var DefaultOAuthScopes = []string{
	gmail.GmailComposeScope,
}

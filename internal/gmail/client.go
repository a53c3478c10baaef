package gmail

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/gmail-sender/internal/instrumentation"
)

// userID addresses the authenticated account in the Gmail API.
const userID = "me"

// Client submits encoded messages through the Gmail API on behalf of the
// authenticated user.
type Client struct {
	users *gmail.UsersService
}

// NewClient creates a Gmail API client. Callers supply authentication through
// opts, usually option.WithHTTPClient with an oauth2 client.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return &Client{users: svc.Users}, nil
}

// NewProviderFactory returns a ProviderFactory that builds a Client
// authorized by the given token source. Extra opts are appended, which lets
// tests point the client at a fake endpoint.
func NewProviderFactory(opts ...option.ClientOption) ProviderFactory {
	return func(ctx context.Context, ts oauth2.TokenSource) (Provider, error) {
		all := make([]option.ClientOption, 0, len(opts)+1)
		all = append(all, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
		all = append(all, opts...)
		return NewClient(ctx, all...)
	}
}

// Send submits a raw, base64url-encoded RFC 2822 document for delivery and
// returns the new message ID.
func (c *Client) Send(ctx context.Context, raw string) (string, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, instrumentation.OperationSend)
	defer span.End()

	msg, err := c.users.Messages.Send(userID, &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return "", err
	}

	instrumentation.SetSpanSuccess(span)
	return msg.Id, nil
}

// CreateDraft stores a raw, base64url-encoded RFC 2822 document as a draft
// and returns the draft ID.
func (c *Client) CreateDraft(ctx context.Context, raw string) (string, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, instrumentation.OperationCreateDraft)
	defer span.End()

	draft, err := c.users.Drafts.Create(userID, &gmail.Draft{
		Message: &gmail.Message{Raw: raw},
	}).Context(ctx).Do()
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return "", err
	}

	instrumentation.SetSpanSuccess(span)
	return draft.Id, nil
}

package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"

	"github.com/teemow/gmail-sender/internal/google"
	"github.com/teemow/gmail-sender/internal/instrumentation"
	"github.com/teemow/gmail-sender/internal/logging"
)

// DefaultRequestTimeout bounds a single Gmail API call.
const DefaultRequestTimeout = 30 * time.Second

// SendRequest is the input shared by send and draft creation.
type SendRequest struct {
	Recipient      string
	Subject        string
	Body           string
	AttachmentPath string
}

// Credentials yields a token source for the stored credential. It returns an
// error matching google.ErrNotAuthenticated when nothing usable is stored.
type Credentials interface {
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

// Provider submits encoded messages. *Client is the Gmail implementation.
type Provider interface {
	Send(ctx context.Context, raw string) (string, error)
	CreateDraft(ctx context.Context, raw string) (string, error)
}

// ProviderFactory builds a Provider authorized by ts.
type ProviderFactory func(ctx context.Context, ts oauth2.TokenSource) (Provider, error)

// APIMetrics is the subset of instrumentation.Metrics used by the Mailer.
type APIMetrics interface {
	RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration)
	RecordAttachment(ctx context.Context, operation string, size int64)
}

// MailerConfig configures a Mailer.
type MailerConfig struct {
	// Credentials is required.
	Credentials Credentials

	// NewProvider defaults to NewProviderFactory().
	NewProvider ProviderFactory

	// Timeout defaults to DefaultRequestTimeout.
	Timeout time.Duration

	Logger  *slog.Logger
	Metrics APIMetrics
}

// Mailer sends messages and creates drafts for the authenticated user.
//
// Each call reloads the stored credential, so an authorization completed
// while the process runs is picked up by the next call.
type Mailer struct {
	credentials Credentials
	newProvider ProviderFactory
	timeout     time.Duration
	logger      *slog.Logger
	metrics     APIMetrics
}

// NewMailer creates a Mailer.
func NewMailer(cfg MailerConfig) (*Mailer, error) {
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("credentials are required")
	}

	m := &Mailer{
		credentials: cfg.Credentials,
		newProvider: cfg.NewProvider,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
	if m.newProvider == nil {
		m.newProvider = NewProviderFactory()
	}
	if m.timeout <= 0 {
		m.timeout = DefaultRequestTimeout
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = logging.WithComponent(m.logger, "mailer")
	return m, nil
}

// SendMessage composes req and submits it for delivery. It returns the Gmail
// message ID.
func (m *Mailer) SendMessage(ctx context.Context, req SendRequest) (string, error) {
	return m.submit(ctx, instrumentation.OperationSend, req, Provider.Send)
}

// CreateDraft composes req and stores it as a draft. It returns the draft ID.
func (m *Mailer) CreateDraft(ctx context.Context, req SendRequest) (string, error) {
	return m.submit(ctx, instrumentation.OperationCreateDraft, req, Provider.CreateDraft)
}

type submitFunc func(p Provider, ctx context.Context, raw string) (string, error)

func (m *Mailer) submit(ctx context.Context, operation string, req SendRequest, fn submitFunc) (string, error) {
	logger := logging.WithOperation(m.logger, operation)

	// The token source refreshes on this context, so the deadline covers the
	// token endpoint as well as Gmail.
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	ts, err := m.credentials.TokenSource(ctx)
	if err != nil {
		if errors.Is(err, google.ErrNotAuthenticated) {
			logger.Info("No stored credential, authorization required")
			return "", &Error{Kind: KindNotAuthenticated, Message: "not authenticated", Err: err}
		}
		return "", classifyProviderError(err)
	}

	raw, err := m.encode(ctx, operation, req)
	if err != nil {
		logger.Warn("Cannot build message", logging.Err(err), logging.ErrorKind(string(KindOf(err))))
		return "", err
	}

	provider, err := m.newProvider(ctx, ts)
	if err != nil {
		return "", newError(KindTransportFailed, err, "failed to create Gmail client: %v", err)
	}

	start := time.Now()
	id, err := fn(provider, ctx, raw)
	duration := time.Since(start)

	if err == nil && id == "" {
		err = newError(KindProviderRejected, nil, "Gmail returned no ID")
	}
	if err != nil {
		classified := classifyProviderError(err)
		if classified.Kind == KindTransportFailed && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			classified = &Error{Kind: KindTransportTimeout, Message: "request to Gmail timed out", Err: err}
		}
		m.record(ctx, operation, instrumentation.StatusError, duration)
		logger.Warn("Gmail request failed",
			logging.Status(logging.StatusError),
			logging.Recipient(req.Recipient),
			logging.ErrorKind(string(classified.Kind)),
			logging.Err(err),
			slog.Duration(logging.KeyDuration, duration))
		return "", classified
	}

	m.record(ctx, operation, instrumentation.StatusSuccess, duration)
	logger.Info("Gmail request succeeded",
		logging.Status(logging.StatusSuccess),
		logging.Recipient(req.Recipient),
		logging.RecipientDomain(req.Recipient),
		slog.String("id", id),
		slog.Bool("attachment", req.AttachmentPath != ""),
		slog.Duration(logging.KeyDuration, duration))
	return id, nil
}

// encode loads the attachment, composes the document and encodes it for the
// Gmail raw field.
func (m *Mailer) encode(ctx context.Context, operation string, req SendRequest) (string, error) {
	msg := &Message{
		Recipient: req.Recipient,
		Subject:   req.Subject,
		Body:      req.Body,
	}
	if req.AttachmentPath != "" {
		att, err := LoadAttachment(req.AttachmentPath)
		if err != nil {
			return "", err
		}
		msg.Attachment = att
		if m.metrics != nil {
			m.metrics.RecordAttachment(ctx, operation, int64(len(att.Data)))
		}
	}

	doc, err := Compose(msg)
	if err != nil {
		return "", err
	}
	instrumentation.AddEvent(ctx, "message.composed",
		attribute.Int("mime.bytes", len(doc)),
		attribute.Bool(instrumentation.SpanAttrAttachment, msg.Attachment != nil))
	return EncodeBase64URL(doc), nil
}

func (m *Mailer) record(ctx context.Context, operation, status string, duration time.Duration) {
	if m.metrics != nil {
		m.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, operation, status, duration)
	}
}

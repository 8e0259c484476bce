package outbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

// ErrDeliveryFailed wraps transport-level delivery failures.
var ErrDeliveryFailed = errors.New("outbox: delivery failed")

// PostmarkConfig configures the hosted transport alternative.
type PostmarkConfig struct {
	ServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	AccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
}

// PostmarkTransport delivers through Postmark's transactional API
// instead of raw SMTP. Per-job SMTP endpoint overrides do not apply;
// only the From identity of the effective config is honored.
type PostmarkTransport struct {
	client *postmark.Client
}

// NewPostmarkTransport creates a Postmark-backed transport.
func NewPostmarkTransport(cfg PostmarkConfig) (*PostmarkTransport, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: server token is required", ErrInvalidTransportConfig)
	}
	return &PostmarkTransport{
		client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
	}, nil
}

func (t *PostmarkTransport) Send(ctx context.Context, cfg TransportConfig, msg Message) error {
	from := cfg.FromEmail
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail)
	}

	email := postmark.Email{
		From:     from,
		To:       msg.To,
		Subject:  msg.Subject,
		TextBody: msg.TextBody,
		HTMLBody: msg.HTMLBody,
	}
	for _, att := range msg.Attachments {
		email.Attachments = append(email.Attachments, postmark.Attachment{
			Name:        att.Filename,
			Content:     base64.StdEncoding.EncodeToString(att.Content),
			ContentType: att.ContentType,
		})
	}

	resp, err := t.client.SendEmail(ctx, email)
	if err != nil {
		return errors.Join(ErrDeliveryFailed, err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("%w: postmark error %d: %s", ErrDeliveryFailed, resp.ErrorCode, resp.Message)
	}
	return nil
}

package outbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/wneessen/go-mail"
)

// ErrInvalidTransportConfig is returned when a transport cannot be
// built from the given configuration.
var ErrInvalidTransportConfig = errors.New("outbox: invalid transport config")

// Message is one email ready for delivery.
type Message struct {
	To          string
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// Transport delivers a message through the endpoint described by cfg,
// or returns an error for the retry policy to handle.
type Transport interface {
	Send(ctx context.Context, cfg TransportConfig, msg Message) error
}

// SMTPTransport delivers through SMTP. It keeps one cached client for
// the most recently used endpoint: consecutive jobs sharing the same
// (host, port, credentials, security-mode) tuple reuse it, and the
// client is rebuilt whenever the tuple changes.
type SMTPTransport struct {
	timeout time.Duration

	mu        sync.Mutex
	cachedKey string
	client    *mail.Client
}

// NewSMTPTransport creates an SMTP transport. The timeout bounds every
// dial-and-send cycle so an unresponsive peer cannot stall the worker.
func NewSMTPTransport(timeout time.Duration) *SMTPTransport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMTPTransport{timeout: timeout}
}

func (t *SMTPTransport) Send(ctx context.Context, cfg TransportConfig, msg Message) error {
	if cfg.Host == "" || cfg.FromEmail == "" {
		return fmt.Errorf("%w: host and from address are required", ErrInvalidTransportConfig)
	}

	client, err := t.clientFor(cfg)
	if err != nil {
		return err
	}

	m, err := buildMessage(cfg, msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func (t *SMTPTransport) clientFor(cfg TransportConfig) (*mail.Client, error) {
	key := cfg.key()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil && t.cachedKey == key {
		return t.client, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(t.timeout),
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.Secure {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransportConfig, err)
	}

	t.cachedKey = key
	t.client = client
	return client, nil
}

func buildMessage(cfg TransportConfig, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()

	if cfg.FromName != "" {
		if err := m.FromFormat(cfg.FromName, cfg.FromEmail); err != nil {
			return nil, fmt.Errorf("invalid from address %q: %w", cfg.FromEmail, err)
		}
	} else if err := m.From(cfg.FromEmail); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", cfg.FromEmail, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	default:
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	}

	for _, att := range msg.Attachments {
		var opts []mail.FileOption
		if att.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(att.ContentType)))
		}
		if len(att.Content) > 0 {
			if err := m.AttachReader(att.Filename, bytes.NewReader(att.Content), opts...); err != nil {
				return nil, fmt.Errorf("attach %q: %w", att.Filename, err)
			}
			continue
		}
		// AttachFile reports a missing file only at send time, so check
		// the path up front to fail the attempt with a useful error.
		if _, err := os.Stat(att.Path); err != nil {
			return nil, fmt.Errorf("attach %q: %w", att.Path, err)
		}
		if att.Filename != "" {
			opts = append(opts, mail.WithFileName(att.Filename))
		}
		m.AttachFile(att.Path, opts...)
	}

	return m, nil
}

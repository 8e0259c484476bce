package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DevTransport writes emails to disk instead of sending them. Useful
// for local development where no SMTP server is available.
type DevTransport struct {
	dir string
}

// NewDevTransport creates a transport saving emails under dir. The
// directory is created on first send.
func NewDevTransport(dir string) *DevTransport {
	return &DevTransport{dir: dir}
}

type devMetadata struct {
	Timestamp string `json:"timestamp"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	TextBody  string `json:"text_body,omitempty"`
}

func (t *DevTransport) Send(ctx context.Context, cfg TransportConfig, msg Message) error {
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("create dev mail directory: %w", err)
	}

	now := time.Now()
	base := fmt.Sprintf("%s_%s", now.Format("2006_01_02_150405"), sanitizeFilename(msg.Subject))

	if msg.HTMLBody != "" {
		htmlPath := filepath.Join(t.dir, base+".html")
		if err := os.WriteFile(htmlPath, []byte(msg.HTMLBody), 0o644); err != nil {
			return fmt.Errorf("write dev mail html: %w", err)
		}
	}

	meta, err := json.MarshalIndent(devMetadata{
		Timestamp: now.Format(time.RFC3339),
		To:        msg.To,
		Subject:   msg.Subject,
		TextBody:  msg.TextBody,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dev mail metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(t.dir, base+".json"), meta, 0o644); err != nil {
		return fmt.Errorf("write dev mail metadata: %w", err)
	}
	return nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = unsafeFilenameChars.ReplaceAllString(s, "")
	const maxLength = 100
	if len(s) > maxLength {
		s = s[:maxLength]
	}
	if s == "" {
		s = "email"
	}
	return strings.ToLower(s)
}

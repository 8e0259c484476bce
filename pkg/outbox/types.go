package outbox

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// CollectionName is the central-database collection holding email jobs.
const CollectionName = "email_jobs"

// Status is the delivery state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

const (
	// MaxAttempts is the total delivery attempt budget. After the third
	// failed attempt a job is permanently failed.
	MaxAttempts = 3

	// RetryBackoff is the fixed delay before a failed job becomes due
	// again. Deliberately not exponential.
	RetryBackoff = 5 * time.Minute
)

// Attachment is one file attached to an outbound email. Either Content
// holds the bytes inline or Path references a file on disk.
type Attachment struct {
	Filename    string `bson:"filename" json:"filename"`
	Path        string `bson:"path,omitempty" json:"path,omitempty"`
	Content     []byte `bson:"content,omitempty" json:"-"`
	ContentType string `bson:"content_type" json:"content_type"`
}

// TransportConfig is an SMTP endpoint description. A job may carry one
// as an override; otherwise the worker uses the system-wide default.
type TransportConfig struct {
	Host      string `bson:"host" json:"host" env:"SMTP_HOST"`
	Port      int    `bson:"port" json:"port" env:"SMTP_PORT" envDefault:"587"`
	Secure    bool   `bson:"secure" json:"secure" env:"SMTP_SECURE" envDefault:"false"`
	User      string `bson:"user" json:"user" env:"SMTP_USER"`
	Password  string `bson:"password" json:"-" env:"SMTP_PASSWORD"`
	FromName  string `bson:"from_name" json:"from_name" env:"SMTP_FROM_NAME"`
	FromEmail string `bson:"from_email" json:"from_email" env:"SMTP_FROM_EMAIL"`
}

// key identifies a transport connection. Jobs sharing a key reuse the
// cached client.
func (c TransportConfig) key() string {
	secure := "plain"
	if c.Secure {
		secure = "tls"
	}
	return c.Host + "|" + strconv.Itoa(c.Port) + "|" + c.User + "|" + c.Password + "|" + secure
}

// Job is one durable email delivery request. Attempts counts failed
// delivery tries: a job delivered on the first try completes with
// Attempts == 0.
type Job struct {
	ID            uuid.UUID        `bson:"_id" json:"id"`
	To            string           `bson:"to" json:"to"`
	Subject       string           `bson:"subject" json:"subject"`
	TextBody      string           `bson:"text_body,omitempty" json:"text_body,omitempty"`
	HTMLBody      string           `bson:"html_body,omitempty" json:"html_body,omitempty"`
	Attachments   []Attachment     `bson:"attachments,omitempty" json:"attachments,omitempty"`
	Transport     *TransportConfig `bson:"transport,omitempty" json:"-"`
	Status        Status           `bson:"status" json:"status"`
	Attempts      int              `bson:"attempts" json:"attempts"`
	LastError     string           `bson:"last_error,omitempty" json:"last_error,omitempty"`
	NextAttemptAt time.Time        `bson:"next_attempt_at" json:"next_attempt_at"`
	ClaimedAt     *time.Time       `bson:"claimed_at,omitempty" json:"claimed_at,omitempty"`
	CreatedAt     time.Time        `bson:"created_at" json:"created_at"`
}

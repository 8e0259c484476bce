package tenantadmin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zenvoice/backoffice/pkg/logger"
	"github.com/zenvoice/backoffice/pkg/outbox"
	"github.com/zenvoice/backoffice/pkg/store"
	"github.com/zenvoice/backoffice/pkg/tenant"
)

// Config holds tenant provisioning settings.
type Config struct {
	// AppDomain is the base domain tenants live under, e.g.
	// "backoffice.example.com" for "acme.backoffice.example.com".
	AppDomain string `env:"APP_DOMAIN" envDefault:"localhost"`
	// DBPrefix is prepended to the subdomain to form the tenant's
	// logical database name.
	DBPrefix string `env:"TENANT_DB_PREFIX" envDefault:"tenant_"`
}

var (
	// ErrSubdomainTaken is returned when provisioning a tenant on a
	// subdomain that already belongs to another tenant.
	ErrSubdomainTaken = errors.New("tenantadmin: subdomain already taken")

	// ErrInvalidSubdomain is returned for subdomains outside the
	// allowed character set or on the reserved list.
	ErrInvalidSubdomain = errors.New("tenantadmin: invalid subdomain")

	// ErrInvalidPasskey is returned when setup is attempted with a
	// passkey that does not match the tenant's setup key.
	ErrInvalidPasskey = errors.New("tenantadmin: invalid setup passkey")

	// ErrAlreadySetUp is returned when setup is attempted on a tenant
	// that already completed onboarding.
	ErrAlreadySetUp = errors.New("tenantadmin: tenant already set up")
)

var subdomainRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// reservedSubdomains can never be claimed by tenants. "admin" is the
// super-admin surface and the rest collide with common infrastructure
// hostnames.
var reservedSubdomains = map[string]struct{}{
	"admin": {}, "www": {}, "api": {}, "mail": {}, "smtp": {}, "status": {},
}

// Service implements tenant lifecycle operations for super admins.
type Service struct {
	cfg   Config
	store store.Store[tenant.Tenant]
	queue *outbox.Queue
	cache tenant.Cache
	log   *slog.Logger
}

// NewService creates the tenant administration service. The store is
// expected to be audit-wrapped so directory changes are recorded; the
// cache, when set, is invalidated on every mutation so the resolution
// middleware never serves stale records. Queue and cache may be nil.
func NewService(cfg Config, s store.Store[tenant.Tenant], queue *outbox.Queue, cache tenant.Cache, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{cfg: cfg, store: s, queue: queue, cache: cache, log: log}
}

// CreateTenantParams carries the provisioning request.
type CreateTenantParams struct {
	Name         string              `json:"name"`
	Subdomain    string              `json:"subdomain"`
	Email        string              `json:"email"`
	Organization tenant.Organization `json:"organization"`
}

// CreatedTenant is the provisioning result. Passkey is the only place
// the plain-text setup key ever appears; it cannot be recovered later.
type CreatedTenant struct {
	Tenant  tenant.Tenant `json:"tenant"`
	Passkey string        `json:"passkey"`
}

// CreateTenant provisions a new tenant: directory record, logical
// database name, one-time setup passkey and a welcome email carrying
// the setup link. The tenant starts active but with setup pending, so
// the resolution middleware gates it to the setup flow until the
// passkey is redeemed.
func (s *Service) CreateTenant(ctx context.Context, params CreateTenantParams) (*CreatedTenant, error) {
	sub := strings.ToLower(strings.TrimSpace(params.Subdomain))
	if !subdomainRe.MatchString(sub) {
		return nil, ErrInvalidSubdomain
	}
	if _, reserved := reservedSubdomains[sub]; reserved {
		return nil, ErrInvalidSubdomain
	}
	if _, err := s.store.FindOne(ctx, store.Filter{"subdomain": sub}); err == nil {
		return nil, ErrSubdomainTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check subdomain availability: %w", err)
	}

	passkey, err := generatePasskey()
	if err != nil {
		return nil, err
	}
	hash, err := hashPasskey(passkey)
	if err != nil {
		return nil, err
	}

	t := tenant.Tenant{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(params.Name),
		Subdomain:    sub,
		DBName:       s.cfg.DBPrefix + strings.ReplaceAll(sub, "-", "_"),
		SetupKey:     hash,
		SetupDone:    false,
		Active:       true,
		Organization: params.Organization,
		CreatedAt:    time.Now(),
	}
	if err := s.store.Insert(ctx, t); err != nil {
		return nil, fmt.Errorf("create tenant %s: %w", sub, err)
	}

	if s.queue != nil && params.Email != "" {
		subject, html, text := welcomeEmail(t, s.cfg.AppDomain, passkey)
		if _, err := s.queue.Enqueue(ctx, params.Email, subject, html, outbox.WithTextBody(text)); err != nil {
			// The tenant exists either way; the admin still has the
			// passkey from the response.
			s.log.ErrorContext(ctx, "failed to enqueue welcome email",
				logger.Error(err), slog.String("tenant_id", t.ID.String()))
		}
	}

	return &CreatedTenant{Tenant: t, Passkey: passkey}, nil
}

// ListTenants returns the whole tenant directory.
func (s *Service) ListTenants(ctx context.Context) ([]tenant.Tenant, error) {
	return s.store.Find(ctx, nil)
}

// GetTenant returns a single tenant by id.
func (s *Service) GetTenant(ctx context.Context, id uuid.UUID) (tenant.Tenant, error) {
	return s.store.FindByID(ctx, id.String())
}

// UpdateTenantParams carries the mutable tenant attributes. Nil fields
// are left unchanged.
type UpdateTenantParams struct {
	Name         *string              `json:"name"`
	Active       *bool                `json:"active"`
	Organization *tenant.Organization `json:"organization"`
}

// UpdateTenant applies the given changes and invalidates the
// resolution cache for the tenant's subdomain.
func (s *Service) UpdateTenant(ctx context.Context, id uuid.UUID, params UpdateTenantParams) (tenant.Tenant, error) {
	t, err := s.store.FindByID(ctx, id.String())
	if err != nil {
		return tenant.Tenant{}, err
	}
	if params.Name != nil {
		t.Name = strings.TrimSpace(*params.Name)
	}
	if params.Active != nil {
		t.Active = *params.Active
	}
	if params.Organization != nil {
		t.Organization = *params.Organization
	}
	if err := s.store.Save(ctx, t); err != nil {
		return tenant.Tenant{}, fmt.Errorf("update tenant %s: %w", id, err)
	}
	s.invalidate(ctx, t.Subdomain)
	return t, nil
}

// DeleteTenant removes the directory record. The tenant's logical
// database is deliberately retained for manual recovery.
func (s *Service) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	t, err := s.store.FindByID(ctx, id.String())
	if err != nil {
		return err
	}
	if err := s.store.DeleteByID(ctx, id.String()); err != nil {
		return fmt.Errorf("delete tenant %s: %w", id, err)
	}
	s.invalidate(ctx, t.Subdomain)
	return nil
}

// CompleteSetup redeems the one-time passkey for the tenant resolved
// from the request context. On success the stored setup key is cleared
// so the passkey can never be replayed.
func (s *Service) CompleteSetup(ctx context.Context, passkey string) error {
	resolved, ok := tenant.FromContext(ctx)
	if !ok {
		return tenant.ErrNoTenantInContext
	}
	// Re-read through the store: the context copy may come from the
	// cache, which never carries the setup key.
	t, err := s.store.FindByID(ctx, resolved.ID.String())
	if err != nil {
		return err
	}
	if t.SetupDone {
		return ErrAlreadySetUp
	}
	if t.SetupKey == "" || !verifyPasskey(t.SetupKey, passkey) {
		return ErrInvalidPasskey
	}

	t.SetupKey = ""
	t.SetupDone = true
	if err := s.store.Save(ctx, t); err != nil {
		return fmt.Errorf("complete setup for tenant %s: %w", t.ID, err)
	}
	s.invalidate(ctx, t.Subdomain)
	return nil
}

func (s *Service) invalidate(ctx context.Context, subdomain string) {
	if s.cache != nil {
		s.cache.Delete(ctx, subdomain)
	}
}

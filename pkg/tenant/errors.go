package tenant

import "errors"

var (
	// ErrTenantNotFound is returned when a subdomain resolves to no tenant.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrInactiveTenant is returned when the resolved tenant is disabled.
	ErrInactiveTenant = errors.New("tenant is inactive")

	// ErrSetupRequired is returned when the resolved tenant has not
	// completed onboarding.
	ErrSetupRequired = errors.New("tenant setup required")

	// ErrNoTenantInContext is returned when no tenant is found in context.
	ErrNoTenantInContext = errors.New("no tenant in context")
)

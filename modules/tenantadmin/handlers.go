package tenantadmin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zenvoice/backoffice/core"
	"github.com/zenvoice/backoffice/pkg/auth"
	"github.com/zenvoice/backoffice/pkg/logger"
	"github.com/zenvoice/backoffice/pkg/store"
	"github.com/zenvoice/backoffice/pkg/tenant"
)

// RoleSuperAdmin is the role required for tenant management endpoints.
const RoleSuperAdmin = "superadmin"

// AdminRouter returns the tenant management endpoints. Mount it on the
// super-admin surface behind the auth middleware.
func AdminRouter(s *Service) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRole(RoleSuperAdmin))

	r.Post("/tenants", s.handleCreateTenant)
	r.Get("/tenants", s.handleListTenants)
	r.Get("/tenants/{tenantID}", s.handleGetTenant)
	r.Patch("/tenants/{tenantID}", s.handleUpdateTenant)
	r.Delete("/tenants/{tenantID}", s.handleDeleteTenant)

	return r
}

// SetupRouter returns the public setup-completion endpoint served on
// the tenant's own subdomain. The tenant resolution middleware lets
// this path through even before setup is done.
func SetupRouter(s *Service) chi.Router {
	r := chi.NewRouter()
	r.Post("/", s.handleCompleteSetup)
	return r
}

func (s *Service) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var params CreateTenantParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		core.WriteError(w, core.ErrBadRequest)
		return
	}
	if params.Name == "" || params.Subdomain == "" {
		core.WriteError(w, core.ErrUnprocessableEntity)
		return
	}

	created, err := s.CreateTenant(r.Context(), params)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	core.WriteJSON(w, http.StatusCreated, created)
}

func (s *Service) handleListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := s.ListTenants(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if tenants == nil {
		tenants = []tenant.Tenant{}
	}
	core.WriteJSON(w, http.StatusOK, tenants)
}

func (s *Service) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		core.WriteError(w, core.ErrBadRequest)
		return
	}
	t, err := s.GetTenant(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, t)
}

func (s *Service) handleUpdateTenant(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		core.WriteError(w, core.ErrBadRequest)
		return
	}
	var params UpdateTenantParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		core.WriteError(w, core.ErrBadRequest)
		return
	}
	t, err := s.UpdateTenant(r.Context(), id, params)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, t)
}

func (s *Service) handleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		core.WriteError(w, core.ErrBadRequest)
		return
	}
	if err := s.DeleteTenant(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type completeSetupRequest struct {
	Passkey string `json:"passkey"`
}

func (s *Service) handleCompleteSetup(w http.ResponseWriter, r *http.Request) {
	var req completeSetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Passkey == "" {
		core.WriteError(w, core.ErrBadRequest)
		return
	}
	if err := s.CompleteSetup(r.Context(), req.Passkey); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]bool{"setup_done": true})
}

func (s *Service) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		core.WriteError(w, core.ErrNotFound)
	case errors.Is(err, ErrSubdomainTaken):
		core.WriteError(w, core.NewHTTPError(http.StatusConflict, "subdomain_taken"))
	case errors.Is(err, ErrInvalidSubdomain):
		core.WriteError(w, core.NewHTTPError(http.StatusUnprocessableEntity, "invalid_subdomain"))
	case errors.Is(err, ErrInvalidPasskey):
		core.WriteError(w, core.NewHTTPError(http.StatusUnauthorized, "invalid_passkey"))
	case errors.Is(err, ErrAlreadySetUp):
		core.WriteError(w, core.NewHTTPError(http.StatusConflict, "already_set_up"))
	case errors.Is(err, tenant.ErrNoTenantInContext):
		core.WriteError(w, core.ErrTenantNotFound)
	default:
		s.log.ErrorContext(r.Context(), "tenant admin request failed", logger.Error(err))
		core.WriteError(w, core.ErrInternalServerError)
	}
}

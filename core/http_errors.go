package core

import "net/http"

// HTTPError represents an HTTP error with a status code and a stable
// machine-readable key. API clients branch on Key, never on Message.
type HTTPError struct {
	Code int    // HTTP status code
	Key  string // stable error code (e.g. "tenant_not_found")
}

// Error implements the error interface.
func (e HTTPError) Error() string {
	return e.Key
}

var (
	ErrBadRequest          = HTTPError{Code: http.StatusBadRequest, Key: "bad_request"}
	ErrUnauthorized        = HTTPError{Code: http.StatusUnauthorized, Key: "unauthorized"}
	ErrForbidden           = HTTPError{Code: http.StatusForbidden, Key: "forbidden"}
	ErrNotFound            = HTTPError{Code: http.StatusNotFound, Key: "not_found"}
	ErrConflict            = HTTPError{Code: http.StatusConflict, Key: "conflict"}
	ErrUnprocessableEntity = HTTPError{Code: http.StatusUnprocessableEntity, Key: "unprocessable_entity"}
	ErrInternalServerError = HTTPError{Code: http.StatusInternalServerError, Key: "internal_server_error"}
	ErrServiceUnavailable  = HTTPError{Code: http.StatusServiceUnavailable, Key: "service_unavailable"}
)

// Distinguished application codes. These are part of the API contract:
// clients handle them specially instead of treating them as generic
// failures.
var (
	// ErrTenantNotFound signals that the request's host did not resolve
	// to any tenant.
	ErrTenantNotFound = HTTPError{Code: http.StatusNotFound, Key: "TENANT_NOT_FOUND"}

	// ErrSetupRequired signals that the resolved tenant has not completed
	// onboarding; clients are expected to redirect to the setup flow.
	ErrSetupRequired = HTTPError{Code: http.StatusForbidden, Key: "SETUP_REQUIRED"}
)

// NewHTTPError creates a custom HTTP error with the given status code and key.
func NewHTTPError(code int, key string) HTTPError {
	return HTTPError{Code: code, Key: key}
}

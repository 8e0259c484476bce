package core

import (
	"encoding/json"
	"errors"
	"net/http"
)

// JSONResponse is the standard response envelope.
type JSONResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// WriteJSON writes a success envelope with the given status and payload.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(JSONResponse{Data: data})
}

// WriteError writes an error envelope. HTTPError values map to their
// own status and key; anything else becomes a 500 internal_server_error
// without leaking the underlying error text to the client.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := ErrInternalServerError.Key
	message := http.StatusText(status)

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
		code = httpErr.Key
		message = http.StatusText(status)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(JSONResponse{Code: code, Message: message})
}

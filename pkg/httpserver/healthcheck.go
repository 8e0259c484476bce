package httpserver

import (
	"context"
	"net/http"
	"time"
)

// Probe checks one dependency's health.
type Probe func(context.Context) error

// HealthcheckHandler returns a handler that runs every probe and
// answers 200 when all pass, 503 otherwise. Suitable for readiness and
// liveness endpoints.
func HealthcheckHandler(probes ...Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		for _, probe := range probes {
			if err := probe(ctx); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

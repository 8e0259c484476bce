package requestmeta

import "net/http"

// Middleware populates the request context with the request's network
// metadata. Mount it before anything that records audit entries.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithMeta(r.Context(), Meta{
			IP:        ClientIP(r),
			UserAgent: r.UserAgent(),
			Method:    r.Method,
			URL:       r.URL.String(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Package identity resolves the externally issued user identifier carried by
// each request. It never creates users; that happens lazily in the roadmap
// service on the first roadmap a user creates.
package identity

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"
)

const (
	// HeaderName carries the caller's external user id.
	HeaderName = "X-Max-User-ID"
	// QueryParam is the fallback when the header is absent.
	QueryParam = "maxUserId"
)

type contextKey int

const (
	userIDKey contextKey = iota
)

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:@-]{1,128}$`)

// UserIDFromContext extracts the external user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUserID returns a copy of ctx carrying id.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// Valid reports whether id is an acceptable external user id.
func Valid(id string) bool {
	return userIDPattern.MatchString(id)
}

func userIDFromRequest(r *http.Request) string {
	id := r.Header.Get(HeaderName)
	if id == "" {
		id = r.URL.Query().Get(QueryParam)
	}
	return strings.TrimSpace(id)
}

// Middleware stores the caller's external user id in the request context.
// Requests without one pass through unchanged; a malformed one is rejected.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := userIDFromRequest(r)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !Valid(id) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid user id"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for rate limiting and logs.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

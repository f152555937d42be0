package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy defines the CORS headers to emit for matching origins.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// BookingCORSPolicy is the policy the booking widget and the salon dashboard
// need: wizard sessions are patched and abandoned with DELETE, bookings carry
// an Idempotency-Key, and the widget reads the replay and retry hints back.
func BookingCORSPolicy(origins []string) CORSPolicy {
	return CORSPolicy{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Business-Id", RequestIDHeader, "Idempotency-Key"},
		ExposedHeaders: []string{RequestIDHeader, "Idempotent-Replayed", "X-Retryable", "Retry-After", "X-RateLimit-Remaining"},
		MaxAge:         10 * time.Minute,
	}
}

// SplitOrigins parses a comma separated CORS_ALLOWED_ORIGINS value.
func SplitOrigins(raw string) []string {
	return normalizeList(strings.Split(raw, ","))
}

type originSet struct {
	any   bool
	exact map[string]bool
}

func newOriginSet(origins []string) originSet {
	set := originSet{exact: map[string]bool{}}
	for _, o := range normalizeList(origins) {
		if o == "*" {
			set.any = true
			continue
		}
		set.exact[strings.ToLower(strings.TrimSuffix(o, "/"))] = true
	}
	return set
}

// allow returns the Access-Control-Allow-Origin value for origin. A wildcard
// policy echoes the origin when credentials are allowed, since browsers reject
// "*" with credentials.
func (s originSet) allow(origin string, credentials bool) (string, bool) {
	if s.exact[strings.ToLower(origin)] {
		return origin, true
	}
	if !s.any {
		return "", false
	}
	if credentials {
		return origin, true
	}
	return "*", true
}

// WithCORS adds CORS handling. If AllowedOrigins is empty, it is a no-op.
// Preflights for a method outside AllowedMethods are refused with 403.
func WithCORS(cfg CORSPolicy) Middleware {
	if len(cfg.AllowedOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	origins := newOriginSet(cfg.AllowedOrigins)
	methods := normalizeList(cfg.AllowedMethods)
	methodSet := map[string]bool{}
	for _, m := range methods {
		methodSet[strings.ToUpper(m)] = true
	}
	allowedMethods := strings.Join(methods, ", ")
	allowedHeaders := strings.Join(normalizeList(cfg.AllowedHeaders), ", ")
	exposedHeaders := strings.Join(normalizeList(cfg.ExposedHeaders), ", ")
	maxAge := strconv.Itoa(int(cfg.MaxAge.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers := w.Header()
			headers.Add("Vary", "Origin")
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			allowOrigin, ok := origins.allow(origin, cfg.AllowCredentials)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			headers.Set("Access-Control-Allow-Origin", allowOrigin)
			if cfg.AllowCredentials {
				headers.Set("Access-Control-Allow-Credentials", "true")
			}
			if exposedHeaders != "" {
				headers.Set("Access-Control-Expose-Headers", exposedHeaders)
			}

			requested := r.Header.Get("Access-Control-Request-Method")
			if r.Method != http.MethodOptions || requested == "" {
				next.ServeHTTP(w, r)
				return
			}
			headers.Add("Vary", "Access-Control-Request-Method")
			headers.Add("Vary", "Access-Control-Request-Headers")
			if len(methodSet) > 0 && !methodSet[strings.ToUpper(requested)] {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			if allowedMethods != "" {
				headers.Set("Access-Control-Allow-Methods", allowedMethods)
			}
			if allowedHeaders != "" {
				headers.Set("Access-Control-Allow-Headers", allowedHeaders)
			}
			if cfg.MaxAge > 0 {
				headers.Set("Access-Control-Max-Age", maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthMiddleware validates X-Kota-Key or Authorization: Bearer <key> against
// the configured API keys. With no keys configured every request is
// rejected; operators must set KOTA_API_KEYS before the /api surface works.
func AuthMiddleware(apiKeys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-Kota-Key")
			if key == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					key = strings.TrimPrefix(auth, "Bearer ")
				}
			}
			if key == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or missing API key")
				return
			}
			matched := false
			for k := range apiKeys {
				if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
					matched = true
					break
				}
			}
			if !matched {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or missing API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ParseAPIKeys parses KOTA_API_KEYS: comma-separated entries, each "key" or
// "key:label".
func ParseAPIKeys(env string) map[string]string {
	m := make(map[string]string)
	if env == "" {
		return m
	}
	for _, part := range strings.Split(env, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		label := "default"
		if idx := strings.Index(part, ":"); idx > 0 {
			label = strings.TrimSpace(part[idx+1:])
			part = strings.TrimSpace(part[:idx])
		}
		m[part] = label
	}
	return m
}

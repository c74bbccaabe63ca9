package ops

import (
	"net/http"
	"strings"
)

// exemptPaths bypass authentication so probes and scrapers work without
// credentials.
var exemptPaths = map[string]struct{}{
	"/healthz": {},
	"/metrics": {},
}

// bearerAuth validates Bearer tokens. An empty key set disables
// authentication entirely.
func bearerAuth(apiKeys []string) func(http.Handler) http.Handler {
	validKeys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			validKeys[k] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		if len(validKeys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error": "authorization header must use Bearer scheme",
				})
				return
			}
			if _, ok := validKeys[auth[len(bearerPrefix):]]; !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error": "invalid api key",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AdminAuth guards staff endpoints with a shared bearer token. An empty token
// disables the admin surface entirely rather than leaving it open.
func AdminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, "Not Found", http.StatusNotFound)
				return
			}

			provided := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

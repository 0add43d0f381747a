package middleware

import (
	"net/http"

	"github.com/MrEthical07/shelfauth"
)

// RequireIdentity rejects requests that reach it without a bound identity.
// It must run inside Authenticate.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := shelfauth.RequireIdentity(r.Context()); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

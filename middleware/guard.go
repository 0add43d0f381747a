package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/shelfauth"
)

// NewTokenHeader carries a renewed token back to the client.
const NewTokenHeader = "X-New-Token"

type outcomeContextKey struct{}

// OutcomeFromContext returns the authentication outcome recorded by
// Authenticate for this request.
func OutcomeFromContext(ctx context.Context) (shelfauth.AuthOutcome, bool) {
	out, ok := ctx.Value(outcomeContextKey{}).(shelfauth.AuthOutcome)
	return out, ok
}

// Authenticate resolves the request's bearer token through engine and binds
// the resulting identity for the duration of next. Requests without a valid
// token pass through anonymously.
func Authenticate(engine *shelfauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				next.ServeHTTP(w, r)
				return
			}

			token, _ := BearerToken(r.Header.Get("Authorization"))
			_ = engine.RunWithIdentity(r.Context(), token, func(ctx context.Context, out shelfauth.AuthOutcome) error {
				if out.RenewedToken != "" {
					w.Header().Set(NewTokenHeader, out.RenewedToken)
				}
				ctx = context.WithValue(ctx, outcomeContextKey{}, out)
				next.ServeHTTP(w, r.WithContext(ctx))
				return nil
			})
		})
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

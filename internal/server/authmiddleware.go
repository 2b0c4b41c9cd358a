package server

import (
	"net/http"

	"github.com/tjfontaine/jarvis/internal/auth"
	"github.com/tjfontaine/jarvis/internal/core/domain"
)

// AuthMiddleware rejects requests without a valid bearer API key.
// If the authenticator is nil, the middleware is a no-op.
func AuthMiddleware(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if authenticator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey, err := auth.ExtractAPIKey(r)
			if err == nil {
				_, err = authenticator.ValidateAPIKey(apiKey)
			}
			if err != nil {
				AddError(r.Context(), err)
				writeError(w, r, domain.ErrAuthentication("missing or invalid API key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

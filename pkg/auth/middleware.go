package auth

import (
	"net/http"
	"strings"

	"github.com/dmitrymomot/mymechanic/pkg/response"
)

// Middleware authenticates requests with an "Authorization: Bearer <token>" header.
// Missing or invalid tokens are rejected with 401 and code "unauthorized".
func Middleware(v Verifier) func(http.Handler) http.Handler {
	if v == nil {
		panic("auth: verifier is required")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				response.Error(w, response.ErrUnauthorized.WithMessage("Access token required"), nil)
				return
			}

			id, err := v.Verify(token)
			if err != nil {
				response.Error(w, response.ErrUnauthorized.WithMessage("Invalid or expired token"), nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

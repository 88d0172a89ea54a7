package middleware

import (
	"net/http"

	"github.com/campusswap/api/internal/domain"
)

// TokenVerifier checks the api_token cookie against one site's key.
type TokenVerifier interface {
	Verify(site domain.Site, token string) error
}

// APIToken returns middleware that requires a valid api_token cookie for one
// site. The token only proves the request came through the site's own build;
// user identity is the session cookie's job.
func APIToken(verifier TokenVerifier, site domain.Site) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("api_token")
			if err != nil || cookie.Value == "" {
				http.Error(w, `{"error":"Unable to verify"}`, http.StatusUnauthorized)
				return
			}
			if err := verifier.Verify(site, cookie.Value); err != nil {
				http.Error(w, `{"error":"Unable to verify"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

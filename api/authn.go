/*
authn.go - Optional bearer-token authentication

PURPOSE:
  Guards the /api routes with an HS256 JWT check. Authentication is off by
  default (single-shop deployments run on a trusted LAN); setting a secret
  turns it on for every non-public path.

TOKEN CONTRACT:
  Authorization: Bearer <jwt>, HS256-signed with the configured secret.
  Expiry is honored via jwt's RegisteredClaims validation; no roles or
  permissions, possession of a valid token grants full access.

SEE ALSO:
  - server.go: middleware ordering
*/
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/metrics",
	"/healthz",
}

// withAuth returns the bearer-token middleware, or a pass-through when no
// secret is configured.
func withAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		key := []byte(secret)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token, err := extractBearerToken(r.Header.Get(authHeader))
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error(), nil)
				return
			}

			_, err = jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
				func(t *jwt.Token) (any, error) {
					if t.Method != jwt.SigningMethodHS256 {
						return nil, errors.New("unexpected signing method")
					}
					return key, nil
				})
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	if !strings.HasPrefix(header, bearer) {
		return "", errors.New("malformed authorization header")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearer))
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}

package auth

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
)

type contextKey string

// PrincipalContextKey is the context key for the authenticated principal.
const PrincipalContextKey contextKey = "principal"

// GetPrincipalFromContext retrieves the authenticated principal.
func GetPrincipalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(PrincipalContextKey).(*Principal); ok {
		return p
	}
	return nil
}

// Middleware enforces Basic Authentication on every request except the
// well-known redirects.
func Middleware(authenticator Authenticator, realm string) func(http.Handler) http.Handler {
	if realm == "" {
		realm = "remdav"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/.well-known/") {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				requestAuth(w, realm)
				return
			}

			creds, err := parseBasicAuth(authHeader)
			if err != nil {
				requestAuth(w, realm)
				return
			}

			principal, err := authenticator.Authenticate(r.Context(), creds)
			if err != nil {
				requestAuth(w, realm)
				return
			}

			if err := authenticator.ValidateAccess(r.Context(), principal, r.URL.Path); err != nil {
				if err, ok := err.(*Error); ok && err.Type == ErrForbidden {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
				requestAuth(w, realm)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestAuth(w http.ResponseWriter, realm string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// parseBasicAuth decodes an HTTP Basic Authentication header value.
func parseBasicAuth(auth string) (Credentials, error) {
	const prefix = "Basic "
	if !strings.HasPrefix(auth, prefix) {
		return Credentials{}, &Error{
			Type:    ErrInvalidCredentials,
			Message: "invalid authorization header format",
		}
	}

	decoded, err := base64.StdEncoding.DecodeString(auth[len(prefix):])
	if err != nil {
		return Credentials{}, &Error{
			Type:    ErrInvalidCredentials,
			Message: "invalid base64 encoding",
			Err:     err,
		}
	}

	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return Credentials{}, &Error{
			Type:    ErrInvalidCredentials,
			Message: "invalid credentials format",
		}
	}

	return Credentials{Username: parts[0], Password: parts[1]}, nil
}

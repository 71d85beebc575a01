package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"edugate.org/internal/token"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withAuth gates every request behind a valid access token, except paths
// under a configured excluded prefix. On success the resolved identity and
// the raw token are attached to the request context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if a.isExcludedPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		raw, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "authentication_required", err.Error())
			return
		}

		identity, err := a.tokens.Validate(raw)
		if err != nil {
			code, msg := authFailure(err)
			writeError(w, r, http.StatusUnauthorized, code, msg)
			return
		}

		// A still-unexpired access token may have been blacklisted by a
		// forced logout.
		revoked, err := a.tokens.IsRevoked(r.Context(), identity.TokenID)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "authentication_error", "authentication error")
			return
		}
		if revoked {
			writeError(w, r, http.StatusUnauthorized, "token_revoked", "token revoked")
			return
		}

		ctx := token.ContextWithIdentity(r.Context(), identity)
		ctx = token.ContextWithRaw(ctx, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) isExcludedPath(path string) bool {
	for _, prefix := range a.authExclude {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// authFailure maps token validation errors to the client-facing error code
// without leaking internal detail.
func authFailure(err error) (code, msg string) {
	switch {
	case errors.Is(err, token.ErrExpired):
		return "token_expired", "token expired"
	case errors.Is(err, token.ErrRevoked):
		return "token_revoked", "token revoked"
	default:
		return "invalid_token", "invalid token"
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	tok := strings.TrimSpace(header[len(bearer):])
	if tok == "" {
		return "", errors.New("missing bearer token")
	}
	return tok, nil
}

package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"edugate.org/internal/audit"
	"edugate.org/internal/token"
)

type mintRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	Email  string `json:"email,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// handleAuthToken mints a token pair for an already-verified identity.
// Credential verification itself lives in the auth service; this endpoint
// is called after a successful login.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req mintRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "bad_request", "user_id is required")
		return
	}

	pair, err := a.tokens.Issue(token.Identity{
		ID:    userID,
		Role:  strings.TrimSpace(req.Role),
		Email: strings.TrimSpace(req.Email),
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token_issue_failed", "token generation failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.token.issued", map[string]any{
		"user":       userID,
		"expires_in": pair.ExpiresIn,
	})

	writeJSON(w, http.StatusOK, pairResponse(pair))
}

// handleAuthRefresh rotates a refresh token. The presented token is
// invalidated whether or not a new pair is issued, so a replayed refresh
// always fails.
func (a *API) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, r, http.StatusBadRequest, "bad_request", "refresh_token is required")
		return
	}

	pair, err := a.tokens.Rotate(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, token.ErrInvalidToken) {
			writeError(w, r, http.StatusUnauthorized, "invalid_token", "invalid refresh token")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "token_refresh_failed", "token refresh failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.token.refreshed", map[string]any{
		"expires_in": pair.ExpiresIn,
	})

	writeJSON(w, http.StatusOK, pairResponse(pair))
}

// handleAuthLogout blacklists the presented access token for its remaining
// lifetime, so it is rejected immediately even though it has not expired.
func (a *API) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
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

	if err := a.tokens.Revoke(r.Context(), identity.TokenID, time.Until(identity.ExpiresAt)); err != nil {
		writeError(w, r, http.StatusInternalServerError, "logout_failed", "logout failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.logout", map[string]any{
		"user": identity.ID,
	})

	w.WriteHeader(http.StatusNoContent)
}

func pairResponse(pair token.Pair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    pair.ExpiresIn,
		IssuedAt:     pair.IssuedAt,
	}
}

package httpapi

import (
	"net/http"
	"strings"
	"time"

	"metergate.org/internal/auth"
	"metergate.org/internal/authz"
	"metergate.org/internal/billing"
)

type tokenRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Tier   string `json:"tier"`
}

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type revokeRequest struct {
	Token string `json:"token"`
}

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, typeValidation, err.Error(), nil)
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		writeError(w, r, typeValidation, "user_id is required", nil)
		return
	}
	role := auth.NormalizeRole(req.Role)
	tier := auth.NormalizeTier(req.Tier)
	if !role.Known() {
		writeError(w, r, typeValidation, "unknown role", map[string]any{"role": req.Role})
		return
	}
	if !tier.Known() {
		writeError(w, r, typeValidation, "unknown tier", map[string]any{"tier": req.Tier})
		return
	}

	access, expiresAt, err := a.auth.Issue(userID, role, tier, auth.TokenAccess, a.accessTTL)
	if err != nil {
		writeError(w, r, typeInternal, "token generation failed", nil)
		return
	}
	refresh, _, err := a.auth.Issue(userID, role, tier, auth.TokenRefresh, a.refreshTTL)
	if err != nil {
		writeError(w, r, typeInternal, "token generation failed", nil)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	})
}

func (a *API) handleAuthRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.gate(Route{Permission: authz.PermRevokeTokens}, func(w http.ResponseWriter, r *http.Request, claims auth.Claims) (any, billing.Metrics, error) {
		var req revokeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return nil, billing.Metrics{}, badRequest(err.Error())
		}
		token := strings.TrimSpace(req.Token)
		if token == "" {
			return nil, billing.Metrics{}, badRequest("token is required")
		}
		a.auth.Revoke(r.Context(), token)
		return map[string]any{"status": "revoked"}, billing.Metrics{}, nil
	})(w, r)
}

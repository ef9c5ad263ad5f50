package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"metergate.org/internal/auth"
	"metergate.org/internal/billing"
	"metergate.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// Route describes one gated endpoint: the permission the caller must hold
// and the billing bucket successful calls are metered into.
type Route struct {
	Permission string
	Category   string
	Operation  string
}

// gatedHandler runs after the guard pipeline admits the request. It returns
// the response payload and the consumption to meter; usage is recorded only
// when the handler succeeds.
type gatedHandler func(w http.ResponseWriter, r *http.Request, claims auth.Claims) (any, billing.Metrics, error)

// gate is the fixed-order guard pipeline: authenticate, authorize,
// rate-limit, then the business handler, then metering. Each stage returns a
// verdict; the first denial short-circuits the chain.
func (a *API) gate(route Route, fn gatedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, typeAuthentication, err.Error(), nil)
			return
		}

		claims, err := a.auth.Verify(r.Context(), token, auth.TokenAccess)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		ctx := auth.ContextWithClaims(r.Context(), claims)
		ctx = auth.ContextWithToken(ctx, token)
		r = r.WithContext(ctx)

		if route.Permission != "" {
			if err := a.resolver.RequirePermission(ctx, claims, route.Permission); err != nil {
				writeDomainError(w, r, err)
				return
			}
		}

		endpoint := obs.CanonicalPath(r.URL.Path)
		decision, err := a.limiter.Admit(claims.Subject, endpoint, claims.Tier)
		if err != nil {
			obs.LogEntry(map[string]any{
				"level":      "error",
				"msg":        "rate limiter fault",
				"error":      err.Error(),
				"request_id": requestID(r),
			})
			writeRateLimited(w, r, decision)
			return
		}
		if !decision.Allowed {
			writeRateLimited(w, r, decision)
			return
		}
		setRateLimitHeaders(w, decision)

		payload, metrics, err := fn(w, r, claims)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		if route.Category != "" {
			if err := a.meter.Record(ctx, claims.Subject, route.Category, route.Operation, metrics); err != nil {
				obs.LogEntry(map[string]any{
					"level":      "error",
					"msg":        "usage record failed",
					"error":      err.Error(),
					"request_id": requestID(r),
				})
			}
		}

		writeJSON(w, http.StatusOK, payload)
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
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

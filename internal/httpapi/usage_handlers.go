package httpapi

import (
	"net/http"
	"strings"
	"time"

	"metergate.org/internal/auth"
	"metergate.org/internal/authz"
	"metergate.org/internal/billing"
)

// handleUsage serves GET /v1/usage/{id}. Callers may always read their own
// usage; reading another identity's usage requires view:all_usage.
func (a *API) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	a.gate(Route{}, func(w http.ResponseWriter, r *http.Request, claims auth.Claims) (any, billing.Metrics, error) {
		id := strings.TrimPrefix(r.URL.Path, "/v1/usage/")
		id = strings.TrimSuffix(id, "/")
		if id == "" || strings.Contains(id, "/") {
			return nil, billing.Metrics{}, badRequest("usage id is required")
		}

		if id != claims.Subject {
			if err := a.resolver.RequirePermission(r.Context(), claims, authz.PermViewAllUsage); err != nil {
				return nil, billing.Metrics{}, err
			}
		}

		period, err := periodFromQuery(r.URL.Query().Get("month"))
		if err != nil {
			return nil, billing.Metrics{}, badRequest(err.Error())
		}

		rec, err := a.meter.Summary(r.Context(), id, period)
		if err != nil {
			return nil, billing.Metrics{}, err
		}
		return rec, billing.Metrics{}, nil
	})(w, r)
}

// periodFromQuery parses an optional YYYY-MM month selector, defaulting to
// the current month.
func periodFromQuery(raw string) (billing.Period, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return billing.MonthOf(time.Now()), nil
	}
	t, err := time.Parse("2006-01", raw)
	if err != nil {
		return billing.Period{}, err
	}
	return billing.MonthOf(t), nil
}

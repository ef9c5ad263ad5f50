package httpapi

import (
	"net/http"
	"strings"
	"time"

	"metergate.org/internal/auth"
	"metergate.org/internal/authz"
	"metergate.org/internal/billing"
)

type generateInvoiceRequest struct {
	UserID string `json:"user_id"`
	Month  string `json:"month"`
}

type finalizeInvoiceRequest struct {
	Payment *paymentInfo `json:"payment"`
}

type paymentInfo struct {
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

type batchInvoiceRequest struct {
	UserIDs []string `json:"user_ids"`
	Month   string   `json:"month"`
}

// handleInvoicesCollection serves POST /v1/invoices (generate one) and is
// the mount for the batch route.
func (a *API) handleInvoicesCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.gate(Route{Permission: authz.PermAdminBilling}, a.generateInvoice)(w, r)
}

func (a *API) handleInvoiceResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/invoices/")
	path = strings.TrimSuffix(path, "/")

	if path == "batch" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.gate(Route{Permission: authz.PermAdminBilling}, a.generateBatch)(w, r)
		return
	}

	if id, ok := strings.CutSuffix(path, "/finalize"); ok {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.gate(Route{Permission: authz.PermAdminBilling}, a.finalizeInvoice(id))(w, r)
		return
	}

	if path == "" || strings.Contains(path, "/") {
		writeError(w, r, typeNotFound, "resource not found", nil)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	a.gate(Route{Permission: authz.PermAdminBilling}, a.getInvoice(path))(w, r)
}

func (a *API) generateInvoice(w http.ResponseWriter, r *http.Request, claims auth.Claims) (any, billing.Metrics, error) {
	var req generateInvoiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nil, billing.Metrics{}, badRequest(err.Error())
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, billing.Metrics{}, badRequest("user_id is required")
	}
	period, err := invoicePeriod(req.Month)
	if err != nil {
		return nil, billing.Metrics{}, badRequest(err.Error())
	}

	user, err := a.users.Find(r.Context(), userID)
	if err != nil {
		return nil, billing.Metrics{}, err
	}
	inv, err := a.calc.GenerateInvoice(r.Context(), userID, period, user.Tier)
	if err != nil {
		return nil, billing.Metrics{}, err
	}
	return inv, billing.Metrics{}, nil
}

func (a *API) getInvoice(id string) gatedHandler {
	return func(w http.ResponseWriter, r *http.Request, claims auth.Claims) (any, billing.Metrics, error) {
		inv, err := a.calc.GetInvoice(r.Context(), id)
		if err != nil {
			return nil, billing.Metrics{}, err
		}
		return inv, billing.Metrics{}, nil
	}
}

func (a *API) finalizeInvoice(id string) gatedHandler {
	return func(w http.ResponseWriter, r *http.Request, claims auth.Claims) (any, billing.Metrics, error) {
		var req finalizeInvoiceRequest
		if r.ContentLength > 0 {
			if err := decodeJSON(w, r, &req); err != nil {
				return nil, billing.Metrics{}, badRequest(err.Error())
			}
		}
		var payment *billing.PaymentInfo
		if req.Payment != nil {
			payment = &billing.PaymentInfo{
				Method:    req.Payment.Method,
				Reference: req.Payment.Reference,
				PaidAt:    time.Now().UTC(),
			}
		}
		inv, err := a.calc.FinalizeInvoice(r.Context(), id, payment)
		if err != nil {
			return nil, billing.Metrics{}, err
		}
		return inv, billing.Metrics{}, nil
	}
}

func (a *API) generateBatch(w http.ResponseWriter, r *http.Request, claims auth.Claims) (any, billing.Metrics, error) {
	var req batchInvoiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nil, billing.Metrics{}, badRequest(err.Error())
	}
	if len(req.UserIDs) == 0 {
		return nil, billing.Metrics{}, badRequest("user_ids are required")
	}
	period, err := invoicePeriod(req.Month)
	if err != nil {
		return nil, billing.Metrics{}, badRequest(err.Error())
	}
	result := a.calc.GenerateBatch(r.Context(), req.UserIDs, period)
	return result, billing.Metrics{}, nil
}

// invoicePeriod parses an optional YYYY-MM selector.
func invoicePeriod(raw string) (billing.Period, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		// Default to the previous calendar month, the one that is complete
		// and billable.
		current := billing.MonthOf(time.Now())
		return billing.MonthOf(current.Start.Add(-time.Hour)), nil
	}
	t, err := time.Parse("2006-01", raw)
	if err != nil {
		return billing.Period{}, err
	}
	return billing.MonthOf(t), nil
}

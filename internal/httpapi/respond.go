package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"metergate.org/internal/audit"
	"metergate.org/internal/auth"
	"metergate.org/internal/authz"
	"metergate.org/internal/billing"
	"metergate.org/internal/directory"
	"metergate.org/internal/ratelimit"
)

// Error types carried in the error envelope.
const (
	typeAuthentication = "authentication_error"
	typeAuthorization  = "authorization_error"
	typeTierLimit      = "tier_limit_error"
	typeRateLimit      = "rate_limit_exceeded"
	typeValidation     = "validation_error"
	typeNotFound       = "not_found"
	typeInternal       = "internal_error"
)

var statusForType = map[string]int{
	typeAuthentication: http.StatusUnauthorized,
	typeAuthorization:  http.StatusForbidden,
	typeTierLimit:      http.StatusForbidden,
	typeRateLimit:      http.StatusTooManyRequests,
	typeValidation:     http.StatusBadRequest,
	typeNotFound:       http.StatusNotFound,
	typeInternal:       http.StatusInternalServerError,
}

type errorEnvelope struct {
	Status   string        `json:"status"`
	Message  string        `json:"message"`
	Error    errorDetail   `json:"error"`
	Metadata errorMetadata `json:"metadata"`
}

type errorDetail struct {
	Type    string         `json:"type"`
	Details map[string]any `json:"details,omitempty"`
}

type errorMetadata struct {
	Timestamp        string  `json:"timestamp"`
	ProcessingTimeMS float64 `json:"processing_time_ms"`
}

// apiError lets handlers return a fully shaped denial or validation failure.
type apiError struct {
	errType string
	message string
	details map[string]any
}

func (e *apiError) Error() string { return e.message }

func badRequest(msg string) *apiError {
	return &apiError{errType: typeValidation, message: msg}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, errType, message string, details map[string]any) {
	code, ok := statusForType[errType]
	if !ok {
		code = http.StatusInternalServerError
	}
	writeErrorCode(w, r, code, errType, message, details)
}

func writeErrorCode(w http.ResponseWriter, r *http.Request, code int, errType, message string, details map[string]any) {
	writeJSON(w, code, errorEnvelope{
		Status:  "error",
		Message: message,
		Error:   errorDetail{Type: errType, Details: details},
		Metadata: errorMetadata{
			Timestamp:        time.Now().UTC().Format(time.RFC3339),
			ProcessingTimeMS: processingTime(r),
		},
	})
}

// writeDomainError translates typed failure values from the core into
// envelope responses. Unexpected errors surface as a generic internal
// failure without leaking internals.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apiError
	var denial *authz.DenialError

	switch {
	case errors.As(err, &apiErr):
		writeError(w, r, apiErr.errType, apiErr.message, apiErr.details)
	case auth.IsAuthFailure(err):
		writeError(w, r, typeAuthentication, err.Error(), map[string]any{
			"reason": auth.ReasonCode(err),
		})
	case errors.As(err, &denial):
		errType := typeAuthorization
		if denial.Kind == authz.DenialInsufficientTier {
			errType = typeTierLimit
		}
		writeError(w, r, errType, denial.Error(), denial.Details())
	case errors.Is(err, billing.ErrInvoiceNotFound), errors.Is(err, directory.ErrNotFound):
		writeError(w, r, typeNotFound, err.Error(), nil)
	default:
		writeError(w, r, typeInternal, "internal error", nil)
	}
}

// writeRateLimited reports a throttled request with the standard limit
// headers and denial details.
func writeRateLimited(w http.ResponseWriter, r *http.Request, d ratelimit.Decision) {
	setRateLimitHeaders(w, d)
	writeError(w, r, typeRateLimit, "rate limit exceeded", map[string]any{
		"window":           string(d.Window),
		"limit":            d.Limit,
		"current":          d.Current,
		"reset_in_seconds": d.ResetSeconds(),
	})
}

func setRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	if !d.Limited() {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetSeconds(), 10))
}

func processingTime(r *http.Request) float64 {
	start, ok := startTimeFromContext(r.Context())
	if !ok {
		return 0
	}
	return float64(time.Since(start).Microseconds()) / 1000
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeErrorCode(w, r, http.StatusMethodNotAllowed, typeValidation, "method not allowed", nil)
}

func requestID(r *http.Request) string {
	return audit.RequestIDFromContext(r.Context())
}

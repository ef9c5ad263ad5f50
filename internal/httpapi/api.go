package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"metergate.org/internal/auth"
	"metergate.org/internal/authz"
	"metergate.org/internal/billing"
	"metergate.org/internal/directory"
	"metergate.org/internal/obs"
	"metergate.org/internal/ratelimit"
)

// ReadyProbe reports whether downstream dependencies are reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps are the core services the HTTP layer calls into. Everything is
// constructed once at startup and injected; the handlers hold no state of
// their own.
type Deps struct {
	Auth       *auth.Authenticator
	Resolver   *authz.Resolver
	Limiter    *ratelimit.Limiter
	Meter      billing.Meter
	Calculator *billing.Calculator
	Users      directory.Directory

	ReadyProbe      ReadyProbe
	Version         string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	MaxBodyBytes    int64
	FloodGuardRPS   float64
	FloodGuardBurst int
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Authenticator
	resolver   *authz.Resolver
	limiter    *ratelimit.Limiter
	meter      billing.Meter
	calc       *billing.Calculator
	users      directory.Directory
	readyProbe ReadyProbe
	version    string
	accessTTL  time.Duration
	refreshTTL time.Duration

	maxBodyBytes    int64
	floodGuardRPS   float64
	floodGuardBurst int
}

func New(d Deps) *API {
	a := &API{
		mux:             http.NewServeMux(),
		auth:            d.Auth,
		resolver:        d.Resolver,
		limiter:         d.Limiter,
		meter:           d.Meter,
		calc:            d.Calculator,
		users:           d.Users,
		readyProbe:      d.ReadyProbe,
		version:         d.Version,
		accessTTL:       d.AccessTTL,
		refreshTTL:      d.RefreshTTL,
		maxBodyBytes:    d.MaxBodyBytes,
		floodGuardRPS:   d.FloodGuardRPS,
		floodGuardBurst: d.FloodGuardBurst,
	}
	if a.accessTTL <= 0 {
		a.accessTTL = time.Hour
	}
	if a.refreshTTL <= 0 {
		a.refreshTTL = 30 * 24 * time.Hour
	}
	if a.maxBodyBytes <= 0 {
		a.maxBodyBytes = 1 << 20
	}
	if a.floodGuardRPS <= 0 {
		a.floodGuardRPS = 50
	}
	if a.floodGuardBurst <= 0 {
		a.floodGuardBurst = 100
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// token lifecycle
	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)
	a.mux.HandleFunc("/v1/auth/revoke", a.handleAuthRevoke)

	// gated capabilities
	a.mux.HandleFunc("/v1/ai/generate", a.handleAIGenerate)
	a.mux.HandleFunc("/v1/scrape", a.handleScrape)

	// usage and billing
	a.mux.HandleFunc("/v1/usage/", a.handleUsage)
	a.mux.HandleFunc("/v1/invoices", a.handleInvoicesCollection)
	a.mux.HandleFunc("/v1/invoices/", a.handleInvoiceResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = FloodGuard(h, a.floodGuardRPS, a.floodGuardBurst)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "metergate-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "metergate-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

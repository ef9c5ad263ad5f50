package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"metergate.org/internal/audit"
	"metergate.org/internal/auth"
	"metergate.org/internal/authz"
	"metergate.org/internal/billing"
	"metergate.org/internal/config"
	"metergate.org/internal/directory"
	"metergate.org/internal/httpapi"
	"metergate.org/internal/obs"
	"metergate.org/internal/ratelimit"
	"metergate.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	emitter := audit.NewLogEmitter()

	authenticator, err := auth.NewAuthenticator(cfg.AuthSecret, auth.NewMemoryRevocations(),
		auth.WithIssuer(cfg.Issuer),
		auth.WithAuditEmitter(emitter),
	)
	if err != nil {
		log.Fatalf("authenticator: %v", err)
	}
	resolver := authz.NewResolver(emitter)

	// Counters and the user directory move to Postgres when a DSN is set;
	// otherwise everything lives in process memory and resets on restart.
	var users directory.Directory = directory.NewMemory()
	var counters ratelimit.CounterStore = ratelimit.NewMemoryStore()
	var pgStore *pg.Store
	if cfg.PGDSN != "" {
		pgStore, err = pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		users = pgStore

		counterStore, err := ratelimit.NewPGStore(pgStore.DB())
		if err != nil {
			log.Fatalf("counter store: %v", err)
		}
		if err := counterStore.EnsureSchema(); err != nil {
			log.Fatalf("counter schema: %v", err)
		}
		counters = counterStore
	}

	limiter := ratelimit.NewLimiter(counters, ratelimit.DefaultLimits)
	meter := billing.NewMemoryMeter()
	calculator := billing.NewCalculator(meter, billing.DefaultPricing, users,
		billing.WithCalculatorAuditEmitter(emitter))

	probe := httpapi.ReadyProbe{}
	if pgStore != nil {
		probe.DB = pgStore.DB()
	}

	api := httpapi.New(httpapi.Deps{
		Auth:            authenticator,
		Resolver:        resolver,
		Limiter:         limiter,
		Meter:           meter,
		Calculator:      calculator,
		Users:           users,
		ReadyProbe:      probe,
		Version:         version,
		AccessTTL:       cfg.AccessTTL,
		RefreshTTL:      cfg.RefreshTTL,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		FloodGuardRPS:   cfg.FloodGuardRPS,
		FloodGuardBurst: cfg.FloodGuardBurst,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	log.Printf("Starting metergate-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}

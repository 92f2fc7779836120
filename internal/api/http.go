package api

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bher20/tariffmatrix/internal/api/swagger"
	"github.com/bher20/tariffmatrix/internal/auth"
	"github.com/bher20/tariffmatrix/internal/catalog"
	"github.com/bher20/tariffmatrix/internal/config"
	"github.com/bher20/tariffmatrix/internal/migrate"
	"github.com/bher20/tariffmatrix/internal/notification"
	"github.com/bher20/tariffmatrix/internal/storage"
)

// NewMux constructs the HTTP mux, wiring in the catalog service, metrics,
// auth, and health endpoints.
func NewMux() *http.ServeMux {
	cfg := config.FromEnv()
	ctx := context.Background()

	// Optional auto-migration: run `goose up` on startup when enabled.
	if cfg.AutoMigrate && cfg.DBDriver != "memory" {
		if err := migrate.Up(ctx, cfg.DBDriver, cfg.DBDSN); err != nil {
			log.Printf("auto-migration failed: %v", err)
		}
	}

	// When using the in-memory storage, preload the built-in sample tariffs
	// so a fresh deployment has something to serve.
	stCfg := storage.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN}
	if cfg.DBDriver == "memory" {
		stCfg.Tariffs = catalog.SampleDocs()
	}

	var svc *catalog.Service
	st, err := storage.Open(ctx, stCfg)
	if err != nil {
		log.Printf("storage.Open failed (driver=%s dsn=%s): %v; falling back to sample-only mode", cfg.DBDriver, cfg.DBDSN, err)
		st = nil
		svc = catalog.NewService()
	} else {
		log.Printf("catalog service using storage backend driver=%s", cfg.DBDriver)
		svc = catalog.NewServiceWithStorage(st)
	}

	var authSvc *auth.Service
	if st != nil {
		authSvc, err = auth.NewService(st)
		if err != nil {
			log.Printf("auth service init failed: %v; write endpoints disabled", err)
			authSvc = nil
		}
	}

	mux := http.NewServeMux()

	// Metrics endpoint.
	mux.Handle("/metrics", promhttp.Handler())

	// Health / readiness / liveness.
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			// Sample-only mode has no backend to wait for.
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		if err := st.Ping(r.Context()); err != nil {
			log.Printf("readyz: db ping failed: %v", err)
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})

	// Tariff catalog API.
	registerTariffRoutes(mux, svc, authSvc)

	// Internal refresh endpoint for CronJobs / manual refresh.
	RegisterRefreshHandler(mux, svc)

	// Auth and settings endpoints need a real backend.
	if st != nil && authSvc != nil {
		registerAuthRoutes(mux, authSvc, st)
		registerNotificationRoutes(mux, authSvc, notification.NewService(st))
	}

	// API documentation.
	mux.Handle("/swagger/", http.StripPrefix("/swagger", swagger.Handler()))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/swagger/", http.StatusFound)
	})

	return mux
}

// requirePermission enforces obj/act for the request's token. A nil auth
// service denies everything, since there is no way to grant access.
func requirePermission(authSvc *auth.Service, r *http.Request, obj, act string) bool {
	if authSvc == nil {
		return false
	}
	token, ok := r.Context().Value(auth.TokenContextKey).(*storage.Token)
	if !ok {
		return false
	}
	allowed, err := authSvc.Enforce(token.UserID, obj, act)
	if err != nil {
		log.Printf("enforce %s/%s failed: %v", obj, act, err)
		return false
	}
	return allowed
}

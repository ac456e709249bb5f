// main wires configuration, stores, the provider client, and the HTTP router,
// and runs the server until interrupted. Business logic lives in the internal
// services packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"formbridge/internal/airtable"
	"formbridge/internal/auth/broker"
	authhandler "formbridge/internal/auth/handler"
	"formbridge/internal/auth/provider"
	authservice "formbridge/internal/auth/service"
	"formbridge/internal/auth/store/attempt"
	"formbridge/internal/auth/store/principal"
	formhandler "formbridge/internal/form/handler"
	formservice "formbridge/internal/form/service"
	formstore "formbridge/internal/form/store"
	"formbridge/internal/jwttoken"
	"formbridge/internal/meta"
	"formbridge/internal/platform/config"
	"formbridge/internal/platform/httpserver"
	"formbridge/internal/platform/logger"
	"formbridge/internal/platform/metrics"
	"formbridge/internal/platform/middleware"
	platformredis "formbridge/internal/platform/redis"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	// Stores: Postgres when DATABASE_URL is set, in-memory otherwise.
	var (
		principals principal.Store
		forms      formstore.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(context.Background()); err != nil {
			log.Error("ping database", "error", err)
			os.Exit(1)
		}
		principals = principal.NewPostgres(db)
		forms = formstore.NewPostgres(db)
		log.Info("using postgres stores")
	} else {
		principals = principal.NewMemory()
		forms = formstore.NewMemory()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	// Login attempt cache: Redis when configured, in-memory otherwise.
	var attempts attempt.Store
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		attempts = attempt.NewRedis(redisClient.Client, cfg.AttemptTTL)
		log.Info("using redis attempt cache")
	} else {
		memAttempts := attempt.NewMemory(cfg.AttemptTTL)
		attempts = memAttempts
		go sweepAttempts(memAttempts, log)
	}

	remote := airtable.New(cfg.Provider.APIBaseURL, log)
	oauth := provider.New(cfg.Provider)
	sessions := jwttoken.NewService(cfg.JWTSigningKey, "formbridge", "formbridge-frontend", 24*time.Hour)
	tokens := broker.New(principals, oauth, m, log)

	authSvc := authservice.New(attempts, principals, oauth, remote, sessions, m, log)
	formSvc := formservice.New(forms, tokens, remote, m, log)

	requireAuth := middleware.RequireAuth(sessions, log)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Latency(m))
	router.Use(middleware.Timeout(requestTimeout))

	authhandler.New(authSvc, cfg.FrontendURL, requireAuth, log).Register(router)
	formhandler.New(formSvc, requireAuth, log).Register(router)
	meta.New(tokens, remote, requireAuth, log).Register(router)

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting formbridge", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("formbridge stopped")
}

// sweepAttempts evicts expired login attempts from the in-memory cache. The
// Redis cache expires keys on its own.
func sweepAttempts(s *attempt.MemoryStore, log *slog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		n, err := s.SweepExpired(context.Background(), time.Now().UTC())
		if err != nil {
			log.Error("sweep login attempts", "error", err)
			continue
		}
		if n > 0 {
			log.Debug("swept expired login attempts", "count", n)
		}
	}
}

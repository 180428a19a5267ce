package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/coinloop/rewards-api/internal/config"
	"github.com/coinloop/rewards-api/internal/domain/engagement"
	"github.com/coinloop/rewards-api/internal/domain/events"
	"github.com/coinloop/rewards-api/internal/domain/expiry"
	"github.com/coinloop/rewards-api/internal/domain/ledger"
	"github.com/coinloop/rewards-api/internal/domain/quota"
	"github.com/coinloop/rewards-api/internal/domain/rewards"
	"github.com/coinloop/rewards-api/internal/domain/statement"
	"github.com/coinloop/rewards-api/internal/domain/streak"
	"github.com/coinloop/rewards-api/internal/middleware"
	"github.com/coinloop/rewards-api/internal/pkg/database"
	"github.com/coinloop/rewards-api/internal/pkg/jwt"
	"github.com/coinloop/rewards-api/internal/pkg/logger"
	pkgresponse "github.com/coinloop/rewards-api/internal/pkg/response"
	"github.com/coinloop/rewards-api/internal/pkg/storage"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting CoinLoop rewards API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	var objectStorage *storage.ObjectStorage
	if cfg.StorageBucketName != "" {
		objectStorage, err = storage.New(storage.Config{
			AccountID:       cfg.StorageAccountID,
			AccessKeyID:     cfg.StorageAccessKeyID,
			AccessKeySecret: cfg.StorageAccessKeySecret,
			BucketName:      cfg.StorageBucketName,
			PublicURL:       cfg.StoragePublicURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create object storage client")
		}
	} else {
		log.Warn().Msg("Object storage not configured, statement export disabled")
	}

	// ---------- Repositories ----------
	ledgerRepo := ledger.NewRepository(db)
	quotaRepo := quota.NewRepository(db)
	streakRepo := streak.NewRepository(db)
	engagementRepo := engagement.NewRepository(db)
	expiryRepo := expiry.NewRepository(db, ledgerRepo)

	// ---------- WebSocket hub ----------
	hub := events.NewHub(redis)
	go hub.Run()
	defer hub.Close()

	// ---------- Services ----------
	ledgerService := ledger.NewService(ledgerRepo)
	quotaService := quota.NewService(quotaRepo)
	streakService := streak.NewService(streakRepo)
	engagementStore := engagement.NewCachedStore(engagementRepo, redis, cfg.EngagementCacheTTL)
	engagementService := engagement.NewService(engagementStore, engagementRepo)
	rewardsService := rewards.NewService(ledgerService, quotaService, streakService, engagementService, hub)
	expiryService := expiry.NewService(expiryRepo, hub)
	statementService := statement.NewService(ledgerRepo, objectStorage)

	// ---------- Handlers ----------
	ledgerHandler := ledger.NewHandler(ledgerService)
	streakHandler := streak.NewHandler(streakService)
	engagementHandler := engagement.NewHandler(engagementService)
	rewardsHandler := rewards.NewHandler(rewardsService)
	statementHandler := statement.NewHandler(statementService)
	eventsHandler := events.NewHandler(hub, jwtService)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Background sweeper ----------
	// The standalone sweeper binary covers deployments that want the sweep
	// isolated; in-process ticking is the default for single-node setups.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	if cfg.SweepInterval > 0 {
		go runSweeper(sweepCtx, expiryService, cfg.SweepInterval, cfg.CoinRetentionDays)
	}

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	// WebSocket endpoint stays outside Compress.
	r.Get("/ws", eventsHandler.Serve)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Compress(5))
		// Not on the router root: http.TimeoutHandler cannot wrap the
		// WebSocket upgrade.
		r.Use(middleware.Timeout(30 * time.Second))

		r.Route("/coins", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(authMiddleware)
				r.Get("/balance", ledgerHandler.Balance)
				r.Get("/history", ledgerHandler.History)
			})
			r.Mount("/statement", statementHandler.Routes(authMiddleware))
			r.Mount("/", rewardsHandler.Routes(authMiddleware))
		})
		r.Route("/streaks", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/{type}", streakHandler.Get)
			r.Get("/{type}/claims", streakHandler.Claims)
			r.Post("/{type}/claim/{day}", rewardsHandler.ClaimMilestone)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Mount("/engagement", engagementHandler.Routes(authMiddleware, middleware.RequireAdmin()))
			r.Group(func(r chi.Router) {
				r.Use(authMiddleware, middleware.RequireAdmin())
				r.Post("/coins/grant", rewardsHandler.Grant)
				r.Post("/coins/revoke", rewardsHandler.Revoke)
			})
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

func runSweeper(ctx context.Context, svc *expiry.Service, interval time.Duration, retentionDays int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.Sweep(ctx, retentionDays); err != nil {
				log.Error().Err(err).Msg("Expiry sweep failed")
			}
		}
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coinloop/rewards-api/internal/config"
	"github.com/coinloop/rewards-api/internal/domain/events"
	"github.com/coinloop/rewards-api/internal/domain/expiry"
	"github.com/coinloop/rewards-api/internal/domain/ledger"
	"github.com/coinloop/rewards-api/internal/pkg/database"
	"github.com/coinloop/rewards-api/internal/pkg/logger"
	"github.com/coinloop/rewards-api/internal/pkg/storage"
)

// Standalone expiry sweeper. Run with -interval 0 for a single pass, e.g.
// from cron; any positive interval keeps the process ticking until a signal.
func main() {
	var (
		interval      = flag.Duration("interval", 0, "sweep interval; 0 runs a single pass and exits")
		retentionDays = flag.Int("retention-days", 0, "fallback retention for entries without an expiry date; 0 uses COIN_RETENTION_DAYS")
	)
	flag.Parse()

	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	retention := *retentionDays
	if retention <= 0 {
		retention = cfg.CoinRetentionDays
	}

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	var reportStore *storage.ObjectStorage
	if cfg.StorageBucketName != "" {
		reportStore, err = storage.New(storage.Config{
			AccountID:       cfg.StorageAccountID,
			AccessKeyID:     cfg.StorageAccessKeyID,
			AccessKeySecret: cfg.StorageAccessKeySecret,
			BucketName:      cfg.StorageBucketName,
			PublicURL:       cfg.StoragePublicURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create object storage client")
		}
	}

	// Expiry frames reach API instances over the shared Redis channel; the
	// sweeper itself holds no client connections.
	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	if redis != nil {
		defer redis.Close()
	}
	hub := events.NewHub(redis)
	defer hub.Close()

	ledgerRepo := ledger.NewRepository(db)
	svc := expiry.NewService(expiry.NewRepository(db, ledgerRepo), hub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *interval <= 0 {
		if err := sweep(ctx, svc, retention, reportStore); err != nil {
			os.Exit(1)
		}
		return
	}

	log.Info().Dur("interval", *interval).Int("retention_days", retention).Msg("Sweeper started")
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Sweeper stopped")
			return
		case <-ticker.C:
			sweep(ctx, svc, retention, reportStore)
		}
	}
}

func sweep(ctx context.Context, svc *expiry.Service, retentionDays int, reportStore *storage.ObjectStorage) error {
	result, err := svc.Sweep(ctx, retentionDays)
	if err != nil {
		log.Error().Err(err).Msg("Sweep failed")
		return err
	}

	log.Info().
		Str("run_id", result.RunID.String()).
		Int("users", result.UsersSwept).
		Int("users_failed", result.UsersFailed).
		Int("entries", result.EntriesExpired).
		Int64("coins", result.AmountExpired).
		Msg("Sweep complete")

	uploadReport(ctx, reportStore, result)
	return nil
}

// uploadReport stores the run summary as JSON. Best effort: a missing bucket
// or a storage fault never fails a sweep that already committed.
func uploadReport(ctx context.Context, reportStore *storage.ObjectStorage, result *expiry.SweepResult) {
	if reportStore == nil {
		return
	}

	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return
	}

	key := fmt.Sprintf("sweep-reports/%s/%s.json",
		result.StartedAt.UTC().Format("2006-01-02"), result.RunID)
	if err := reportStore.Put(ctx, key, bytes.NewReader(body), "application/json"); err != nil {
		log.Warn().Err(err).Str("run_id", result.RunID.String()).Msg("Failed to upload sweep report")
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"classhub/server/internal/config"
	"classhub/server/internal/db"
	"classhub/server/internal/feeschedule"
	internalhttp "classhub/server/internal/http"
	"classhub/server/internal/jobs"
	"classhub/server/internal/payment"
	"classhub/server/internal/repository"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	store := repository.NewStore(pool)

	schedule, err := feeschedule.New(cfg.FeeScheduleJSON, cfg.BusFeeJSON)
	if err != nil {
		log.Fatalf("fee schedule config invalid: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
	}

	var gateway payment.Gateway
	if cfg.PaymentKeyID != "" && cfg.PaymentKeySecret != "" {
		gateway = payment.NewClient(cfg.PaymentBaseURL, cfg.PaymentKeyID, cfg.PaymentKeySecret)
	}

	feeGen := jobs.NewFeeGenerator(store, schedule)
	reaper := jobs.NewReaper(store, cfg.ReaperRetention)
	feeLease := jobs.NewLease(redisClient, "classhub:jobs:fee-generation", cfg.JobLeaseDuration)
	reaperLease := jobs.NewLease(redisClient, "classhub:jobs:reaper", cfg.JobLeaseDuration)

	jobs.StartFeeGenerationJob(ctx, cfg, feeGen, feeLease)
	jobs.StartReaperJob(ctx, cfg, reaper, reaperLease)

	server := internalhttp.NewServer(cfg, store, gateway, feeGen, reaper, feeLease, reaperLease)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("classhub http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghostbadfame/CRM-Chase-local/config"
	"github.com/ghostbadfame/CRM-Chase-local/repository"
	"github.com/ghostbadfame/CRM-Chase-local/routes"
	"github.com/ghostbadfame/CRM-Chase-local/service"
	"github.com/ghostbadfame/CRM-Chase-local/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	rolloverOnly := flag.Bool("rollover", false, "run the lead rollover once and exit")
	flag.Parse()

	utils.InitLogger()

	cfg := config.LoadConfig()
	utils.SetJWTSecret(cfg.JWTKey)

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	store, err := repository.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		utils.Logger.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer repository.CloseMongoDB(context.Background(), store)

	metrics := utils.NewMetrics()
	clock := utils.SystemClock{}
	rollover := service.NewRolloverService(store, clock, metrics)

	var locker service.Locker
	if cfg.RedisURL != "" {
		redisLocker, client, err := repository.NewRedisLocker(cfg.RedisURL)
		if err != nil {
			utils.Logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		defer client.Close()
		if err := redisLocker.Ping(ctx); err != nil {
			utils.Logger.Warn().Err(err).Msg("redis unreachable, rollover runs without a lock")
		} else {
			locker = redisLocker
		}
	}

	scheduler, err := service.NewRolloverScheduler(rollover, cfg.RolloverSchedule, locker)
	if err != nil {
		utils.Logger.Fatal().Err(err).Msg("failed to configure rollover schedule")
	}

	if *rolloverOnly {
		code := runRolloverOnce(ctx, scheduler)
		repository.CloseMongoDB(context.Background(), store)
		os.Exit(code)
	}

	utils.Logger.Info().Msg("initialising system data")
	if err := store.InitializeCollections(ctx); err != nil {
		utils.Logger.Error().Err(err).Msg("initialise collections failed")
	}
	if err := service.SeedCounters(ctx, store); err != nil {
		utils.Logger.Error().Err(err).Msg("seed counters failed")
	}

	auth := service.NewAuthService(store, clock)
	if err := auth.EnsureAdminAccount(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		utils.Logger.Error().Err(err).Msg("initialise admin account failed")
	}

	router := routes.NewRouter(routes.Deps{
		Store:       store,
		Ledger:      service.NewLedgerService(store, clock, metrics),
		Auth:        auth,
		Rollover:    scheduler,
		Metrics:     metrics,
		CronSecret:  cfg.CronSecret,
		CORSOrigins: cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	scheduler.Start()

	go func() {
		utils.Logger.Info().Int("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.Logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scheduler.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Error().Err(err).Msg("server shutdown failed")
	}

	utils.Logger.Info().Msg("server stopped")
}

// runRolloverOnce returns the process exit code: 0 when both steps
// succeeded or another instance held the lock, 1 otherwise.
func runRolloverOnce(ctx context.Context, scheduler *service.RolloverScheduler) int {
	result, err := scheduler.RunOnce(ctx)
	if err != nil {
		utils.Logger.Error().Err(err).Msg("rollover failed")
		return 1
	}
	if result == nil {
		return 0
	}
	utils.Logger.Info().
		Int64("recycled", result.Recycled).
		Int64("forwardFilled", result.ForwardFilled).
		Msg("rollover succeeded")
	return 0
}

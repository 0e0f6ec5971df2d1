// nexchan/main.go
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"nexchan/config"
	"nexchan/database"
	"nexchan/handlers"
	"nexchan/models"
	"nexchan/utils"
)

type Application struct {
	db         *database.DatabaseService
	storage    models.ObjectStore
	bursts     *models.BurstLimiter
	logger     *slog.Logger
	modKeyHash string
}

// Methods to satisfy the handlers.App interface
func (a *Application) DB() *database.DatabaseService { return a.db }
func (a *Application) Storage() models.ObjectStore   { return a.storage }
func (a *Application) Bursts() *models.BurstLimiter  { return a.bursts }
func (a *Application) Logger() *slog.Logger          { return a.logger }
func (a *Application) ModKeyHash() string            { return a.modKeyHash }

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- External Configuration ---
	port := utils.GetEnv("NEXCHAN_PORT", "8080")
	dbPath := utils.GetEnv("NEXCHAN_DB_PATH", "./nexchan.db?_journal_mode=WAL&_foreign_keys=on")

	burstEvery, err := time.ParseDuration(utils.GetEnv("NEXCHAN_BURST_EVERY", config.DefaultBurstEvery))
	if err != nil {
		logger.Warn("Invalid NEXCHAN_BURST_EVERY duration, using default", "value", utils.GetEnv("NEXCHAN_BURST_EVERY", ""), "default", config.DefaultBurstEvery)
		burstEvery, _ = time.ParseDuration(config.DefaultBurstEvery)
	}
	burstCount, err := strconv.Atoi(utils.GetEnv("NEXCHAN_BURST_COUNT", strconv.Itoa(config.DefaultBurstCount)))
	if err != nil {
		logger.Warn("Invalid NEXCHAN_BURST_COUNT integer, using default", "value", utils.GetEnv("NEXCHAN_BURST_COUNT", ""), "default", config.DefaultBurstCount)
		burstCount = config.DefaultBurstCount
	}

	dbService, err := database.InitDB(dbPath, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbService.DB.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	// --- Storage Service Init ---
	endpoint := utils.GetEnv("NEXCHAN_S3_ENDPOINT", "")
	if endpoint == "" {
		logger.Error("FATAL: NEXCHAN_S3_ENDPOINT is required")
		os.Exit(1)
	}
	storage, err := utils.NewS3Storage(
		endpoint,
		utils.GetEnv("NEXCHAN_S3_ACCESS_KEY", ""),
		utils.GetEnv("NEXCHAN_S3_SECRET_KEY", ""),
		utils.GetEnv("NEXCHAN_S3_REGION", "us-east-1"),
		utils.GetEnv("NEXCHAN_S3_PUBLIC_URL", ""),
		utils.GetEnv("NEXCHAN_S3_USE_SSL", "true") == "true",
		map[string]string{
			config.PostsBucket:   utils.GetEnv("NEXCHAN_S3_POSTS_BUCKET", "nexchan-posts"),
			config.AvatarsBucket: utils.GetEnv("NEXCHAN_S3_AVATARS_BUCKET", "nexchan-avatars"),
		},
	)
	if err != nil {
		logger.Error("Failed to initialize S3 storage", "error", err)
		os.Exit(1)
	}
	logger.Info("S3 storage initialized", "endpoint", endpoint)

	app := &Application{
		db:         dbService,
		storage:    storage,
		bursts:     models.NewBurstLimiter(burstEvery, burstCount),
		logger:     logger,
		modKeyHash: utils.GetEnv("NEXCHAN_MOD_KEY_HASH", ""),
	}

	mux := handlers.SetupRouter(app)

	// --- Graceful Shutdown ---
	server := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("nexchan server started successfully",
		"version", config.AppVersion,
		"address", "http://localhost:"+port,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("Server exiting")
}

package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stemboard/cache"
	"stemboard/config"
	"stemboard/core/auth"
	"stemboard/core/board"
	"stemboard/core/media"
	"stemboard/core/workspace"
	"stemboard/db"
	"stemboard/logger"
	"stemboard/repository"
	"stemboard/storage"
)

// Start connects every backing service, serves the API and blocks until
// SIGINT or SIGTERM.
func Start(cfg *config.Config) {
	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	defer db.CloseDB()
	if err := db.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("Failed to connect GORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()
	if err := db.AutoMigrateModels(); err != nil {
		logger.Fatal("Failed to migrate models", logger.ErrorField(err))
	}

	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("Failed to connect to Redis", logger.ErrorField(err))
	}
	defer db.CloseRedis()
	logger.Info("Successfully connected to Redis")

	blobs, err := storage.NewMinioStore(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize MinIO", logger.ErrorField(err))
	}
	if err := blobs.EnsureBucket(context.Background()); err != nil {
		logger.Fatal("Failed to prepare bucket", logger.ErrorField(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := board.NewHub(cache.NewPresenceCache(db.RedisClient))
	go hub.Run()
	defer hub.Stop()

	// events go out through Redis so every instance's hub sees them
	bus := cache.NewEventBus(db.RedisClient)
	go func() {
		if err := bus.Subscribe(ctx, hub.Deliver); err != nil {
			logger.Error("Board event subscription ended", logger.ErrorField(err))
		}
	}()

	userRepo := repository.NewMySQLUserRepository(db.DB)
	workspaceRepo := repository.NewGormWorkspaceRepository(db.GormDB)
	assetRepo := repository.NewGormAssetRepository(db.GormDB)

	workspaces := workspace.NewService(workspaceRepo, userRepo, cache.NewSnapshotCache(db.RedisClient, cfg.SnapshotTTL), bus)
	mediaSvc := media.NewService(assetRepo, blobs, workspaces, bus, cfg.MaxUploadBytes)

	limiter := NewUploadLimiter(cfg.UploadRateLimit, cfg.UploadRateBurst)
	go pruneLimiter(ctx, limiter)

	handler := NewAPIHandler(Deps{
		Users:      userRepo,
		Tokens:     auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		Workspaces: workspaces,
		Media:      mediaSvc,
		Blobs:      blobs,
		Hub:        hub,
		Uploads:    limiter,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      NewRouter(handler),
		ReadTimeout:  5 * time.Minute, // large uploads
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", logger.ErrorField(err))
	}
	logger.Info("Server stopped")
}

func pruneLimiter(ctx context.Context, l *UploadLimiter) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Prune(time.Hour)
		}
	}
}

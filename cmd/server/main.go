package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"localcloud/internal/config"
	"localcloud/internal/lb"
	"localcloud/internal/protocol"
	"localcloud/internal/protocol/zeroapi"
	"localcloud/internal/storage/blob"
	"localcloud/internal/storage/engine"
	"localcloud/internal/storage/meta"
	"localcloud/pkg/observability"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, logLevel, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	store, err := meta.Open(cfg.DataDir, logger)
	if err != nil {
		logger.Fatal("Failed to open metadata store", zap.Error(err))
	}
	defer store.Close()

	blobs, err := blob.NewStore(cfg.DataDir)
	if err != nil {
		logger.Fatal("Failed to open blob store", zap.Error(err))
	}

	eng := engine.New(store, blobs, cfg.Region, cfg.ExternalEndpoint, logger)

	var metrics *observability.Metrics
	if cfg.EnableMetrics {
		metrics = observability.NewMetrics()
	}

	var manager *lb.Manager
	if cfg.EnableDataPlane {
		manager = lb.NewManager(
			lb.NewEngineSource(eng),
			cfg.LBMaxBodyBytes,
			time.Duration(cfg.LBForwardTimeout)*time.Second,
			logger,
		)
		// Restore listeners persisted from a previous run.
		if err := manager.Sync(ctx); err != nil {
			logger.Warn("Initial data plane sync failed", zap.Error(err))
		}
	}

	var plane zeroapi.DataPlane
	if manager != nil {
		plane = manager
	}
	router := protocol.NewRouter(cfg, eng, metrics, plane, logger)

	srv := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      router.Setup(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	watcher, err := config.NewWatcher(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to start config watcher", zap.Error(err))
	}
	defer watcher.Stop()
	watcher.OnChange(func(next *config.Config) {
		level, err := zapcore.ParseLevel(next.LogLevel)
		if err != nil {
			logger.Warn("Ignoring invalid log level", zap.String("log_level", next.LogLevel), zap.Error(err))
			return
		}
		logLevel.SetLevel(level)
	})

	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ListenAddress),
			zap.String("environment", cfg.Environment),
			zap.String("region", cfg.Region),
			zap.String("data_dir", cfg.DataDir),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	if manager != nil {
		manager.Shutdown(shutdownCtx)
	}
}

// newLogger builds the process logger. The returned atomic level stays live
// so config reloads can adjust verbosity without restarting.
func newLogger(cfg *config.Config) (*zap.Logger, zap.AtomicLevel, error) {
	var zapCfg zap.Config
	if cfg.IsDevelopment() {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := zapCfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	return logger, zapCfg.Level, nil
}

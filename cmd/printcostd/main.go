package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"printcost-backend/config"
	"printcost-backend/internal/api"
	"printcost-backend/internal/auth"
	"printcost-backend/internal/db"
	"printcost-backend/internal/ledger"
	"printcost-backend/internal/metrics"
	"printcost-backend/internal/mw"
	"printcost-backend/internal/notification"
	"printcost-backend/internal/pipeline"
	"printcost-backend/internal/queue"
	"printcost-backend/internal/quote"
	"printcost-backend/internal/store"
	"printcost-backend/internal/vision"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("Configuration loaded", zap.String("path", configPath), zap.String("environment", cfg.Server.Environment))

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
	logger.Info("Server gracefully stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		return err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	defer sqlDB.Close()

	if cfg.Database.SeedDefaults {
		if _, err := db.Seed(ctx, gormDB, &cfg.Database, logger); err != nil {
			return err
		}
	}

	appStore := store.NewGormStore(gormDB)

	jobQueue, err := queue.New(ctx, &cfg.Queue, logger)
	if err != nil {
		return err
	}
	defer jobQueue.Close()

	m := metrics.NewMetrics(func() float64 { return float64(jobQueue.Stats().ActiveWorkers) })

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	}
	pushPool := notification.NewWorkerPool(cfg.Push.Workers, appStore, webpushOptions, m, logger)
	pushPool.Start(ctx)

	ledgerWriter := ledger.NewWriter(cfg.Storage.DataDir, cfg.Ledger.Headers, logger)
	tenantCache := mw.NewTenantCache(time.Duration(cfg.Server.CacheTTLSeconds)*time.Second, m)
	orch := pipeline.New(pipeline.Services{
		Store:    appStore,
		Ledger:   ledgerWriter,
		Notifier: pushPool,
		Cache:    tenantCache,
		Metrics:  m,
		Log:      logger,
	}, jobQueue)

	visionClient := vision.NewClient(&cfg.Vision, logger)
	handler := api.NewHandler(api.Deps{
		Store:      appStore,
		Issuer:     auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL),
		Pipeline:   orch,
		Ledger:     ledgerWriter,
		Classifier: visionClient,
		Reader:     visionClient,
		Quotes:     quote.NewRenderer(cfg.Ledger.Currency, logger),
		Cache:      tenantCache,
		Queue:      jobQueue,
		Webpush:    webpushOptions,
		Auth:       cfg.Auth,
		Storage:    cfg.Storage,
		Log:        logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(handler, cfg, m, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return jobQueue.Run(gctx, orch.Process)
	})
	// Recovery finishes before requests are accepted. Redis keeps queued ids across restarts; only
	// the in-process queue starts empty.
	if _, err := orch.Resume(gctx, cfg.Queue.Backend == "memory"); err != nil {
		logger.Error("Failed to resume unfinished jobs", zap.Error(err))
	}
	g.Go(func() error {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server ListenAndServe: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received, stopping services...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

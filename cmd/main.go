package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"storefront-service/internal/api"
	"storefront-service/internal/auth"
	"storefront-service/internal/cart"
	"storefront-service/internal/catalog"
	"storefront-service/internal/checkout"
	"storefront-service/internal/config"
	"storefront-service/internal/logging"
	"storefront-service/internal/media"
	"storefront-service/internal/notify"
	"storefront-service/internal/store"
)

const defaultAppName = "StorefrontService"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("INFO: No .env file found or failed to load, relying on system environment")
	}

	// --- Configuration Loading ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Error loading configuration: %v", err)
	}

	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("FATAL: Error building logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("service", defaultAppName))
	logger.Info("configuration loaded", zap.String("app_env", cfg.AppEnv), zap.String("store_driver", cfg.Store.Driver))

	rootCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// --- Store ---
	backend, changes, err := openStore(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}

	// --- Catalog ---
	normalizer := catalog.NewNormalizer(logger.Named("normalizer"))
	table := catalog.NewTable(logger.Named("table"))
	var changeSignals <-chan struct{}
	if changes != nil {
		changeSignals = changes.Changes()
	}
	feed := catalog.NewFeed(backend, table, normalizer, changeSignals, cfg.Catalog.PollInterval, logger.Named("feed"))
	go func() {
		if err := feed.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("catalog feed stopped", zap.Error(err))
		}
	}()

	// --- Admin auth ---
	accounts, err := auth.ParseAccounts(cfg.Auth.AdminAccounts)
	if err != nil {
		logger.Fatal("invalid admin accounts", zap.Error(err))
	}
	if len(accounts) == 0 {
		logger.Warn("no admin accounts configured, admin API will reject every sign-in")
	}
	authenticator, err := auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, accounts, logger.Named("auth"))
	if err != nil {
		logger.Fatal("failed to build authenticator", zap.Error(err))
	}
	admin := catalog.NewAdmin(backend, table, normalizer, catalog.CapacityCheck{
		WarnKB:  cfg.Catalog.SizeWarnKB,
		LimitKB: cfg.Catalog.SizeLimitKB,
	}, logger.Named("admin"))

	// --- Images ---
	uploader, err := newUploader(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to set up image storage", zap.Error(err))
	}

	// --- Cart & checkout ---
	sessions := cart.NewSessions(cfg.Checkout.CartTTL, logger.Named("cart"))
	go sessions.RunSweeper(rootCtx, cfg.Checkout.CartSweepInterval)

	delivery, err := checkout.LoadDeliveryTable(cfg.Checkout.DeliveryTablePath)
	if err != nil {
		logger.Fatal("failed to load delivery table", zap.Error(err))
	}
	checkoutService := checkout.NewService(sessions, table, backend, delivery, newNotifier(cfg, logger), checkout.StoreProfile{
		Name:           cfg.Checkout.StoreName,
		WhatsAppNumber: cfg.Checkout.WhatsAppNumber,
		PaymentMethods: cfg.Checkout.PaymentMethods,
		PaymentNumber:  cfg.Checkout.PaymentNumber,
		Currency:       cfg.Checkout.Currency,
	}, logger.Named("checkout"))

	// --- Initialize API Handlers ---
	httpAPIHandler := api.NewHTTPHandler(api.Deps{
		Table:        table,
		Admin:        admin,
		Categories:   backend,
		Orders:       backend,
		Policies:     backend,
		Sessions:     sessions,
		Checkout:     checkoutService,
		Auth:         authenticator,
		Uploader:     uploader,
		Logger:       logger.Named("http"),
		SlimImageKB:  cfg.Catalog.SlimImageKB,
		MaxBodyBytes: cfg.HttpServer.MaxUploadBytes,
	})
	grpcAPIHandler := api.NewGRPCHandler(table, logger.Named("grpc"))

	// --- Setup & Start HTTP Server ---
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, logger)
	registerHealthCheck(httpRouter, logger, backend, table)
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("port", cfg.HttpServer.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe error", zap.Error(err))
		}
		logger.Info("HTTP server has stopped")
	}()

	// --- Setup & Start gRPC Server ---
	grpcServer := setupGRPCServer(logger, grpcAPIHandler)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		logger.Fatal("failed to listen for gRPC", zap.String("port", cfg.GrpcServer.Port), zap.Error(err))
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("port", cfg.GrpcServer.Port))
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Fatal("gRPC server Serve error", zap.Error(err))
		}
		logger.Info("gRPC server has stopped")
	}()

	// --- Graceful Shutdown ---
	shutdownComplete := make(chan struct{})
	go waitForShutdown(logger, httpServer, grpcServer, table, stopBackground, changes, backend, shutdownComplete)

	<-shutdownComplete
	logger.Info("service shutdown sequence finished")
}

// openStore connects the configured backend. Only PostgreSQL has a change source;
// MongoDB deployments rely on polling.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, store.ChangeNotifier, error) {
	switch cfg.Store.Driver {
	case config.DriverMongo:
		mongoStore, err := store.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			_ = mongoStore.Close()
			return nil, nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		logger.Info("MongoDB connection established", zap.String("database", cfg.Mongo.Database))
		return mongoStore, nil, nil

	default:
		db, err := sql.Open("postgres", cfg.Postgres.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("initialize database connection: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		pgStore := store.NewPostgresStore(db)
		if cfg.Postgres.AutoMigrate {
			if err := pgStore.EnsureSchema(ctx); err != nil {
				_ = pgStore.Close()
				return nil, nil, fmt.Errorf("apply schema: %w", err)
			}
		}
		logger.Info("database connection established")

		if !cfg.Postgres.Listen {
			return pgStore, nil, nil
		}
		listener, err := store.NewPostgresListener(cfg.Postgres.DSN(), logger.Named("listener"))
		if err != nil {
			// polling still keeps the catalog fresh
			logger.Warn("LISTEN/NOTIFY unavailable, falling back to polling", zap.Error(err))
			return pgStore, nil, nil
		}
		return pgStore, listener, nil
	}
}

func newUploader(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*media.Uploader, error) {
	compressor := media.NewCompressor(media.Options{
		MaxDimension: cfg.Images.MaxDimension,
		Quality:      cfg.Images.Quality,
		TargetBytes:  cfg.Images.TargetBytes,
		Workers:      cfg.Images.Workers,
		MaxPixels:    cfg.Images.MaxPixels,
	}, logger.Named("media"))

	if cfg.Images.Backend != config.ImageBackendS3 {
		return media.NewUploader(compressor, media.InlineStore{}), nil
	}
	s3Store, err := media.NewS3Store(ctx, media.S3Config{
		Region:        cfg.S3.Region,
		Bucket:        cfg.S3.Bucket,
		Prefix:        cfg.S3.Prefix,
		PublicBaseURL: cfg.S3.PublicBaseURL,
	}, logger.Named("s3"))
	if err != nil {
		return nil, err
	}
	logger.Info("image uploads go to S3", zap.String("bucket", cfg.S3.Bucket))
	return media.NewUploader(compressor, s3Store), nil
}

func newNotifier(cfg *config.Config, logger *zap.Logger) notify.Notifier {
	if cfg.SendGrid.APIKey == "" {
		return notify.Nop{}
	}
	return notify.NewSendGrid(notify.SendGridConfig{
		APIKey:   cfg.SendGrid.APIKey,
		FromName: cfg.SendGrid.FromName,
		From:     cfg.SendGrid.From,
		To:       cfg.SendGrid.To,
	}, logger.Named("sendgrid"))
}

func setupBaseMiddleware(router *chi.Mux, logger *zap.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logging.RequestLogger(logger.Named("access")))
	router.Use(middleware.Recoverer)
	logger.Debug("base HTTP middleware registered")
}

type pinger interface {
	Ping(ctx context.Context) error
}

func registerHealthCheck(router *chi.Mux, logger *zap.Logger, db pinger, table *catalog.Table) {
	healthPath := "/api/v1/healthz"
	router.Get(healthPath, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		dbStatus := "healthy"
		if err := db.Ping(ctx); err != nil {
			dbStatus = "unhealthy"
			logger.Warn("health check store ping failed", zap.Error(err))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":            "healthy",
			"serviceName":       defaultAppName,
			"timestamp":         time.Now().UTC().Format(time.RFC3339),
			"database":          dbStatus,
			"catalogGeneration": table.Generation(),
		})
	})
	logger.Debug("HTTP health check registered", zap.String("path", healthPath))
}

func setupGRPCServer(logger *zap.Logger, grpcAPIHandler *api.GRPCHandler) *grpc.Server {
	s := grpc.NewServer()

	api.RegisterCatalogFeedServer(s, grpcAPIHandler)
	grpc_health_v1.RegisterHealthServer(s, health.NewServer())
	// reflection lets grpcurl discover the catalog feed
	reflection.Register(s)
	logger.Debug("gRPC services registered")

	return s
}

func waitForShutdown(
	logger *zap.Logger,
	httpServer *http.Server,
	grpcServer *grpc.Server,
	table *catalog.Table,
	stopBackground context.CancelFunc,
	changes store.ChangeNotifier,
	backend store.Store,
	shutdownComplete chan struct{},
) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-sigChan
	logger.Info("starting graceful shutdown", zap.String("signal", receivedSignal.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Watch streams and websocket pushes return once their subscription closes
	table.Close()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("HTTP server gracefully shut down")
	}

	select {
	case <-stoppedGrpc:
		logger.Info("gRPC server gracefully shut down")
	case <-shutdownCtx.Done():
		logger.Warn("gRPC server graceful shutdown timed out, forcing stop", zap.Error(shutdownCtx.Err()))
		grpcServer.Stop()
	}

	// feed, cart sweeper
	stopBackground()

	if changes != nil {
		if err := changes.Close(); err != nil {
			logger.Warn("error closing change listener", zap.Error(err))
		}
	}
	if err := backend.Close(); err != nil {
		logger.Warn("error closing store", zap.Error(err))
	}

	logger.Info("graceful shutdown sequence completed")
}

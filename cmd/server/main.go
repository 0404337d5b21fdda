package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/appcuatri/backend/pkg/api"
	"github.com/appcuatri/backend/pkg/auth"
	"github.com/appcuatri/backend/pkg/config"
	"github.com/appcuatri/backend/pkg/middleware"
	"github.com/appcuatri/backend/pkg/observability"
	"github.com/appcuatri/backend/pkg/push"
	"github.com/appcuatri/backend/pkg/sso"
	"github.com/appcuatri/backend/pkg/storage"
	"github.com/appcuatri/backend/pkg/storage/postgres"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("version", version).Info("starting server")

	// Postgres
	db, err := postgres.Connect(postgres.ConnectionConfig{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	store := postgres.NewStore(db)
	logger.Info("database ready")

	// Redis (rate limiting + readiness)
	var redisClient *redis.Client
	var loginLimiter *middleware.DistributedRateLimiter
	if cfg.Redis.URL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable at startup")
		}
		if cfg.Redis.RateLimitEnabled {
			loginLimiter = middleware.NewDistributedRateLimiter(redisClient, &middleware.RateLimitConfig{
				RequestsPerWindow: cfg.Redis.RateLimitRequests,
				WindowDuration:    cfg.Redis.RateLimitWindow,
			}, "ratelimit")
		}
	}

	// File store
	var files storage.FileStore
	var uploadsDir string
	switch cfg.Uploads.Backend {
	case "s3":
		files, err = storage.NewS3FileStore(ctx, storage.S3Config{
			Endpoint:     cfg.Uploads.S3Endpoint,
			Region:       cfg.Uploads.S3Region,
			Bucket:       cfg.Uploads.S3Bucket,
			AccessKey:    cfg.Uploads.S3AccessKey,
			SecretKey:    cfg.Uploads.S3SecretKey,
			UsePathStyle: cfg.Uploads.S3UsePathStyle,
			PublicPath:   cfg.Uploads.PublicPath,
		})
		if err != nil {
			return fmt.Errorf("s3 store init failed: %w", err)
		}
	default:
		files, err = storage.NewFilesystemFileStore(cfg.Uploads.Directory, cfg.Uploads.PublicPath)
		if err != nil {
			return fmt.Errorf("filesystem store init failed: %w", err)
		}
		uploadsDir = cfg.Uploads.Directory
	}

	// Auth primitives
	tokens := auth.NewTokenService([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenLifetime)
	hasher := auth.NewPasswordHasherWithCost(cfg.Auth.BcryptCost)

	// Firebase federated login
	var verifier sso.Verifier
	var provisioner *sso.Provisioner
	if cfg.Firebase.ProjectID != "" {
		fv, err := sso.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID)
		if err != nil {
			return fmt.Errorf("firebase verifier init failed: %w", err)
		}
		verifier = fv
		provisioner = sso.NewProvisioner(store)
		logger.WithField("project_id", cfg.Firebase.ProjectID).Info("firebase login enabled")
	}

	// FCM push
	var sender push.Sender
	if cfg.Firebase.FCMCredentialsFile != "" {
		fcm, err := push.NewFCMClient(ctx, cfg.Firebase.FCMCredentialsFile)
		if err != nil {
			return fmt.Errorf("fcm client init failed: %w", err)
		}
		sender = fcm
		logger.Info("push notifications enabled")
	}

	// Metrics
	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
		go pollDBStats(ctx, db, metrics)
	}

	// Tracing
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("otel init failed: %w", err)
	}

	server := api.NewServer(api.Options{
		Logger:        logger,
		Metrics:       metrics,
		Users:         store,
		Products:      store,
		Files:         files,
		Tokens:        tokens,
		Hasher:        hasher,
		Verifier:      verifier,
		Provisioner:   provisioner,
		Push:          sender,
		LoginLimiter:  loginLimiter,
		UploadsDir:    uploadsDir,
		MaxFileSize:   cfg.Uploads.MaxFileSize,
		MaxFiles:      cfg.Uploads.MaxFiles,
		CORSOrigins:   cfg.CORS.AllowedOrigins,
		TracingActive: cfg.Observability.OTelEnabled,
	})

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Ops server: health probes and metrics on a separate port
	opsMux := http.NewServeMux()
	checker := observability.NewHealthChecker(db, redisClient, version)
	observability.RegisterHealthRoutes(opsMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(opsMux, registry)
	}
	opsServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: opsMux,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.OnShutdown("ops server", func(ctx context.Context) error {
		return opsServer.Shutdown(ctx)
	})
	shutdown.OnShutdown("tracer", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	if redisClient != nil {
		shutdown.OnShutdown("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
	}
	shutdown.OnShutdown("database", func(ctx context.Context) error {
		return db.Close()
	})

	var group errgroup.Group
	group.Go(func() error {
		logger.WithField("addr", opsServer.Addr).Info("ops server listening")
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", httpServer.Addr).Info("api server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})
	group.Go(shutdown.WaitForShutdown)

	return group.Wait()
}

// pollDBStats feeds connection pool gauges every 15s.
func pollDBStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBStats(db.Stats())
		}
	}
}

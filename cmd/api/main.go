// Package main is the entry point for the auth service.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GunarsK-portfolio/auth-rpc-service/internal/config"
	"github.com/GunarsK-portfolio/auth-rpc-service/internal/handlers"
	"github.com/GunarsK-portfolio/auth-rpc-service/internal/logger"
	"github.com/GunarsK-portfolio/auth-rpc-service/internal/repository"
	"github.com/GunarsK-portfolio/auth-rpc-service/internal/routes"
	"github.com/GunarsK-portfolio/auth-rpc-service/internal/rpc"
	"github.com/GunarsK-portfolio/auth-rpc-service/internal/service"
	"github.com/GunarsK-portfolio/auth-rpc-service/pkg/database"
	natsclient "github.com/GunarsK-portfolio/auth-rpc-service/pkg/nats"
	"github.com/GunarsK-portfolio/auth-rpc-service/pkg/redis"
	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := run(); err != nil {
		slog.Error("auth service stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(cfg.LogLevel, os.Stdout)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Connect(database.Config{
		Driver:          cfg.DBDriver,
		DSN:             cfg.DatabaseURL,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	if cfg.DBAutoMigrate {
		if err := repository.AutoMigrate(db); err != nil {
			return err
		}
	}

	// Initialize Redis
	redisClient, err := redis.NewClient(ctx, cfg)
	if err != nil {
		return err
	}

	// Initialize repository
	userRepo := repository.NewUserRepository(db)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		userRepo = repository.NewCachedUserRepository(userRepo, redisClient, cfg.UserCacheTTL, log)
	}

	// Initialize services
	tokenService, err := service.NewJWTService(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		return err
	}
	log.Info("token service ready", "expiry", tokenService.GetExpiry().String())
	authService := service.NewAuthService(userRepo, service.NewBcryptHasher(cfg.BcryptCost), tokenService)

	// Initialize message bus
	nc, err := natsclient.Connect(cfg.NATSServers, "auth-service", log)
	if err != nil {
		return err
	}
	defer nc.Close()

	rpcServer := rpc.NewServer(nc, rpc.Options{
		QueueGroup: cfg.NATSQueueGroup,
		Timeout:    cfg.RPCRequestTimeout,
		Logger:     log,
		Metrics:    rpc.NewMetrics(prometheus.DefaultRegisterer),
	})
	routes.RegisterRPC(rpcServer, handlers.NewAuthHandler(authService))
	if err := rpcServer.Start(); err != nil {
		return err
	}

	// Ops HTTP server
	checks := map[string]handlers.CheckFunc{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"nats": func(context.Context) error {
			return natsclient.HealthCheck(nc)
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	routes.Setup(router, handlers.NewHealthHandler(checks, 2*time.Second), prometheus.DefaultGatherer, log)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting auth service", "port", cfg.Port, "nats", nc.ConnectedUrlRedacted(), "queue", cfg.NATSQueueGroup)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down auth service")
	case err := <-serverErr:
		log.Error("http server failed", "error", err)
		shutdown(log, rpcServer, nc, httpServer)
		return err
	}

	shutdown(log, rpcServer, nc, httpServer)
	log.Info("auth service stopped")
	return nil
}

// shutdown answers in-flight messages before closing the bus connection and
// the ops server.
func shutdown(log *slog.Logger, rpcServer *rpc.Server, nc *nats.Conn, httpServer *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rpcServer.Drain(); err != nil {
		log.Warn("failed to drain subscriptions", "error", err)
	}
	if err := natsclient.Drain(ctx, nc); err != nil {
		log.Warn("failed to drain nats connection", "error", err)
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn("failed to shut down http server", "error", err)
	}
}

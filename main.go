package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mishari713/BMS/auth"
	"github.com/Mishari713/BMS/config"
	"github.com/Mishari713/BMS/controllers"
	"github.com/Mishari713/BMS/database"
	grpcserver "github.com/Mishari713/BMS/grpc_server"
	"github.com/Mishari713/BMS/metrics"
	"github.com/Mishari713/BMS/openlibrary"
	"github.com/Mishari713/BMS/registry"
	"github.com/Mishari713/BMS/repositories"
	"github.com/Mishari713/BMS/services"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := config.BindFlags(pflag.CommandLine)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var logger *zap.Logger
	switch cfg.LogLevel {
	case "debug":
		logger, _ = zap.NewDevelopment()
	default:
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync() // Make sure the buffer is flushed before the program exits

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	sugar := logger.Sugar()

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return err
	}
	if err := database.SeedRoles(db, sugar); err != nil {
		return err
	}
	if err := database.SeedAdmin(db, cfg.Admin, sugar); err != nil {
		return err
	}

	checks := map[string]controllers.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	var (
		gate    auth.SessionGate   = auth.NewMemorySessionGate()
		revoker auth.TokenRevoker = auth.NewMemoryTokenRevoker()
	)
	if cfg.Session.Store == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		gate = auth.NewRedisSessionGate(rdb, cfg.JWT.Expiration)
		revoker = auth.NewRedisTokenRevoker(rdb)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	m := metrics.NewMetrics()
	tokens := auth.NewTokenService(cfg.JWT, revoker)

	userService := services.NewUserService(repositories.NewUserRepository(db), repositories.NewRoleRepository(db), logger)
	catalog := openlibrary.New(cfg.OpenLibrary, m)
	bookService := services.NewBookService(repositories.NewBookRepository(db), userService, catalog, logger)
	authService := services.NewAuthService(userService, tokens, gate, cfg.Session.Scope, m, logger)

	var providers []auth.OAuth2Provider
	if cfg.OAuth2.Google.Enabled() {
		google, err := auth.NewGoogleProvider(ctx, cfg.OAuth2.Google)
		if err != nil {
			return err
		}
		providers = append(providers, google)
	} else {
		logger.Info("Google OAuth2 login disabled, no client credentials configured")
	}

	container := controllers.NewContainer(logger, m,
		controllers.NewAuthController(authService, tokens, logger),
		controllers.NewBookController(bookService, tokens, logger),
		controllers.NewUserController(userService, tokens, logger),
		controllers.NewOAuth2Controller(authService, providers, cfg.OAuth2.SuccessRedirect, logger),
		controllers.NewHealthController(checks, logger),
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           container,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer, grpcHealth := grpcserver.NewServer(bookService, tokens, logger)
	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	deregister := func() error { return nil }
	if cfg.Consul.Address != "" {
		reg, err := registry.NewConsulRegistry(cfg.Consul.Address, sugar)
		if err != nil {
			return err
		}
		deregister, err = registry.RegisterEndpoints(reg, registry.Endpoints{
			ServiceName: cfg.ServiceName,
			Host:        cfg.Consul.ServiceHost,
			HTTPPort:    cfg.HTTPPort,
			GRPCPort:    cfg.GRPCPort,
			HealthPath:  controllers.HealthPath,
		})
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("gRPC server listening", zap.String("addr", grpcLis.Addr().String()))
		return grpcServer.Serve(grpcLis)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		if err := deregister(); err != nil {
			logger.Warn("Consul deregistration failed", zap.Error(err))
		}
		grpcHealth.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})
	return g.Wait()
}

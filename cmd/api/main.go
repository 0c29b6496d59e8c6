package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/user-service/internal/api/http"
	"github.com/spec-kit/user-service/internal/api/http/handlers"
	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/config"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/events"
	"github.com/spec-kit/user-service/internal/observability"
	"github.com/spec-kit/user-service/internal/persistence"
	"github.com/spec-kit/user-service/internal/repository"
	"github.com/spec-kit/user-service/internal/service"
	"github.com/spec-kit/user-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(cfg.Postgres.DSN, persistence.MigrateUp, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	deps := map[string]handlers.Pinger{}

	var userRepo repository.UserRepository
	if pg.Enabled() {
		userRepo = repository.NewUserRepository(pg.PoolHandle())
		deps["postgres"] = pg
	} else {
		logger.Warn("using in-memory user store; records are lost on restart")
		userRepo = repository.NewMemoryUserRepository()
	}

	var flags repository.FlagRepository
	switch backend := cfg.GateBackend(); backend {
	case config.GateBackendPostgres:
		if !pg.Enabled() {
			logger.Fatal("reset gate backend postgres requires POSTGRES_DSN")
		}
		flags = repository.NewPostgresFlagRepository(pg.PoolHandle())
	case config.GateBackendRedis:
		rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
		flags = repository.NewRedisFlagRepository(rdb.Client)
		deps["redis"] = rdb
	default:
		logger.Warn("using in-memory reset gate; the admin reset requirement returns on restart")
		flags = repository.NewMemoryFlagRepository()
	}

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	domains := service.StaticDomain(cfg.Users.DefaultDomain)
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	userService := service.NewUserService(service.UserDependencies{
		UserRepo:   userRepo,
		Domains:    domains,
		Identity:   auth.ContextIdentity{},
		Hasher:     hasher,
		Dispatcher: dispatcher,
		Logger:     logger,
		AdminName:  cfg.Users.AdminName,
	})
	gate := service.NewResetGate(flags, cfg.ResetGate.Key, logger)
	adminResets := service.NewAdminResetService(userService, gate,
		cfg.Users.AdminName, cfg.Users.DefaultDomain, dispatcher, logger)
	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:     userRepo,
		Domains:      domains,
		Hasher:       hasher,
		TokenManager: tokens,
		Logger:       logger,
	})

	if err := seedAdmin(ctx, userService, cfg.Users, logger); err != nil {
		logger.Fatal("failed to seed administrator", zap.Error(err))
	}

	metrics := observability.NewMetrics("user_service")
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Users:          handlers.NewUsersHandler(userService, gate, adminResets),
		Auth:           handlers.NewAuthHandler(authService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager()),
		ResetGate:      gate,
		Metrics:        metrics,
		AdminFQN:       userService.AdminFQN(),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

// seedAdmin creates the built-in administrator on first start. An existing
// record is left untouched.
func seedAdmin(ctx context.Context, users *service.UserService, cfg config.UsersConfig, logger *zap.Logger) error {
	_, created, err := users.EnsureUser(ctx, domain.User{
		Name:     cfg.AdminName,
		Domain:   cfg.DefaultDomain,
		Password: cfg.AdminPassword,
		Roles:    []string{"admin"},
	})
	if err != nil {
		return err
	}
	if created {
		logger.Info("seeded administrator account", zap.String("user", users.AdminFQN()))
	}
	return nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

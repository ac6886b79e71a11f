package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"

	"go-proposal-review/internal/authz"
	"go-proposal-review/internal/handler"
	"go-proposal-review/internal/middleware"
	"go-proposal-review/internal/repository"
	"go-proposal-review/internal/seed"
	"go-proposal-review/internal/service"
	"go-proposal-review/internal/ws"
	"go-proposal-review/pkg/database"
	"go-proposal-review/pkg/jwt"
)

func runServe(cmd *cobra.Command, envFiles []string) error {
	cfg, log, db, err := bootstrap(envFiles)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return errors.Wrap(err, "auto migrate")
		}
	}

	userRepo := repository.NewUserRepo(db)
	if err := seed.EnsureAdmin(ctx, userRepo, cfg.Admin, log); err != nil {
		log.WithError(err).Warn("Failed to seed default admin")
	}

	authorizer, err := authz.New(cfg.Authz.PolicyPath, log)
	if err != nil {
		return err
	}
	tokens, err := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.TTL, cfg.JWT.Issuer)
	if err != nil {
		return err
	}

	// WebSocket hub
	wsHub := ws.NewHub(log)
	go wsHub.Run(ctx)

	// Dependency Injection (Wiring Layers)
	store := repository.NewStore(db)

	authService := service.NewAuthService(userRepo, tokens, log)
	userService := service.NewUserService(userRepo, log)
	proposalService := service.NewProposalService(store, wsHub, log)
	reviewService := service.NewReviewService(store, wsHub, log)

	app := fiber.New(fiber.Config{
		AppName: cfg.AppName,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(log))
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSOrigins}))

	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "database handle")
	}
	app.Get("/healthz", handler.NewHealthHandler(sqlDB).Healthz)
	if cfg.Metrics.Enabled {
		app.Get(cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	var loginLimiter fiber.Handler
	if cfg.RateLimit.Enabled {
		var limiterStore limiter.Store
		switch cfg.RateLimit.Storage {
		case "redis":
			limiterStore, err = middleware.NewRedisStore(cfg.RateLimit.RedisURL)
			if err != nil {
				log.WithError(err).Warn("Failed to create Redis store for rate limiting, falling back to memory")
				limiterStore = middleware.NewMemoryStore()
			}
		default:
			limiterStore = middleware.NewMemoryStore()
		}
		loginLimiter, err = middleware.RateLimit(middleware.RateLimitConfig{
			Rate:   cfg.RateLimit.Login,
			Store:  limiterStore,
			Logger: log,
		})
		if err != nil {
			return err
		}
	}

	handler.RegisterRoutes(app.Group("/api/v1"), handler.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Users:     handler.NewUserHandler(userService),
		Proposals: handler.NewProposalHandler(proposalService),
		Reviews:   handler.NewReviewHandler(reviewService),
	}, handler.RouteOptions{
		Authenticator: authService,
		Authorizer:    authorizer,
		LoginLimiter:  loginLimiter,
	})
	handler.RegisterWebSocket(app, wsHub, authService)

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(":" + cfg.Port)
	}()
	log.WithField("port", cfg.Port).Info("Server started")

	select {
	case err := <-listenErr:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}
	if err := sqlDB.Close(); err != nil {
		log.WithError(err).Warn("Failed to close database")
	}

	log.Info("Server exited")
	return nil
}

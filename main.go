package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"caffemacao/internal/config"
	"caffemacao/internal/database"
	"caffemacao/internal/handlers"
	"caffemacao/internal/middleware"
	"caffemacao/internal/repositories"
	"caffemacao/internal/services"
	"caffemacao/pkg/logger"
	"caffemacao/pkg/rabbitmq"
)

const (
	shutdownTimeout = 10 * time.Second
	processedTTL    = 24 * time.Hour

	loginAttemptsPerMinute = 10
	loginBurst             = 5
)

func main() {
	// A missing .env file is fine; the environment and config.yaml still apply.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Fatal("server stopped with error", zap.Error(err))
	}
	zlog.Info("server gracefully stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, log)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		log.Info("redis connected", zap.String("addr", cfg.RedisAddr))
	} else {
		log.Warn("REDIS_ADDR not set, logout will not revoke tokens")
	}

	var mq *rabbitmq.Client
	if cfg.RabbitMQURL != "" {
		mq, err = rabbitmq.NewClient(rabbitmq.Config{
			URL:      cfg.RabbitMQURL,
			Exchange: cfg.RabbitMQExchange,
			Queue:    cfg.RabbitMQQueue,
		}, log)
		if err != nil {
			return err
		}
		defer mq.Close()
	} else {
		log.Warn("RABBITMQ_URL not set, order events are disabled")
	}

	svc := newServices(cfg, log, db, rdb, mq)

	if cfg.AdminEmail != "" {
		if err := svc.auth.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return err
		}
	}
	if cfg.SeedCatalog {
		if err := seedCatalog(ctx, svc.catalog, log); err != nil {
			return err
		}
	}

	if mq != nil {
		log.Info("starting order event consumer")
		if err := mq.ConsumeOrderEvents(ctx, svc.notifications.HandleOrderEvent); err != nil {
			return err
		}
	}

	app := newApp(cfg, log, db, rdb, svc)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("port", cfg.AppPort))
		serveErr <- app.Listen(cfg.AppPort)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	return app.ShutdownWithTimeout(shutdownTimeout)
}

// appServices is the service layer shared by the HTTP handlers and the event
// consumer.
type appServices struct {
	auth          *services.AuthService
	users         *services.UserService
	catalog       *services.CatalogService
	reviews       *services.ReviewService
	cart          *services.CartService
	orders        *services.OrderService
	notifications *services.NotificationService
}

// newServices wires repositories into services. rdb and mq are optional.
func newServices(cfg *config.Config, log *zap.Logger, db *gorm.DB, rdb *redis.Client, mq *rabbitmq.Client) *appServices {
	txManager := repositories.NewTxManager(db)
	userRepo := repositories.NewGORMUserRepository(db)
	itemRepo := repositories.NewGORMItemRepository(db)
	reviewRepo := repositories.NewGORMReviewRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)

	var (
		tokens    repositories.TokenStore
		seen      services.EventLog
		publisher services.OrderEventPublisher
	)
	if rdb != nil {
		tokens = repositories.NewRedisTokenStore(rdb)
		seen = repositories.NewRedisEventLog(rdb, cfg.RabbitMQQueue, processedTTL)
	}
	if mq != nil {
		publisher = mq
	}

	return &appServices{
		auth:    services.NewAuthService(userRepo, tokens, cfg.JWTSecret, cfg.JWTTTL, log.Named("auth")),
		users:   services.NewUserService(userRepo, log.Named("users")),
		catalog: services.NewCatalogService(itemRepo, txManager, cfg.StoreCurrency, log.Named("catalog")),
		reviews: services.NewReviewService(reviewRepo, itemRepo, txManager, log.Named("reviews")),
		cart: services.NewCartService(orderRepo, itemRepo, services.CartConfig{
			Currency:            cfg.StoreCurrency,
			ShippingCost:        cfg.DefaultShippingCost,
			PlaceholderImageURL: cfg.PlaceholderImageURL,
		}, log.Named("cart")),
		orders:        services.NewOrderService(txManager, orderRepo, itemRepo, publisher, log.Named("orders")),
		notifications: services.NewNotificationService(seen, log.Named("notifications")),
	}
}

// newApp builds the Fiber application with every route registered.
func newApp(cfg *config.Config, log *zap.Logger, db *gorm.DB, rdb *redis.Client, svc *appServices) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "caffemacao",
		ErrorHandler: handlers.ErrorHandler(log),
	})

	// --- Middleware ---
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(log.Named("http")))
	app.Use(cors.New())

	app.Get("/health", healthHandler(db, rdb))

	auth := middleware.AuthRequired(svc.auth, log)
	optional := middleware.OptionalAuth(svc.auth)
	loginLimit := middleware.NewRateLimiter(loginAttemptsPerMinute, loginBurst).Handler()

	// --- API Routes ---
	apiV1 := app.Group("/api/v1")
	handlers.NewAuthHandler(svc.auth).RegisterRoutes(apiV1, auth, loginLimit)
	handlers.NewUserHandler(svc.users).RegisterRoutes(apiV1, auth)
	handlers.NewItemHandler(svc.catalog, svc.reviews).RegisterRoutes(apiV1, auth, optional)
	handlers.NewCartHandler(svc.cart).RegisterRoutes(apiV1, auth)
	handlers.NewOrderHandler(svc.orders).RegisterRoutes(apiV1, auth)

	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "route not found")
	})
	return app
}

func healthHandler(db *gorm.DB, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status, code := "healthy", fiber.StatusOK
		dbState, cacheState := "up", "disabled"

		if err := pingDatabase(c.UserContext(), db); err != nil {
			dbState, status, code = "down", "degraded", fiber.StatusServiceUnavailable
		}
		if rdb != nil {
			cacheState = "up"
			if err := rdb.Ping(c.UserContext()).Err(); err != nil {
				cacheState, status, code = "down", "degraded", fiber.StatusServiceUnavailable
			}
		}

		return c.Status(code).JSON(fiber.Map{
			"status":   status,
			"time":     time.Now().Format(time.RFC3339),
			"database": dbState,
			"redis":    cacheState,
		})
	}
}

func pingDatabase(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("database not configured")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

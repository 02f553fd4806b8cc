package routes

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nestegg-app/nestegg/internal/account"
	"github.com/nestegg-app/nestegg/internal/auth"
	"github.com/nestegg-app/nestegg/internal/config"
	"github.com/nestegg-app/nestegg/internal/ledger"
	"github.com/nestegg-app/nestegg/internal/middleware"
	"github.com/nestegg-app/nestegg/internal/notification"
	"github.com/nestegg-app/nestegg/internal/response"
	"github.com/nestegg-app/nestegg/internal/savings"
	"github.com/nestegg-app/nestegg/internal/validation"
)

// Deps aggregates shared dependencies required to wire routes. Accounts and
// Ledger are derived from DB when left nil.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Accounts account.Repository
	Ledger   ledger.Ledger
}

// Setup configures middlewares and all application routes. Without a
// database or cache (development only) the in-memory backends are used.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Stores
	accountRepo, ledgerBackend := d.Accounts, d.Ledger
	switch {
	case accountRepo != nil:
	case d.DB != nil:
		accountRepo = account.NewPostgresRepository(d.DB)
	default:
		accountRepo = account.NewMemoryRepository()
	}
	switch {
	case ledgerBackend != nil:
	case d.DB != nil:
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
	default:
		ledgerBackend = ledger.NewInMemory()
	}

	var notifier notification.Notifier = notification.NewLoggerNotifier(d.Logger)
	if d.Cache != nil {
		notifier = notification.NewRedisNotifier(d.Cache, d.Cfg.NotifyChannel)
	}

	// Services and handlers
	validator := validation.New()
	tokens := auth.NewTokenIssuer(d.Cfg.JWTSecret, d.Cfg.AppName, d.Cfg.TokenTTL)
	authSvc := auth.NewService(account.NewService(accountRepo), ledgerBackend, tokens)
	savingsSvc := savings.NewService(ledgerBackend, notifier, d.Logger, d.Cfg.TxTimeout)

	authHandler := auth.NewHandler(authSvc, validator)
	savingsHandler := savings.NewHandler(savingsSvc, validator)

	// API routes
	api := app.Group("/api")
	jwtmw := middleware.JWTAuth(tokens, accountRepo)
	deviceGate := middleware.DeviceGate()

	RegisterAuthRoutes(api, authHandler, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginPerMinute), jwtmw, deviceGate)
	RegisterSavingsRoutes(api, savingsHandler, jwtmw, deviceGate, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))

	app.Use(func(c *fiber.Ctx) error {
		return response.NewError(http.StatusNotFound, "Route not found", nil)
	})

	return nil
}

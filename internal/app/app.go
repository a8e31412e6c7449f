package app

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"unipay_momo/internal/config"
	"unipay_momo/internal/services"
	"unipay_momo/internal/tasks"
)

// App holds the collaborators shared by the server, the worker and paymentctl
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Cache    *services.RedisCache
	Payments *services.PaymentService
	Email    *services.EmailService
	Waha     *services.WahaService
	Push     *services.PushService
}

// New connects to the database and the optional Redis and Firebase backends and
// builds the payment service. Missing optional backends are logged, not fatal.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}

	db, err := services.InitDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	a := &App{
		Config: cfg,
		DB:     db,
		Email:  services.NewEmailService(cfg.SMTP),
		Waha:   services.NewWahaService(cfg.Waha, cfg.CountryCode),
	}

	if cfg.RedisURL != "" {
		cache, err := services.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Printf("Warning: Redis unavailable, status cache disabled: %v", err)
		} else {
			a.Cache = cache
		}
	}

	if cfg.FirebaseCredentialsPath != "" {
		client, err := services.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			log.Printf("Warning: Firebase initialization failed: %v", err)
			log.Println("Push notifications will not be sent until valid credentials are provided")
		} else {
			a.Push = services.NewPushService(client)
		}
	}

	opts := services.PaymentServiceOptions{
		StatusCacheTTL: cfg.StatusCacheTTL,
		Window:         cfg.PaymentWindow,
		Hook:           tasks.NewNotificationScheduler(db),
	}
	if a.Cache != nil {
		opts.Cache = a.Cache
	}

	a.Payments = services.NewPaymentService(
		services.NewPaymentStore(db),
		services.NewGatewayRegistry(
			services.NewMTNGateway(cfg.MTN, cfg.GatewayTimeout),
			services.NewAirtelGateway(cfg.Airtel, cfg.Currency, cfg.GatewayTimeout),
		),
		services.NewRequestBuilder(cfg.CountryCode, cfg.Currency),
		opts,
	)
	return a, nil
}

// TaskDeps hands the worker what its task handlers need
func (a *App) TaskDeps() tasks.Deps {
	return tasks.Deps{
		DB:       a.DB,
		Payments: a.Payments,
		Email:    a.Email,
		Waha:     a.Waha,
		Push:     a.Push,
	}
}

func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			log.Printf("Failed to close Redis: %v", err)
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

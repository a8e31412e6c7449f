package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"unipay_momo/internal/app"
	"unipay_momo/internal/config"
	"unipay_momo/internal/handlers"
	paymentMiddleware "unipay_momo/internal/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	if err := cfg.MTN.Validate(); err != nil {
		log.Printf("Warning: MTN collections disabled: %v", err)
	}
	if err := cfg.Airtel.Validate(); err != nil {
		log.Printf("Warning: Airtel collections disabled: %v", err)
	}

	allowed, err := paymentMiddleware.ParseCIDRs(cfg.WebhookAllowedCIDRs)
	if err != nil {
		log.Fatalf("Invalid WEBHOOK_ALLOWED_CIDRS: %v", err)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = paymentMiddleware.JSONErrorHandler

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	handlers.RegisterRoutes(e, cfg, a.Payments, allowed)

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
}

package handlers

import (
	"net"

	"github.com/labstack/echo/v4"

	"unipay_momo/internal/config"
	"unipay_momo/internal/middleware"
	"unipay_momo/internal/models"
	"unipay_momo/internal/services"
)

// RegisterRoutes mounts the portal API and the gateway webhooks
func RegisterRoutes(e *echo.Echo, cfg *config.Config, payments *services.PaymentService, allowed []*net.IPNet) {
	paymentHandler := NewPaymentHandler(payments)
	webhookHandler := NewWebhookHandler(payments)

	e.GET("/healthz", Health)

	// Portal routes
	api := e.Group("/api")
	api.POST("/payments", paymentHandler.Initiate)
	api.GET("/payments/:transactionId/status", paymentHandler.CheckStatus)

	// Gateway callbacks
	webhooks := e.Group("/webhooks")
	webhooks.POST("/mtn", webhookHandler.MTNCallback,
		middleware.RequireWebhookAuth(string(models.ProviderMTN), cfg.MTN.WebhookSecret, allowed))
	webhooks.POST("/airtel", webhookHandler.AirtelCallback,
		middleware.RequireWebhookAuth(string(models.ProviderAirtel), cfg.Airtel.WebhookSecret, allowed))
}

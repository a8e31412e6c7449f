package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"unipay_momo/internal/services"
)

// PaymentHandler serves the two calls the portal makes: start a collection and poll it
type PaymentHandler struct {
	payments *services.PaymentService
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Initiate sends a collection request to the payer's phone
func (h *PaymentHandler) Initiate(c echo.Context) error {
	var req services.InitiateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}

	result, err := h.payments.Initiate(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// CheckStatus reconciles and returns the status of one transaction
func (h *PaymentHandler) CheckStatus(c echo.Context) error {
	result, err := h.payments.CheckStatus(c.Request().Context(), c.Param("transactionId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Health reports liveness
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

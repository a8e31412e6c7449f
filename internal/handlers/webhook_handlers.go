package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"

	"unipay_momo/internal/middleware"
	"unipay_momo/internal/models"
	"unipay_momo/internal/services"
)

// maxCallbackBody bounds what a gateway may post to us
const maxCallbackBody = 1 << 20

// WebhookHandler receives asynchronous status callbacks from the gateways
type WebhookHandler struct {
	payments *services.PaymentService
}

func NewWebhookHandler(payments *services.PaymentService) *WebhookHandler {
	return &WebhookHandler{payments: payments}
}

// mtnCallback is the body MTN posts to the X-Callback-Url given at collect time
type mtnCallback struct {
	ReferenceID            string          `json:"referenceId"`
	ExternalID             string          `json:"externalId"`
	FinancialTransactionID string          `json:"financialTransactionId"`
	Status                 string          `json:"status"`
	Reason                 json.RawMessage `json:"reason"`
}

// airtelCallback accepts both the flat form and the nested transaction form
type airtelCallback struct {
	Reference   string `json:"reference"`
	Status      string `json:"status"`
	Transaction *struct {
		ID            string `json:"id"`
		StatusCode    string `json:"status_code"`
		Status        string `json:"status"`
		Message       string `json:"message"`
		AirtelMoneyID string `json:"airtel_money_id"`
	} `json:"transaction"`
}

func parseMTNCallback(body []byte) (services.Callback, error) {
	var p mtnCallback
	if err := json.Unmarshal(body, &p); err != nil {
		return services.Callback{}, err
	}
	cb := services.Callback{
		TransactionID:     p.ReferenceID,
		RawStatus:         p.Status,
		ExternalReference: p.FinancialTransactionID,
	}
	if cb.TransactionID == "" {
		cb.TransactionID = p.ExternalID
	}
	if len(p.Reason) > 0 && string(p.Reason) != "null" {
		var s string
		if err := json.Unmarshal(p.Reason, &s); err == nil {
			cb.Reason = s
		} else {
			var obj struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			if json.Unmarshal(p.Reason, &obj) == nil {
				cb.Reason = strings.TrimSpace(obj.Code + " " + obj.Message)
			}
		}
	}
	return cb, nil
}

func parseAirtelCallback(body []byte) (services.Callback, error) {
	var p airtelCallback
	if err := json.Unmarshal(body, &p); err != nil {
		return services.Callback{}, err
	}
	cb := services.Callback{
		TransactionID: p.Reference,
		RawStatus:     p.Status,
	}
	if t := p.Transaction; t != nil {
		if cb.TransactionID == "" {
			cb.TransactionID = t.ID
		}
		if cb.RawStatus == "" {
			cb.RawStatus = t.StatusCode
		}
		if cb.RawStatus == "" {
			cb.RawStatus = t.Status
		}
		cb.Reason = t.Message
		cb.ExternalReference = t.AirtelMoneyID
	}
	return cb, nil
}

// MTNCallback handles POST /webhooks/mtn
func (h *WebhookHandler) MTNCallback(c echo.Context) error {
	return h.receive(c, models.ProviderMTN, parseMTNCallback)
}

// AirtelCallback handles POST /webhooks/airtel
func (h *WebhookHandler) AirtelCallback(c echo.Context) error {
	return h.receive(c, models.ProviderAirtel, parseAirtelCallback)
}

// receive answers 200 once the callback is applied or can never apply, and 500 when
// the gateway should retry
func (h *WebhookHandler) receive(c echo.Context, provider models.Provider, parse func([]byte) (services.Callback, error)) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxCallbackBody))
	if err != nil {
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"status": "error"})
	}

	history := &models.PaymentCallbackHistory{
		Provider:   provider,
		Headers:    callbackHeaders(c.Request().Header),
		Payload:    callbackPayload(body),
		RemoteAddr: c.RealIP(),
	}
	defer func() { h.payments.RecordCallback(ctx, history) }()

	cb, err := parse(body)
	if err != nil {
		// A retry would carry the same body; acknowledge it and keep it in the history
		history.Error = errorText(fmt.Errorf("invalid JSON payload: %w", err))
		log.Printf("[webhook] %s callback with invalid JSON dropped: %v", provider, err)
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
	history.TransactionID = cb.TransactionID
	history.RawStatus = cb.RawStatus

	outcome, err := h.payments.ApplyCallback(ctx, provider, cb)
	if err != nil {
		history.Error = errorText(err)
		switch {
		case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrInvalidArgument):
			// Nothing of ours to update; a retry would not change that
			log.Printf("[webhook] %s callback for %q not applied: %v", provider, cb.TransactionID, err)
			return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
		default:
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"status": "error"})
		}
	}

	history.Applied = outcome.Applied
	log.Printf("[webhook] %s callback for %s: raw=%q status=%s applied=%t", provider, cb.TransactionID, cb.RawStatus, outcome.Status, outcome.Applied)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// callbackHeaders keeps request headers for audit, without credentials
func callbackHeaders(header http.Header) datatypes.JSON {
	kept := make(map[string]string, len(header))
	for k, v := range header {
		switch http.CanonicalHeaderKey(k) {
		case "Authorization", middleware.CallbackTokenHeader, "Cookie":
			continue
		}
		kept[k] = strings.Join(v, ", ")
	}
	b, err := json.Marshal(kept)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}

// callbackPayload stores valid JSON as-is and anything else as a JSON string
func callbackPayload(body []byte) datatypes.JSON {
	if json.Valid(body) {
		return datatypes.JSON(body)
	}
	b, _ := json.Marshal(string(body))
	return datatypes.JSON(b)
}

func errorText(err error) *string {
	s := err.Error()
	return &s
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"unipay_momo/internal/config"
	"unipay_momo/internal/models"
)

// Airtel reports two-letter codes (TS, TF, ...) and, on some endpoints, words.
var airtelStatuses = map[string]models.PaymentStatus{
	"TS":         models.PaymentStatusSuccessful,
	"TF":         models.PaymentStatusFailed,
	"TA":         models.PaymentStatusPending,
	"TIP":        models.PaymentStatusPending,
	"TE":         models.PaymentStatusExpired,
	"SUCCESS":    models.PaymentStatusSuccessful,
	"SUCCESSFUL": models.PaymentStatusSuccessful,
	"FAILED":     models.PaymentStatusFailed,
	"PENDING":    models.PaymentStatusPending,
	"REJECTED":   models.PaymentStatusRejected,
	"EXPIRED":    models.PaymentStatusExpired,
}

type airtelSubscriber struct {
	Country  string `json:"country"`
	Currency string `json:"currency"`
	MSISDN   int64  `json:"msisdn"`
}

type airtelTransaction struct {
	Amount   json.Number `json:"amount"`
	Country  string      `json:"country"`
	Currency string      `json:"currency"`
	ID       string      `json:"id"`
	Type     string      `json:"type"`
}

type airtelPaymentRequest struct {
	Reference   string            `json:"reference"`
	Subscriber  airtelSubscriber  `json:"subscriber"`
	Transaction airtelTransaction `json:"transaction"`
}

type airtelEnvelope struct {
	Data struct {
		Transaction struct {
			ID            string `json:"id"`
			AirtelMoneyID string `json:"airtel_money_id"`
			Status        string `json:"status"`
			Message       string `json:"message"`
		} `json:"transaction"`
	} `json:"data"`
	Status struct {
		Code       string `json:"code"`
		Message    string `json:"message"`
		ResultCode string `json:"result_code"`
		Success    *bool  `json:"success"`
	} `json:"status"`
}

// AirtelGateway talks to the Airtel Money merchant payments API
type AirtelGateway struct {
	cfg      config.AirtelConfig
	currency string
	client   *gatewayClient
}

func NewAirtelGateway(cfg config.AirtelConfig, currency string, timeout time.Duration) *AirtelGateway {
	return &AirtelGateway{
		cfg:      cfg,
		currency: currency,
		client:   newGatewayClient(models.ProviderAirtel, cfg.BaseURL, timeout),
	}
}

func (g *AirtelGateway) Provider() models.Provider { return models.ProviderAirtel }

func (g *AirtelGateway) Configured() error {
	if err := g.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedPrecondition, err)
	}
	return nil
}

func (g *AirtelGateway) MapStatus(raw string) models.PaymentStatus {
	return mapStatus(airtelStatuses, raw)
}

func (g *AirtelGateway) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + g.cfg.APIKey,
		"X-Country":     g.cfg.Country,
		"X-Currency":    g.currency,
	}
}

// rejected turns a 2xx envelope carrying success=false into an upstream error
func (g *AirtelGateway) rejected(env airtelEnvelope) error {
	if env.Status.Success == nil || *env.Status.Success {
		return nil
	}
	msg := env.Status.Message
	if msg == "" {
		msg = env.Status.ResultCode
	}
	return &UpstreamGatewayError{Provider: models.ProviderAirtel, StatusCode: http.StatusOK, Message: msg}
}

func (g *AirtelGateway) Collect(ctx context.Context, req *CollectRequest) (string, error) {
	if err := g.Configured(); err != nil {
		return "", err
	}

	msisdn, err := strconv.ParseInt(req.LocalNumber, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: msisdn %q is not numeric", ErrInvalidArgument, req.LocalNumber)
	}

	payload := airtelPaymentRequest{
		Reference: req.TransactionID,
		Subscriber: airtelSubscriber{
			Country:  g.cfg.Country,
			Currency: req.Currency,
			MSISDN:   msisdn,
		},
		Transaction: airtelTransaction{
			Amount:   json.Number(req.Amount.String()),
			Country:  g.cfg.Country,
			Currency: req.Currency,
			ID:       req.TransactionID,
			Type:     "MobileMoneyCollection",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	var env airtelEnvelope
	if _, err := g.client.do(ctx, http.MethodPost, "/merchant/v2/payments/", g.headers(), body, &env); err != nil {
		return "", err
	}
	if err := g.rejected(env); err != nil {
		return "", err
	}

	switch {
	case env.Data.Transaction.AirtelMoneyID != "":
		return env.Data.Transaction.AirtelMoneyID, nil
	case env.Data.Transaction.ID != "":
		return env.Data.Transaction.ID, nil
	}
	return req.TransactionID, nil
}

func (g *AirtelGateway) QueryStatus(ctx context.Context, transactionID string) (*ProviderStatus, error) {
	if err := g.Configured(); err != nil {
		return nil, err
	}

	var env airtelEnvelope
	path := "/merchant/v2/payments/" + url.PathEscape(transactionID)
	if _, err := g.client.do(ctx, http.MethodGet, path, g.headers(), nil, &env); err != nil {
		return nil, err
	}
	if err := g.rejected(env); err != nil {
		return nil, err
	}
	if env.Data.Transaction.Status == "" {
		return nil, &UpstreamGatewayError{Provider: models.ProviderAirtel, StatusCode: http.StatusOK, Message: "status missing from response"}
	}
	return &ProviderStatus{
		Raw:               env.Data.Transaction.Status,
		Reason:            env.Data.Transaction.Message,
		ExternalReference: env.Data.Transaction.AirtelMoneyID,
	}, nil
}

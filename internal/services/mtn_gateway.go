package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"unipay_momo/internal/config"
	"unipay_momo/internal/models"
)

var mtnStatuses = map[string]models.PaymentStatus{
	"PENDING":    models.PaymentStatusPending,
	"CREATED":    models.PaymentStatusPending,
	"ONGOING":    models.PaymentStatusPending,
	"SUCCESSFUL": models.PaymentStatusSuccessful,
	"FAILED":     models.PaymentStatusFailed,
	"REJECTED":   models.PaymentStatusRejected,
	"TIMEOUT":    models.PaymentStatusExpired,
	"EXPIRED":    models.PaymentStatusExpired,
}

type mtnParty struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

type mtnRequestToPay struct {
	Amount       string   `json:"amount"`
	Currency     string   `json:"currency"`
	ExternalID   string   `json:"externalId"`
	Payer        mtnParty `json:"payer"`
	PayerMessage string   `json:"payerMessage"`
	PayeeNote    string   `json:"payeeNote"`
	Description  string   `json:"description"`
}

type mtnRequestToPayStatus struct {
	Amount                 string          `json:"amount"`
	Currency               string          `json:"currency"`
	FinancialTransactionID string          `json:"financialTransactionId"`
	ExternalID             string          `json:"externalId"`
	Status                 string          `json:"status"`
	Reason                 json.RawMessage `json:"reason"`
}

// MTNGateway talks to the MTN MoMo collection API
type MTNGateway struct {
	cfg    config.MTNConfig
	client *gatewayClient
}

func NewMTNGateway(cfg config.MTNConfig, timeout time.Duration) *MTNGateway {
	return &MTNGateway{
		cfg:    cfg,
		client: newGatewayClient(models.ProviderMTN, cfg.BaseURL, timeout),
	}
}

func (g *MTNGateway) Provider() models.Provider { return models.ProviderMTN }

func (g *MTNGateway) Configured() error {
	if err := g.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedPrecondition, err)
	}
	return nil
}

func (g *MTNGateway) MapStatus(raw string) models.PaymentStatus {
	return mapStatus(mtnStatuses, raw)
}

func (g *MTNGateway) authHeaders() map[string]string {
	return map[string]string{
		"Ocp-Apim-Subscription-Key": g.cfg.SubscriptionKey,
		"Authorization":             "Bearer " + g.cfg.APIKey,
		"X-Target-Environment":      g.cfg.TargetEnvironment,
	}
}

// callbackURL appends the shared webhook secret so the receiver can authenticate MTN
func (g *MTNGateway) callbackURL() string {
	if g.cfg.CallbackURL == "" || g.cfg.WebhookSecret == "" {
		return g.cfg.CallbackURL
	}
	u, err := url.Parse(g.cfg.CallbackURL)
	if err != nil {
		return g.cfg.CallbackURL
	}
	q := u.Query()
	q.Set("token", g.cfg.WebhookSecret)
	u.RawQuery = q.Encode()
	return u.String()
}

// SignMTNRequest is hex(sha256(body + apiKey)), sent as X-Signature
func SignMTNRequest(body []byte, apiKey string) string {
	sum := sha256.Sum256(append(append([]byte{}, body...), apiKey...))
	return hex.EncodeToString(sum[:])
}

func (g *MTNGateway) Collect(ctx context.Context, req *CollectRequest) (string, error) {
	if err := g.Configured(); err != nil {
		return "", err
	}

	payeeNote := req.Purpose
	if g.cfg.CollectionAccount != "" {
		payeeNote = fmt.Sprintf("%s (%s)", req.Purpose, g.cfg.CollectionAccount)
	}
	payload := mtnRequestToPay{
		Amount:       req.Amount.String(),
		Currency:     req.Currency,
		ExternalID:   req.TransactionID,
		Payer:        mtnParty{PartyIDType: "MSISDN", PartyID: req.MSISDN},
		PayerMessage: req.Purpose,
		PayeeNote:    payeeNote,
		Description:  req.Purpose,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	headers := g.authHeaders()
	headers["X-Reference-Id"] = req.TransactionID
	headers["X-Signature"] = SignMTNRequest(body, g.cfg.APIKey)
	if cb := g.callbackURL(); cb != "" {
		headers["X-Callback-Url"] = cb
	}

	// MTN answers 202 Accepted with an empty body; the reference id is ours
	if _, err := g.client.do(ctx, http.MethodPost, "/collection/v1_0/requesttopay", headers, body, nil); err != nil {
		return "", err
	}
	return req.TransactionID, nil
}

func (g *MTNGateway) QueryStatus(ctx context.Context, transactionID string) (*ProviderStatus, error) {
	if err := g.Configured(); err != nil {
		return nil, err
	}

	var out mtnRequestToPayStatus
	path := "/collection/v1_0/requesttopay/" + url.PathEscape(transactionID)
	if _, err := g.client.do(ctx, http.MethodGet, path, g.authHeaders(), nil, &out); err != nil {
		return nil, err
	}
	if out.Status == "" {
		return nil, &UpstreamGatewayError{Provider: models.ProviderMTN, StatusCode: http.StatusOK, Message: "status missing from response"}
	}
	return &ProviderStatus{
		Raw:               out.Status,
		Reason:            mtnReason(out.Reason),
		ExternalReference: out.FinancialTransactionID,
	}, nil
}

// mtnReason handles both the plain string and the {code,message} object forms
func mtnReason(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(strings.Join([]string{obj.Code, obj.Message}, " "))
	}
	return string(raw)
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"unipay_momo/internal/models"
)

// ProviderStatus is what a gateway reports for a collection, before mapping
type ProviderStatus struct {
	Raw               string
	Reason            string
	ExternalReference string
}

// PaymentGateway is one provider's wire contract for collections
type PaymentGateway interface {
	Provider() models.Provider
	// Configured returns an error wrapping ErrFailedPrecondition when credentials are missing
	Configured() error
	// Collect asks the payer's phone to approve the charge and returns the gateway reference
	Collect(ctx context.Context, req *CollectRequest) (string, error)
	QueryStatus(ctx context.Context, transactionID string) (*ProviderStatus, error)
	// MapStatus converts a raw provider status into the internal vocabulary
	MapStatus(raw string) models.PaymentStatus
}

// GatewayRegistry selects a PaymentGateway by provider
type GatewayRegistry struct {
	gateways map[models.Provider]PaymentGateway
}

func NewGatewayRegistry(gateways ...PaymentGateway) *GatewayRegistry {
	r := &GatewayRegistry{gateways: make(map[models.Provider]PaymentGateway)}
	for _, g := range gateways {
		r.Register(g)
	}
	return r
}

func (r *GatewayRegistry) Register(g PaymentGateway) {
	r.gateways[g.Provider()] = g
}

func (r *GatewayRegistry) Get(provider models.Provider) (PaymentGateway, error) {
	if g, ok := r.gateways[provider]; ok {
		return g, nil
	}
	return nil, fmt.Errorf("%w: provider %s not configured", ErrFailedPrecondition, provider)
}

// mapStatus looks raw up case-insensitively; anything else is unknown
func mapStatus(table map[string]models.PaymentStatus, raw string) models.PaymentStatus {
	if s, ok := table[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return s
	}
	return models.PaymentStatusUnknown
}

// gatewayClient does the JSON-over-HTTP plumbing shared by both adapters
type gatewayClient struct {
	provider models.Provider
	baseURL  string
	client   *http.Client
}

func newGatewayClient(provider models.Provider, baseURL string, timeout time.Duration) *gatewayClient {
	return &gatewayClient{
		provider: provider,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
	}
}

// do sends body (already encoded, may be nil) and decodes a 2xx JSON answer into out when
// both are present. Transport failures and non-2xx answers come back as *UpstreamGatewayError.
func (c *gatewayClient) do(ctx context.Context, method, path string, headers map[string]string, body []byte, out interface{}) (int, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, &UpstreamGatewayError{
			Provider: c.provider,
			Message:  err.Error(),
			Timeout:  isTimeout(err),
			Err:      err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, &UpstreamGatewayError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Message:    "failed to read response: " + err.Error(),
			Timeout:    isTimeout(err),
			Err:        err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &UpstreamGatewayError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Message:    upstreamMessage(respBody, resp.Status),
		}
	}

	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode %s response: %w", c.provider, err)
		}
	}
	return resp.StatusCode, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// upstreamMessage digs the human-readable message out of a provider error body
func upstreamMessage(body []byte, fallback string) string {
	var parsed struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
		Code    string `json:"code"`
		Status  struct {
			Message string `json:"message"`
		} `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, m := range []string{parsed.Message, parsed.Status.Message, parsed.Reason, parsed.Code} {
			if m != "" {
				return m
			}
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		if len(s) > 300 {
			s = s[:300]
		}
		return s
	}
	return fallback
}

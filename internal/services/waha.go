package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"unipay_momo/internal/config"
)

// WahaService sends WhatsApp messages to payers through a WAHA instance
type WahaService struct {
	baseURL     string
	apiKey      string
	countryCode string
	client      *http.Client
}

func NewWahaService(cfg config.WahaConfig, countryCode string) *WahaService {
	return &WahaService{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		countryCode: countryCode,
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled is false when no WAHA instance is configured
func (s *WahaService) Enabled() bool {
	return s != nil && s.baseURL != ""
}

func (s *WahaService) makeRequest(ctx context.Context, method, endpoint string, payload interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// NormalizeChatID turns a payer number into a WhatsApp chat id, adding the
// country code to local numbers
func NormalizeChatID(phone, countryCode string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.TrimSuffix(phone, "@c.us")
	phone = strings.TrimPrefix(phone, "+")

	if strings.HasPrefix(phone, "0") {
		phone = countryCode + strings.TrimPrefix(phone, "0")
	}

	return phone + "@c.us"
}

// SendMessage sends a text message to the payer's WhatsApp number
func (s *WahaService) SendMessage(ctx context.Context, phone, text string) error {
	return s.makeRequest(ctx, http.MethodPost, "/api/sendText", map[string]string{
		"chatId":  NormalizeChatID(phone, s.countryCode),
		"text":    text,
		"session": "default",
	})
}

package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"unipay_momo/internal/config"
)

func TestNormalizeChatID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "local number with leading zero",
			input:    "0700123456",
			expected: "256700123456@c.us",
		},
		{
			name:     "international msisdn",
			input:    "256700123456",
			expected: "256700123456@c.us",
		},
		{
			name:     "plus prefixed",
			input:    "+256700123456",
			expected: "256700123456@c.us",
		},
		{
			name:     "already a chat id",
			input:    "256700123456@c.us",
			expected: "256700123456@c.us",
		},
		{
			name:     "local chat id",
			input:    "0700123456@c.us",
			expected: "256700123456@c.us",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeChatID(tt.input, "256")
			if result != tt.expected {
				t.Errorf("NormalizeChatID(%q) = %q; want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestWahaSendMessage(t *testing.T) {
	var got map[string]string
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sendText" {
			t.Errorf("path = %s; want /api/sendText", r.URL.Path)
		}
		apiKey = r.Header.Get("X-Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewWahaService(config.WahaConfig{BaseURL: srv.URL, APIKey: "waha-key"}, "256")
	if !s.Enabled() {
		t.Fatal("Enabled() = false with a base URL")
	}
	if err := s.SendMessage(context.Background(), "256700123456", "paid"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if apiKey != "waha-key" {
		t.Errorf("X-Api-Key = %q; want waha-key", apiKey)
	}
	if got["chatId"] != "256700123456@c.us" || got["text"] != "paid" {
		t.Errorf("payload = %v", got)
	}
}

package services

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"unipay_momo/internal/models"
)

func validRequest() InitiateRequest {
	return InitiateRequest{
		Provider:      "mtn",
		PhoneNumber:   "700123456",
		Amount:        decimal.NewFromInt(50000),
		Purpose:       "Tuition",
		TransactionID: "tx-001",
	}
}

func TestRequestBuilderNormalizes(t *testing.T) {
	b := NewRequestBuilder("256", "UGX")

	tests := []struct {
		name       string
		mutate     func(r *InitiateRequest)
		wantMSISDN string
		wantLocal  string
		wantProv   models.Provider
	}{
		{
			name:       "nine digit local number",
			mutate:     func(r *InitiateRequest) {},
			wantMSISDN: "256700123456",
			wantLocal:  "700123456",
			wantProv:   models.ProviderMTN,
		},
		{
			name:       "ten digit number with leading zero",
			mutate:     func(r *InitiateRequest) { r.PhoneNumber = "0750123456" },
			wantMSISDN: "256750123456",
			wantLocal:  "750123456",
			wantProv:   models.ProviderMTN,
		},
		{
			name: "provider casing and whitespace",
			mutate: func(r *InitiateRequest) {
				r.Provider = " Airtel "
				r.PhoneNumber = " 0750123456 "
			},
			wantMSISDN: "256750123456",
			wantLocal:  "750123456",
			wantProv:   models.ProviderAirtel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			out, err := b.Build(req)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if out.MSISDN != tt.wantMSISDN {
				t.Errorf("MSISDN = %q; want %q", out.MSISDN, tt.wantMSISDN)
			}
			if out.LocalNumber != tt.wantLocal {
				t.Errorf("LocalNumber = %q; want %q", out.LocalNumber, tt.wantLocal)
			}
			if out.Provider != tt.wantProv {
				t.Errorf("Provider = %q; want %q", out.Provider, tt.wantProv)
			}
			if out.Currency != "UGX" {
				t.Errorf("Currency = %q; want UGX", out.Currency)
			}
		})
	}
}

func TestRequestBuilderRejects(t *testing.T) {
	b := NewRequestBuilder("256", "UGX")

	tests := []struct {
		name   string
		mutate func(r *InitiateRequest)
	}{
		{"short phone", func(r *InitiateRequest) { r.PhoneNumber = "12345" }},
		{"long phone", func(r *InitiateRequest) { r.PhoneNumber = "07001234567" }},
		{"ten digits without trunk zero", func(r *InitiateRequest) { r.PhoneNumber = "7001234567" }},
		{"nine digits with leading zero", func(r *InitiateRequest) { r.PhoneNumber = "070012345" }},
		{"phone with plus", func(r *InitiateRequest) { r.PhoneNumber = "+256700123456" }},
		{"phone with letters", func(r *InitiateRequest) { r.PhoneNumber = "70012345a" }},
		{"missing phone", func(r *InitiateRequest) { r.PhoneNumber = "" }},
		{"missing purpose", func(r *InitiateRequest) { r.Purpose = "  " }},
		{"missing transaction id", func(r *InitiateRequest) { r.TransactionID = "" }},
		{"unknown provider", func(r *InitiateRequest) { r.Provider = "mpesa" }},
		{"missing provider", func(r *InitiateRequest) { r.Provider = "" }},
		{"zero amount", func(r *InitiateRequest) { r.Amount = decimal.Zero }},
		{"negative amount", func(r *InitiateRequest) { r.Amount = decimal.NewFromInt(-5) }},
		{"bad email", func(r *InitiateRequest) { r.Email = "not-an-email" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := b.Build(req)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("Build error = %v; want ErrInvalidArgument", err)
			}
		})
	}
}

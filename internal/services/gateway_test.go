package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"unipay_momo/internal/config"
	"unipay_momo/internal/models"
)

type capturedRequest struct {
	method string
	path   string
	header http.Header
	body   []byte
}

// recordingServer answers every request with status and body and keeps the last request
func recordingServer(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	got := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*got = capturedRequest{method: r.Method, path: r.URL.Path, header: r.Header.Clone(), body: b}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func mtnTestConfig(baseURL string) config.MTNConfig {
	return config.MTNConfig{
		BaseURL:           baseURL,
		APIKey:            "mtn-key",
		SubscriptionKey:   "sub-key",
		TargetEnvironment: "sandbox",
		CallbackURL:       "https://portal.example.ac.ug/webhooks/mtn",
		WebhookSecret:     "s3cret",
	}
}

func airtelTestConfig(baseURL string) config.AirtelConfig {
	return config.AirtelConfig{BaseURL: baseURL, APIKey: "airtel-key", Country: "UG"}
}

func testCollectRequest(provider models.Provider) *CollectRequest {
	return &CollectRequest{
		TransactionID: "tx-001",
		Provider:      provider,
		MSISDN:        "256700123456",
		LocalNumber:   "700123456",
		Amount:        decimal.NewFromInt(50000),
		Currency:      "UGX",
		Purpose:       "Tuition",
	}
}

func TestMTNCollectWireShape(t *testing.T) {
	srv, got := recordingServer(t, http.StatusAccepted, "")
	gw := NewMTNGateway(mtnTestConfig(srv.URL), 5*time.Second)

	ref, err := gw.Collect(context.Background(), testCollectRequest(models.ProviderMTN))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if ref != "tx-001" {
		t.Errorf("reference = %q; want tx-001", ref)
	}

	if got.method != http.MethodPost || got.path != "/collection/v1_0/requesttopay" {
		t.Errorf("request = %s %s", got.method, got.path)
	}
	wantHeaders := map[string]string{
		"X-Reference-Id":            "tx-001",
		"Ocp-Apim-Subscription-Key": "sub-key",
		"Authorization":             "Bearer mtn-key",
		"X-Target-Environment":      "sandbox",
		"X-Callback-Url":            "https://portal.example.ac.ug/webhooks/mtn?token=s3cret",
		"X-Signature":               SignMTNRequest(got.body, "mtn-key"),
	}
	for k, want := range wantHeaders {
		if v := got.header.Get(k); v != want {
			t.Errorf("header %s = %q; want %q", k, v, want)
		}
	}

	var body map[string]interface{}
	if err := json.Unmarshal(got.body, &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["amount"] != "50000" || body["currency"] != "UGX" || body["externalId"] != "tx-001" {
		t.Errorf("body = %v", body)
	}
	payer, _ := body["payer"].(map[string]interface{})
	if payer["partyIdType"] != "MSISDN" || payer["partyId"] != "256700123456" {
		t.Errorf("payer = %v", payer)
	}
	for _, k := range []string{"payerMessage", "payeeNote", "description"} {
		if body[k] != "Tuition" {
			t.Errorf("%s = %v; want Tuition", k, body[k])
		}
	}
}

func TestSignMTNRequest(t *testing.T) {
	// sha256("{}" + "key")
	const want = "59292d1886189af59e739dfd7487d7c5fb3a137106b1ae5ef3b105d2072aba71"
	if got := SignMTNRequest([]byte("{}"), "key"); got != want {
		t.Errorf("SignMTNRequest = %s; want %s", got, want)
	}
	if SignMTNRequest([]byte("{}"), "other") == want {
		t.Error("signature does not depend on the key")
	}
}

func TestMTNQueryStatus(t *testing.T) {
	srv, got := recordingServer(t, http.StatusOK,
		`{"amount":"50000","currency":"UGX","financialTransactionId":"fin-9","externalId":"tx-001","status":"FAILED","reason":{"code":"PAYER_NOT_FOUND","message":"Payer not found"}}`)
	gw := NewMTNGateway(mtnTestConfig(srv.URL), 5*time.Second)

	ps, err := gw.QueryStatus(context.Background(), "tx-001")
	if err != nil {
		t.Fatalf("QueryStatus: %v", err)
	}
	if got.method != http.MethodGet || got.path != "/collection/v1_0/requesttopay/tx-001" {
		t.Errorf("request = %s %s", got.method, got.path)
	}
	if got.header.Get("Ocp-Apim-Subscription-Key") != "sub-key" || got.header.Get("Authorization") != "Bearer mtn-key" {
		t.Errorf("auth headers missing: %v", got.header)
	}
	if ps.Raw != "FAILED" || ps.ExternalReference != "fin-9" {
		t.Errorf("status = %+v", ps)
	}
	if ps.Reason != "PAYER_NOT_FOUND Payer not found" {
		t.Errorf("reason = %q", ps.Reason)
	}
}

func TestMTNUpstreamError(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusInternalServerError, `{"code":"INTERNAL_PROCESSING_ERROR","message":"An internal error occurred"}`)
	gw := NewMTNGateway(mtnTestConfig(srv.URL), 5*time.Second)

	_, err := gw.Collect(context.Background(), testCollectRequest(models.ProviderMTN))
	var uerr *UpstreamGatewayError
	if !errors.As(err, &uerr) {
		t.Fatalf("error = %v; want *UpstreamGatewayError", err)
	}
	if uerr.StatusCode != http.StatusInternalServerError || uerr.Message != "An internal error occurred" {
		t.Errorf("upstream error = %+v", uerr)
	}
}

func TestGatewayTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	gw := NewMTNGateway(mtnTestConfig(srv.URL), 50*time.Millisecond)
	_, err := gw.Collect(context.Background(), testCollectRequest(models.ProviderMTN))

	var uerr *UpstreamGatewayError
	if !errors.As(err, &uerr) {
		t.Fatalf("error = %v; want *UpstreamGatewayError", err)
	}
	if !uerr.Timeout {
		t.Errorf("Timeout = false; want true (%v)", uerr)
	}
}

func TestGatewayNotConfigured(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	t.Cleanup(srv.Close)

	mtn := NewMTNGateway(config.MTNConfig{BaseURL: srv.URL}, time.Second)
	if _, err := mtn.Collect(context.Background(), testCollectRequest(models.ProviderMTN)); !errors.Is(err, ErrFailedPrecondition) {
		t.Errorf("MTN Collect error = %v; want ErrFailedPrecondition", err)
	}
	airtel := NewAirtelGateway(config.AirtelConfig{BaseURL: srv.URL, Country: "UG"}, "UGX", time.Second)
	if _, err := airtel.QueryStatus(context.Background(), "tx-001"); !errors.Is(err, ErrFailedPrecondition) {
		t.Errorf("Airtel QueryStatus error = %v; want ErrFailedPrecondition", err)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("gateway was called %d times", n)
	}
}

func TestAirtelCollectWireShape(t *testing.T) {
	srv, got := recordingServer(t, http.StatusOK,
		`{"data":{"transaction":{"id":"tx-001","status":"Success."}},"status":{"code":"200","message":"SUCCESS","result_code":"ESB000010","success":true}}`)
	gw := NewAirtelGateway(airtelTestConfig(srv.URL), "UGX", 5*time.Second)

	ref, err := gw.Collect(context.Background(), testCollectRequest(models.ProviderAirtel))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if ref != "tx-001" {
		t.Errorf("reference = %q; want tx-001", ref)
	}
	if got.method != http.MethodPost || got.path != "/merchant/v2/payments/" {
		t.Errorf("request = %s %s", got.method, got.path)
	}
	if got.header.Get("Authorization") != "Bearer airtel-key" || got.header.Get("X-Country") != "UG" {
		t.Errorf("headers = %v", got.header)
	}

	// decode into concrete types so the msisdn must be a JSON number
	var body struct {
		Reference  string `json:"reference"`
		Subscriber struct {
			Country  string `json:"country"`
			Currency string `json:"currency"`
			MSISDN   int64  `json:"msisdn"`
		} `json:"subscriber"`
		Transaction struct {
			Amount   json.Number `json:"amount"`
			Country  string      `json:"country"`
			Currency string      `json:"currency"`
			ID       string      `json:"id"`
			Type     string      `json:"type"`
		} `json:"transaction"`
	}
	if err := json.Unmarshal(got.body, &body); err != nil {
		t.Fatalf("body: %v (%s)", err, got.body)
	}
	if body.Reference != "tx-001" || body.Subscriber.MSISDN != 700123456 || body.Subscriber.Country != "UG" || body.Subscriber.Currency != "UGX" {
		t.Errorf("body = %+v", body)
	}
	if body.Transaction.Amount.String() != "50000" || body.Transaction.ID != "tx-001" || body.Transaction.Type != "MobileMoneyCollection" {
		t.Errorf("transaction = %+v", body.Transaction)
	}
	if !strings.Contains(string(got.body), `"msisdn":700123456`) {
		t.Errorf("msisdn is not numeric in %s", got.body)
	}
}

func TestAirtelRejectedEnvelope(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusOK,
		`{"data":{},"status":{"code":"400","message":"Invalid MSISDN","result_code":"ESB000001","success":false}}`)
	gw := NewAirtelGateway(airtelTestConfig(srv.URL), "UGX", 5*time.Second)

	_, err := gw.Collect(context.Background(), testCollectRequest(models.ProviderAirtel))
	var uerr *UpstreamGatewayError
	if !errors.As(err, &uerr) || uerr.Message != "Invalid MSISDN" {
		t.Fatalf("error = %v; want upstream Invalid MSISDN", err)
	}
}

func TestAirtelQueryStatus(t *testing.T) {
	srv, got := recordingServer(t, http.StatusOK,
		`{"data":{"transaction":{"airtel_money_id":"MP210603.1234.A00001","id":"tx-001","message":"Paid","status":"TS"}},"status":{"success":true}}`)
	gw := NewAirtelGateway(airtelTestConfig(srv.URL), "UGX", 5*time.Second)

	ps, err := gw.QueryStatus(context.Background(), "tx-001")
	if err != nil {
		t.Fatalf("QueryStatus: %v", err)
	}
	if got.method != http.MethodGet || got.path != "/merchant/v2/payments/tx-001" {
		t.Errorf("request = %s %s", got.method, got.path)
	}
	if ps.Raw != "TS" || ps.ExternalReference != "MP210603.1234.A00001" {
		t.Errorf("status = %+v", ps)
	}
	if gw.MapStatus(ps.Raw) != models.PaymentStatusSuccessful {
		t.Errorf("TS mapped to %s", gw.MapStatus(ps.Raw))
	}
}

func TestStatusMappingCompleteness(t *testing.T) {
	mtn := NewMTNGateway(config.MTNConfig{}, time.Second)
	airtel := NewAirtelGateway(config.AirtelConfig{}, "UGX", time.Second)

	tests := []struct {
		name string
		gw   PaymentGateway
		raw  string
		want models.PaymentStatus
	}{
		{"mtn pending", mtn, "PENDING", models.PaymentStatusPending},
		{"mtn successful", mtn, "SUCCESSFUL", models.PaymentStatusSuccessful},
		{"mtn lower case", mtn, "successful", models.PaymentStatusSuccessful},
		{"mtn failed", mtn, "FAILED", models.PaymentStatusFailed},
		{"mtn rejected", mtn, "REJECTED", models.PaymentStatusRejected},
		{"mtn timeout", mtn, "TIMEOUT", models.PaymentStatusExpired},
		{"mtn unmapped", mtn, "WEIRD", models.PaymentStatusUnknown},
		{"mtn empty", mtn, "", models.PaymentStatusUnknown},
		{"airtel TS", airtel, "TS", models.PaymentStatusSuccessful},
		{"airtel TF", airtel, "TF", models.PaymentStatusFailed},
		{"airtel TIP", airtel, "TIP", models.PaymentStatusPending},
		{"airtel TA", airtel, "ta", models.PaymentStatusPending},
		{"airtel TE", airtel, "TE", models.PaymentStatusExpired},
		{"airtel unmapped", airtel, "TX", models.PaymentStatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.gw.MapStatus(tt.raw); got != tt.want {
				t.Errorf("MapStatus(%q) = %s; want %s", tt.raw, got, tt.want)
			}
		})
	}

	// every table entry lands in the internal vocabulary
	valid := map[models.PaymentStatus]bool{
		models.PaymentStatusPending: true, models.PaymentStatusSuccessful: true,
		models.PaymentStatusFailed: true, models.PaymentStatusRejected: true,
		models.PaymentStatusExpired: true,
	}
	for _, table := range []map[string]models.PaymentStatus{mtnStatuses, airtelStatuses} {
		for raw, s := range table {
			if !valid[s] {
				t.Errorf("%q maps to %q", raw, s)
			}
		}
	}
}

func TestGatewayRegistryUnknownProvider(t *testing.T) {
	r := NewGatewayRegistry(NewMTNGateway(config.MTNConfig{}, time.Second))
	if _, err := r.Get(models.ProviderAirtel); !errors.Is(err, ErrFailedPrecondition) {
		t.Fatalf("Get error = %v; want ErrFailedPrecondition", err)
	}
}

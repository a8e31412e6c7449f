package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"unipay_momo/internal/services"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
	}{
		{"invalid argument", fmt.Errorf("%w: bad phone", services.ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{"failed precondition", fmt.Errorf("%w: no keys", services.ErrFailedPrecondition), http.StatusPreconditionFailed, "failed_precondition"},
		{"not found", fmt.Errorf("%w: tx", services.ErrNotFound), http.StatusNotFound, "not_found"},
		{"unavailable", services.ErrUnavailable, http.StatusServiceUnavailable, "unavailable"},
		{"internal", fmt.Errorf("%w: boom", services.ErrInternal), http.StatusInternalServerError, "internal"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, kind := StatusFor(tt.err)
			if code != tt.wantCode || kind != tt.wantKind {
				t.Errorf("StatusFor = %d %s; want %d %s", code, kind, tt.wantCode, tt.wantKind)
			}
		})
	}
}

func serveError(t *testing.T, err error) (int, ErrorResponse) {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = JSONErrorHandler
	e.GET("/", func(c echo.Context) error { return err })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var body ErrorResponse
	if jerr := json.Unmarshal(rec.Body.Bytes(), &body); jerr != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), jerr)
	}
	return rec.Code, body
}

func TestJSONErrorHandler(t *testing.T) {
	code, body := serveError(t, fmt.Errorf("%w: phoneNumber must be 9 or 10 digits", services.ErrInvalidArgument))
	if code != http.StatusBadRequest || body.Success || body.Error != "invalid_argument" {
		t.Errorf("invalid argument = %d %+v", code, body)
	}
	if body.Message != "invalid argument: phoneNumber must be 9 or 10 digits" {
		t.Errorf("message = %q", body.Message)
	}

	code, body = serveError(t, echo.NewHTTPError(http.StatusUnauthorized, "Invalid callback token"))
	if code != http.StatusUnauthorized || body.Message != "Invalid callback token" {
		t.Errorf("http error = %d %+v", code, body)
	}

	// unclassified errors do not leak their text
	code, body = serveError(t, errors.New("pq: password authentication failed"))
	if code != http.StatusInternalServerError || body.Message == "pq: password authentication failed" {
		t.Errorf("plain error = %d %+v", code, body)
	}
}

func TestParseCIDRs(t *testing.T) {
	nets, err := ParseCIDRs([]string{"196.201.214.0/24", " 10.0.0.7 ", "", "2001:db8::1"})
	if err != nil {
		t.Fatalf("ParseCIDRs: %v", err)
	}
	if len(nets) != 3 {
		t.Fatalf("len = %d; want 3", len(nets))
	}
	if ones, _ := nets[1].Mask.Size(); ones != 32 {
		t.Errorf("bare IPv4 mask = /%d; want /32", ones)
	}
	if ones, _ := nets[2].Mask.Size(); ones != 128 {
		t.Errorf("bare IPv6 mask = /%d; want /128", ones)
	}

	if _, err := ParseCIDRs([]string{"not-an-ip"}); err == nil {
		t.Error("invalid entry accepted")
	}
}

func TestRequireWebhookAuth(t *testing.T) {
	allowed, err := ParseCIDRs([]string{"196.201.214.0/24"})
	if err != nil {
		t.Fatalf("ParseCIDRs: %v", err)
	}

	e := echo.New()
	e.HTTPErrorHandler = JSONErrorHandler
	e.POST("/hook", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}, RequireWebhookAuth("mtn", "s3cret", allowed))

	tests := []struct {
		name     string
		remote   string
		target   string
		token    string
		wantCode int
	}{
		{"allowed origin with header token", "196.201.214.10:5000", "/hook", "s3cret", http.StatusOK},
		{"allowed origin with query token", "196.201.214.10:5000", "/hook?token=s3cret", "", http.StatusOK},
		{"allowed origin wrong token", "196.201.214.10:5000", "/hook", "nope", http.StatusUnauthorized},
		{"allowed origin no token", "196.201.214.10:5000", "/hook", "", http.StatusUnauthorized},
		{"outside allow-list", "203.0.113.9:5000", "/hook", "s3cret", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.target, nil)
			req.RemoteAddr = tt.remote
			if tt.token != "" {
				req.Header.Set(CallbackTokenHeader, tt.token)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Errorf("code = %d; want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestRequireWebhookAuthWithoutSecret(t *testing.T) {
	e := echo.New()
	e.POST("/hook", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RequireWebhookAuth("airtel", "", nil))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hook", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d; want 200", rec.Code)
	}
}

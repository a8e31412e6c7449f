package middleware

import (
	"crypto/subtle"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// CallbackTokenHeader carries the shared secret on gateway callbacks. MTN cannot set
// headers, so its callback URL carries the same value in the token query parameter.
const CallbackTokenHeader = "X-Callback-Token"

// ParseCIDRs turns an allow-list such as "196.201.214.0/24,10.0.0.1" into networks.
// A bare IP is treated as a single-host network.
func ParseCIDRs(cidrs []string) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, raw := range cidrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("invalid allow-list entry %q", raw)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			raw = fmt.Sprintf("%s/%d", raw, bits)
		}
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid allow-list entry %q: %w", raw, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

// RequireWebhookAuth checks the origin of a gateway callback against the allow-list
// (when one is set) and the provider's shared secret (when one is set)
func RequireWebhookAuth(provider, secret string, allowed []*net.IPNet) echo.MiddlewareFunc {
	if secret == "" {
		log.Printf("Warning: no webhook secret configured for %s, callbacks are not authenticated", provider)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(allowed) > 0 {
				ip := net.ParseIP(c.RealIP())
				if ip == nil || !containsIP(allowed, ip) {
					log.Printf("[webhook] %s callback rejected from %s: not in allow-list", provider, c.RealIP())
					return echo.NewHTTPError(http.StatusForbidden, "Origin not allowed")
				}
			}

			if secret != "" {
				token := c.Request().Header.Get(CallbackTokenHeader)
				if token == "" {
					token = c.QueryParam("token")
				}
				if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
					log.Printf("[webhook] %s callback rejected from %s: bad token", provider, c.RealIP())
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid callback token")
				}
			}

			return next(c)
		}
	}
}

func containsIP(nets []*net.IPNet, ip net.IP) bool {
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

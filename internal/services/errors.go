package services

import (
	"errors"
	"fmt"

	"unipay_momo/internal/models"
)

// Error kinds surfaced to callers. Wrap them with fmt.Errorf("%w: ...") and
// test with errors.Is.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrFailedPrecondition = errors.New("failed precondition")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInternal           = errors.New("internal error")
	ErrUnavailable        = errors.New("unavailable")
)

// UpstreamGatewayError is returned by a PaymentGateway when the provider answers
// non-2xx or cannot be reached at all.
type UpstreamGatewayError struct {
	Provider   models.Provider
	StatusCode int // 0 when no response was received
	Message    string
	Timeout    bool
	Err        error
}

func (e *UpstreamGatewayError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s gateway timed out: %s", e.Provider, e.Message)
	case e.StatusCode == 0:
		return fmt.Sprintf("%s gateway unreachable: %s", e.Provider, e.Message)
	default:
		return fmt.Sprintf("%s gateway returned %d: %s", e.Provider, e.StatusCode, e.Message)
	}
}

func (e *UpstreamGatewayError) Unwrap() error { return e.Err }

package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"unipay_momo/internal/models"
)

var localPhonePattern = regexp.MustCompile(`^\d{9,10}$`)

// InitiateRequest is the caller-facing input of Initiate
type InitiateRequest struct {
	Provider      string          `json:"provider" validate:"required"`
	PhoneNumber   string          `json:"phoneNumber" validate:"required,local_phone"`
	Amount        decimal.Decimal `json:"amount"`
	Purpose       string          `json:"purpose" validate:"required,max=255"`
	TransactionID string          `json:"transactionId" validate:"required,max=100"`
	Email         string          `json:"email,omitempty" validate:"omitempty,email"`
}

// CollectRequest is a validated, normalized collection intent handed to a PaymentGateway
type CollectRequest struct {
	TransactionID string
	Provider      models.Provider
	MSISDN        string // country-code prefixed, digits only
	LocalNumber   string // national significant number, no leading zero
	Amount        decimal.Decimal
	Currency      string
	Purpose       string
	Email         string
}

// RequestBuilder validates caller input before anything touches the network or the store
type RequestBuilder struct {
	validate    *validator.Validate
	countryCode string
	currency    string
}

func NewRequestBuilder(countryCode, currency string) *RequestBuilder {
	v := validator.New()
	_ = v.RegisterValidation("local_phone", func(fl validator.FieldLevel) bool {
		return localPhonePattern.MatchString(fl.Field().String())
	})
	return &RequestBuilder{validate: v, countryCode: countryCode, currency: currency}
}

// Build validates req and returns the normalized collection request.
// Every failure wraps ErrInvalidArgument.
func (b *RequestBuilder) Build(req InitiateRequest) (*CollectRequest, error) {
	req.Provider = strings.TrimSpace(req.Provider)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.Purpose = strings.TrimSpace(req.Purpose)
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	req.Email = strings.TrimSpace(req.Email)

	if err := b.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidArgument, describeValidation(err))
	}

	provider, ok := models.ParseProvider(req.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported provider %q", ErrInvalidArgument, req.Provider)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidArgument)
	}

	local, ok := nationalNumber(req.PhoneNumber)
	if !ok {
		return nil, fmt.Errorf("%w: phoneNumber must be 9 digits, or 10 digits starting with 0", ErrInvalidArgument)
	}
	return &CollectRequest{
		TransactionID: req.TransactionID,
		Provider:      provider,
		MSISDN:        b.countryCode + local,
		LocalNumber:   local,
		Amount:        req.Amount,
		Currency:      b.currency,
		Purpose:       req.Purpose,
		Email:         req.Email,
	}, nil
}

// nationalNumber strips the trunk prefix: 0700123456 and 700123456 both give 700123456.
// A 10-digit number without the leading 0 has no valid national form.
func nationalNumber(phone string) (string, bool) {
	if len(phone) == 10 {
		if phone[0] != '0' {
			return "", false
		}
		phone = phone[1:]
	}
	if len(phone) != 9 || phone[0] == '0' {
		return "", false
	}
	return phone, true
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "local_phone":
			msgs = append(msgs, "phoneNumber must be 9 or 10 digits")
		case "email":
			msgs = append(msgs, "email is not a valid address")
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

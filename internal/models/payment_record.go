package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Provider identifies the mobile-money network that collects a payment
type Provider string

const (
	ProviderMTN    Provider = "mtn"
	ProviderAirtel Provider = "airtel"
)

// ParseProvider accepts any casing; ok is false for unsupported networks
func ParseProvider(s string) (Provider, bool) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderMTN, ProviderAirtel:
		return p, true
	}
	return "", false
}

// PaymentStatus is the internal status vocabulary shared by both providers
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusSuccessful PaymentStatus = "successful"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRejected   PaymentStatus = "rejected"
	PaymentStatusExpired    PaymentStatus = "expired"
	PaymentStatusUnknown    PaymentStatus = "unknown"
)

// TerminalStatuses never transition again once stored
var TerminalStatuses = []PaymentStatus{
	PaymentStatusSuccessful,
	PaymentStatusFailed,
	PaymentStatusRejected,
	PaymentStatusExpired,
}

// IsTerminal reports whether s is final
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusSuccessful, PaymentStatusFailed, PaymentStatusRejected, PaymentStatusExpired:
		return true
	}
	return false
}

// PaymentRecord is the system of record for one mobile-money collection attempt
type PaymentRecord struct {
	TransactionID string    `gorm:"primaryKey;type:varchar(100)" json:"transactionId"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	Provider    Provider        `gorm:"type:varchar(20);not null;index" json:"provider"`
	PhoneNumber string          `gorm:"type:varchar(20);not null" json:"phoneNumber"` // e.g. 256700123456
	Amount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Currency    string          `gorm:"type:varchar(8);not null" json:"currency"`
	Purpose     string          `gorm:"type:varchar(255)" json:"purpose"`
	Email       *string         `gorm:"type:varchar(255)" json:"email,omitempty"`

	Status            PaymentStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_payment_records_status_expires,priority:1" json:"status"`
	ProviderStatus    string        `gorm:"type:varchar(50)" json:"providerStatus,omitempty"` // raw value from the last poll or callback
	ExternalReference *string       `gorm:"type:varchar(100)" json:"externalReference,omitempty"`

	ExpiresAt          time.Time  `gorm:"index:idx_payment_records_status_expires,priority:2" json:"expiresAt"`
	LastChecked        *time.Time `json:"lastChecked,omitempty"`
	CallbackReceived   bool       `gorm:"default:false" json:"callbackReceived"`
	CallbackReceivedAt *time.Time `json:"callbackReceivedAt,omitempty"`
	FinalizedAt        *time.Time `json:"finalizedAt,omitempty"`
	Error              *string    `gorm:"type:text" json:"error,omitempty"`

	// Version counts applied writes
	Version int `gorm:"not null;default:1" json:"version"`
}

// IsExpired reports whether the advisory collection window has passed
func (r PaymentRecord) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentCallbackHistory keeps every gateway callback as received, for audit and replay.
// Several rows may exist per transaction since gateways retry deliveries.
type PaymentCallbackHistory struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Provider      Provider       `gorm:"type:varchar(20);not null" json:"provider"`
	TransactionID string         `gorm:"type:varchar(100);index" json:"transaction_id"`
	RawStatus     string         `gorm:"type:varchar(50)" json:"raw_status"`
	Headers       datatypes.JSON `json:"headers"`
	Payload       datatypes.JSON `json:"payload"`
	RemoteAddr    string         `gorm:"type:varchar(64)" json:"remote_addr"`
	Applied       bool           `json:"applied"` // the callback changed the stored status
	Error         *string        `gorm:"type:text" json:"error,omitempty"`
}

func (h *PaymentCallbackHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

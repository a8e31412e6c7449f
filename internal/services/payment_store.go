package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"unipay_momo/internal/models"
)

// StatusPatch is a partial update of a PaymentRecord. Nil fields are left alone.
type StatusPatch struct {
	Status             *models.PaymentStatus
	ProviderStatus     *string
	ExternalReference  *string
	LastChecked        *time.Time
	CallbackReceivedAt *time.Time // also sets CallbackReceived
	Error              *string
}

func (p StatusPatch) columns(now time.Time) map[string]interface{} {
	updates := map[string]interface{}{
		"version": gorm.Expr("version + 1"),
	}
	if p.Status != nil {
		updates["status"] = *p.Status
		if p.Status.IsTerminal() {
			updates["finalized_at"] = now
		}
	}
	if p.ProviderStatus != nil {
		updates["provider_status"] = *p.ProviderStatus
	}
	if p.ExternalReference != nil {
		updates["external_reference"] = *p.ExternalReference
	}
	if p.LastChecked != nil {
		updates["last_checked"] = *p.LastChecked
	}
	if p.CallbackReceivedAt != nil {
		updates["callback_received"] = true
		updates["callback_received_at"] = *p.CallbackReceivedAt
	}
	if p.Error != nil {
		updates["error"] = *p.Error
	}
	return updates
}

// PaymentStore persists PaymentRecords. Status writes are conditional: once a record
// is terminal no patch can change it, whichever path (poll or callback) arrives last.
type PaymentStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewPaymentStore(db *gorm.DB) *PaymentStore {
	return &PaymentStore{db: db, now: time.Now}
}

// Create inserts rec. An existing record with the same transaction id is never
// overwritten; ErrAlreadyExists is returned instead.
func (s *PaymentStore) Create(ctx context.Context, rec *models.PaymentRecord) error {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return fmt.Errorf("%w: create payment record: %v", ErrInternal, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: transaction %s", ErrAlreadyExists, rec.TransactionID)
	}
	return nil
}

func (s *PaymentStore) Get(ctx context.Context, transactionID string) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	err := s.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, transactionID)
		}
		return nil, fmt.Errorf("%w: load payment record: %v", ErrInternal, err)
	}
	return &rec, nil
}

// Update applies patch only while the stored status is non-terminal, in a single
// conditional UPDATE. applied is false when the record was already terminal.
func (s *PaymentStore) Update(ctx context.Context, transactionID string, patch StatusPatch) (applied bool, err error) {
	res := s.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("transaction_id = ? AND status NOT IN ?", transactionID, models.TerminalStatuses).
		Updates(patch.columns(s.now()))
	if res.Error != nil {
		return false, fmt.Errorf("%w: update payment record: %v", ErrInternal, res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	// Nothing matched: either the record is terminal or it does not exist
	if _, err := s.Get(ctx, transactionID); err != nil {
		return false, err
	}
	return false, nil
}

// MarkCallbackReceived flags a record that got a gateway callback without touching its
// status, for deliveries that arrive after the record is already terminal.
func (s *PaymentStore) MarkCallbackReceived(ctx context.Context, transactionID string, at time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("transaction_id = ? AND callback_received = ?", transactionID, false).
		Updates(map[string]interface{}{
			"callback_received":    true,
			"callback_received_at": at,
			"version":              gorm.Expr("version + 1"),
		}).Error
	if err != nil {
		return fmt.Errorf("%w: mark callback received: %v", ErrInternal, err)
	}
	return nil
}

// SetExternalReference stores the gateway reference once; an existing one is kept
func (s *PaymentStore) SetExternalReference(ctx context.Context, transactionID, ref string) error {
	err := s.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("transaction_id = ? AND (external_reference IS NULL OR external_reference = '')", transactionID).
		Updates(map[string]interface{}{
			"external_reference": ref,
			"version":            gorm.Expr("version + 1"),
		}).Error
	if err != nil {
		return fmt.Errorf("%w: set external reference: %v", ErrInternal, err)
	}
	return nil
}

// ListExpiredOpen returns non-terminal records whose collection window closed before now
func (s *PaymentStore) ListExpiredOpen(ctx context.Context, now time.Time, limit int) ([]models.PaymentRecord, error) {
	var recs []models.PaymentRecord
	err := s.db.WithContext(ctx).
		Where("status NOT IN ? AND expires_at < ?", models.TerminalStatuses, now).
		Order("expires_at asc").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list expired payments: %v", ErrInternal, err)
	}
	return recs, nil
}

// RecordCallback stores a raw gateway callback for audit
func (s *PaymentStore) RecordCallback(ctx context.Context, h *models.PaymentCallbackHistory) error {
	if err := s.db.WithContext(ctx).Create(h).Error; err != nil {
		return fmt.Errorf("%w: record callback: %v", ErrInternal, err)
	}
	return nil
}

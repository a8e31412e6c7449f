package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"unipay_momo/internal/models"
)

// FinalizationHook is told when a record first reaches a terminal status
type FinalizationHook interface {
	PaymentFinalized(ctx context.Context, rec *models.PaymentRecord) error
}

// InitiateResult is returned to the portal after a collection request
type InitiateResult struct {
	Success           bool                 `json:"success"`
	TransactionID     string               `json:"transactionId"`
	ExternalReference string               `json:"externalReference,omitempty"`
	Status            models.PaymentStatus `json:"status"`
	Message           string               `json:"message"`
	ExpiresIn         int                  `json:"expiresIn"` // seconds
}

// StatusResult is returned by CheckStatus
type StatusResult struct {
	Success bool                 `json:"success"`
	Status  models.PaymentStatus `json:"status"`
	Message string               `json:"message"`
}

// Callback is a provider-neutral gateway notification
type Callback struct {
	TransactionID     string
	RawStatus         string
	Reason            string
	ExternalReference string
}

// CallbackOutcome reports what a callback did to the stored record
type CallbackOutcome struct {
	Applied bool
	Status  models.PaymentStatus
}

const recordWriteTimeout = 5 * time.Second

type PaymentServiceOptions struct {
	Cache          Cache // optional provider status cache
	StatusCacheTTL time.Duration
	Window         time.Duration // collection window, expiresAt = createdAt + Window
	Hook           FinalizationHook
}

// PaymentService runs initiation, status reconciliation and callback application.
// The store is the only shared state; every write goes through its conditional update.
type PaymentService struct {
	store    *PaymentStore
	gateways *GatewayRegistry
	builder  *RequestBuilder
	opts     PaymentServiceOptions
	now      func() time.Time
}

func NewPaymentService(store *PaymentStore, gateways *GatewayRegistry, builder *RequestBuilder, opts PaymentServiceOptions) *PaymentService {
	if opts.Window <= 0 {
		opts.Window = 4 * time.Minute
	}
	return &PaymentService{
		store:    store,
		gateways: gateways,
		builder:  builder,
		opts:     opts,
		now:      time.Now,
	}
}

// Initiate validates the request, reserves the transaction id and asks the gateway to collect.
func (s *PaymentService) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	collect, err := s.builder.Build(req)
	if err != nil {
		return nil, err
	}

	gw, err := s.gateways.Get(collect.Provider)
	if err != nil {
		return nil, err
	}
	if err := gw.Configured(); err != nil {
		return nil, err
	}

	now := s.now()
	rec := &models.PaymentRecord{
		TransactionID: collect.TransactionID,
		CreatedAt:     now,
		UpdatedAt:     now,
		Provider:      collect.Provider,
		PhoneNumber:   collect.MSISDN,
		Amount:        collect.Amount,
		Currency:      collect.Currency,
		Purpose:       collect.Purpose,
		Status:        models.PaymentStatusPending,
		ExpiresAt:     now.Add(s.opts.Window),
		Version:       1,
	}
	if collect.Email != "" {
		rec.Email = &collect.Email
	}

	// The record is written before the gateway call so a repeated id never reaches the gateway twice
	if err := s.store.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return s.existingInitiation(ctx, collect.TransactionID)
		}
		return nil, err
	}

	ref, err := gw.Collect(ctx, collect)

	// The outcome is recorded even when the caller has gone away, otherwise the
	// reservation would stay pending with nothing at the gateway behind it
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordWriteTimeout)
	defer cancel()

	if err != nil {
		log.Printf("[payments] %s collect failed for %s: %v", collect.Provider, collect.TransactionID, err)
		failed := models.PaymentStatusFailed
		msg := err.Error()
		if _, uerr := s.store.Update(wctx, collect.TransactionID, StatusPatch{Status: &failed, Error: &msg}); uerr != nil {
			log.Printf("[payments] failed to record collect failure for %s: %v", collect.TransactionID, uerr)
		}
		if errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrFailedPrecondition) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	if ref == "" {
		ref = collect.TransactionID
	}
	if err := s.store.SetExternalReference(wctx, collect.TransactionID, ref); err != nil {
		log.Printf("[payments] failed to store external reference for %s: %v", collect.TransactionID, err)
	}

	return &InitiateResult{
		Success:           true,
		TransactionID:     collect.TransactionID,
		ExternalReference: ref,
		Status:            models.PaymentStatusPending,
		Message:           "Payment request sent. Approve the prompt on your phone to complete payment.",
		ExpiresIn:         int(s.opts.Window.Seconds()),
	}, nil
}

// existingInitiation answers a repeated Initiate from the stored record, without calling the gateway
func (s *PaymentService) existingInitiation(ctx context.Context, transactionID string) (*InitiateResult, error) {
	rec, err := s.store.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	res := &InitiateResult{
		TransactionID: rec.TransactionID,
		Status:        rec.Status,
		Message:       "Payment already initiated: " + statusMessage(rec.Status, ""),
	}
	if rec.ExternalReference != nil {
		res.ExternalReference = *rec.ExternalReference
	}
	switch {
	case rec.Status == models.PaymentStatusSuccessful:
		res.Success = true
	case !rec.Status.IsTerminal() && rec.ExternalReference == nil:
		// Reserved, but the gateway never acknowledged the collection request
		res.Message = "Payment initiation is not confirmed by the gateway yet"
	case !rec.Status.IsTerminal():
		res.Success = true
		if left := rec.ExpiresAt.Sub(s.now()); left > 0 {
			res.ExpiresIn = int(left.Seconds())
		}
	}
	return res, nil
}

// Get returns the stored record without contacting the gateway
func (s *PaymentService) Get(ctx context.Context, transactionID string) (*models.PaymentRecord, error) {
	return s.store.Get(ctx, strings.TrimSpace(transactionID))
}

// CheckStatus reconciles the stored status with the gateway. Terminal records are
// answered from the store; otherwise the gateway is queried and the mapped status is
// written back conditionally, so a concurrent callback that already finalized the
// record always wins.
func (s *PaymentService) CheckStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, fmt.Errorf("%w: transactionId is required", ErrInvalidArgument)
	}

	rec, err := s.store.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if rec.Status.IsTerminal() {
		return statusResult(rec.Status, ""), nil
	}

	gw, err := s.gateways.Get(rec.Provider)
	if err != nil {
		return nil, err
	}

	ps, err := GetOrSet(s.opts.Cache, ctx, statusCacheKey(rec.Provider, rec.TransactionID), s.opts.StatusCacheTTL, func() (ProviderStatus, error) {
		out, err := gw.QueryStatus(ctx, rec.TransactionID)
		if err != nil {
			return ProviderStatus{}, err
		}
		return *out, nil
	})

	now := s.now()
	var status models.PaymentStatus
	var patch StatusPatch
	switch {
	case err == nil:
		status = gw.MapStatus(ps.Raw)
		if !status.IsTerminal() && rec.IsExpired(now) {
			status = models.PaymentStatusExpired
		}
		raw := strings.ToLower(ps.Raw)
		patch = StatusPatch{Status: &status, ProviderStatus: &raw, LastChecked: &now}
		if status == models.PaymentStatusFailed && ps.Reason != "" {
			patch.Error = &ps.Reason
		}
	case neverAcknowledged(rec, err, now):
		// The gateway does not know the reference and the window is over, so no approval can still arrive
		status = models.PaymentStatusExpired
		ps.Reason = "collection request was never acknowledged by the gateway"
		patch = StatusPatch{Status: &status, Error: &ps.Reason, LastChecked: &now}
	default:
		// A failed query leaves the record untouched
		log.Printf("[payments] %s status query failed for %s: %v", rec.Provider, rec.TransactionID, err)
		if errors.Is(err, ErrFailedPrecondition) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	applied, err := s.store.Update(ctx, rec.TransactionID, patch)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Finalized by a callback between our read and write; report what is stored
		current, err := s.store.Get(ctx, rec.TransactionID)
		if err != nil {
			return nil, err
		}
		return statusResult(current.Status, ""), nil
	}

	if status.IsTerminal() {
		s.finalized(ctx, rec.TransactionID)
	}
	return statusResult(status, ps.Reason), nil
}

// ApplyCallback applies a gateway notification through the same conditional write as
// CheckStatus. Redelivery of an already-applied terminal status is a no-op.
func (s *PaymentService) ApplyCallback(ctx context.Context, provider models.Provider, cb Callback) (*CallbackOutcome, error) {
	cb.TransactionID = strings.TrimSpace(cb.TransactionID)
	if cb.TransactionID == "" {
		return nil, fmt.Errorf("%w: callback carries no reference", ErrInvalidArgument)
	}

	gw, err := s.gateways.Get(provider)
	if err != nil {
		return nil, err
	}

	now := s.now()
	status := gw.MapStatus(cb.RawStatus)
	raw := strings.ToLower(strings.TrimSpace(cb.RawStatus))
	patch := StatusPatch{Status: &status, ProviderStatus: &raw, CallbackReceivedAt: &now}
	if status == models.PaymentStatusFailed && cb.Reason != "" {
		patch.Error = &cb.Reason
	}

	applied, err := s.store.Update(ctx, cb.TransactionID, patch)
	if err != nil {
		return nil, err
	}

	if s.opts.Cache != nil {
		_ = s.opts.Cache.Delete(ctx, statusCacheKey(provider, cb.TransactionID))
	}

	if !applied {
		if err := s.store.MarkCallbackReceived(ctx, cb.TransactionID, now); err != nil {
			return nil, err
		}
		current, err := s.store.Get(ctx, cb.TransactionID)
		if err != nil {
			return nil, err
		}
		return &CallbackOutcome{Applied: false, Status: current.Status}, nil
	}

	if cb.ExternalReference != "" {
		if err := s.store.SetExternalReference(ctx, cb.TransactionID, cb.ExternalReference); err != nil {
			log.Printf("[payments] failed to store external reference for %s: %v", cb.TransactionID, err)
		}
	}
	if status.IsTerminal() {
		s.finalized(ctx, cb.TransactionID)
	}
	return &CallbackOutcome{Applied: true, Status: status}, nil
}

// RecordCallback keeps the raw callback for audit; failures are only logged
func (s *PaymentService) RecordCallback(ctx context.Context, h *models.PaymentCallbackHistory) {
	if err := s.store.RecordCallback(ctx, h); err != nil {
		log.Printf("[payments] %v", err)
	}
}

// ExpireStale re-checks open records whose window has passed; CheckStatus expires the
// ones the gateway still reports as open.
func (s *PaymentService) ExpireStale(ctx context.Context, limit int) (checked int, expired int, err error) {
	recs, err := s.store.ListExpiredOpen(ctx, s.now(), limit)
	if err != nil {
		return 0, 0, err
	}
	for _, rec := range recs {
		if ctx.Err() != nil {
			return checked, expired, ctx.Err()
		}
		checked++
		res, err := s.CheckStatus(ctx, rec.TransactionID)
		if err != nil {
			log.Printf("[payments] sweep: %s: %v", rec.TransactionID, err)
			continue
		}
		if res.Status == models.PaymentStatusExpired {
			expired++
		}
	}
	return checked, expired, nil
}

func (s *PaymentService) finalized(ctx context.Context, transactionID string) {
	if s.opts.Hook == nil {
		return
	}
	rec, err := s.store.Get(ctx, transactionID)
	if err != nil {
		log.Printf("[payments] finalization hook skipped for %s: %v", transactionID, err)
		return
	}
	if err := s.opts.Hook.PaymentFinalized(ctx, rec); err != nil {
		log.Printf("[payments] finalization hook failed for %s: %v", transactionID, err)
	}
}

// neverAcknowledged reports a past-window record without an external reference
// that the gateway answers 404 for
func neverAcknowledged(rec *models.PaymentRecord, err error, now time.Time) bool {
	var upstream *UpstreamGatewayError
	return rec.ExternalReference == nil &&
		rec.IsExpired(now) &&
		errors.As(err, &upstream) &&
		upstream.StatusCode == http.StatusNotFound
}

func statusCacheKey(provider models.Provider, transactionID string) string {
	return fmt.Sprintf("payments:status:%s:%s", provider, transactionID)
}

func statusResult(status models.PaymentStatus, reason string) *StatusResult {
	return &StatusResult{
		Success: status == models.PaymentStatusSuccessful,
		Status:  status,
		Message: statusMessage(status, reason),
	}
}

func statusMessage(status models.PaymentStatus, reason string) string {
	var msg string
	switch status {
	case models.PaymentStatusSuccessful:
		msg = "Payment completed successfully"
	case models.PaymentStatusPending:
		msg = "Payment is awaiting approval on the payer's phone"
	case models.PaymentStatusFailed:
		msg = "Payment failed"
	case models.PaymentStatusRejected:
		msg = "Payment was rejected by the payer"
	case models.PaymentStatusExpired:
		msg = "Payment request expired before it was approved"
	default:
		msg = "Payment status could not be determined"
	}
	if reason != "" && status != models.PaymentStatusSuccessful {
		msg += ": " + reason
	}
	return msg
}

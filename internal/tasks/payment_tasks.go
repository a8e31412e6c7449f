package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"unipay_momo/internal/models"
	"unipay_momo/internal/services"
)

// ExpireStalePaymentsArgs defines the arguments for the expiry sweep
type ExpireStalePaymentsArgs struct {
	Limit int `json:"limit"`
}

// ExpireStalePaymentsTaskDef re-checks open payments whose collection window has passed
type ExpireStalePaymentsTaskDef struct{}

func (t *ExpireStalePaymentsTaskDef) TaskID() string {
	return "expire_stale_payments"
}

// CreateTask builds the recurring sweep; rule is an RRULE such as FREQ=MINUTELY;INTERVAL=5
func (t *ExpireStalePaymentsTaskDef) CreateTask(rule string, due time.Time) (*models.ScheduledTask, error) {
	return BuildScheduledTask(t.TaskID(), ExpireStalePaymentsArgs{Limit: 100}, due, &rule, models.ScheduledTaskTypeRecurring, 1)
}

func (t *ExpireStalePaymentsTaskDef) HandleExecution(ctx context.Context, deps Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	if deps.Payments == nil {
		return nil, fmt.Errorf("payment service not available")
	}

	var args ExpireStalePaymentsArgs
	if err := parseArguments(task, &args); err != nil {
		return nil, err
	}
	if args.Limit <= 0 {
		args.Limit = 100
	}

	checked, expired, err := deps.Payments.ExpireStale(ctx, args.Limit)
	if err != nil {
		return nil, err
	}
	log.Printf("[Task: %s] checked %d open payments, %d expired", t.TaskID(), checked, expired)

	return map[string]interface{}{
		"checked": checked,
		"expired": expired,
	}, nil
}

// ExpireStalePaymentsTask is the singleton instance of ExpireStalePaymentsTaskDef
var ExpireStalePaymentsTask = &ExpireStalePaymentsTaskDef{}

// EnsureSweepTask creates the recurring sweep unless an active one exists, or updates its rule
func EnsureSweepTask(db *gorm.DB, rule string) (*models.ScheduledTask, error) {
	var existing models.ScheduledTask
	err := db.Where("task_name = ? AND status = ?", ExpireStalePaymentsTask.TaskID(), models.ScheduledTaskStatusActive).
		Order("id asc").
		First(&existing).Error
	switch {
	case err == nil:
		if existing.RecurringInterval == nil || *existing.RecurringInterval != rule {
			if err := db.Model(&existing).Update("recurring_interval", rule).Error; err != nil {
				return nil, err
			}
			existing.RecurringInterval = &rule
		}
		return &existing, nil
	case err != gorm.ErrRecordNotFound:
		return nil, err
	}

	task, err := ExpireStalePaymentsTask.CreateTask(rule, time.Now())
	if err != nil {
		return nil, err
	}
	if err := db.Create(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

// SendPaymentNotificationArgs defines the arguments for a payment notification
type SendPaymentNotificationArgs struct {
	TransactionID string                       `json:"transaction_id"`
	Channels      []models.NotificationChannel `json:"channels"`
	AttemptCount  int                          `json:"attempt_count"`
}

// SendPaymentNotificationTaskDef tells the payer how a payment ended
type SendPaymentNotificationTaskDef struct{}

func (t *SendPaymentNotificationTaskDef) TaskID() string {
	return "send_payment_notification"
}

// CreateTask builds a ScheduledTask record for this task
func (t *SendPaymentNotificationTaskDef) CreateTask(args SendPaymentNotificationArgs) (*models.ScheduledTask, error) {
	if len(args.Channels) == 0 {
		args.Channels = models.AllNotificationChannels
	}
	return BuildScheduledTask(t.TaskID(), args, time.Now(), nil, models.ScheduledTaskTypeOneTime, 3)
}

// HandleExecution sends the notification on every requested channel. Channels that fail
// are rescheduled on their own so payers never get the same message twice.
func (t *SendPaymentNotificationTaskDef) HandleExecution(ctx context.Context, deps Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	if deps.Payments == nil {
		return nil, fmt.Errorf("payment service not available")
	}

	var parsedArgs SendPaymentNotificationArgs
	if err := parseArguments(task, &parsedArgs); err != nil {
		return nil, err
	}

	rec, err := deps.Payments.Get(ctx, parsedArgs.TransactionID)
	if err != nil {
		return nil, err
	}

	successCount := 0
	skippedCount := 0
	var failures []string
	var failedChannels []models.NotificationChannel

	for _, channel := range parsedArgs.Channels {
		sent, sendErr := sendPaymentNotif(ctx, deps, channel, rec)
		switch {
		case sendErr != nil:
			log.Printf("Failed to send %s notification for %s: %v", channel, rec.TransactionID, sendErr)
			failures = append(failures, fmt.Sprintf("%s: %v", channel, sendErr))
			failedChannels = append(failedChannels, channel)
		case !sent:
			skippedCount++
		default:
			successCount++
		}
	}

	result := map[string]interface{}{
		"transaction_id": rec.TransactionID,
		"status":         string(rec.Status),
		"total":          len(parsedArgs.Channels),
		"success":        successCount,
		"skipped":        skippedCount,
		"failure":        len(failedChannels),
	}

	if len(failedChannels) > 0 {
		result["errors"] = failures

		attempt := parsedArgs.AttemptCount
		maxRetries := task.MaxAttempt

		if attempt < maxRetries {
			log.Printf("Partial failure: %d channels failed. Rescheduling for Attempt %d", len(failedChannels), attempt+1)

			newArgs := parsedArgs
			newArgs.Channels = failedChannels
			newArgs.AttemptCount = attempt + 1

			nextRun := time.Now().Add(5 * time.Minute)

			newTask, err := BuildScheduledTask(t.TaskID(), newArgs, nextRun, nil, models.ScheduledTaskTypeOneTime, maxRetries)
			if err == nil {
				deps.DB.Create(newTask)
			} else {
				log.Printf("Failed to create retry task: %v", err)
			}
		} else {
			log.Printf("Max attempts (%d) reached for %d failed channels.", maxRetries, len(failedChannels))
			return result, fmt.Errorf("max attempts reached, failed to deliver on %d channels", len(failedChannels))
		}
	}

	return result, nil
}

// SendPaymentNotificationTask is the singleton instance of SendPaymentNotificationTaskDef
var SendPaymentNotificationTask = &SendPaymentNotificationTaskDef{}

// sendPaymentNotif reports sent=false when the channel is not configured or the payer
// cannot be reached on it
func sendPaymentNotif(ctx context.Context, deps Deps, channel models.NotificationChannel, rec *models.PaymentRecord) (bool, error) {
	subject, body := paymentMessage(rec)

	switch channel {
	case models.NotificationChannelEmail:
		if !deps.Email.Enabled() || rec.Email == nil || *rec.Email == "" {
			return false, nil
		}
		return true, deps.Email.SendEmail([]string{*rec.Email}, subject, body)
	case models.NotificationChannelWhatsapp:
		if !deps.Waha.Enabled() {
			return false, nil
		}
		return true, deps.Waha.SendMessage(ctx, rec.PhoneNumber, body)
	case models.NotificationChannelPush:
		if !deps.Push.Enabled() {
			return false, nil
		}
		_, err := deps.Push.SendToTopic(ctx, services.PaymentTopic(rec.TransactionID), subject, body, map[string]string{
			"transactionId": rec.TransactionID,
			"status":        string(rec.Status),
		})
		return true, err
	default:
		log.Printf("Unsupported notification channel %s for %s", channel, rec.TransactionID)
		return false, nil
	}
}

func paymentMessage(rec *models.PaymentRecord) (subject, body string) {
	amount := rec.Amount.StringFixed(0) + " " + rec.Currency
	switch rec.Status {
	case models.PaymentStatusSuccessful:
		subject = "Payment received"
		body = fmt.Sprintf("Your payment of %s for %s was received. Reference: %s.", amount, rec.Purpose, rec.TransactionID)
	case models.PaymentStatusExpired:
		subject = "Payment request expired"
		body = fmt.Sprintf("Your payment of %s for %s was not approved in time. Please start a new payment. Reference: %s.", amount, rec.Purpose, rec.TransactionID)
	case models.PaymentStatusRejected:
		subject = "Payment declined"
		body = fmt.Sprintf("Your payment of %s for %s was declined on your phone. Reference: %s.", amount, rec.Purpose, rec.TransactionID)
	default:
		subject = "Payment failed"
		body = fmt.Sprintf("Your payment of %s for %s could not be completed. Reference: %s.", amount, rec.Purpose, rec.TransactionID)
		if rec.Error != nil && *rec.Error != "" {
			body += " Reason: " + *rec.Error
		}
	}
	return subject, body
}

// NotificationScheduler queues a payer notification when a payment is finalized
type NotificationScheduler struct {
	db *gorm.DB
}

func NewNotificationScheduler(db *gorm.DB) *NotificationScheduler {
	return &NotificationScheduler{db: db}
}

func (n *NotificationScheduler) PaymentFinalized(ctx context.Context, rec *models.PaymentRecord) error {
	task, err := SendPaymentNotificationTask.CreateTask(SendPaymentNotificationArgs{
		TransactionID: rec.TransactionID,
		Channels:      models.AllNotificationChannels,
	})
	if err != nil {
		return err
	}
	return n.db.WithContext(ctx).Create(task).Error
}

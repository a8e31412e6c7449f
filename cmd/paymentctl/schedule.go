package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"unipay_momo/internal/models"
	"unipay_momo/internal/tasks"
)

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule [task_name]",
		Short: "Create a scheduled task for the worker",
		Example: `  paymentctl schedule expire_stale_payments --arguments '{"limit":50}' --type recurring --recurring 'FREQ=MINUTELY;INTERVAL=10'
  paymentctl schedule send_payment_notification --arguments '{"transaction_id":"tx-001"}' --due '2026-01-02 15:04'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			argsStr, _ := cmd.Flags().GetString("arguments")
			dueStr, _ := cmd.Flags().GetString("due")
			taskType, _ := cmd.Flags().GetString("type")
			recurring, _ := cmd.Flags().GetString("recurring")
			maxAttempt, _ := cmd.Flags().GetInt("max-attempt")

			task, err := buildTask(args[0], argsStr, dueStr, taskType, recurring, maxAttempt, time.Now())
			if err != nil {
				return err
			}

			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.DB.Create(task).Error; err != nil {
				return fmt.Errorf("failed to create task: %w", err)
			}

			fmt.Printf("Successfully created task ID: %d\n", task.ID)
			fmt.Printf("Task: %s\nDue: %s\nType: %s\n", task.TaskName, task.Due, task.TaskType)
			return nil
		},
	}

	cmd.Flags().StringP("arguments", "a", "{}", "JSON arguments for the task")
	cmd.Flags().StringP("due", "d", "", "Due date, RFC3339 or '2006-01-02 15:04' local time (default now)")
	cmd.Flags().StringP("type", "t", string(models.ScheduledTaskTypeOneTime), "Task type: onetime or recurring")
	cmd.Flags().StringP("recurring", "r", "", "RRULE for recurring tasks")
	cmd.Flags().Int("max-attempt", 3, "Max attempts")

	return cmd
}

// buildTask validates the command line into a ScheduledTask
func buildTask(name, argsStr, dueStr, taskType, recurring string, maxAttempt int, now time.Time) (*models.ScheduledTask, error) {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(argsStr), &args); err != nil {
		return nil, fmt.Errorf("invalid JSON arguments: %w", err)
	}

	due, err := parseDue(dueStr, now)
	if err != nil {
		return nil, err
	}

	tt := models.ScheduledTaskType(taskType)
	switch tt {
	case models.ScheduledTaskTypeOneTime:
		if recurring != "" {
			return nil, fmt.Errorf("--recurring requires --type recurring")
		}
	case models.ScheduledTaskTypeRecurring:
		if recurring == "" {
			return nil, fmt.Errorf("recurring tasks need --recurring")
		}
	default:
		return nil, fmt.Errorf("unknown task type %q", taskType)
	}

	var recurringPtr *string
	if recurring != "" {
		recurringPtr = &recurring
	}
	if maxAttempt < 1 {
		maxAttempt = 1
	}

	return tasks.BuildScheduledTask(name, args, due, recurringPtr, tt, maxAttempt)
}

func parseDue(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	if due, err := time.Parse(time.RFC3339, s); err == nil {
		return due, nil
	}
	due, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date format. Use '2006-01-02 15:04' (Local) or RFC3339: %w", err)
	}
	return due, nil
}

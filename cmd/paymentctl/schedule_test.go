package main

import (
	"testing"
	"time"

	"unipay_momo/internal/models"
)

func TestParseDue(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "empty means now", input: "", want: now},
		{name: "rfc3339", input: "2026-03-01T08:30:00Z", want: time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)},
		{name: "local layout", input: "2026-03-01 08:30", want: time.Date(2026, 3, 1, 8, 30, 0, 0, time.Local)},
		{name: "garbage", input: "tomorrow", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDue(tt.input, now)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseDue(%q) = %v; want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDue(%q): %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseDue(%q) = %v; want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestBuildTask(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	task, err := buildTask("expire_stale_payments", `{"limit":50}`, "", "recurring", "FREQ=MINUTELY;INTERVAL=10", 0, now)
	if err != nil {
		t.Fatalf("buildTask: %v", err)
	}
	if task.TaskType != models.ScheduledTaskTypeRecurring || task.RecurringInterval == nil || *task.RecurringInterval != "FREQ=MINUTELY;INTERVAL=10" {
		t.Errorf("task = %+v", task)
	}
	if task.MaxAttempt != 1 || !task.Due.Equal(now) || task.Status != models.ScheduledTaskStatusActive {
		t.Errorf("task = %+v", task)
	}
	if task.Arguments["limit"] != float64(50) {
		t.Errorf("arguments = %v", task.Arguments)
	}

	bad := []struct {
		name, args, taskType, recurring string
	}{
		{"invalid json", `{`, "onetime", ""},
		{"recurring without rule", `{}`, "recurring", ""},
		{"rule on one-time task", `{}`, "onetime", "FREQ=DAILY"},
		{"unknown type", `{}`, "weekly", ""},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := buildTask("x", tt.args, "", tt.taskType, tt.recurring, 3, now); err == nil {
				t.Error("buildTask succeeded; want error")
			}
		})
	}
}

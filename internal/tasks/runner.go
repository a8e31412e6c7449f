package tasks

import (
	"context"
	"log"
	"time"

	"unipay_momo/internal/models"
)

// ProcessDueTasks runs every active task whose due time has passed and returns how many ran
func ProcessDueTasks(ctx context.Context, deps Deps, registry *Registry, now time.Time) int {
	log.Println("Checking for pending tasks...")

	var pendingTasks []models.ScheduledTask
	if err := deps.DB.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, now).
		Order("due asc").
		Find(&pendingTasks).Error; err != nil {
		log.Printf("Error fetching pending tasks: %v", err)
		return 0
	}

	if len(pendingTasks) == 0 {
		log.Println("No pending tasks found.")
		return 0
	}

	log.Printf("Found %d pending tasks.", len(pendingTasks))

	ran := 0
	for _, task := range pendingTasks {
		if ctx.Err() != nil {
			return ran
		}
		executeTask(ctx, deps, registry, task, 1)
		ran++
	}
	return ran
}

func executeTask(ctx context.Context, deps Deps, registry *Registry, task models.ScheduledTask, curAttempt int) {
	log.Printf("Processing task: %s (ID: %d, attempt %d)", task.TaskName, task.ID, curAttempt)

	if task.Arguments == nil {
		task.Arguments = make(map[string]interface{})
	}

	handler, found := registry.Get(task.TaskName)
	if !found {
		log.Printf("Task handler not found for: %s. Marking as failure.", task.TaskName)

		now := time.Now()
		deps.DB.Model(&task).Updates(map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": &now,
		})

		deps.DB.Create(&models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           now,
			Status:          "handler_not_found",
			AttemptNumber:   curAttempt,
			Arguments:       task.Arguments,
			Result:          map[string]interface{}{"error": "Handler not found"},
		})
		return
	}

	startTime := time.Now()
	result, err := handler(ctx, deps, task)
	runtimeMs := int(time.Since(startTime).Milliseconds())

	status := "success"
	var resultData map[string]interface{}
	if err != nil {
		status = "failure"
		resultData = map[string]interface{}{"error": err.Error()}
		log.Printf("Task %s failed: %v", task.TaskName, err)
	} else {
		resultData = result
		log.Printf("Task %s completed successfully.", task.TaskName)
	}

	deps.DB.Create(&models.ScheduledTaskHistory{
		ScheduledTaskID: task.ID,
		TaskName:        task.TaskName,
		RunAt:           startTime,
		Runtime:         runtimeMs,
		Status:          status,
		AttemptNumber:   curAttempt,
		Arguments:       task.Arguments,
		Result:          resultData,
	})

	if status != "success" && curAttempt < task.MaxAttempt && ctx.Err() == nil {
		executeTask(ctx, deps, registry, task, curAttempt+1)
		return
	}

	taskUpdates := map[string]interface{}{
		"last_run": &startTime,
	}

	switch task.TaskType {
	case models.ScheduledTaskTypeRecurring:
		// Recurring tasks keep their schedule even after a failed run
		nextDue := task.NextDue(startTime)
		if nextDue.After(task.Due) {
			taskUpdates["status"] = models.ScheduledTaskStatusActive
			taskUpdates["due"] = nextDue
		} else {
			taskUpdates["status"] = models.ScheduledTaskStatusDone
		}
	default:
		if status == "success" {
			taskUpdates["status"] = models.ScheduledTaskStatusDone
		} else {
			taskUpdates["status"] = models.ScheduledTaskStatusFailure
		}
	}

	deps.DB.Model(&task).Updates(taskUpdates)
}

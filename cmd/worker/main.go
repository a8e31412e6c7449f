package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unipay_momo/internal/app"
	"unipay_momo/internal/config"
	"unipay_momo/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down worker...")
		cancel()
	}()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	// Initialize Task Registry
	tasks.DefineTasks()

	if _, err := tasks.EnsureSweepTask(a.DB, cfg.SweepRule); err != nil {
		log.Printf("Failed to schedule expiry sweep: %v", err)
	}

	deps := a.TaskDeps()

	log.Println("Worker started.")

	// Payment notifications should go out soon after finalization, so poll every minute
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	tasks.ProcessDueTasks(ctx, deps, tasks.GlobalRegistry, time.Now())

	for {
		select {
		case <-ticker.C:
			tasks.ProcessDueTasks(ctx, deps, tasks.GlobalRegistry, time.Now())
		case <-ctx.Done():
			return
		}
	}
}

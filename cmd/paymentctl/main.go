package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"unipay_momo/internal/app"
	"unipay_momo/internal/config"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "paymentctl",
		Short:        "Operate the mobile-money payment service",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(notifyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadApp reads configuration and connects to the backends
func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return app.New(ctx, cfg)
}

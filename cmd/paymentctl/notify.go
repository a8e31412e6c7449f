package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"unipay_momo/internal/tasks"
)

func notifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify [transactionId]",
		Short: "Queue the payer notification for a finalized payment again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.Payments.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !rec.Status.IsTerminal() {
				return fmt.Errorf("payment %s is still %s", rec.TransactionID, rec.Status)
			}

			if err := tasks.NewNotificationScheduler(a.DB).PaymentFinalized(cmd.Context(), rec); err != nil {
				return fmt.Errorf("failed to queue notification: %w", err)
			}
			fmt.Printf("Notification queued for %s (%s)\n", rec.TransactionID, rec.Status)
			return nil
		},
	}
}

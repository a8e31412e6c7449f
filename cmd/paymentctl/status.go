package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [transactionId]",
		Short: "Reconcile a payment with its gateway and print the result",
		Long: `Runs the same reconciliation as GET /api/payments/:transactionId/status.
Terminal payments are answered from the database; pending ones are queried
at the gateway and the mapped status is written back.

Use --local to print the stored record without contacting the gateway.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, _ := cmd.Flags().GetBool("local")

			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")

			if local {
				rec, err := a.Payments.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return enc.Encode(rec)
			}

			res, err := a.Payments.CheckStatus(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("status check failed: %w", err)
			}
			return enc.Encode(res)
		},
	}

	cmd.Flags().BoolP("local", "l", false, "Print the stored record only")

	return cmd
}

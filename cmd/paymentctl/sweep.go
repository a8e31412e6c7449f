package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Re-check open payments whose collection window has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			checked, expired, err := a.Payments.ExpireStale(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Printf("Checked %d open payments, %d expired\n", checked, expired)
			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 100, "Maximum payments to check")

	return cmd
}

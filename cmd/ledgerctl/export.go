package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func exportCmd(c *cli) *cobra.Command {
	var (
		userID string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's ledger as CSV",
		Long: `Writes every expense and income entry of a user as CSV. When an export bucket
is configured the file is also uploaded there.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.backend.Exporter.Export(cmd.Context(), userID)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(res.Data)
				return err
			}
			if err := os.WriteFile(output, res.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d expenses and %d income entries to %s\n",
				res.Expenses, res.Income, output)
			if res.Object != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "uploaded to %s\n", res.Object)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user ID to export (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

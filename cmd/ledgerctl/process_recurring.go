package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/castlemilk/pointsledger/internal/service"
)

func processRecurringCmd(c *cli) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "process-recurring",
		Short: "Fire every due recurring transaction",
		Long: `Fires the recurring definitions that are due for every user, or for one user
with --user. Expenses still go through the budget guard; refusals are reported
and leave the definition due.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := c.registry(cmd.Context())
			defer registry.Close()
			p := service.NewRecurringProcessor(registry)
			out := cmd.OutOrStdout()

			if userID != "" {
				stats, results, err := p.ProcessUser(cmd.Context(), userID)
				for _, r := range results {
					switch {
					case r.Err != nil:
						fmt.Fprintf(out, "%s\trefused\t%v\n", r.DefinitionID, r.Err)
					case r.Fired:
						fmt.Fprintf(out, "%s\tfired\t%s\n", r.DefinitionID, r.Transaction.ID)
					default:
						fmt.Fprintf(out, "%s\tnot due\n", r.DefinitionID)
					}
				}
				printStats(cmd, stats)
				return err
			}

			stats, err := p.ProcessAll(cmd.Context())
			printStats(cmd, stats)
			return err
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "only process this user")
	return cmd
}

func printStats(cmd *cobra.Command, s service.ProcessStats) {
	fmt.Fprintf(cmd.OutOrStdout(), "users=%d fired=%d skipped=%d refused=%d errors=%d\n",
		s.Users, s.Fired, s.Skipped, s.Refused, s.Errors)
}

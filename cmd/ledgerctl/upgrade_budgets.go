package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/castlemilk/pointsledger/internal/store"
)

const upgradePageSize = 500

func upgradeBudgetsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade-budgets",
		Short: "Convert flat legacy budgets to per-period budgets",
		Long: `Rewrites every user whose budget is a single number to the per-period form,
keeping the number as the monthly budget. Users already upgraded are left alone,
so the command can be run repeatedly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			processed, upgraded, err := upgradeBudgets(cmd, c.backend.Store)
			fmt.Fprintf(cmd.OutOrStdout(), "[users] Processed %d docs, upgraded %d\n", processed, upgraded)
			return err
		},
	}
}

func upgradeBudgets(cmd *cobra.Command, st store.Store) (processed, upgraded int, err error) {
	ctx := cmd.Context()
	pageToken := ""
	for {
		ids, next, err := st.ListUserIDs(ctx, upgradePageSize, pageToken)
		if err != nil {
			return processed, upgraded, fmt.Errorf("list users: %w", err)
		}
		for _, id := range ids {
			processed++
			changed, err := st.UpgradeLegacyBudget(ctx, id)
			if err != nil {
				slog.Error("failed to upgrade budget", "user_id", id, "error", err)
				continue
			}
			if changed {
				upgraded++
			}
		}
		if next == "" {
			return processed, upgraded, nil
		}
		pageToken = next
	}
}

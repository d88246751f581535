package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/castlemilk/pointsledger/internal/app"
	"github.com/castlemilk/pointsledger/internal/config"
	"github.com/castlemilk/pointsledger/internal/session"
)

// cli carries what every subcommand needs. Tests fill it in directly.
type cli struct {
	cfg     *config.Config
	backend *app.Backend
	out     io.Writer
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Maintenance commands for the points ledger",
		Long: `ledgerctl runs one-off maintenance against the ledger store: upgrading
legacy budgets, firing due recurring transactions and exporting a user's ledger.`,
		SilenceUsage:       true,
		PersistentPreRunE:  c.open,
		PersistentPostRunE: c.close,
	}
	root.SetOut(c.out)

	root.AddCommand(upgradeBudgetsCmd(c))
	root.AddCommand(processRecurringCmd(c))
	root.AddCommand(exportCmd(c))
	return root
}

func (c *cli) open(cmd *cobra.Command, _ []string) error {
	if c.backend != nil {
		return nil
	}
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg.Log)

	backend, err := app.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.backend = backend
	return nil
}

func (c *cli) close(_ *cobra.Command, _ []string) error {
	if c.backend != nil {
		c.backend.Close()
	}
	return nil
}

func (c *cli) registry(ctx context.Context) *session.Registry {
	return session.NewRegistry(ctx, c.backend.Deps(c.cfg))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&cli{out: os.Stdout}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

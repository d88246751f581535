package config

import (
	"fmt"

	"github.com/castlemilk/pointsledger/internal/model"
)

// Validate performs business-rule validation on the loaded configuration.
// Load calls it automatically.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range (got %d)", c.Server.Port)
	}

	if err := c.Rewards.Engine().Validate(); err != nil {
		return err
	}
	if err := c.Rewards.validateCosts(); err != nil {
		return fmt.Errorf("rewards: %w", err)
	}

	if _, err := model.ParsePeriod(c.Recurring.DefaultPeriod); err != nil {
		return fmt.Errorf("recurring.default_period: %w", err)
	}
	if c.Recurring.WorkerEnabled && c.Recurring.Interval <= 0 {
		return fmt.Errorf("recurring.interval must be > 0 (got %s)", c.Recurring.Interval)
	}

	return nil
}

func (r RewardsConfig) validateCosts() error {
	if r.DarkModeCost < 0 {
		return fmt.Errorf("dark_mode_cost must be >= 0 (got %d)", r.DarkModeCost)
	}
	if r.BudgetIncreaseCost < 0 {
		return fmt.Errorf("budget_increase_cost must be >= 0 (got %d)", r.BudgetIncreaseCost)
	}
	if r.ItemBudgetIncreaseCost < 0 {
		return fmt.Errorf("item_budget_increase_cost must be >= 0 (got %d)", r.ItemBudgetIncreaseCost)
	}
	return nil
}

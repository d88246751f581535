// Package rewards computes point awards for committed expenses and the
// feature unlocks they earn.
package rewards

import (
	"fmt"
	"sort"

	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/shopspring/decimal"
)

// Tier is the balance at which a feature becomes permanently available.
type Tier struct {
	Feature   model.Feature
	Threshold int64
}

// Config holds the award amounts and the tier table.
type Config struct {
	BaseAward         int64
	CategoryAward     int64
	WithinBudgetAward int64
	Tiers             []Tier
}

// DefaultTiers returns the standard tier table.
func DefaultTiers() []Tier {
	return []Tier{
		{Feature: model.FeaturePremiumCategories, Threshold: 100},
		{Feature: model.FeatureThemesSkins, Threshold: 150},
		{Feature: model.FeatureBudgetAnalysis, Threshold: 200},
		{Feature: model.FeatureProfileCustomization, Threshold: 250},
		{Feature: model.FeaturePersonalizedAdvice, Threshold: 300},
		{Feature: model.FeatureCustomNotifications, Threshold: 350},
		{Feature: model.FeatureGoalTracking, Threshold: 400},
	}
}

// DefaultConfig returns the standard awards: 500 per expense, 5 for a
// category, 15 for staying within budget.
func DefaultConfig() Config {
	return Config{
		BaseAward:         500,
		CategoryAward:     5,
		WithinBudgetAward: 15,
		Tiers:             DefaultTiers(),
	}
}

// Validate rejects negative awards and thresholds and duplicate tiers.
func (c Config) Validate() error {
	if c.BaseAward < 0 || c.CategoryAward < 0 || c.WithinBudgetAward < 0 {
		return fmt.Errorf("rewards: awards must not be negative")
	}
	seen := make(map[model.Feature]bool, len(c.Tiers))
	for _, t := range c.Tiers {
		if t.Threshold < 0 {
			return fmt.Errorf("rewards: tier %s has negative threshold", t.Feature)
		}
		if seen[t.Feature] {
			return fmt.Errorf("rewards: duplicate tier %s", t.Feature)
		}
		seen[t.Feature] = true
	}
	return nil
}

// ExpenseEvent describes a committed expense from the rewards point of view.
// PeriodTotal is the active period's total after the expense was applied.
type ExpenseEvent struct {
	Category    string
	Period      model.Period
	PeriodTotal decimal.Decimal
	Budget      decimal.Decimal
}

// Award is the breakdown of points earned by one expense.
type Award struct {
	Base         int64 `json:"base"`
	Category     int64 `json:"category"`
	WithinBudget int64 `json:"withinBudget"`
}

// Total returns the sum of every component.
func (a Award) Total() int64 {
	return a.Base + a.Category + a.WithinBudget
}

// Outcome is the state after an award was applied.
type Outcome struct {
	Award    Award
	Points   int64
	Features model.FeatureSet
	Unlocked []model.Feature
}

// Engine applies a Config. It holds no per-user state.
type Engine struct {
	cfg   Config
	tiers []Tier
}

// NewEngine creates an engine for cfg. The tier table is copied and ordered
// by threshold.
func NewEngine(cfg Config) *Engine {
	tiers := make([]Tier, len(cfg.Tiers))
	copy(tiers, cfg.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].Threshold < tiers[j].Threshold })
	return &Engine{cfg: cfg, tiers: tiers}
}

// Tiers returns the tier table ordered by threshold.
func (e *Engine) Tiers() []Tier {
	out := make([]Tier, len(e.tiers))
	copy(out, e.tiers)
	return out
}

// Award computes the points earned by ev. The within-budget bonus is a
// post-hoc check on the active period and does not depend on the guard.
func (e *Engine) Award(ev ExpenseEvent) Award {
	a := Award{Base: e.cfg.BaseAward}
	if ev.Category != "" {
		a.Category = e.cfg.CategoryAward
	}
	if ev.PeriodTotal.LessThanOrEqual(ev.Budget) {
		a.WithinBudget = e.cfg.WithinBudgetAward
	}
	return a
}

// Evaluate sets every feature whose threshold the balance reaches. Flags
// already set stay set. It returns the new set and the features newly
// unlocked, in tier order.
func (e *Engine) Evaluate(balance int64, features model.FeatureSet) (model.FeatureSet, []model.Feature) {
	out := features.Clone()
	var newly []model.Feature
	for _, t := range e.tiers {
		if balance < t.Threshold {
			continue
		}
		var added bool
		if out, added = out.Unlock(t.Feature); added {
			newly = append(newly, t.Feature)
		}
	}
	return out, newly
}

// Apply awards ev on top of balance and evaluates the tiers against the
// resulting balance.
func (e *Engine) Apply(balance int64, features model.FeatureSet, ev ExpenseEvent) Outcome {
	award := e.Award(ev)
	points := balance + award.Total()
	next, newly := e.Evaluate(points, features)
	return Outcome{Award: award, Points: points, Features: next, Unlocked: newly}
}

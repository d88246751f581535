// Package guard authorizes expense and budget changes against the locally
// held aggregate state. It never touches the store.
package guard

import (
	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/shopspring/decimal"
)

// Point costs charged by budget changes.
const (
	DefaultBudgetIncreaseCost     int64 = 50
	DefaultItemBudgetIncreaseCost int64 = 20
)

// Actions named in InsufficientPoints refusals.
const (
	ActionBudgetIncrease     = "increase the budget"
	ActionItemBudgetIncrease = "increase the item budget"
)

// Costs are the point prices of budget changes.
type Costs struct {
	BudgetIncrease     int64
	ItemBudgetIncrease int64
}

// DefaultCosts returns the standard prices.
func DefaultCosts() Costs {
	return Costs{
		BudgetIncrease:     DefaultBudgetIncreaseCost,
		ItemBudgetIncrease: DefaultItemBudgetIncreaseCost,
	}
}

// Guard validates proposed mutations. The zero value is not usable; use New.
type Guard struct {
	costs Costs
}

// New creates a Guard charging the given costs.
func New(costs Costs) *Guard {
	return &Guard{costs: costs}
}

// Costs returns the configured prices.
func (g *Guard) Costs() Costs {
	return g.costs
}

// ValidateExpense refuses an expense that would take the active period's
// total over its budget. Only the active period is checked.
func (g *Guard) ValidateExpense(p model.Period, amount, currentTotal, budget decimal.Decimal) error {
	if !p.Valid() {
		return model.InvalidTransaction("unknown period " + string(p))
	}
	if !amount.IsPositive() {
		return model.InvalidTransaction("amount must be greater than zero")
	}
	if currentTotal.Add(amount).GreaterThan(budget) {
		return model.BudgetExceeded(p, currentTotal, amount, budget)
	}
	return nil
}

// ValidateBudgetChange returns the points delta (zero or negative) for
// moving the budget of p from oldBudget to newBudget. Raising a budget that
// is already set costs Costs.BudgetIncrease; lowering it or setting it for
// the first time is free.
func (g *Guard) ValidateBudgetChange(p model.Period, oldBudget, newBudget decimal.Decimal, points int64) (int64, error) {
	if !p.Valid() {
		return 0, model.InvalidTransaction("unknown period " + string(p))
	}
	if newBudget.IsNegative() {
		return 0, model.InvalidTransaction("budget must not be negative")
	}
	if !oldBudget.IsPositive() || !newBudget.GreaterThan(oldBudget) {
		return 0, nil
	}
	if points < g.costs.BudgetIncrease {
		return 0, model.InsufficientPoints(ActionBudgetIncrease, g.costs.BudgetIncrease, points)
	}
	return -g.costs.BudgetIncrease, nil
}

// ValidateItemBudgetIncrease returns the points delta for raising the
// budget of p by delta. The price is flat regardless of delta.
func (g *Guard) ValidateItemBudgetIncrease(p model.Period, delta decimal.Decimal, points int64) (int64, error) {
	if !p.Valid() {
		return 0, model.InvalidTransaction("unknown period " + string(p))
	}
	if !delta.IsPositive() {
		return 0, model.InvalidTransaction("increase must be greater than zero")
	}
	if points < g.costs.ItemBudgetIncrease {
		return 0, model.InsufficientPoints(ActionItemBudgetIncrease, g.costs.ItemBudgetIncrease, points)
	}
	return -g.costs.ItemBudgetIncrease, nil
}

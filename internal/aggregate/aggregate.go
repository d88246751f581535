// Package aggregate derives dashboard figures from the current transaction
// set. Every function recomputes from scratch; nothing is cached here.
package aggregate

import (
	"sort"
	"time"

	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/shopspring/decimal"
)

// TrendLabelLayout formats the label of a trend point.
const TrendLabelLayout = "2006-01-02"

// CategoryAmount is the summed amount for one category.
type CategoryAmount struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Count    int             `json:"count"`
}

// TrendPoint is one transaction in a chronological trend series.
type TrendPoint struct {
	Label     string          `json:"label"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// PeriodUsage is how much of one period's budget has been spent.
// Remaining goes negative once the budget is exceeded; ExceededBy is then
// its absolute value.
type PeriodUsage struct {
	Period       model.Period    `json:"period"`
	Budget       decimal.Decimal `json:"budget"`
	Spent        decimal.Decimal `json:"spent"`
	Remaining    decimal.Decimal `json:"remaining"`
	PercentSpent decimal.Decimal `json:"percentSpent"`
	Exceeded     bool            `json:"exceeded"`
	ExceededBy   decimal.Decimal `json:"exceededBy"`
}

// Summary is everything the dashboard renders from the transaction set.
type Summary struct {
	Totals       model.PeriodAmounts `json:"totals"`
	Usage        []PeriodUsage       `json:"usage"`
	ByCategory   []CategoryAmount    `json:"byCategory"`
	ExpenseTrend []TrendPoint        `json:"expenseTrend"`
	IncomeTrend  []TrendPoint        `json:"incomeTrend"`
	IncomeTotal  decimal.Decimal     `json:"incomeTotal"`
	ComputedAt   time.Time           `json:"computedAt"`
}

// InWindow reports whether an expense at ts counts toward p as of now:
// now - ts <= p.Window().
func InWindow(p model.Period, ts, now time.Time) bool {
	return now.Sub(ts) <= p.Window()
}

// Totals returns the spend per period. Each period is its own trailing
// window filter; an expense older than every window contributes nothing.
func Totals(expenses []model.Transaction, now time.Time) model.PeriodAmounts {
	var totals model.PeriodAmounts
	for _, e := range expenses {
		for _, p := range model.Periods() {
			if InWindow(p, e.Timestamp, now) {
				totals = totals.Add(p, e.Amount)
			}
		}
	}
	return totals
}

// ByCategory sums expense amounts per category, largest first. Expenses
// without a category are grouped under model.UncategorizedLabel.
func ByCategory(expenses []model.Transaction) []CategoryAmount {
	byName := make(map[string]*CategoryAmount)
	for _, e := range expenses {
		label := e.CategoryLabel()
		ca, ok := byName[label]
		if !ok {
			ca = &CategoryAmount{Category: label}
			byName[label] = ca
		}
		ca.Amount = ca.Amount.Add(e.Amount)
		ca.Count++
	}

	out := make([]CategoryAmount, 0, len(byName))
	for _, ca := range byName {
		out = append(out, *ca)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Trend returns one point per transaction in chronological order. Ties keep
// their input order.
func Trend(txs []model.Transaction) []TrendPoint {
	sorted := make([]model.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := make([]TrendPoint, 0, len(sorted))
	for _, t := range sorted {
		out = append(out, TrendPoint{
			Label:     t.Timestamp.Format(TrendLabelLayout),
			Amount:    t.Amount,
			Timestamp: t.Timestamp,
		})
	}
	return out
}

// Sum adds up every amount in txs.
func Sum(txs []model.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}

var hundred = decimal.NewFromInt(100)

// BudgetUsage compares spend against the budget for every period. Percent
// is rounded to two places; a zero budget reads 0% unspent and 100% once
// anything is spent.
func BudgetUsage(totals, budget model.PeriodAmounts) []PeriodUsage {
	out := make([]PeriodUsage, 0, len(model.Periods()))
	for _, p := range model.Periods() {
		b, spent := budget.Get(p), totals.Get(p)
		u := PeriodUsage{
			Period:    p,
			Budget:    b,
			Spent:     spent,
			Remaining: b.Sub(spent),
		}
		switch {
		case b.IsPositive():
			u.PercentSpent = spent.Div(b).Mul(hundred).Round(2)
		case spent.IsPositive():
			u.PercentSpent = hundred
		}
		if u.Remaining.IsNegative() {
			u.Exceeded = true
			u.ExceededBy = u.Remaining.Neg()
		}
		out = append(out, u)
	}
	return out
}

// Summarize computes the full dashboard summary as of now.
func Summarize(expenses, income []model.Transaction, budget model.PeriodAmounts, now time.Time) Summary {
	totals := Totals(expenses, now)
	return Summary{
		Totals:       totals,
		Usage:        BudgetUsage(totals, budget),
		ByCategory:   ByCategory(expenses),
		ExpenseTrend: Trend(expenses),
		IncomeTrend:  Trend(income),
		IncomeTotal:  Sum(income),
		ComputedAt:   now,
	}
}

package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Period identifies one of the four budget periods.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAnnual  Period = "annual"
)

const day = 24 * time.Hour

var periodWindows = map[Period]time.Duration{
	PeriodDaily:   day,
	PeriodWeekly:  7 * day,
	PeriodMonthly: 30 * day,
	PeriodAnnual:  365 * day,
}

// Periods returns every period from shortest to longest window.
func Periods() []Period {
	return []Period{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAnnual}
}

// Window returns the trailing window used to select transactions that count
// toward the period.
func (p Period) Window() time.Duration {
	return periodWindows[p]
}

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	_, ok := periodWindows[p]
	return ok
}

func (p Period) String() string {
	return string(p)
}

// ParsePeriod parses a period name. An empty string selects monthly, the
// period the dashboard edits by default.
func ParsePeriod(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PeriodMonthly, nil
	}
	p := Period(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown period %q", s)
	}
	return p, nil
}

// PeriodAmounts holds one amount per period. The zero value is all zeros.
type PeriodAmounts struct {
	Daily   decimal.Decimal `json:"daily"`
	Weekly  decimal.Decimal `json:"weekly"`
	Monthly decimal.Decimal `json:"monthly"`
	Annual  decimal.Decimal `json:"annual"`
}

// Get returns the amount stored for p.
func (a PeriodAmounts) Get(p Period) decimal.Decimal {
	switch p {
	case PeriodDaily:
		return a.Daily
	case PeriodWeekly:
		return a.Weekly
	case PeriodMonthly:
		return a.Monthly
	case PeriodAnnual:
		return a.Annual
	}
	return decimal.Zero
}

// With returns a copy of a with the amount for p replaced.
func (a PeriodAmounts) With(p Period, v decimal.Decimal) PeriodAmounts {
	switch p {
	case PeriodDaily:
		a.Daily = v
	case PeriodWeekly:
		a.Weekly = v
	case PeriodMonthly:
		a.Monthly = v
	case PeriodAnnual:
		a.Annual = v
	}
	return a
}

// Add returns a copy of a with v added to the amount for p.
func (a PeriodAmounts) Add(p Period, v decimal.Decimal) PeriodAmounts {
	return a.With(p, a.Get(p).Add(v))
}

// Equal reports whether both sets hold the same amounts.
func (a PeriodAmounts) Equal(b PeriodAmounts) bool {
	for _, p := range Periods() {
		if !a.Get(p).Equal(b.Get(p)) {
			return false
		}
	}
	return true
}

// Map converts the amounts into the float map stored on the aggregate record.
func (a PeriodAmounts) Map() map[string]float64 {
	m := make(map[string]float64, 4)
	for _, p := range Periods() {
		m[string(p)] = a.Get(p).InexactFloat64()
	}
	return m
}

// PeriodAmountsFromMap is the inverse of Map. Unknown keys are ignored and
// missing periods default to zero.
func PeriodAmountsFromMap(m map[string]float64) PeriodAmounts {
	var a PeriodAmounts
	for k, v := range m {
		p := Period(k)
		if p.Valid() {
			a = a.With(p, decimal.NewFromFloat(v))
		}
	}
	return a
}

// UpgradeLegacyBudget converts the single flat budget written by early
// clients into the per-period shape. The flat value becomes the monthly
// budget; every other period starts unset.
func UpgradeLegacyBudget(flat decimal.Decimal) PeriodAmounts {
	return PeriodAmounts{Monthly: flat}
}

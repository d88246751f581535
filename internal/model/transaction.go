package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes the two realized transaction collections.
type Kind string

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindExpense || k == KindIncome
}

// UncategorizedLabel is used wherever an expense carries no category.
const UncategorizedLabel = "Uncategorized"

// Transaction is a realized expense or income entry. Transactions are never
// amended once created.
type Transaction struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Category  string          `json:"category,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// CategoryLabel returns the category used for breakdowns.
func (t Transaction) CategoryLabel() string {
	if c := strings.TrimSpace(t.Category); c != "" {
		return c
	}
	return UncategorizedLabel
}

// Validate checks the data contract every stored transaction must honor.
func (t Transaction) Validate() error {
	if !t.Kind.Valid() {
		return InvalidTransaction(fmt.Sprintf("unknown transaction kind %q", t.Kind))
	}
	if !t.Amount.IsPositive() {
		return InvalidTransaction("amount must be greater than zero")
	}
	return nil
}

// Frequency is the cadence of a recurring definition.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

var frequencyIntervals = map[Frequency]time.Duration{
	FrequencyDaily:   day,
	FrequencyWeekly:  7 * day,
	FrequencyMonthly: 30 * day,
}

// Interval returns the minimum time between two firings.
func (f Frequency) Interval() time.Duration {
	return frequencyIntervals[f]
}

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	_, ok := frequencyIntervals[f]
	return ok
}

// RecurringDefinition is a template transaction plus its firing cadence.
type RecurringDefinition struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Type      Kind            `json:"type"`
	Frequency Frequency       `json:"frequency"`
	Category  string          `json:"category,omitempty"`
	LastAdded time.Time       `json:"lastAdded"`
}

// Validate checks a definition before it is stored.
func (d RecurringDefinition) Validate() error {
	if !d.Type.Valid() {
		return InvalidTransaction(fmt.Sprintf("unknown recurring type %q", d.Type))
	}
	if !d.Frequency.Valid() {
		return InvalidTransaction(fmt.Sprintf("unknown frequency %q", d.Frequency))
	}
	if !d.Amount.IsPositive() {
		return InvalidTransaction("amount must be greater than zero")
	}
	return nil
}

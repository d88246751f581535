package service

import (
	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/castlemilk/pointsledger/internal/recurring"
	"github.com/castlemilk/pointsledger/internal/rewards"
	"github.com/castlemilk/pointsledger/internal/session"
	"github.com/shopspring/decimal"
)

type CreateAccountRequest struct {
	Email string `json:"email,omitempty"`
}

type CreateAccountResponse struct {
	User    *model.UserState `json:"user"`
	Created bool             `json:"created"`
}

type GetDashboardRequest struct{}

type WatchDashboardRequest struct{}

type DashboardResponse struct {
	Dashboard session.Dashboard `json:"dashboard"`
}

type AddExpenseRequest struct {
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	Category string          `json:"category,omitempty"`
	// Period is the budget period the expense is checked against. Empty
	// selects monthly.
	Period string `json:"period,omitempty"`
}

type AddExpenseResponse struct {
	Expense  model.Transaction `json:"expense"`
	Award    rewards.Award     `json:"award"`
	Points   int64             `json:"points"`
	Unlocked []model.Feature   `json:"unlocked,omitempty"`
}

type AddIncomeRequest struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

type AddIncomeResponse struct {
	Income model.Transaction `json:"income"`
}

type AddRecurringRequest struct {
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Type      model.Kind      `json:"type"`
	Frequency model.Frequency `json:"frequency"`
	Category  string          `json:"category,omitempty"`
}

type AddRecurringResponse struct {
	Definition model.RecurringDefinition `json:"definition"`
}

type SetBudgetRequest struct {
	Period string          `json:"period,omitempty"`
	Amount decimal.Decimal `json:"amount"`
}

type IncreaseItemBudgetRequest struct {
	Period string          `json:"period,omitempty"`
	Delta  decimal.Decimal `json:"delta"`
}

type BudgetResponse struct {
	Budget model.PeriodAmounts `json:"budget"`
	Points int64               `json:"points"`
}

type ToggleThemeRequest struct{}

type ToggleThemeResponse struct {
	Theme  model.ThemeState `json:"theme"`
	Points int64            `json:"points"`
}

type RegisterPushTokenRequest struct {
	Token string `json:"token"`
}

type RegisterPushTokenResponse struct{}

type EndSessionRequest struct{}

type EndSessionResponse struct {
	Ended bool `json:"ended"`
}

type ExportLedgerRequest struct{}

type ExportLedgerResponse struct {
	Filename    string `json:"filename"`
	Object      string `json:"object,omitempty"`
	ContentType string `json:"contentType"`
	Expenses    int32  `json:"expenses"`
	Income      int32  `json:"income"`
	Data        []byte `json:"data"`
}

type ProcessRecurringRequest struct {
	// UserID limits a scheduler run to one user. Authenticated callers may
	// only name themselves.
	UserID string `json:"userId,omitempty"`
}

type ProcessRecurringResponse struct {
	Stats   ProcessStats       `json:"stats"`
	Results []RecurringOutcome `json:"results,omitempty"`
}

// RecurringOutcome is one definition's firing result as sent to clients.
type RecurringOutcome struct {
	DefinitionID string             `json:"definitionId"`
	Fired        bool               `json:"fired"`
	Transaction  *model.Transaction `json:"transaction,omitempty"`
	Error        *session.ErrorView `json:"error,omitempty"`
}

func outcomes(results []recurring.Result) []RecurringOutcome {
	out := make([]RecurringOutcome, 0, len(results))
	for _, r := range results {
		o := RecurringOutcome{DefinitionID: r.DefinitionID, Fired: r.Fired, Transaction: r.Transaction}
		if r.Err != nil {
			o.Error = errorView(r.Err)
		}
		out = append(out, o)
	}
	return out
}

package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Theme is the active UI theme. The string values match what the web client
// stores on the aggregate record.
type Theme string

const (
	ThemeLight Theme = "light-mode"
	ThemeDark  Theme = "dark-mode"
)

// ParseTheme accepts both the stored values and the short names.
func ParseTheme(s string) (Theme, error) {
	switch s {
	case "", "light", string(ThemeLight):
		return ThemeLight, nil
	case "dark", string(ThemeDark):
		return ThemeDark, nil
	}
	return "", fmt.Errorf("unknown theme %q", s)
}

// ThemeState is the theme machine state. DarkModeUnlocked is monotonic.
type ThemeState struct {
	Current          Theme `json:"current"`
	DarkModeUnlocked bool  `json:"darkModeUnlocked"`
}

// UserState is the per-user aggregate record.
type UserState struct {
	UserID      string          `json:"userId"`
	Email       string          `json:"email,omitempty"`
	Budget      PeriodAmounts   `json:"budget"`
	Points      int64           `json:"points"`
	TotalSpent  PeriodAmounts   `json:"totalSpent"`
	TotalIncome decimal.Decimal `json:"totalIncome"`
	Features    FeatureSet      `json:"unlockedFeatures"`
	Theme       ThemeState      `json:"theme"`
	PushToken   string          `json:"-"`
}

// NewUserState returns the record written at signup: zero budgets, no
// points, nothing unlocked, light theme.
func NewUserState(userID, email string) *UserState {
	return &UserState{
		UserID:   userID,
		Email:    email,
		Features: FeatureSet{},
		Theme:    ThemeState{Current: ThemeLight},
	}
}

// Clone returns a deep copy of u.
func (u *UserState) Clone() *UserState {
	if u == nil {
		return nil
	}
	out := *u
	out.Features = u.Features.Clone()
	return &out
}

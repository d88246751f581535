// Package unlock holds the dark mode state machine.
package unlock

import "github.com/castlemilk/pointsledger/internal/model"

// DefaultDarkModeCost is the one-time price of dark mode in points.
const DefaultDarkModeCost int64 = 1000

// ActionUnlockDarkMode is named in InsufficientPoints refusals.
const ActionUnlockDarkMode = "unlock dark mode"

// Transition is the result of a successful toggle.
type Transition struct {
	Next    model.ThemeState
	Charged int64
}

// ThemeMachine toggles between light and dark. Dark mode is bought once;
// every later toggle is free.
type ThemeMachine struct {
	Cost int64
}

// NewThemeMachine returns a machine charging cost for the first switch to
// dark.
func NewThemeMachine(cost int64) *ThemeMachine {
	return &ThemeMachine{Cost: cost}
}

// Toggle returns the state after flipping the theme. On refusal the state is
// unchanged and nothing is charged.
func (m *ThemeMachine) Toggle(s model.ThemeState, points int64) (Transition, error) {
	if s.Current == model.ThemeDark {
		return Transition{Next: model.ThemeState{Current: model.ThemeLight, DarkModeUnlocked: true}}, nil
	}
	if s.DarkModeUnlocked {
		return Transition{Next: model.ThemeState{Current: model.ThemeDark, DarkModeUnlocked: true}}, nil
	}
	if points < m.Cost {
		return Transition{Next: s}, model.InsufficientPoints(ActionUnlockDarkMode, m.Cost, points)
	}
	return Transition{
		Next:    model.ThemeState{Current: model.ThemeDark, DarkModeUnlocked: true},
		Charged: m.Cost,
	}, nil
}

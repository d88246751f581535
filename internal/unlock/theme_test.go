package unlock

import (
	"testing"

	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggle_BuysDarkModeOnce(t *testing.T) {
	m := NewThemeMachine(DefaultDarkModeCost)

	tr, err := m.Toggle(model.ThemeState{Current: model.ThemeLight}, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), tr.Charged)
	assert.Equal(t, model.ThemeDark, tr.Next.Current)
	assert.True(t, tr.Next.DarkModeUnlocked)
}

func TestToggle_InsufficientPoints(t *testing.T) {
	m := NewThemeMachine(DefaultDarkModeCost)
	start := model.ThemeState{Current: model.ThemeLight}

	tr, err := m.Toggle(start, 999)

	assert.ErrorIs(t, err, model.ErrInsufficientPoints)
	assert.Equal(t, start, tr.Next)
	assert.Zero(t, tr.Charged)

	e, ok := model.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "You need at least 1000 points to unlock dark mode.", e.Message())
}

func TestToggle_RepeatedTogglesChargeOnce(t *testing.T) {
	m := NewThemeMachine(DefaultDarkModeCost)
	state := model.ThemeState{Current: model.ThemeLight}
	points := int64(1000)

	for i := 0; i < 6; i++ {
		tr, err := m.Toggle(state, points)
		require.NoError(t, err)
		points -= tr.Charged
		state = tr.Next
		assert.True(t, state.DarkModeUnlocked)
		assert.GreaterOrEqual(t, points, int64(0))
	}

	assert.Equal(t, int64(0), points)
	assert.Equal(t, model.ThemeLight, state.Current)
}

func TestToggle_DarkToLightIsFree(t *testing.T) {
	m := NewThemeMachine(DefaultDarkModeCost)

	tr, err := m.Toggle(model.ThemeState{Current: model.ThemeDark, DarkModeUnlocked: true}, 0)

	require.NoError(t, err)
	assert.Zero(t, tr.Charged)
	assert.Equal(t, model.ThemeLight, tr.Next.Current)
}

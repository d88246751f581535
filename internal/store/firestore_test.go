package store

import (
	"bytes"
	"log/slog"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUser_PerPeriodRecord(t *testing.T) {
	u, legacy := decodeUser("u1", map[string]interface{}{
		"email":            "a@example.com",
		"budget":           map[string]interface{}{"daily": int64(10), "monthly": 250.5},
		"points":           int64(1035),
		"totalSpent":       map[string]interface{}{"monthly": 12.0},
		"totalIncome":      100.0,
		"unlockedFeatures": map[string]interface{}{"goalTracking": true, "themesSkins": false},
		"theme":            "dark-mode",
		"unlockedDarkMode": true,
	})

	assert.Nil(t, legacy)
	assert.Equal(t, "u1", u.UserID)
	assert.True(t, u.Budget.Daily.Equal(decimal.NewFromInt(10)))
	assert.True(t, u.Budget.Monthly.Equal(decimal.RequireFromString("250.5")))
	assert.Equal(t, int64(1035), u.Points)
	assert.True(t, u.TotalSpent.Monthly.Equal(decimal.NewFromInt(12)))
	assert.True(t, u.TotalIncome.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, []model.Feature{model.FeatureGoalTracking}, u.Features.List())
	assert.Equal(t, model.ThemeState{Current: model.ThemeDark, DarkModeUnlocked: true}, u.Theme)
}

func TestDecodeUser_LegacyFlatBudget(t *testing.T) {
	u, legacy := decodeUser("u1", map[string]interface{}{"budget": int64(400)})

	require.NotNil(t, legacy)
	assert.True(t, legacy.Equal(decimal.NewFromInt(400)))
	assert.True(t, u.Budget.Monthly.Equal(decimal.NewFromInt(400)))
	assert.True(t, u.Budget.Daily.IsZero())
	assert.Equal(t, model.ThemeLight, u.Theme.Current)
}

func TestPatchData_OnlyWritesSetFields(t *testing.T) {
	points := int64(5)
	data := patchData(UserPatch{
		Points:   &points,
		Features: model.FeatureSet{model.FeatureBudgetAnalysis: true, model.FeatureGoalTracking: false},
	})

	assert.Equal(t, int64(5), data["points"])
	assert.Equal(t, map[string]interface{}{"budgetAnalysis": true}, data["unlockedFeatures"])
	assert.NotContains(t, data, "budget")
	assert.NotContains(t, data, "unlockedDarkMode")
	assert.NotContains(t, data, "theme")
}

func TestPatchData_Theme(t *testing.T) {
	dark := model.ThemeDark
	data := patchData(UserPatch{Theme: &dark, DarkModeUnlocked: true})

	assert.Equal(t, "dark-mode", data["theme"])
	assert.Equal(t, true, data["unlockedDarkMode"])
}

func TestCollectionFor(t *testing.T) {
	c, err := CollectionFor(model.KindIncome)
	require.NoError(t, err)
	assert.Equal(t, CollectionIncome, c)

	_, err = CollectionFor("refund")
	assert.Error(t, err)
}

func captureDefaultLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestDecode_SkipsUndecodableDocuments(t *testing.T) {
	// A snapshot without data fails DataTo.
	broken := &firestore.DocumentSnapshot{Ref: &firestore.DocumentRef{ID: "broken-doc"}}

	t.Run("transactions", func(t *testing.T) {
		buf := captureDefaultLog(t)
		out := decodeTransactions(model.KindExpense, []*firestore.DocumentSnapshot{broken})
		assert.Empty(t, out)
		assert.Contains(t, buf.String(), "skipping undecodable document")
		assert.Contains(t, buf.String(), `"id":"broken-doc"`)
	})

	t.Run("recurring", func(t *testing.T) {
		buf := captureDefaultLog(t)
		out := decodeRecurring([]*firestore.DocumentSnapshot{broken})
		assert.Empty(t, out)
		assert.Contains(t, buf.String(), `"id":"broken-doc"`)
		assert.Contains(t, buf.String(), `"collection":"recurring"`)
	})
}

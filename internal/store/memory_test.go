package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
	return Snapshot{}
}

func TestMemoryStore_UserLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.GetUser(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.CreateUser(ctx, model.NewUserState("u1", "a@example.com")))
	assert.Error(t, s.CreateUser(ctx, model.NewUserState("u1", "")))

	points := int64(520)
	budget := model.PeriodAmounts{}.With(model.PeriodMonthly, decimal.NewFromInt(100))
	require.NoError(t, s.MergeUser(ctx, "u1", UserPatch{
		Points:   &points,
		Budget:   &budget,
		Features: model.FeatureSet{model.FeatureGoalTracking: true},
	}))

	// A later merge without flags must not drop them.
	dark := model.ThemeDark
	require.NoError(t, s.MergeUser(ctx, "u1", UserPatch{Theme: &dark, DarkModeUnlocked: true}))

	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)
	assert.Equal(t, int64(520), u.Points)
	assert.True(t, u.Budget.Monthly.Equal(decimal.NewFromInt(100)))
	assert.True(t, u.Features.Has(model.FeatureGoalTracking))
	assert.Equal(t, model.ThemeState{Current: model.ThemeDark, DarkModeUnlocked: true}, u.Theme)

	// Returned records are copies.
	u.Features[model.FeatureThemesSkins] = true
	again, _ := s.GetUser(ctx, "u1")
	assert.False(t, again.Features.Has(model.FeatureThemesSkins))
}

func TestMemoryStore_UpgradeLegacyBudget(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.PutLegacyUser("old", decimal.NewFromInt(300))

	u, err := s.GetUser(ctx, "old")
	require.NoError(t, err)
	assert.True(t, u.Budget.Monthly.Equal(decimal.NewFromInt(300)))

	upgraded, err := s.UpgradeLegacyBudget(ctx, "old")
	require.NoError(t, err)
	assert.True(t, upgraded)
	assert.False(t, s.IsLegacy("old"))

	upgraded, err = s.UpgradeLegacyBudget(ctx, "old")
	require.NoError(t, err)
	assert.False(t, upgraded)

	_, err = s.UpgradeLegacyBudget(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	sub, err := s.Subscribe(ctx, "u1", CollectionExpenses)
	require.NoError(t, err)
	defer sub.Cancel()

	initial := receive(t, sub)
	assert.Equal(t, CollectionExpenses, initial.Collection)
	assert.Empty(t, initial.Transactions)

	tx := &model.Transaction{Kind: model.KindExpense, Name: "coffee", Amount: decimal.NewFromInt(4), Timestamp: time.Now()}
	require.NoError(t, s.AddTransaction(ctx, "u1", tx))
	assert.NotEmpty(t, tx.ID)

	snap := receive(t, sub)
	require.Len(t, snap.Transactions, 1)
	assert.Equal(t, tx.ID, snap.Transactions[0].ID)

	// Income writes do not notify the expense subscriber.
	require.NoError(t, s.AddTransaction(ctx, "u1", &model.Transaction{Kind: model.KindIncome, Amount: decimal.NewFromInt(1)}))
	select {
	case snap := <-sub.C:
		t.Fatalf("unexpected snapshot %+v", snap)
	default:
	}
}

func TestMemoryStore_CancelStopsDelivery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	sub, err := s.Subscribe(ctx, "u1", CollectionRecurring)
	require.NoError(t, err)
	assert.Equal(t, 1, s.SubscriberCount("u1"))

	sub.Cancel()
	sub.Cancel()
	assert.Equal(t, 0, s.SubscriberCount("u1"))

	require.NoError(t, s.AddRecurring(ctx, "u1", &model.RecurringDefinition{
		Name: "rent", Amount: decimal.NewFromInt(10), Type: model.KindExpense, Frequency: model.FrequencyMonthly,
	}))

	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestMemoryStore_ContextCancelReleases(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := s.Subscribe(ctx, "u1", CollectionIncome)
	require.NoError(t, err)
	cancel()

	assert.Eventually(t, func() bool { return s.SubscriberCount("u1") == 0 }, time.Second, 10*time.Millisecond)
	sub.Cancel()
}

func TestMemoryStore_RecurringLastAdded(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	def := &model.RecurringDefinition{Name: "gym", Amount: decimal.NewFromInt(20), Type: model.KindExpense, Frequency: model.FrequencyWeekly}
	require.NoError(t, s.AddRecurring(ctx, "u1", def))

	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetRecurringLastAdded(ctx, "u1", def.ID, at))

	defs, err := s.ListRecurring(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, at, defs[0].LastAdded)

	assert.ErrorIs(t, s.SetRecurringLastAdded(ctx, "u1", "nope", at), ErrNotFound)
}

func TestMemoryStore_FailWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	boom := errors.New("unavailable")
	s.FailWrites(boom)

	err := s.AddTransaction(ctx, "u1", &model.Transaction{Kind: model.KindExpense, Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, boom)

	s.FailWrites(nil)
	assert.NoError(t, s.AddTransaction(ctx, "u1", &model.Transaction{Kind: model.KindExpense, Amount: decimal.NewFromInt(1)}))
}

func TestListUserIDsPagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, id := range []string{"c", "a", "e", "b", "d"} {
		require.NoError(t, s.CreateUser(ctx, model.NewUserState(id, "")))
	}

	page, next, err := s.ListUserIDs(ctx, 2, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, page)
	require.NotEmpty(t, next)

	page, next, err = s.ListUserIDs(ctx, 2, next)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, page)

	page, next, err = s.ListUserIDs(ctx, 2, next)
	require.NoError(t, err)
	assert.Equal(t, []string{"e"}, page)
	assert.Empty(t, next)
}

func TestPageTokenRoundTrip(t *testing.T) {
	id, err := DecodePageToken(EncodePageToken("user-42"))
	require.NoError(t, err)
	assert.Equal(t, "user-42", id)

	_, err = DecodePageToken("%%%")
	assert.Error(t, err)
}

func TestUserPatchEmpty(t *testing.T) {
	assert.True(t, UserPatch{}.Empty())
	assert.True(t, UserPatch{Features: model.FeatureSet{model.FeatureGoalTracking: false}}.Empty())
	assert.False(t, UserPatch{DarkModeUnlocked: true}.Empty())
}

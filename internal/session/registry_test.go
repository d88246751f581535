package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/castlemilk/pointsledger/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AcquireRelease(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewRegistry(context.Background(), testDeps(st))
	defer r.Close()
	ctx := context.Background()

	a, err := r.Acquire(ctx, "u1", "")
	require.NoError(t, err)
	b, err := r.Acquire(ctx, "u1", "")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 3, st.SubscriberCount("u1"))

	r.Release(a)
	assert.False(t, a.Closed())
	r.Release(b)
	assert.True(t, a.Closed())
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, st.SubscriberCount("u1"))
}

func TestRegistry_EndReleasesSubscriptions(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewRegistry(context.Background(), testDeps(st))
	ctx := context.Background()

	s, err := r.Acquire(ctx, "u1", "")
	require.NoError(t, err)

	assert.True(t, r.End("u1"))
	assert.True(t, s.Closed())
	assert.Equal(t, 0, st.SubscriberCount("u1"))
	assert.False(t, r.End("u1"))

	// A stray release after End is harmless.
	r.Release(s)
}

func TestRegistry_WithUsesLiveSession(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewRegistry(context.Background(), testDeps(st))
	defer r.Close()
	ctx := context.Background()

	live, err := r.Acquire(ctx, "u1", "")
	require.NoError(t, err)

	var used *Session
	require.NoError(t, r.With(ctx, "u1", "", func(s *Session) error {
		used = s
		return nil
	}))
	assert.Same(t, live, used)

	var transient *Session
	require.NoError(t, r.With(ctx, "u2", "", func(s *Session) error {
		transient = s
		return nil
	}))
	assert.True(t, transient.Closed())
}

func TestRegistry_NoIdentity(t *testing.T) {
	r := NewRegistry(context.Background(), testDeps(store.NewMemoryStore()))

	_, err := r.Acquire(context.Background(), "", "")
	assert.ErrorIs(t, err, model.ErrNoActiveSession)

	err = r.With(context.Background(), "", "", func(*Session) error { return nil })
	assert.ErrorIs(t, err, model.ErrNoActiveSession)
}

// slowStore delays transaction writes so concurrent operations overlap.
type slowStore struct {
	*store.MemoryStore
	delay time.Duration
}

func (s slowStore) AddTransaction(ctx context.Context, userID string, tx *model.Transaction) error {
	time.Sleep(s.delay)
	return s.MemoryStore.AddTransaction(ctx, userID, tx)
}

func TestRegistry_ConcurrentWithIsSerialized(t *testing.T) {
	st := store.NewMemoryStore()
	seedUser(t, st, "u1", 0, 50)
	r := NewRegistry(context.Background(), testDeps(slowStore{MemoryStore: st, delay: 50 * time.Millisecond}))
	defer r.Close()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.With(context.Background(), "u1", "", func(s *Session) error {
				_, err := s.AddExpense(context.Background(), ExpenseInput{Name: "item", Amount: dec(40)}, model.PeriodMonthly)
				return err
			})
		}(i)
	}
	wg.Wait()

	var accepted, refused int
	for _, err := range errs {
		switch {
		case err == nil:
			accepted++
		case assert.ErrorIs(t, err, model.ErrBudgetExceeded):
			refused++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, refused)

	expenses, err := st.ListTransactions(context.Background(), "u1", model.KindExpense)
	require.NoError(t, err)
	assert.Len(t, expenses, 1)

	u, err := st.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(515), u.Points)
	assert.True(t, u.TotalSpent.Monthly.Equal(dec(40)))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ReleaseAfterEndKeepsNewSession(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewRegistry(context.Background(), testDeps(st))
	defer r.Close()
	ctx := context.Background()

	first, err := r.Acquire(ctx, "u1", "")
	require.NoError(t, err)
	require.True(t, r.End("u1"))

	second, err := r.Acquire(ctx, "u1", "")
	require.NoError(t, err)
	require.NotSame(t, first, second)

	r.Release(first)

	assert.True(t, first.Closed())
	assert.False(t, second.Closed())
	assert.Equal(t, 3, st.SubscriberCount("u1"))

	live, ok := r.Get("u1")
	require.True(t, ok)
	assert.Same(t, second, live)

	r.Release(second)
	assert.True(t, second.Closed())
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_AcquireStartsSharedSession(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewRegistry(context.Background(), testDeps(st))
	defer r.Close()
	ctx := context.Background()

	err := r.With(ctx, "u1", "", func(s *Session) error {
		assert.Equal(t, 0, st.SubscriberCount("u1"))
		live, err := r.Acquire(ctx, "u1", "")
		require.NoError(t, err)
		assert.Same(t, s, live)
		assert.Equal(t, 3, st.SubscriberCount("u1"))
		r.Release(live)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, st.SubscriberCount("u1"))
}

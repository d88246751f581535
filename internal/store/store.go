package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=store.go -destination=store_mock.go -package=store

// Collection names under users/{uid}.
const (
	CollectionExpenses  = "expenses"
	CollectionIncome    = "income"
	CollectionRecurring = "recurring"
)

// ErrNotFound is returned when the aggregate record for a user does not exist.
var ErrNotFound = errors.New("not found")

// Collections lists the subscribable collections.
func Collections() []string {
	return []string{CollectionExpenses, CollectionIncome, CollectionRecurring}
}

// CollectionFor maps a transaction kind to its collection.
func CollectionFor(kind model.Kind) (string, error) {
	switch kind {
	case model.KindExpense:
		return CollectionExpenses, nil
	case model.KindIncome:
		return CollectionIncome, nil
	}
	return "", fmt.Errorf("no collection for kind %q", kind)
}

func validCollection(c string) bool {
	return c == CollectionExpenses || c == CollectionIncome || c == CollectionRecurring
}

// Store defines the interface for all ledger persistence used by the session
type Store interface {
	// Aggregate record operations
	GetUser(ctx context.Context, userID string) (*model.UserState, error)
	CreateUser(ctx context.Context, user *model.UserState) error
	MergeUser(ctx context.Context, userID string, patch UserPatch) error
	UpgradeLegacyBudget(ctx context.Context, userID string) (bool, error)
	ListUserIDs(ctx context.Context, pageSize int32, pageToken string) ([]string, string, error)

	// Transaction operations
	AddTransaction(ctx context.Context, userID string, tx *model.Transaction) error
	ListTransactions(ctx context.Context, userID string, kind model.Kind) ([]model.Transaction, error)

	// Recurring definition operations
	AddRecurring(ctx context.Context, userID string, def *model.RecurringDefinition) error
	SetRecurringLastAdded(ctx context.Context, userID, definitionID string, at time.Time) error
	ListRecurring(ctx context.Context, userID string) ([]model.RecurringDefinition, error)

	// Subscribe streams full snapshots of one collection until cancelled.
	Subscribe(ctx context.Context, userID, collection string) (*Subscription, error)
}

// UserPatch is a partial write to the aggregate record. Nil fields are left
// untouched. Feature flags and the dark mode unlock are only ever written as
// true, so a merge can never lock anything again.
type UserPatch struct {
	Email            *string
	Budget           *model.PeriodAmounts
	Points           *int64
	TotalSpent       *model.PeriodAmounts
	TotalIncome      *decimal.Decimal
	Features         model.FeatureSet
	Theme            *model.Theme
	DarkModeUnlocked bool
	PushToken        *string
}

// Empty reports whether the patch writes nothing.
func (p UserPatch) Empty() bool {
	return p.Email == nil && p.Budget == nil && p.Points == nil && p.TotalSpent == nil &&
		p.TotalIncome == nil && len(p.Features.List()) == 0 && p.Theme == nil &&
		!p.DarkModeUnlocked && p.PushToken == nil
}

// Apply merges the patch into u.
func (p UserPatch) Apply(u *model.UserState) {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Budget != nil {
		u.Budget = *p.Budget
	}
	if p.Points != nil {
		u.Points = *p.Points
	}
	if p.TotalSpent != nil {
		u.TotalSpent = *p.TotalSpent
	}
	if p.TotalIncome != nil {
		u.TotalIncome = *p.TotalIncome
	}
	if len(p.Features) > 0 {
		u.Features = u.Features.Merge(p.Features)
	}
	if p.Theme != nil {
		u.Theme.Current = *p.Theme
	}
	if p.DarkModeUnlocked {
		u.Theme.DarkModeUnlocked = true
	}
	if p.PushToken != nil {
		u.PushToken = *p.PushToken
	}
}

// Snapshot is the full current member set of one collection. Exactly one of
// Transactions or Recurring is populated, depending on Collection.
type Snapshot struct {
	Collection   string
	Transactions []model.Transaction
	Recurring    []model.RecurringDefinition
	Err          error
}

// Subscription delivers snapshots on C until Cancel is called or the
// subscribing context ends. C is closed once delivery has stopped.
type Subscription struct {
	C <-chan Snapshot

	once   sync.Once
	cancel func()
}

// NewSubscription wraps a snapshot channel and the function that stops it.
func NewSubscription(c <-chan Snapshot, cancel func()) *Subscription {
	return &Subscription{C: c, cancel: cancel}
}

// Cancel releases the subscription. It is safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// EncodePageToken encodes a document ID into a page token.
func EncodePageToken(docID string) string {
	if docID == "" {
		return ""
	}
	return base64.URLEncoding.EncodeToString([]byte(docID))
}

// DecodePageToken decodes a page token back to a document ID.
func DecodePageToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

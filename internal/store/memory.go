package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type memUser struct {
	state     *model.UserState
	legacy    *decimal.Decimal
	expenses  []model.Transaction
	income    []model.Transaction
	recurring map[string]model.RecurringDefinition
}

type subKey struct {
	userID     string
	collection string
}

type memSub struct {
	ch     chan Snapshot
	closed bool
}

// MemoryStore implements Store interface with in-memory storage. Subscribers
// receive the latest full snapshot; older undelivered snapshots are replaced.
type MemoryStore struct {
	mu sync.RWMutex

	users map[string]*memUser
	subs  map[subKey][]*memSub

	// failWrites makes every write return the error; used to exercise
	// persistence failures.
	failWrites error
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*memUser),
		subs:  make(map[subKey][]*memSub),
	}
}

// FailWrites makes every subsequent write fail with err. Pass nil to reset.
func (m *MemoryStore) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = err
}

// PutLegacyUser stores a record whose budget is still a single flat number.
func (m *MemoryStore) PutLegacyUser(userID string, flat decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.userLocked(userID)
	u.state = model.NewUserState(userID, "")
	u.state.Budget = model.UpgradeLegacyBudget(flat)
	u.legacy = &flat
}

// userLocked returns the bucket for userID, creating the transaction side
// if needed. The aggregate record stays nil until created.
func (m *MemoryStore) userLocked(userID string) *memUser {
	u, ok := m.users[userID]
	if !ok {
		u = &memUser{recurring: make(map[string]model.RecurringDefinition)}
		m.users[userID] = u
	}
	return u
}

// Aggregate record operations

func (m *MemoryStore) GetUser(ctx context.Context, userID string) (*model.UserState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[userID]
	if !ok || u.state == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return u.state.Clone(), nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, user *model.UserState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWrites != nil {
		return m.failWrites
	}
	u := m.userLocked(user.UserID)
	if u.state != nil {
		return fmt.Errorf("user %s already exists", user.UserID)
	}
	u.state = user.Clone()
	if u.state.Features == nil {
		u.state.Features = model.FeatureSet{}
	}
	return nil
}

func (m *MemoryStore) MergeUser(ctx context.Context, userID string, patch UserPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWrites != nil {
		return m.failWrites
	}
	u := m.userLocked(userID)
	if u.state == nil {
		// Set with merge creates the document.
		u.state = model.NewUserState(userID, "")
	}
	if patch.Budget != nil {
		u.legacy = nil
	}
	patch.Apply(u.state)
	return nil
}

func (m *MemoryStore) UpgradeLegacyBudget(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok || u.state == nil {
		return false, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if u.legacy == nil {
		return false, nil
	}
	if m.failWrites != nil {
		return false, m.failWrites
	}
	u.state.Budget = model.UpgradeLegacyBudget(*u.legacy)
	u.legacy = nil
	return true, nil
}

// IsLegacy reports whether the stored budget is still flat.
func (m *MemoryStore) IsLegacy(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	return ok && u.legacy != nil
}

func (m *MemoryStore) ListUserIDs(ctx context.Context, pageSize int32, pageToken string) ([]string, string, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.users))
	for id, u := range m.users {
		if u.state != nil {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	page, next := paginateIDs(ids, pageSize, pageToken)
	return page, next, nil
}

// paginateIDs applies cursor-based pagination to a sorted slice of IDs.
// Returns the paginated IDs and the next page token (empty if no more pages).
func paginateIDs(ids []string, pageSize int32, pageToken string) ([]string, string) {
	if pageSize <= 0 {
		pageSize = 100
	}

	sort.Strings(ids)

	if pageToken != "" {
		cursorID, err := DecodePageToken(pageToken)
		if err == nil {
			idx := sort.SearchStrings(ids, cursorID)
			if idx < len(ids) && ids[idx] == cursorID {
				idx++
			}
			ids = ids[idx:]
		}
	}

	var nextToken string
	if int32(len(ids)) > pageSize {
		ids = ids[:pageSize]
		nextToken = EncodePageToken(ids[pageSize-1])
	}
	return ids, nextToken
}

// Transaction operations

func (m *MemoryStore) AddTransaction(ctx context.Context, userID string, tx *model.Transaction) error {
	collection, err := CollectionFor(tx.Kind)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWrites != nil {
		return m.failWrites
	}
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	u := m.userLocked(userID)
	if tx.Kind == model.KindIncome {
		u.income = append(u.income, *tx)
	} else {
		u.expenses = append(u.expenses, *tx)
	}
	m.publishLocked(userID, collection)
	return nil
}

func (m *MemoryStore) ListTransactions(ctx context.Context, userID string, kind model.Kind) ([]model.Transaction, error) {
	collection, err := CollectionFor(kind)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked(userID, collection).Transactions, nil
}

// Recurring definition operations

func (m *MemoryStore) AddRecurring(ctx context.Context, userID string, def *model.RecurringDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWrites != nil {
		return m.failWrites
	}
	if def.ID == "" {
		def.ID = uuid.New().String()
	}
	m.userLocked(userID).recurring[def.ID] = *def
	m.publishLocked(userID, CollectionRecurring)
	return nil
}

func (m *MemoryStore) SetRecurringLastAdded(ctx context.Context, userID, definitionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWrites != nil {
		return m.failWrites
	}
	u := m.userLocked(userID)
	def, ok := u.recurring[definitionID]
	if !ok {
		return fmt.Errorf("recurring %s: %w", definitionID, ErrNotFound)
	}
	def.LastAdded = at
	u.recurring[definitionID] = def
	m.publishLocked(userID, CollectionRecurring)
	return nil
}

func (m *MemoryStore) ListRecurring(ctx context.Context, userID string) ([]model.RecurringDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked(userID, CollectionRecurring).Recurring, nil
}

// Subscriptions

// Subscribe delivers the current collection immediately, then again after
// every write to it.
func (m *MemoryStore) Subscribe(ctx context.Context, userID, collection string) (*Subscription, error) {
	if !validCollection(collection) {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}

	m.mu.Lock()
	key := subKey{userID: userID, collection: collection}
	sub := &memSub{ch: make(chan Snapshot, 1)}
	m.subs[key] = append(m.subs[key], sub)
	sub.ch <- m.snapshotLocked(userID, collection)
	m.mu.Unlock()

	unsubscribe := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.subs[key]
		for i, s := range subs {
			if s == sub {
				m.subs[key] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if !sub.closed {
			sub.closed = true
			// Drop anything undelivered so nothing arrives after release.
			select {
			case <-sub.ch:
			default:
			}
			close(sub.ch)
		}
	}
	stop := context.AfterFunc(ctx, unsubscribe)

	return NewSubscription(sub.ch, func() {
		stop()
		unsubscribe()
	}), nil
}

// SubscriberCount returns the number of live subscriptions for a user.
func (m *MemoryStore) SubscriberCount(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for key, subs := range m.subs {
		if key.userID == userID {
			n += len(subs)
		}
	}
	return n
}

func (m *MemoryStore) publishLocked(userID, collection string) {
	subs := m.subs[subKey{userID: userID, collection: collection}]
	if len(subs) == 0 {
		return
	}
	snap := m.snapshotLocked(userID, collection)
	for _, sub := range subs {
		if sub.closed {
			continue
		}
		// Replace an undelivered snapshot with the newer one.
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- snap:
		default:
		}
	}
}

func (m *MemoryStore) snapshotLocked(userID, collection string) Snapshot {
	snap := Snapshot{Collection: collection}
	u, ok := m.users[userID]
	switch collection {
	case CollectionRecurring:
		snap.Recurring = []model.RecurringDefinition{}
		if ok {
			for _, def := range u.recurring {
				snap.Recurring = append(snap.Recurring, def)
			}
			sort.Slice(snap.Recurring, func(i, j int) bool { return snap.Recurring[i].ID < snap.Recurring[j].ID })
		}
	case CollectionIncome:
		snap.Transactions = []model.Transaction{}
		if ok {
			snap.Transactions = sortedCopy(u.income)
		}
	default:
		snap.Transactions = []model.Transaction{}
		if ok {
			snap.Transactions = sortedCopy(u.expenses)
		}
	}
	return snap
}

func sortedCopy(txs []model.Transaction) []model.Transaction {
	out := make([]model.Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

var _ Store = (*MemoryStore)(nil)

// Package session is the single logical actor that owns one user's ledger
// view. Every mutation is validated against locally held state, persisted
// with partial merges, and then applied locally from the computed values.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/castlemilk/pointsledger/internal/aggregate"
	"github.com/castlemilk/pointsledger/internal/guard"
	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/castlemilk/pointsledger/internal/recurring"
	"github.com/castlemilk/pointsledger/internal/rewards"
	"github.com/castlemilk/pointsledger/internal/store"
	"github.com/castlemilk/pointsledger/internal/unlock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Notifier is told about features a user just unlocked.
type Notifier interface {
	NotifyUnlocks(ctx context.Context, user *model.UserState, unlocked []model.Feature) error
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Store         store.Store
	Guard         *guard.Guard
	Rewards       *rewards.Engine
	Theme         *unlock.ThemeMachine
	Notifier      Notifier
	Now           func() time.Time
	DefaultPeriod model.Period
	Logger        *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Guard == nil {
		d.Guard = guard.New(guard.DefaultCosts())
	}
	if d.Rewards == nil {
		d.Rewards = rewards.NewEngine(rewards.DefaultConfig())
	}
	if d.Theme == nil {
		d.Theme = unlock.NewThemeMachine(unlock.DefaultDarkModeCost)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if !d.DefaultPeriod.Valid() {
		d.DefaultPeriod = model.PeriodMonthly
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// ExpenseInput is a user-entered expense.
type ExpenseInput struct {
	Name     string
	Amount   decimal.Decimal
	Category string
}

// IncomeInput is a user-entered income entry.
type IncomeInput struct {
	Name   string
	Amount decimal.Decimal
}

// RecurringInput is a new recurring definition.
type RecurringInput struct {
	Name      string
	Amount    decimal.Decimal
	Type      model.Kind
	Frequency model.Frequency
	Category  string
}

// ExpenseResult reports a committed expense.
type ExpenseResult struct {
	Transaction model.Transaction `json:"transaction"`
	Award       rewards.Award     `json:"award"`
	Points      int64             `json:"points"`
	Unlocked    []model.Feature   `json:"unlocked,omitempty"`
}

// ErrorView is the one live error shown to the user.
type ErrorView struct {
	Kind    model.ErrorKind `json:"kind"`
	Message string          `json:"message"`
}

// Dashboard is everything the presentation layer renders.
type Dashboard struct {
	User      *model.UserState            `json:"user"`
	Summary   aggregate.Summary           `json:"summary"`
	Recurring []model.RecurringDefinition `json:"recurring"`
	LastError *ErrorView                  `json:"lastError,omitempty"`
	Version   uint64                      `json:"version"`
}

// Session holds one user's ledger state. Mutations are serialized; reads
// may run concurrently with snapshot delivery.
type Session struct {
	deps   Deps
	userID string
	log    *slog.Logger

	opMu sync.Mutex

	mu        sync.RWMutex
	user      *model.UserState
	expenses  []model.Transaction
	income    []model.Transaction
	recurring []model.RecurringDefinition
	lastErr   error
	version   uint64
	closed    bool
	started   bool
	watchers  map[uint64]chan Dashboard
	nextWatch uint64
	subs      []*store.Subscription
	done      chan struct{}
}

// EnsureAccount returns the user's aggregate record, creating it with
// signup defaults when it does not exist yet.
func EnsureAccount(ctx context.Context, st store.Store, userID, email string) (*model.UserState, bool, error) {
	if userID == "" {
		return nil, false, model.NoActiveSession()
	}
	user, err := st.GetUser(ctx, userID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, model.Persistence("load user", err)
	}

	user = model.NewUserState(userID, email)
	if err := st.CreateUser(ctx, user); err != nil {
		// Lost a race with another session creating the same record.
		if existing, getErr := st.GetUser(ctx, userID); getErr == nil {
			return existing, false, nil
		}
		return nil, false, model.Persistence("create user", err)
	}
	return user, true, nil
}

// Open loads a user's ledger, creating the account on first use. The
// session does not receive live updates until Start is called.
func Open(ctx context.Context, deps Deps, userID, email string) (*Session, error) {
	deps = deps.withDefaults()
	user, _, err := EnsureAccount(ctx, deps.Store, userID, email)
	if err != nil {
		return nil, err
	}

	expenses, err := deps.Store.ListTransactions(ctx, userID, model.KindExpense)
	if err != nil {
		return nil, model.Persistence("load expenses", err)
	}
	income, err := deps.Store.ListTransactions(ctx, userID, model.KindIncome)
	if err != nil {
		return nil, model.Persistence("load income", err)
	}
	defs, err := deps.Store.ListRecurring(ctx, userID)
	if err != nil {
		return nil, model.Persistence("load recurring", err)
	}

	s := &Session{
		deps:      deps,
		userID:    userID,
		log:       deps.Logger.With("component", "session", "user", userID),
		user:      user,
		expenses:  expenses,
		income:    income,
		recurring: defs,
		watchers:  make(map[uint64]chan Dashboard),
		done:      make(chan struct{}),
	}
	s.user.TotalSpent = aggregate.Totals(expenses, deps.Now())
	return s, nil
}

// UserID returns the identity the session belongs to.
func (s *Session) UserID() string {
	return s.userID
}

// Start subscribes to the expense, income and recurring collections. Each
// snapshot fully replaces the corresponding local set.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.NoActiveSession()
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	subs := make([]*store.Subscription, 0, 3)
	for _, c := range store.Collections() {
		sub, err := s.deps.Store.Subscribe(ctx, s.userID, c)
		if err != nil {
			for _, opened := range subs {
				opened.Cancel()
			}
			s.mu.Lock()
			s.started = false
			s.mu.Unlock()
			return model.Persistence("subscribe "+c, err)
		}
		subs = append(subs, sub)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		for _, sub := range subs {
			sub.Cancel()
		}
		return model.NoActiveSession()
	}
	s.subs = subs
	s.mu.Unlock()

	// A failed subscription stops its siblings and closes the session, so the
	// next operation reopens it from the store.
	g, gctx := errgroup.WithContext(ctx)
	for _, sub := range subs {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case snap, ok := <-sub.C:
					if !ok {
						return nil
					}
					s.applySnapshot(snap)
					if snap.Err != nil {
						return model.Persistence("subscribe "+snap.Collection, snap.Err)
					}
				}
			}
		})
	}
	go func() {
		err := g.Wait()
		for _, sub := range subs {
			sub.Cancel()
		}
		close(s.done)
		if err != nil {
			s.log.Warn("closing session after subscription failure", "error", err)
			s.Close()
		}
	}()
	return nil
}

// Close releases every subscription and watcher. No snapshot is applied
// after Close returns.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	for id, ch := range s.watchers {
		close(ch)
		delete(s.watchers, id)
	}
	started := s.started
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	if started && len(subs) > 0 {
		<-s.done
	}
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Session) applySnapshot(snap store.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if snap.Err != nil {
		s.log.Error("subscription failed", "collection", snap.Collection, "error", snap.Err)
		s.lastErr = model.Persistence("subscribe "+snap.Collection, snap.Err)
		s.changedLocked()
		return
	}

	switch snap.Collection {
	case store.CollectionExpenses:
		s.expenses = snap.Transactions
		s.user.TotalSpent = aggregate.Totals(s.expenses, s.deps.Now())
	case store.CollectionIncome:
		s.income = snap.Transactions
	case store.CollectionRecurring:
		s.recurring = snap.Recurring
	}
	s.changedLocked()
}

// State returns a copy of the aggregate record as held locally.
func (s *Session) State() *model.UserState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// LastError returns the live error, or nil after a successful operation.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Dashboard computes the current view.
func (s *Session) Dashboard() Dashboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dashboardLocked()
}

func (s *Session) dashboardLocked() Dashboard {
	defs := make([]model.RecurringDefinition, len(s.recurring))
	copy(defs, s.recurring)
	return Dashboard{
		User:      s.user.Clone(),
		Summary:   aggregate.Summarize(s.expenses, s.income, s.user.Budget, s.deps.Now()),
		Recurring: defs,
		LastError: errorView(s.lastErr),
		Version:   s.version,
	}
}

func errorView(err error) *ErrorView {
	if err == nil {
		return nil
	}
	if e, ok := model.AsError(err); ok {
		return &ErrorView{Kind: e.Kind, Message: e.Message()}
	}
	return &ErrorView{Kind: model.KindPersistence, Message: err.Error()}
}

// Watch streams a dashboard after every change, starting with the current
// one. Slow readers only see the latest view. The channel is closed when the
// session closes or stop is called.
func (s *Session) Watch() (<-chan Dashboard, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Dashboard, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = ch
	ch <- s.dashboardLocked()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if w, ok := s.watchers[id]; ok {
			close(w)
			delete(s.watchers, id)
		}
	}
}

func (s *Session) changedLocked() {
	s.version++
	if len(s.watchers) == 0 {
		return
	}
	d := s.dashboardLocked()
	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- d:
		default:
		}
	}
}

// begin serializes an operation and rejects it on a closed session.
func (s *Session) begin() (func(), error) {
	s.opMu.Lock()
	if s.Closed() {
		s.opMu.Unlock()
		return nil, model.NoActiveSession()
	}
	return s.opMu.Unlock, nil
}

// finish records the outcome in the live error slot.
func (s *Session) finish(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.changedLocked()
	s.mu.Unlock()
	return err
}

func (s *Session) snapshot() (*model.UserState, []model.Transaction) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	expenses := make([]model.Transaction, len(s.expenses))
	copy(expenses, s.expenses)
	return s.user.Clone(), expenses
}

// AddExpense validates an expense against the budget of period (the
// default period when empty), stores it and awards points.
func (s *Session) AddExpense(ctx context.Context, in ExpenseInput, period model.Period) (*ExpenseResult, error) {
	end, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer end()

	if period == "" {
		period = s.deps.DefaultPeriod
	}
	tx := model.Transaction{
		ID:        uuid.NewString(),
		Kind:      model.KindExpense,
		Name:      strings.TrimSpace(in.Name),
		Amount:    in.Amount,
		Category:  strings.TrimSpace(in.Category),
		Timestamp: s.deps.Now(),
	}
	if err := tx.Validate(); err != nil {
		return nil, s.finish(err)
	}
	res, err := s.commitExpense(ctx, tx, period)
	return res, s.finish(err)
}

func (s *Session) commitExpense(ctx context.Context, tx model.Transaction, period model.Period) (*ExpenseResult, error) {
	if !period.Valid() {
		return nil, model.InvalidTransaction("unknown period " + string(period))
	}
	now := s.deps.Now()
	user, expenses := s.snapshot()

	// Totals are recomputed from the local expense set, not the cached copy.
	current := aggregate.Totals(expenses, now).Get(period)
	budget := user.Budget.Get(period)
	if err := s.deps.Guard.ValidateExpense(period, tx.Amount, current, budget); err != nil {
		return nil, err
	}

	if err := s.deps.Store.AddTransaction(ctx, s.userID, &tx); err != nil {
		return nil, model.Persistence("add expense", err)
	}

	expenses = appendUnique(expenses, tx)
	totals := aggregate.Totals(expenses, now)
	outcome := s.deps.Rewards.Apply(user.Points, user.Features, rewards.ExpenseEvent{
		Category:    tx.Category,
		Period:      period,
		PeriodTotal: totals.Get(period),
		Budget:      budget,
	})

	patch := store.UserPatch{
		Points:     &outcome.Points,
		TotalSpent: &totals,
		Features:   outcome.Features,
	}
	if err := s.deps.Store.MergeUser(ctx, s.userID, patch); err != nil {
		return nil, model.Persistence("update points", err)
	}

	s.mu.Lock()
	patch.Apply(s.user)
	s.expenses = appendUnique(s.expenses, tx)
	s.mu.Unlock()

	s.log.Info("expense added", "amount", tx.Amount.String(), "period", period,
		"award", outcome.Award.Total(), "points", outcome.Points)

	if len(outcome.Unlocked) > 0 {
		s.notifyUnlocks(ctx, outcome.Unlocked)
	}

	return &ExpenseResult{
		Transaction: tx,
		Award:       outcome.Award,
		Points:      outcome.Points,
		Unlocked:    outcome.Unlocked,
	}, nil
}

func (s *Session) notifyUnlocks(ctx context.Context, unlocked []model.Feature) {
	if s.deps.Notifier == nil {
		return
	}
	if err := s.deps.Notifier.NotifyUnlocks(ctx, s.State(), unlocked); err != nil {
		s.log.Warn("unlock notification failed", "error", err)
	}
}

func appendUnique(txs []model.Transaction, tx model.Transaction) []model.Transaction {
	for _, existing := range txs {
		if existing.ID == tx.ID {
			return txs
		}
	}
	out := make([]model.Transaction, len(txs), len(txs)+1)
	copy(out, txs)
	return append(out, tx)
}

// AddIncome stores an income entry and raises the income total. Income
// awards no points and is never guarded.
func (s *Session) AddIncome(ctx context.Context, in IncomeInput) (*model.Transaction, error) {
	end, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer end()

	tx := model.Transaction{
		ID:        uuid.NewString(),
		Kind:      model.KindIncome,
		Name:      strings.TrimSpace(in.Name),
		Amount:    in.Amount,
		Timestamp: s.deps.Now(),
	}
	if err := tx.Validate(); err != nil {
		return nil, s.finish(err)
	}
	if err := s.commitIncome(ctx, tx); err != nil {
		return nil, s.finish(err)
	}
	return &tx, s.finish(nil)
}

func (s *Session) commitIncome(ctx context.Context, tx model.Transaction) error {
	if err := s.deps.Store.AddTransaction(ctx, s.userID, &tx); err != nil {
		return model.Persistence("add income", err)
	}

	user, _ := s.snapshot()
	total := user.TotalIncome.Add(tx.Amount)
	patch := store.UserPatch{TotalIncome: &total}
	if err := s.deps.Store.MergeUser(ctx, s.userID, patch); err != nil {
		return model.Persistence("update income total", err)
	}

	s.mu.Lock()
	patch.Apply(s.user)
	s.income = appendUnique(s.income, tx)
	s.mu.Unlock()
	return nil
}

// AddRecurring stores a recurring definition. Its first firing is one
// interval from now.
func (s *Session) AddRecurring(ctx context.Context, in RecurringInput) (*model.RecurringDefinition, error) {
	end, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer end()

	def := model.RecurringDefinition{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Amount:    in.Amount,
		Type:      in.Type,
		Frequency: in.Frequency,
		Category:  strings.TrimSpace(in.Category),
		LastAdded: s.deps.Now(),
	}
	if err := def.Validate(); err != nil {
		return nil, s.finish(err)
	}
	if err := s.deps.Store.AddRecurring(ctx, s.userID, &def); err != nil {
		return nil, s.finish(model.Persistence("add recurring", err))
	}

	s.mu.Lock()
	s.recurring = upsertRecurring(s.recurring, def)
	s.mu.Unlock()
	return &def, s.finish(nil)
}

func upsertRecurring(defs []model.RecurringDefinition, def model.RecurringDefinition) []model.RecurringDefinition {
	out := make([]model.RecurringDefinition, 0, len(defs)+1)
	replaced := false
	for _, d := range defs {
		if d.ID == def.ID {
			out = append(out, def)
			replaced = true
			continue
		}
		out = append(out, d)
	}
	if !replaced {
		out = append(out, def)
	}
	return out
}

// SetBudget sets the budget of one period. Raising a budget that is already
// set costs points.
func (s *Session) SetBudget(ctx context.Context, period model.Period, amount decimal.Decimal) (*model.UserState, error) {
	end, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer end()

	if period == "" {
		period = s.deps.DefaultPeriod
	}
	user, _ := s.snapshot()
	delta, err := s.deps.Guard.ValidateBudgetChange(period, user.Budget.Get(period), amount, user.Points)
	if err != nil {
		return nil, s.finish(err)
	}
	return s.writeBudget(ctx, user, user.Budget.With(period, amount), delta)
}

// IncreaseItemBudget raises the budget of one period by delta for a flat
// points price.
func (s *Session) IncreaseItemBudget(ctx context.Context, period model.Period, delta decimal.Decimal) (*model.UserState, error) {
	end, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer end()

	if period == "" {
		period = s.deps.DefaultPeriod
	}
	user, _ := s.snapshot()
	pointsDelta, err := s.deps.Guard.ValidateItemBudgetIncrease(period, delta, user.Points)
	if err != nil {
		return nil, s.finish(err)
	}
	return s.writeBudget(ctx, user, user.Budget.Add(period, delta), pointsDelta)
}

func (s *Session) writeBudget(ctx context.Context, user *model.UserState, budget model.PeriodAmounts, pointsDelta int64) (*model.UserState, error) {
	points := user.Points + pointsDelta
	patch := store.UserPatch{Budget: &budget, Points: &points}
	if err := s.deps.Store.MergeUser(ctx, s.userID, patch); err != nil {
		return nil, s.finish(model.Persistence("update budget", err))
	}

	s.mu.Lock()
	patch.Apply(s.user)
	out := s.user.Clone()
	s.mu.Unlock()
	return out, s.finish(nil)
}

// ToggleTheme flips between light and dark. The first switch to dark is
// paid for; the stored record is re-read so a stale local balance cannot
// buy dark mode twice.
func (s *Session) ToggleTheme(ctx context.Context) (*model.UserState, error) {
	end, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer end()

	stored, err := s.deps.Store.GetUser(ctx, s.userID)
	if err != nil {
		return nil, s.finish(model.Persistence("load user", err))
	}

	tr, err := s.deps.Theme.Toggle(stored.Theme, stored.Points)
	if err != nil {
		return nil, s.finish(err)
	}

	patch := store.UserPatch{Theme: &tr.Next.Current, DarkModeUnlocked: tr.Next.DarkModeUnlocked}
	if tr.Charged > 0 {
		points := stored.Points - tr.Charged
		patch.Points = &points
	}
	if err := s.deps.Store.MergeUser(ctx, s.userID, patch); err != nil {
		return nil, s.finish(model.Persistence("update theme", err))
	}

	s.mu.Lock()
	if patch.Points == nil {
		s.user.Points = stored.Points
	}
	patch.Apply(s.user)
	out := s.user.Clone()
	s.mu.Unlock()

	s.log.Info("theme toggled", "theme", tr.Next.Current, "charged", tr.Charged)
	return out, s.finish(nil)
}

// RegisterPushToken stores the device token unlock notifications go to.
func (s *Session) RegisterPushToken(ctx context.Context, token string) error {
	end, err := s.begin()
	if err != nil {
		return err
	}
	defer end()

	token = strings.TrimSpace(token)
	patch := store.UserPatch{PushToken: &token}
	if err := s.deps.Store.MergeUser(ctx, s.userID, patch); err != nil {
		return s.finish(model.Persistence("register push token", err))
	}
	s.mu.Lock()
	patch.Apply(s.user)
	s.mu.Unlock()
	return s.finish(nil)
}

// FireDueRecurring realizes every due recurring definition through the
// same path as manual entries. Expenses are guarded against the default
// period. The live error slot is left alone.
func (s *Session) FireDueRecurring(ctx context.Context) ([]recurring.Result, error) {
	end, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer end()

	s.mu.RLock()
	defs := make([]model.RecurringDefinition, len(s.recurring))
	copy(defs, s.recurring)
	s.mu.RUnlock()

	results, err := recurring.FireDue(ctx, defs, s.deps.Now(), committer{s: s})
	if fired := recurring.Fired(results); fired > 0 {
		s.log.Info("recurring definitions fired", "fired", fired, "checked", len(defs))
		s.mu.Lock()
		s.changedLocked()
		s.mu.Unlock()
	}
	if err != nil {
		return results, fmt.Errorf("fire recurring: %w", err)
	}
	return results, nil
}

// committer routes fired definitions through the session. The caller holds
// the operation lock.
type committer struct {
	s *Session
}

func (c committer) CommitExpense(ctx context.Context, tx model.Transaction) error {
	_, err := c.s.commitExpense(ctx, tx, c.s.deps.DefaultPeriod)
	return err
}

func (c committer) CommitIncome(ctx context.Context, tx model.Transaction) error {
	return c.s.commitIncome(ctx, tx)
}

func (c committer) MarkFired(ctx context.Context, definitionID string, at time.Time) error {
	if err := c.s.deps.Store.SetRecurringLastAdded(ctx, c.s.userID, definitionID, at); err != nil {
		return model.Persistence("mark recurring fired", err)
	}
	c.s.mu.Lock()
	for i := range c.s.recurring {
		if c.s.recurring[i].ID == definitionID {
			c.s.recurring[i].LastAdded = at
		}
	}
	c.s.mu.Unlock()
	return nil
}

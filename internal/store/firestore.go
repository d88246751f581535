package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Field names on the aggregate record. They match what the web client
// writes, so both can share one database.
const (
	fieldEmail            = "email"
	fieldBudget           = "budget"
	fieldPoints           = "points"
	fieldTotalSpent       = "totalSpent"
	fieldTotalIncome      = "totalIncome"
	fieldUnlockedFeatures = "unlockedFeatures"
	fieldTheme            = "theme"
	fieldUnlockedDarkMode = "unlockedDarkMode"
	fieldPushToken        = "pushToken"
	fieldLastAdded        = "lastAdded"
)

type transactionDoc struct {
	Name      string    `firestore:"name"`
	Amount    float64   `firestore:"amount"`
	Category  string    `firestore:"category,omitempty"`
	Timestamp time.Time `firestore:"timestamp"`
}

type recurringDoc struct {
	Name      string    `firestore:"name"`
	Amount    float64   `firestore:"amount"`
	Type      string    `firestore:"type"`
	Frequency string    `firestore:"frequency"`
	Category  string    `firestore:"category,omitempty"`
	LastAdded time.Time `firestore:"lastAdded"`
}

// FirestoreStore implements the Store interface using Firestore
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new Firestore-backed store
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{
		client: client,
	}
}

func (s *FirestoreStore) userDoc(userID string) *firestore.DocumentRef {
	return s.client.Collection("users").Doc(userID)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// GetUser retrieves the aggregate record. A legacy flat budget is returned
// in the per-period shape without being rewritten.
func (s *FirestoreStore) GetUser(ctx context.Context, userID string) (*model.UserState, error) {
	doc, err := s.userDoc(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user, _ := decodeUser(userID, doc.Data())
	return user, nil
}

// CreateUser writes a fresh aggregate record. It fails if one exists.
func (s *FirestoreStore) CreateUser(ctx context.Context, user *model.UserState) error {
	data := map[string]interface{}{
		fieldEmail:            user.Email,
		fieldBudget:           user.Budget.Map(),
		fieldPoints:           user.Points,
		fieldTotalSpent:       user.TotalSpent.Map(),
		fieldTotalIncome:      user.TotalIncome.InexactFloat64(),
		fieldUnlockedFeatures: boolMapValue(user.Features.BoolMap()),
		fieldTheme:            string(user.Theme.Current),
		fieldUnlockedDarkMode: user.Theme.DarkModeUnlocked,
	}
	if _, err := s.userDoc(user.UserID).Create(ctx, data); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// MergeUser applies a partial write with MergeAll.
func (s *FirestoreStore) MergeUser(ctx context.Context, userID string, patch UserPatch) error {
	data := patchData(patch)
	if len(data) == 0 {
		return nil
	}
	if _, err := s.userDoc(userID).Set(ctx, data, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to merge user: %w", err)
	}
	return nil
}

// UpgradeLegacyBudget rewrites a flat budget number as the per-period map.
// It reports whether a rewrite happened and is a no-op on upgraded records.
func (s *FirestoreStore) UpgradeLegacyBudget(ctx context.Context, userID string) (bool, error) {
	ref := s.userDoc(userID)
	upgraded := false
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		upgraded = false
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		_, legacy := decodeUser(userID, doc.Data())
		if legacy == nil {
			return nil
		}
		upgraded = true
		return tx.Set(ref, map[string]interface{}{
			fieldBudget: model.UpgradeLegacyBudget(*legacy).Map(),
		}, firestore.MergeAll)
	})
	if err != nil {
		if isNotFound(err) {
			return false, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return false, fmt.Errorf("failed to upgrade budget: %w", err)
	}
	return upgraded, nil
}

// ListUserIDs pages through user document IDs.
func (s *FirestoreStore) ListUserIDs(ctx context.Context, pageSize int32, pageToken string) ([]string, string, error) {
	query, err := s.applyCursorPagination(s.client.Collection("users").Query, pageSize, pageToken)
	if err != nil {
		return nil, "", err
	}
	if pageSize <= 0 {
		pageSize = 100
	}

	iter := query.Select().Documents(ctx)
	defer iter.Stop()

	var ids []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to list users: %w", err)
		}
		ids = append(ids, doc.Ref.ID)
	}

	var nextToken string
	if len(ids) > int(pageSize) {
		ids = ids[:pageSize]
		nextToken = EncodePageToken(ids[len(ids)-1])
	}
	return ids, nextToken, nil
}

// applyCursorPagination adds OrderBy + StartAfter + Limit to a query for cursor-based pagination.
// It fetches pageSize+1 docs so the caller can detect whether a next page exists.
func (s *FirestoreStore) applyCursorPagination(query firestore.Query, pageSize int32, pageToken string) (firestore.Query, error) {
	query = query.OrderBy(firestore.DocumentID, firestore.Asc)

	if pageToken != "" {
		docID, err := DecodePageToken(pageToken)
		if err != nil {
			return query, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.StartAfter(docID)
	}

	if pageSize <= 0 {
		pageSize = 100
	}
	query = query.Limit(int(pageSize) + 1)
	return query, nil
}

// AddTransaction appends an expense or income entry.
func (s *FirestoreStore) AddTransaction(ctx context.Context, userID string, tx *model.Transaction) error {
	collection, err := CollectionFor(tx.Kind)
	if err != nil {
		return err
	}
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	doc := transactionDoc{
		Name:      tx.Name,
		Amount:    tx.Amount.InexactFloat64(),
		Category:  tx.Category,
		Timestamp: tx.Timestamp,
	}
	if _, err := s.userDoc(userID).Collection(collection).Doc(tx.ID).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to add %s: %w", tx.Kind, err)
	}
	return nil
}

// ListTransactions returns every entry of a kind, oldest first.
func (s *FirestoreStore) ListTransactions(ctx context.Context, userID string, kind model.Kind) ([]model.Transaction, error) {
	collection, err := CollectionFor(kind)
	if err != nil {
		return nil, err
	}
	docs, err := s.userDoc(userID).Collection(collection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	return decodeTransactions(kind, docs), nil
}

// AddRecurring stores a recurring definition.
func (s *FirestoreStore) AddRecurring(ctx context.Context, userID string, def *model.RecurringDefinition) error {
	if def.ID == "" {
		def.ID = uuid.New().String()
	}
	doc := recurringDoc{
		Name:      def.Name,
		Amount:    def.Amount.InexactFloat64(),
		Type:      string(def.Type),
		Frequency: string(def.Frequency),
		Category:  def.Category,
		LastAdded: def.LastAdded,
	}
	if _, err := s.userDoc(userID).Collection(CollectionRecurring).Doc(def.ID).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to add recurring: %w", err)
	}
	return nil
}

// SetRecurringLastAdded records a firing.
func (s *FirestoreStore) SetRecurringLastAdded(ctx context.Context, userID, definitionID string, at time.Time) error {
	ref := s.userDoc(userID).Collection(CollectionRecurring).Doc(definitionID)
	if _, err := ref.Update(ctx, []firestore.Update{{Path: fieldLastAdded, Value: at}}); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("recurring %s: %w", definitionID, ErrNotFound)
		}
		return fmt.Errorf("failed to update recurring: %w", err)
	}
	return nil
}

// ListRecurring returns every recurring definition.
func (s *FirestoreStore) ListRecurring(ctx context.Context, userID string) ([]model.RecurringDefinition, error) {
	docs, err := s.userDoc(userID).Collection(CollectionRecurring).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring: %w", err)
	}
	return decodeRecurring(docs), nil
}

// Subscribe listens to a collection with Snapshots. Every change delivers
// the whole collection.
func (s *FirestoreStore) Subscribe(ctx context.Context, userID, collection string) (*Subscription, error) {
	if !validCollection(collection) {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}

	ctx, cancel := context.WithCancel(ctx)
	it := s.userDoc(userID).Collection(collection).Snapshots(ctx)
	ch := make(chan Snapshot)

	go func() {
		defer close(ch)
		defer it.Stop()
		for {
			qs, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || status.Code(err) == codes.Canceled {
					return
				}
				select {
				case ch <- Snapshot{Collection: collection, Err: fmt.Errorf("snapshot %s: %w", collection, err)}:
				case <-ctx.Done():
				}
				return
			}

			snap := Snapshot{Collection: collection}
			docs, err := qs.Documents.GetAll()
			switch {
			case err != nil:
				snap.Err = fmt.Errorf("read %s snapshot: %w", collection, err)
			case collection == CollectionRecurring:
				snap.Recurring = decodeRecurring(docs)
			case collection == CollectionIncome:
				snap.Transactions = decodeTransactions(model.KindIncome, docs)
			default:
				snap.Transactions = decodeTransactions(model.KindExpense, docs)
			}

			select {
			case ch <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()

	return NewSubscription(ch, cancel), nil
}

func decodeTransactions(kind model.Kind, docs []*firestore.DocumentSnapshot) []model.Transaction {
	out := make([]model.Transaction, 0, len(docs))
	for _, doc := range docs {
		var d transactionDoc
		if err := doc.DataTo(&d); err != nil {
			slog.Warn("skipping undecodable document", "kind", kind, "id", doc.Ref.ID, "error", err)
			continue
		}
		out = append(out, model.Transaction{
			ID:        doc.Ref.ID,
			Kind:      kind,
			Name:      d.Name,
			Amount:    decimal.NewFromFloat(d.Amount),
			Category:  d.Category,
			Timestamp: d.Timestamp,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func decodeRecurring(docs []*firestore.DocumentSnapshot) []model.RecurringDefinition {
	out := make([]model.RecurringDefinition, 0, len(docs))
	for _, doc := range docs {
		var d recurringDoc
		if err := doc.DataTo(&d); err != nil {
			slog.Warn("skipping undecodable document", "collection", CollectionRecurring, "id", doc.Ref.ID, "error", err)
			continue
		}
		out = append(out, model.RecurringDefinition{
			ID:        doc.Ref.ID,
			Name:      d.Name,
			Amount:    decimal.NewFromFloat(d.Amount),
			Type:      model.Kind(d.Type),
			Frequency: model.Frequency(d.Frequency),
			Category:  d.Category,
			LastAdded: d.LastAdded,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// decodeUser reads the aggregate record from raw document data. When the
// budget is still a single number, the flat value is returned as legacy.
func decodeUser(userID string, data map[string]interface{}) (*model.UserState, *decimal.Decimal) {
	u := model.NewUserState(userID, "")
	var legacy *decimal.Decimal

	if v, ok := data[fieldEmail].(string); ok {
		u.Email = v
	}
	switch b := data[fieldBudget].(type) {
	case map[string]interface{}:
		u.Budget = model.PeriodAmountsFromMap(floatMap(b))
	default:
		if f, ok := toFloat(b); ok {
			flat := decimal.NewFromFloat(f)
			legacy = &flat
			u.Budget = model.UpgradeLegacyBudget(flat)
		}
	}
	if f, ok := toFloat(data[fieldPoints]); ok {
		u.Points = int64(f)
	}
	if m, ok := data[fieldTotalSpent].(map[string]interface{}); ok {
		u.TotalSpent = model.PeriodAmountsFromMap(floatMap(m))
	}
	if f, ok := toFloat(data[fieldTotalIncome]); ok {
		u.TotalIncome = decimal.NewFromFloat(f)
	}
	if m, ok := data[fieldUnlockedFeatures].(map[string]interface{}); ok {
		for k, v := range m {
			if on, _ := v.(bool); on {
				u.Features[model.Feature(k)] = true
			}
		}
	}
	if v, ok := data[fieldTheme].(string); ok {
		if t, err := model.ParseTheme(v); err == nil {
			u.Theme.Current = t
		}
	}
	if v, ok := data[fieldUnlockedDarkMode].(bool); ok {
		u.Theme.DarkModeUnlocked = v
	}
	if v, ok := data[fieldPushToken].(string); ok {
		u.PushToken = v
	}
	return u, legacy
}

func patchData(p UserPatch) map[string]interface{} {
	data := make(map[string]interface{})
	if p.Email != nil {
		data[fieldEmail] = *p.Email
	}
	if p.Budget != nil {
		data[fieldBudget] = p.Budget.Map()
	}
	if p.Points != nil {
		data[fieldPoints] = *p.Points
	}
	if p.TotalSpent != nil {
		data[fieldTotalSpent] = p.TotalSpent.Map()
	}
	if p.TotalIncome != nil {
		data[fieldTotalIncome] = p.TotalIncome.InexactFloat64()
	}
	if flags := p.Features.BoolMap(); len(flags) > 0 {
		data[fieldUnlockedFeatures] = boolMapValue(flags)
	}
	if p.Theme != nil {
		data[fieldTheme] = string(*p.Theme)
	}
	if p.DarkModeUnlocked {
		data[fieldUnlockedDarkMode] = true
	}
	if p.PushToken != nil {
		data[fieldPushToken] = *p.PushToken
	}
	return data
}

// boolMapValue converts to the nested map form MergeAll merges field by field.
func boolMapValue(m map[string]bool) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func floatMap(m map[string]interface{}) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if f, ok := toFloat(v); ok {
			out[k] = f
		}
	}
	return out
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

var _ Store = (*FirestoreStore)(nil)

// Package export writes a user's ledger as CSV and archives it to Cloud
// Storage.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	gcsstorage "cloud.google.com/go/storage"
	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/castlemilk/pointsledger/internal/store"
)

const ContentType = "text/csv"

var header = []string{"kind", "id", "name", "category", "amount", "timestamp"}

// Destination receives finished export files.
type Destination interface {
	NewWriter(ctx context.Context, name, contentType string) io.WriteCloser
}

// Bucket is a Destination backed by a Cloud Storage bucket.
type Bucket struct {
	handle *gcsstorage.BucketHandle
}

// NewBucket wraps a bucket handle.
func NewBucket(handle *gcsstorage.BucketHandle) *Bucket {
	return &Bucket{handle: handle}
}

func (b *Bucket) NewWriter(ctx context.Context, name, contentType string) io.WriteCloser {
	w := b.handle.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

// Result describes one export.
type Result struct {
	Filename    string `json:"filename"`
	Object      string `json:"object,omitempty"`
	ContentType string `json:"contentType"`
	Expenses    int    `json:"expenses"`
	Income      int    `json:"income"`
	Data        []byte `json:"data"`
}

// Exporter reads a ledger from the store and renders it.
type Exporter struct {
	store store.Store
	dest  Destination
	now   func() time.Time
	log   *slog.Logger
}

// NewExporter creates an exporter. dest may be nil, in which case exports
// are only returned to the caller.
func NewExporter(st store.Store, dest Destination) *Exporter {
	return &Exporter{
		store: st,
		dest:  dest,
		now:   time.Now,
		log:   slog.Default().With("component", "export"),
	}
}

// Export renders every expense and income entry of userID.
func (e *Exporter) Export(ctx context.Context, userID string) (*Result, error) {
	if userID == "" {
		return nil, model.NoActiveSession()
	}

	expenses, err := e.store.ListTransactions(ctx, userID, model.KindExpense)
	if err != nil {
		return nil, model.Persistence("list expenses", err)
	}
	income, err := e.store.ListTransactions(ctx, userID, model.KindIncome)
	if err != nil {
		return nil, model.Persistence("list income", err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, expenses, income); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}

	at := e.now().UTC()
	res := &Result{
		Filename:    fmt.Sprintf("ledger-%s.csv", at.Format("20060102-150405")),
		ContentType: ContentType,
		Expenses:    len(expenses),
		Income:      len(income),
		Data:        buf.Bytes(),
	}

	if e.dest != nil {
		res.Object = ObjectName(userID, res.Filename)
		if err := upload(ctx, e.dest, res.Object, buf.Bytes()); err != nil {
			return nil, model.Persistence("upload export", err)
		}
		e.log.Info("exported ledger", "user_id", userID, "object", res.Object,
			"expenses", res.Expenses, "income", res.Income)
	}
	return res, nil
}

// ObjectName is the storage path of an export.
func ObjectName(userID, filename string) string {
	return fmt.Sprintf("exports/%s/%s", userID, filename)
}

func upload(ctx context.Context, dest Destination, name string, data []byte) error {
	w := dest.NewWriter(ctx, name, ContentType)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// WriteCSV writes expenses then income, each in chronological order.
func WriteCSV(w io.Writer, expenses, income []model.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, set := range [][]model.Transaction{expenses, income} {
		for _, t := range chronological(set) {
			row := []string{
				string(t.Kind),
				t.ID,
				t.Name,
				t.Category,
				t.Amount.StringFixed(2),
				t.Timestamp.UTC().Format(time.RFC3339),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func chronological(txs []model.Transaction) []model.Transaction {
	out := make([]model.Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/castlemilk/pointsledger/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type memoryObject struct {
	bytes.Buffer
	closed bool
}

func (o *memoryObject) Close() error {
	o.closed = true
	return nil
}

type memoryDestination struct {
	objects      map[string]*memoryObject
	contentTypes map[string]string
}

func newMemoryDestination() *memoryDestination {
	return &memoryDestination{objects: map[string]*memoryObject{}, contentTypes: map[string]string{}}
}

func (d *memoryDestination) NewWriter(_ context.Context, name, contentType string) io.WriteCloser {
	o := &memoryObject{}
	d.objects[name] = o
	d.contentTypes[name] = contentType
	return o
}

var exportTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func seed(t *testing.T, st *store.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.CreateUser(ctx, model.NewUserState("u1", "u1@example.com")))
	for _, tx := range []model.Transaction{
		{ID: "e2", Kind: model.KindExpense, Name: "Lunch, large", Amount: decimal.RequireFromString("12.5"), Category: "Food", Timestamp: exportTime.Add(-time.Hour)},
		{ID: "e1", Kind: model.KindExpense, Name: "Bus", Amount: decimal.NewFromInt(3), Timestamp: exportTime.Add(-48 * time.Hour)},
		{ID: "i1", Kind: model.KindIncome, Name: "Salary", Amount: decimal.NewFromInt(2000), Timestamp: exportTime.Add(-72 * time.Hour)},
	} {
		tx := tx
		require.NoError(t, st.AddTransaction(ctx, "u1", &tx))
	}
}

func TestExport_UploadsCSV(t *testing.T) {
	st := store.NewMemoryStore()
	seed(t, st)
	dest := newMemoryDestination()
	e := NewExporter(st, dest)
	e.now = func() time.Time { return exportTime }

	res, err := e.Export(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "ledger-20240301-093000.csv", res.Filename)
	assert.Equal(t, "exports/u1/ledger-20240301-093000.csv", res.Object)
	assert.Equal(t, 2, res.Expenses)
	assert.Equal(t, 1, res.Income)

	obj, ok := dest.objects[res.Object]
	require.True(t, ok)
	assert.True(t, obj.closed)
	assert.Equal(t, ContentType, dest.contentTypes[res.Object])
	assert.Equal(t, res.Data, obj.Bytes())

	want := strings.Join([]string{
		"kind,id,name,category,amount,timestamp",
		"expense,e1,Bus,,3.00,2024-02-28T09:30:00Z",
		`expense,e2,"Lunch, large",Food,12.50,2024-03-01T08:30:00Z`,
		"income,i1,Salary,,2000.00,2024-02-27T09:30:00Z",
		"",
	}, "\n")
	assert.Equal(t, want, string(res.Data))
}

func TestExport_WithoutDestination(t *testing.T) {
	st := store.NewMemoryStore()
	seed(t, st)

	res, err := NewExporter(st, nil).Export(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, res.Object)
	assert.NotEmpty(t, res.Data)
}

func TestExport_RequiresUser(t *testing.T) {
	_, err := NewExporter(store.NewMemoryStore(), nil).Export(context.Background(), "")
	assert.ErrorIs(t, err, model.ErrNoActiveSession)
}

func TestExport_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := store.NewMockStore(ctrl)
	st.EXPECT().ListTransactions(gomock.Any(), "u1", model.KindExpense).Return(nil, errors.New("unavailable"))

	_, err := NewExporter(st, nil).Export(context.Background(), "u1")
	assert.ErrorIs(t, err, model.ErrPersistence)
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil, nil))
	assert.Equal(t, "kind,id,name,category,amount,timestamp\n", buf.String())
}

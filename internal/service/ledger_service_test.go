package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/castlemilk/pointsledger/internal/auth"
	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/castlemilk/pointsledger/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func setMonthlyBudget(t *testing.T, svc *LedgerService, ctx context.Context, amount int64) {
	t.Helper()
	_, err := svc.SetBudget(ctx, connect.NewRequest(&SetBudgetRequest{Amount: dec(amount)}))
	require.NoError(t, err)
}

func TestCreateAccount(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(t, st)
	ctx := testContextWithUser("user-1")

	resp, err := svc.CreateAccount(ctx, connect.NewRequest(&CreateAccountRequest{}))
	require.NoError(t, err)
	assert.True(t, resp.Msg.Created)
	assert.Equal(t, "user-1@test.local", resp.Msg.User.Email)
	assert.Equal(t, int64(0), resp.Msg.User.Points)
	assert.Equal(t, model.ThemeLight, resp.Msg.User.Theme.Current)

	again, err := svc.CreateAccount(ctx, connect.NewRequest(&CreateAccountRequest{}))
	require.NoError(t, err)
	assert.False(t, again.Msg.Created)
}

func TestHandlersRequireAuth(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore())
	ctx := context.Background()

	_, err := svc.GetDashboard(ctx, connect.NewRequest(&GetDashboardRequest{}))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	_, err = svc.AddExpense(ctx, connect.NewRequest(&AddExpenseRequest{Name: "x", Amount: dec(1)}))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	assert.True(t, errors.Is(err, model.ErrNoActiveSession))
	assert.Equal(t, model.KindNoActiveSession, ErrorKindOf(err))
	assert.Equal(t, "Please sign in to continue.", ErrorMessageOf(err))

	_, err = svc.ToggleTheme(ctx, connect.NewRequest(&ToggleThemeRequest{}))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
}

func TestAddExpense_AwardsAndUnlocks(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore())
	ctx := testContextWithUser("user-1")
	setMonthlyBudget(t, svc, ctx, 100)

	resp, err := svc.AddExpense(ctx, connect.NewRequest(&AddExpenseRequest{
		Name: "Lunch", Amount: dec(10), Category: "Food",
	}))
	require.NoError(t, err)

	assert.Equal(t, int64(520), resp.Msg.Points)
	assert.Equal(t, int64(520), resp.Msg.Award.Total())
	assert.Len(t, resp.Msg.Unlocked, 7)
	assert.NotEmpty(t, resp.Msg.Expense.ID)

	dash, err := svc.GetDashboard(ctx, connect.NewRequest(&GetDashboardRequest{}))
	require.NoError(t, err)
	d := dash.Msg.Dashboard
	assert.True(t, d.Summary.Totals.Monthly.Equal(dec(10)))
	require.Len(t, d.Summary.ByCategory, 1)
	assert.Equal(t, "Food", d.Summary.ByCategory[0].Category)
	assert.Nil(t, d.LastError)
}

func TestAddExpense_BudgetExceededMapsToFailedPrecondition(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore())
	ctx := testContextWithUser("user-1")
	setMonthlyBudget(t, svc, ctx, 50)

	_, err := svc.AddExpense(ctx, connect.NewRequest(&AddExpenseRequest{Name: "TV", Amount: dec(80)}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
	assert.Equal(t, model.KindBudgetExceeded, ErrorKindOf(err))
	assert.Equal(t, "Adding this expense will exceed your budget.", ErrorMessageOf(err))
}

func TestAddExpense_UnknownPeriod(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore())

	_, err := svc.AddExpense(testContextWithUser("user-1"), connect.NewRequest(&AddExpenseRequest{
		Name: "x", Amount: dec(1), Period: "fortnightly",
	}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	assert.Equal(t, model.KindInvalidTransaction, ErrorKindOf(err))
}

func TestAddExpense_PersistenceFailureIsUnavailable(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(t, st)
	ctx := testContextWithUser("user-1")
	setMonthlyBudget(t, svc, ctx, 100)

	st.FailWrites(errors.New("deadline exceeded"))
	_, err := svc.AddExpense(ctx, connect.NewRequest(&AddExpenseRequest{Name: "x", Amount: dec(1)}))
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))
	assert.Equal(t, model.KindPersistence, ErrorKindOf(err))
}

func TestBudgetHandlers(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore())
	ctx := testContextWithUser("user-1")
	setMonthlyBudget(t, svc, ctx, 100)

	_, err := svc.SetBudget(ctx, connect.NewRequest(&SetBudgetRequest{Amount: dec(200)}))
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
	assert.Equal(t, model.KindInsufficientPoints, ErrorKindOf(err))
	assert.Equal(t, "You need at least 50 points to increase the budget.", ErrorMessageOf(err))

	_, err = svc.AddExpense(ctx, connect.NewRequest(&AddExpenseRequest{Name: "x", Amount: dec(1)}))
	require.NoError(t, err)

	resp, err := svc.SetBudget(ctx, connect.NewRequest(&SetBudgetRequest{Amount: dec(200)}))
	require.NoError(t, err)
	assert.True(t, resp.Msg.Budget.Monthly.Equal(dec(200)))
	assert.Equal(t, int64(515-50), resp.Msg.Points)

	resp, err = svc.IncreaseItemBudget(ctx, connect.NewRequest(&IncreaseItemBudgetRequest{
		Period: "weekly", Delta: dec(25),
	}))
	require.NoError(t, err)
	assert.True(t, resp.Msg.Budget.Weekly.Equal(dec(25)))
	assert.Equal(t, int64(515-50-20), resp.Msg.Points)
}

func TestToggleTheme(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(t, st)
	ctx := testContextWithUser("user-1")

	_, err := svc.ToggleTheme(ctx, connect.NewRequest(&ToggleThemeRequest{}))
	assert.Equal(t, model.KindInsufficientPoints, ErrorKindOf(err))

	points := int64(1200)
	require.NoError(t, st.MergeUser(context.Background(), "user-1", store.UserPatch{Points: &points}))

	resp, err := svc.ToggleTheme(ctx, connect.NewRequest(&ToggleThemeRequest{}))
	require.NoError(t, err)
	assert.Equal(t, model.ThemeDark, resp.Msg.Theme.Current)
	assert.True(t, resp.Msg.Theme.DarkModeUnlocked)
	assert.Equal(t, int64(200), resp.Msg.Points)

	resp, err = svc.ToggleTheme(ctx, connect.NewRequest(&ToggleThemeRequest{}))
	require.NoError(t, err)
	assert.Equal(t, model.ThemeLight, resp.Msg.Theme.Current)
	assert.Equal(t, int64(200), resp.Msg.Points)
}

func TestAddIncomeAndRecurring(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore())
	ctx := testContextWithUser("user-1")

	inc, err := svc.AddIncome(ctx, connect.NewRequest(&AddIncomeRequest{Name: "Salary", Amount: dec(3000)}))
	require.NoError(t, err)
	assert.Equal(t, model.KindIncome, inc.Msg.Income.Kind)

	def, err := svc.AddRecurring(ctx, connect.NewRequest(&AddRecurringRequest{
		Name: "Rent", Amount: dec(900), Type: model.KindExpense, Frequency: model.FrequencyMonthly,
	}))
	require.NoError(t, err)
	assert.NotEmpty(t, def.Msg.Definition.ID)

	_, err = svc.AddRecurring(ctx, connect.NewRequest(&AddRecurringRequest{
		Name: "Rent", Amount: dec(900), Type: model.KindExpense, Frequency: "hourly",
	}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	dash, err := svc.GetDashboard(ctx, connect.NewRequest(&GetDashboardRequest{}))
	require.NoError(t, err)
	assert.True(t, dash.Msg.Dashboard.Summary.IncomeTotal.Equal(dec(3000)))
	assert.Len(t, dash.Msg.Dashboard.Recurring, 1)
}

func TestRegisterPushToken(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(t, st)
	ctx := testContextWithUser("user-1")

	_, err := svc.RegisterPushToken(ctx, connect.NewRequest(&RegisterPushTokenRequest{}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = svc.RegisterPushToken(ctx, connect.NewRequest(&RegisterPushTokenRequest{Token: "device"}))
	require.NoError(t, err)

	u, err := st.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "device", u.PushToken)
}

func TestEndSession(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(t, st)
	ctx := testContextWithUser("user-1")

	_, err := svc.registry.Acquire(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, 3, st.SubscriberCount("user-1"))

	resp, err := svc.EndSession(ctx, connect.NewRequest(&EndSessionRequest{}))
	require.NoError(t, err)
	assert.True(t, resp.Msg.Ended)
	assert.Equal(t, 0, st.SubscriberCount("user-1"))

	resp, err = svc.EndSession(ctx, connect.NewRequest(&EndSessionRequest{}))
	require.NoError(t, err)
	assert.False(t, resp.Msg.Ended)
}

func TestExportLedger(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore())
	ctx := testContextWithUser("user-1")
	setMonthlyBudget(t, svc, ctx, 100)
	_, err := svc.AddExpense(ctx, connect.NewRequest(&AddExpenseRequest{Name: "Lunch", Amount: dec(10)}))
	require.NoError(t, err)

	resp, err := svc.ExportLedger(ctx, connect.NewRequest(&ExportLedgerRequest{}))
	require.NoError(t, err)
	assert.Equal(t, int32(1), resp.Msg.Expenses)
	assert.Equal(t, "text/csv", resp.Msg.ContentType)
	assert.Contains(t, string(resp.Msg.Data), "Lunch")
}

func TestExportLedger_NotConfigured(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore())
	svc.exporter = nil

	_, err := svc.ExportLedger(testContextWithUser("user-1"), connect.NewRequest(&ExportLedgerRequest{}))
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))
}

func TestGetDashboard_StoreUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := store.NewMockStore(ctrl)
	st.EXPECT().GetUser(gomock.Any(), "user-1").Return(nil, errors.New("firestore down"))

	svc := newTestService(t, st)
	_, err := svc.GetDashboard(testContextWithUser("user-1"), connect.NewRequest(&GetDashboardRequest{}))
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))
}

func TestProcessRecurring_Auth(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(t, st)

	_, err := svc.ProcessRecurring(context.Background(), connect.NewRequest(&ProcessRecurringRequest{}))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	req := connect.NewRequest(&ProcessRecurringRequest{})
	req.Header().Set(auth.SchedulerSecretHeader, "wrong")
	_, err = svc.ProcessRecurring(context.Background(), req)
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	_, err = svc.ProcessRecurring(testContextWithUser("user-1"),
		connect.NewRequest(&ProcessRecurringRequest{UserID: "user-2"}))
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
}

func TestProcessRecurring_UserRun(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(t, st)
	ctx := testContextWithUser("user-1")

	_, err := svc.AddIncome(ctx, connect.NewRequest(&AddIncomeRequest{Name: "seed", Amount: dec(1)}))
	require.NoError(t, err)
	require.NoError(t, st.AddRecurring(context.Background(), "user-1", &model.RecurringDefinition{
		ID: "salary", Name: "Salary", Amount: dec(2000), Type: model.KindIncome,
		Frequency: model.FrequencyMonthly, LastAdded: testNow.Add(-31 * 24 * time.Hour),
	}))

	resp, err := svc.ProcessRecurring(ctx, connect.NewRequest(&ProcessRecurringRequest{}))
	require.NoError(t, err)
	assert.Equal(t, int32(1), resp.Msg.Stats.Fired)
	require.Len(t, resp.Msg.Results, 1)
	assert.True(t, resp.Msg.Results[0].Fired)
	assert.Nil(t, resp.Msg.Results[0].Error)

	defs, err := st.ListRecurring(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, defs[0].LastAdded.Equal(testNow))
}

func TestToConnectError(t *testing.T) {
	tests := []struct {
		err  error
		code connect.Code
	}{
		{model.BudgetExceeded(model.PeriodDaily, dec(1), dec(2), dec(2)), connect.CodeFailedPrecondition},
		{model.InsufficientPoints("x", 20, 1), connect.CodeFailedPrecondition},
		{model.InvalidTransaction("bad"), connect.CodeInvalidArgument},
		{model.NoActiveSession(), connect.CodeUnauthenticated},
		{model.Persistence("write", errors.New("io")), connect.CodeUnavailable},
		{errors.New("boom"), connect.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.code, connect.CodeOf(toConnectError(tt.err)))
		})
	}

	passthrough := connect.NewError(connect.CodeNotFound, errors.New("gone"))
	assert.Same(t, passthrough, toConnectError(passthrough))
	assert.NoError(t, toConnectError(nil))

	var bare *connect.Error
	require.ErrorAs(t, toConnectError(connect.NewError(connect.CodeUnauthenticated, model.NoActiveSession())), &bare)
	assert.Equal(t, connect.CodeUnauthenticated, bare.Code())
	assert.Equal(t, string(model.KindNoActiveSession), bare.Meta().Get(ErrorKindHeader))
	assert.Equal(t, "Please sign in to continue.", bare.Meta().Get(ErrorMessageHeader))
}

func TestErrorMetadataInterceptor(t *testing.T) {
	spec := connect.Spec{Procedure: AddExpenseProcedure, StreamType: connect.StreamTypeUnary}
	rejected := connect.NewError(connect.CodeUnauthenticated, model.NoActiveSessionCause(errors.New("token expired")))

	t.Run("unary", func(t *testing.T) {
		next := connect.UnaryFunc(func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
			return nil, rejected
		})
		_, err := errorMetadataInterceptor{}.WrapUnary(next)(context.Background(), &specRequest{spec: spec})
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
		assert.Equal(t, model.KindNoActiveSession, ErrorKindOf(err))
		assert.Equal(t, "Please sign in to continue.", ErrorMessageOf(err))
	})

	t.Run("streaming handler maps plain ledger errors", func(t *testing.T) {
		next := connect.StreamingHandlerFunc(func(context.Context, connect.StreamingHandlerConn) error {
			return model.Persistence("subscribe", errors.New("io"))
		})
		err := errorMetadataInterceptor{}.WrapStreamingHandler(next)(context.Background(), nil)
		assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))
		assert.Equal(t, model.KindPersistence, ErrorKindOf(err))
	})

	t.Run("success passes through", func(t *testing.T) {
		next := connect.UnaryFunc(func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
			return nil, nil
		})
		_, err := errorMetadataInterceptor{}.WrapUnary(next)(context.Background(), &specRequest{spec: spec})
		assert.NoError(t, err)
	})
}

// specRequest is the smallest connect.AnyRequest the interceptor inspects.
type specRequest struct {
	connect.AnyRequest
	spec connect.Spec
}

func (r *specRequest) Spec() connect.Spec { return r.spec }

package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/castlemilk/pointsledger/internal/auth"
	"github.com/castlemilk/pointsledger/internal/export"
	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/castlemilk/pointsledger/internal/session"
)

const LedgerServiceName = "ledger.v1.LedgerService"

// Procedure paths.
const (
	CreateAccountProcedure      = "/" + LedgerServiceName + "/CreateAccount"
	GetDashboardProcedure       = "/" + LedgerServiceName + "/GetDashboard"
	WatchDashboardProcedure     = "/" + LedgerServiceName + "/WatchDashboard"
	AddExpenseProcedure         = "/" + LedgerServiceName + "/AddExpense"
	AddIncomeProcedure          = "/" + LedgerServiceName + "/AddIncome"
	AddRecurringProcedure       = "/" + LedgerServiceName + "/AddRecurring"
	SetBudgetProcedure          = "/" + LedgerServiceName + "/SetBudget"
	IncreaseItemBudgetProcedure = "/" + LedgerServiceName + "/IncreaseItemBudget"
	ToggleThemeProcedure        = "/" + LedgerServiceName + "/ToggleTheme"
	RegisterPushTokenProcedure  = "/" + LedgerServiceName + "/RegisterPushToken"
	EndSessionProcedure         = "/" + LedgerServiceName + "/EndSession"
	ExportLedgerProcedure       = "/" + LedgerServiceName + "/ExportLedger"
	ProcessRecurringProcedure   = "/" + LedgerServiceName + "/ProcessRecurring"
)

// Options configure a LedgerService.
type Options struct {
	Exporter        *export.Exporter
	SchedulerSecret string
}

type LedgerService struct {
	registry        *session.Registry
	processor       *RecurringProcessor
	exporter        *export.Exporter
	schedulerSecret string
	log             *slog.Logger
}

func NewLedgerService(registry *session.Registry, opts Options) *LedgerService {
	return &LedgerService{
		registry:        registry,
		processor:       NewRecurringProcessor(registry),
		exporter:        opts.Exporter,
		schedulerSecret: opts.SchedulerSecret,
		log:             slog.Default().With("component", "ledger_service"),
	}
}

// Processor returns the recurring processor used by ProcessRecurring.
func (s *LedgerService) Processor() *RecurringProcessor {
	return s.processor
}

// NewLedgerServiceHandler builds an HTTP handler serving every procedure.
// The returned path is the mount point for the handler.
func NewLedgerServiceHandler(svc *LedgerService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{
		connect.WithCodec(Codec{}),
		connect.WithInterceptors(errorMetadataInterceptor{}),
	}, opts...)
	o := connect.WithHandlerOptions(opts...)

	mux := http.NewServeMux()
	mux.Handle(CreateAccountProcedure, connect.NewUnaryHandler(CreateAccountProcedure, svc.CreateAccount, o))
	mux.Handle(GetDashboardProcedure, connect.NewUnaryHandler(GetDashboardProcedure, svc.GetDashboard, o))
	mux.Handle(WatchDashboardProcedure, connect.NewServerStreamHandler(WatchDashboardProcedure, svc.WatchDashboard, o))
	mux.Handle(AddExpenseProcedure, connect.NewUnaryHandler(AddExpenseProcedure, svc.AddExpense, o))
	mux.Handle(AddIncomeProcedure, connect.NewUnaryHandler(AddIncomeProcedure, svc.AddIncome, o))
	mux.Handle(AddRecurringProcedure, connect.NewUnaryHandler(AddRecurringProcedure, svc.AddRecurring, o))
	mux.Handle(SetBudgetProcedure, connect.NewUnaryHandler(SetBudgetProcedure, svc.SetBudget, o))
	mux.Handle(IncreaseItemBudgetProcedure, connect.NewUnaryHandler(IncreaseItemBudgetProcedure, svc.IncreaseItemBudget, o))
	mux.Handle(ToggleThemeProcedure, connect.NewUnaryHandler(ToggleThemeProcedure, svc.ToggleTheme, o))
	mux.Handle(RegisterPushTokenProcedure, connect.NewUnaryHandler(RegisterPushTokenProcedure, svc.RegisterPushToken, o))
	mux.Handle(EndSessionProcedure, connect.NewUnaryHandler(EndSessionProcedure, svc.EndSession, o))
	mux.Handle(ExportLedgerProcedure, connect.NewUnaryHandler(ExportLedgerProcedure, svc.ExportLedger, o))
	mux.Handle(ProcessRecurringProcedure, connect.NewUnaryHandler(ProcessRecurringProcedure, svc.ProcessRecurring, o))
	return "/" + LedgerServiceName + "/", mux
}

// withSession runs fn on the caller's session.
func (s *LedgerService) withSession(ctx context.Context, fn func(*session.Session) error) error {
	claims, err := auth.RequireAuth(ctx)
	if err != nil {
		return toConnectError(err)
	}
	return toConnectError(s.registry.With(ctx, claims.UID, claims.Email, fn))
}

func parsePeriod(raw string) (model.Period, error) {
	p, err := model.ParsePeriod(raw)
	if err != nil {
		return "", toConnectError(model.InvalidTransaction(err.Error()))
	}
	return p, nil
}

// CreateAccount writes the signup record if the caller has none.
func (s *LedgerService) CreateAccount(ctx context.Context, req *connect.Request[CreateAccountRequest]) (*connect.Response[CreateAccountResponse], error) {
	claims, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}

	email := req.Msg.Email
	if email == "" {
		email = claims.Email
	}
	user, created, err := session.EnsureAccount(ctx, s.registry.Deps().Store, claims.UID, email)
	if err != nil {
		return nil, toConnectError(err)
	}
	if created {
		s.log.Info("account created", "user_id", claims.UID)
	}

	return connect.NewResponse(&CreateAccountResponse{User: user, Created: created}), nil
}

// GetDashboard returns the caller's current dashboard.
func (s *LedgerService) GetDashboard(ctx context.Context, req *connect.Request[GetDashboardRequest]) (*connect.Response[DashboardResponse], error) {
	var d session.Dashboard
	err := s.withSession(ctx, func(sess *session.Session) error {
		d = sess.Dashboard()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&DashboardResponse{Dashboard: d}), nil
}

// WatchDashboard keeps the caller's session live and streams a dashboard
// after every change until the client disconnects or the session ends.
func (s *LedgerService) WatchDashboard(ctx context.Context, req *connect.Request[WatchDashboardRequest], stream *connect.ServerStream[DashboardResponse]) error {
	claims, err := auth.RequireAuth(ctx)
	if err != nil {
		return toConnectError(err)
	}

	sess, err := s.registry.Acquire(ctx, claims.UID, claims.Email)
	if err != nil {
		return toConnectError(err)
	}
	defer s.registry.Release(sess)

	updates, stop := sess.Watch()
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-updates:
			if !ok {
				return nil
			}
			if err := stream.Send(&DashboardResponse{Dashboard: d}); err != nil {
				return err
			}
		}
	}
}

// AddExpense records an expense against the requested budget period.
func (s *LedgerService) AddExpense(ctx context.Context, req *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error) {
	period, err := parsePeriod(req.Msg.Period)
	if err != nil {
		return nil, err
	}

	var res *session.ExpenseResult
	err = s.withSession(ctx, func(sess *session.Session) error {
		var err error
		res, err = sess.AddExpense(ctx, session.ExpenseInput{
			Name:     req.Msg.Name,
			Amount:   req.Msg.Amount,
			Category: req.Msg.Category,
		}, period)
		return err
	})
	if err != nil {
		return nil, err
	}

	return connect.NewResponse(&AddExpenseResponse{
		Expense:  res.Transaction,
		Award:    res.Award,
		Points:   res.Points,
		Unlocked: res.Unlocked,
	}), nil
}

// AddIncome records an income entry.
func (s *LedgerService) AddIncome(ctx context.Context, req *connect.Request[AddIncomeRequest]) (*connect.Response[AddIncomeResponse], error) {
	var tx *model.Transaction
	err := s.withSession(ctx, func(sess *session.Session) error {
		var err error
		tx, err = sess.AddIncome(ctx, session.IncomeInput{Name: req.Msg.Name, Amount: req.Msg.Amount})
		return err
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&AddIncomeResponse{Income: *tx}), nil
}

// AddRecurring stores a recurring definition.
func (s *LedgerService) AddRecurring(ctx context.Context, req *connect.Request[AddRecurringRequest]) (*connect.Response[AddRecurringResponse], error) {
	var def *model.RecurringDefinition
	err := s.withSession(ctx, func(sess *session.Session) error {
		var err error
		def, err = sess.AddRecurring(ctx, session.RecurringInput{
			Name:      req.Msg.Name,
			Amount:    req.Msg.Amount,
			Type:      req.Msg.Type,
			Frequency: req.Msg.Frequency,
			Category:  req.Msg.Category,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&AddRecurringResponse{Definition: *def}), nil
}

// SetBudget replaces one period's budget.
func (s *LedgerService) SetBudget(ctx context.Context, req *connect.Request[SetBudgetRequest]) (*connect.Response[BudgetResponse], error) {
	period, err := parsePeriod(req.Msg.Period)
	if err != nil {
		return nil, err
	}

	var user *model.UserState
	err = s.withSession(ctx, func(sess *session.Session) error {
		var err error
		user, err = sess.SetBudget(ctx, period, req.Msg.Amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&BudgetResponse{Budget: user.Budget, Points: user.Points}), nil
}

// IncreaseItemBudget raises one period's budget by a delta.
func (s *LedgerService) IncreaseItemBudget(ctx context.Context, req *connect.Request[IncreaseItemBudgetRequest]) (*connect.Response[BudgetResponse], error) {
	period, err := parsePeriod(req.Msg.Period)
	if err != nil {
		return nil, err
	}

	var user *model.UserState
	err = s.withSession(ctx, func(sess *session.Session) error {
		var err error
		user, err = sess.IncreaseItemBudget(ctx, period, req.Msg.Delta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&BudgetResponse{Budget: user.Budget, Points: user.Points}), nil
}

// ToggleTheme flips between light and dark mode, paying for dark mode the
// first time.
func (s *LedgerService) ToggleTheme(ctx context.Context, req *connect.Request[ToggleThemeRequest]) (*connect.Response[ToggleThemeResponse], error) {
	var user *model.UserState
	err := s.withSession(ctx, func(sess *session.Session) error {
		var err error
		user, err = sess.ToggleTheme(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&ToggleThemeResponse{Theme: user.Theme, Points: user.Points}), nil
}

// RegisterPushToken stores the device token used for unlock notifications.
func (s *LedgerService) RegisterPushToken(ctx context.Context, req *connect.Request[RegisterPushTokenRequest]) (*connect.Response[RegisterPushTokenResponse], error) {
	if req.Msg.Token == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("token is required"))
	}

	err := s.withSession(ctx, func(sess *session.Session) error {
		return sess.RegisterPushToken(ctx, req.Msg.Token)
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&RegisterPushTokenResponse{}), nil
}

// EndSession closes the caller's live session and its subscriptions.
func (s *LedgerService) EndSession(ctx context.Context, req *connect.Request[EndSessionRequest]) (*connect.Response[EndSessionResponse], error) {
	claims, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	ended := s.registry.End(claims.UID)
	return connect.NewResponse(&EndSessionResponse{Ended: ended}), nil
}

// ExportLedger renders the caller's transactions as CSV.
func (s *LedgerService) ExportLedger(ctx context.Context, req *connect.Request[ExportLedgerRequest]) (*connect.Response[ExportLedgerResponse], error) {
	claims, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	if s.exporter == nil {
		return nil, connect.NewError(connect.CodeUnavailable, fmt.Errorf("export is not configured"))
	}

	res, err := s.exporter.Export(ctx, claims.UID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ExportLedgerResponse{
		Filename:    res.Filename,
		Object:      res.Object,
		ContentType: res.ContentType,
		Expenses:    int32(res.Expenses),
		Income:      int32(res.Income),
		Data:        res.Data,
	}), nil
}

// ProcessRecurring fires due recurring definitions. Authenticated callers
// process their own ledger. Without user auth the call must carry the
// scheduler secret and processes every user, or the one named in the
// request.
func (s *LedgerService) ProcessRecurring(ctx context.Context, req *connect.Request[ProcessRecurringRequest]) (*connect.Response[ProcessRecurringResponse], error) {
	if _, ok := auth.GetUserClaims(ctx); ok {
		claims, err := auth.RequireUserAccess(ctx, req.Msg.UserID)
		if err != nil {
			return nil, err
		}
		return s.processOne(ctx, claims.UID)
	}

	if !auth.CheckSchedulerSecret(s.schedulerSecret, req.Header().Get(auth.SchedulerSecretHeader)) {
		return nil, connect.NewError(connect.CodeUnauthenticated,
			fmt.Errorf("missing or invalid authentication: provide a valid auth token or %s header", auth.SchedulerSecretHeader))
	}
	s.log.Info("recurring run authenticated via scheduler secret")

	if req.Msg.UserID != "" {
		return s.processOne(ctx, req.Msg.UserID)
	}

	stats, err := s.processor.ProcessAll(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ProcessRecurringResponse{Stats: stats}), nil
}

func (s *LedgerService) processOne(ctx context.Context, userID string) (*connect.Response[ProcessRecurringResponse], error) {
	stats, results, err := s.processor.ProcessUser(ctx, userID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ProcessRecurringResponse{Stats: stats, Results: outcomes(results)}), nil
}

package service

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// Client calls a LedgerService over connect with the JSON codec.
type Client struct {
	createAccount      *connect.Client[CreateAccountRequest, CreateAccountResponse]
	getDashboard       *connect.Client[GetDashboardRequest, DashboardResponse]
	watchDashboard     *connect.Client[WatchDashboardRequest, DashboardResponse]
	addExpense         *connect.Client[AddExpenseRequest, AddExpenseResponse]
	addIncome          *connect.Client[AddIncomeRequest, AddIncomeResponse]
	addRecurring       *connect.Client[AddRecurringRequest, AddRecurringResponse]
	setBudget          *connect.Client[SetBudgetRequest, BudgetResponse]
	increaseItemBudget *connect.Client[IncreaseItemBudgetRequest, BudgetResponse]
	toggleTheme        *connect.Client[ToggleThemeRequest, ToggleThemeResponse]
	registerPushToken  *connect.Client[RegisterPushTokenRequest, RegisterPushTokenResponse]
	endSession         *connect.Client[EndSessionRequest, EndSessionResponse]
	exportLedger       *connect.Client[ExportLedgerRequest, ExportLedgerResponse]
	processRecurring   *connect.Client[ProcessRecurringRequest, ProcessRecurringResponse]
}

// NewClient creates a client for the service at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	o := connect.WithClientOptions(opts...)
	return &Client{
		createAccount:      connect.NewClient[CreateAccountRequest, CreateAccountResponse](httpClient, baseURL+CreateAccountProcedure, o),
		getDashboard:       connect.NewClient[GetDashboardRequest, DashboardResponse](httpClient, baseURL+GetDashboardProcedure, o),
		watchDashboard:     connect.NewClient[WatchDashboardRequest, DashboardResponse](httpClient, baseURL+WatchDashboardProcedure, o),
		addExpense:         connect.NewClient[AddExpenseRequest, AddExpenseResponse](httpClient, baseURL+AddExpenseProcedure, o),
		addIncome:          connect.NewClient[AddIncomeRequest, AddIncomeResponse](httpClient, baseURL+AddIncomeProcedure, o),
		addRecurring:       connect.NewClient[AddRecurringRequest, AddRecurringResponse](httpClient, baseURL+AddRecurringProcedure, o),
		setBudget:          connect.NewClient[SetBudgetRequest, BudgetResponse](httpClient, baseURL+SetBudgetProcedure, o),
		increaseItemBudget: connect.NewClient[IncreaseItemBudgetRequest, BudgetResponse](httpClient, baseURL+IncreaseItemBudgetProcedure, o),
		toggleTheme:        connect.NewClient[ToggleThemeRequest, ToggleThemeResponse](httpClient, baseURL+ToggleThemeProcedure, o),
		registerPushToken:  connect.NewClient[RegisterPushTokenRequest, RegisterPushTokenResponse](httpClient, baseURL+RegisterPushTokenProcedure, o),
		endSession:         connect.NewClient[EndSessionRequest, EndSessionResponse](httpClient, baseURL+EndSessionProcedure, o),
		exportLedger:       connect.NewClient[ExportLedgerRequest, ExportLedgerResponse](httpClient, baseURL+ExportLedgerProcedure, o),
		processRecurring:   connect.NewClient[ProcessRecurringRequest, ProcessRecurringResponse](httpClient, baseURL+ProcessRecurringProcedure, o),
	}
}

func (c *Client) CreateAccount(ctx context.Context, req *connect.Request[CreateAccountRequest]) (*connect.Response[CreateAccountResponse], error) {
	return c.createAccount.CallUnary(ctx, req)
}

func (c *Client) GetDashboard(ctx context.Context, req *connect.Request[GetDashboardRequest]) (*connect.Response[DashboardResponse], error) {
	return c.getDashboard.CallUnary(ctx, req)
}

func (c *Client) WatchDashboard(ctx context.Context, req *connect.Request[WatchDashboardRequest]) (*connect.ServerStreamForClient[DashboardResponse], error) {
	return c.watchDashboard.CallServerStream(ctx, req)
}

func (c *Client) AddExpense(ctx context.Context, req *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error) {
	return c.addExpense.CallUnary(ctx, req)
}

func (c *Client) AddIncome(ctx context.Context, req *connect.Request[AddIncomeRequest]) (*connect.Response[AddIncomeResponse], error) {
	return c.addIncome.CallUnary(ctx, req)
}

func (c *Client) AddRecurring(ctx context.Context, req *connect.Request[AddRecurringRequest]) (*connect.Response[AddRecurringResponse], error) {
	return c.addRecurring.CallUnary(ctx, req)
}

func (c *Client) SetBudget(ctx context.Context, req *connect.Request[SetBudgetRequest]) (*connect.Response[BudgetResponse], error) {
	return c.setBudget.CallUnary(ctx, req)
}

func (c *Client) IncreaseItemBudget(ctx context.Context, req *connect.Request[IncreaseItemBudgetRequest]) (*connect.Response[BudgetResponse], error) {
	return c.increaseItemBudget.CallUnary(ctx, req)
}

func (c *Client) ToggleTheme(ctx context.Context, req *connect.Request[ToggleThemeRequest]) (*connect.Response[ToggleThemeResponse], error) {
	return c.toggleTheme.CallUnary(ctx, req)
}

func (c *Client) RegisterPushToken(ctx context.Context, req *connect.Request[RegisterPushTokenRequest]) (*connect.Response[RegisterPushTokenResponse], error) {
	return c.registerPushToken.CallUnary(ctx, req)
}

func (c *Client) EndSession(ctx context.Context, req *connect.Request[EndSessionRequest]) (*connect.Response[EndSessionResponse], error) {
	return c.endSession.CallUnary(ctx, req)
}

func (c *Client) ExportLedger(ctx context.Context, req *connect.Request[ExportLedgerRequest]) (*connect.Response[ExportLedgerResponse], error) {
	return c.exportLedger.CallUnary(ctx, req)
}

func (c *Client) ProcessRecurring(ctx context.Context, req *connect.Request[ProcessRecurringRequest]) (*connect.Response[ProcessRecurringResponse], error) {
	return c.processRecurring.CallUnary(ctx, req)
}

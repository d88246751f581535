//go:build ignore
// +build ignore

package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/castlemilk/pointsledger/internal/auth"
	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/castlemilk/pointsledger/internal/service"
)

func main() {
	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8111"
	}

	userID := os.Getenv("USER_ID")
	if userID == "" {
		userID = "local-dev-user"
	}

	authToken := os.Getenv("AUTH_TOKEN")

	log.Printf("Seeding ledger for user: %s", userID)
	log.Printf("API URL: %s", apiURL)

	var opts []connect.ClientOption
	if authToken != "" {
		log.Println("Using provided auth token")
		opts = append(opts, connect.WithInterceptors(headerInterceptor(auth.AuthorizationHeader, "Bearer "+authToken)))
	} else {
		log.Println("No auth token provided - backend must be running with SKIP_AUTH=true")
		opts = append(opts, connect.WithInterceptors(headerInterceptor(auth.ImpersonateHeader, userID)))
	}

	client := service.NewClient(&http.Client{}, apiURL, opts...)
	ctx := context.Background()

	if _, err := client.CreateAccount(ctx, connect.NewRequest(&service.CreateAccountRequest{})); err != nil {
		log.Fatalf("Failed to create account: %v", err)
	}
	if err := seedBudgets(ctx, client); err != nil {
		log.Fatalf("Failed to seed budgets: %v", err)
	}
	if err := seedExpenses(ctx, client); err != nil {
		log.Fatalf("Failed to seed expenses: %v", err)
	}
	if err := seedIncome(ctx, client); err != nil {
		log.Fatalf("Failed to seed income: %v", err)
	}
	if err := seedRecurring(ctx, client); err != nil {
		log.Fatalf("Failed to seed recurring: %v", err)
	}

	resp, err := client.GetDashboard(ctx, connect.NewRequest(&service.GetDashboardRequest{}))
	if err != nil {
		log.Fatalf("Verification failed: %v", err)
	}
	d := resp.Msg.Dashboard
	log.Printf("Seeded: points=%d monthly=%s income=%s recurring=%d",
		d.User.Points, d.Summary.Totals.Monthly.StringFixed(2), d.Summary.IncomeTotal.StringFixed(2), len(d.Recurring))
}

func headerInterceptor(name, value string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			req.Header().Set(name, value)
			return next(ctx, req)
		}
	}
}

func seedBudgets(ctx context.Context, client *service.Client) error {
	log.Println("Setting budgets...")
	budgets := map[string]int64{"daily": 150, "weekly": 800, "monthly": 3500, "annual": 40000}
	for period, amount := range budgets {
		_, err := client.SetBudget(ctx, connect.NewRequest(&service.SetBudgetRequest{
			Period: period,
			Amount: decimal.NewFromInt(amount),
		}))
		if err != nil {
			return err
		}
	}
	return nil
}

func seedExpenses(ctx context.Context, client *service.Client) error {
	log.Println("Creating expenses...")
	expenses := []struct {
		name     string
		amount   string
		category string
	}{
		{"Grocery shopping at Woolworths", "156.80", "Food"},
		{"Netflix subscription", "22.99", "Entertainment"},
		{"Uber ride to work", "18.50", "Transportation"},
		{"Coffee at local cafe", "6.50", "Food"},
		{"Electricity bill", "185.00", "Utilities"},
		{"Gym membership", "65.00", ""},
	}

	for _, e := range expenses {
		resp, err := client.AddExpense(ctx, connect.NewRequest(&service.AddExpenseRequest{
			Name:     e.name,
			Amount:   decimal.RequireFromString(e.amount),
			Category: e.category,
		}))
		if err != nil {
			if service.ErrorKindOf(err) == model.KindBudgetExceeded {
				log.Printf("  skipped %s: %s", e.name, service.ErrorMessageOf(err))
				continue
			}
			return err
		}
		log.Printf("  %s (+%d points)", e.name, resp.Msg.Award.Total())
	}
	return nil
}

func seedIncome(ctx context.Context, client *service.Client) error {
	log.Println("Creating income...")
	_, err := client.AddIncome(ctx, connect.NewRequest(&service.AddIncomeRequest{
		Name:   "Salary",
		Amount: decimal.NewFromInt(6500),
	}))
	return err
}

func seedRecurring(ctx context.Context, client *service.Client) error {
	log.Println("Creating recurring transactions...")
	defs := []service.AddRecurringRequest{
		{Name: "Rent", Amount: decimal.NewFromInt(2200), Type: model.KindExpense, Frequency: model.FrequencyMonthly, Category: "Housing"},
		{Name: "Paycheck", Amount: decimal.NewFromInt(3250), Type: model.KindIncome, Frequency: model.FrequencyWeekly},
	}
	for i := range defs {
		if _, err := client.AddRecurring(ctx, connect.NewRequest(&defs[i])); err != nil {
			return err
		}
	}
	return nil
}

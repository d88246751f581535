package service

import (
	"context"
	"testing"
	"time"

	"github.com/castlemilk/pointsledger/internal/auth"
	"github.com/castlemilk/pointsledger/internal/export"
	"github.com/castlemilk/pointsledger/internal/session"
	"github.com/castlemilk/pointsledger/internal/store"
)

var testNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

const testSchedulerSecret = "tick-tock"

// testContextWithUser creates a context with authenticated user claims for testing
func testContextWithUser(userID string) context.Context {
	return auth.WithUserClaims(context.Background(), &auth.UserClaims{
		UID:   userID,
		Email: userID + "@test.local",
	})
}

// newTestService wires a service over st with a fixed clock.
func newTestService(t *testing.T, st store.Store) *LedgerService {
	t.Helper()
	reg := session.NewRegistry(context.Background(), session.Deps{
		Store: st,
		Now:   func() time.Time { return testNow },
	})
	t.Cleanup(reg.Close)
	return NewLedgerService(reg, Options{
		Exporter:        export.NewExporter(st, nil),
		SchedulerSecret: testSchedulerSecret,
	})
}

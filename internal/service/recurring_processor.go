package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/castlemilk/pointsledger/internal/recurring"
	"github.com/castlemilk/pointsledger/internal/session"
)

const recurringPageSize = 500

// ProcessStats counts what a recurring run did.
type ProcessStats struct {
	Users   int32 `json:"users"`
	Fired   int32 `json:"fired"`
	Skipped int32 `json:"skipped"`
	Refused int32 `json:"refused"`
	Errors  int32 `json:"errors"`
}

func (p *ProcessStats) add(o ProcessStats) {
	p.Users += o.Users
	p.Fired += o.Fired
	p.Skipped += o.Skipped
	p.Refused += o.Refused
	p.Errors += o.Errors
}

// RecurringProcessor fires due recurring definitions for every user.
// Each user's definitions run on that user's session so fired expenses pass
// the same guard and rewards as manual entries.
type RecurringProcessor struct {
	registry *session.Registry
	log      *slog.Logger
}

func NewRecurringProcessor(registry *session.Registry) *RecurringProcessor {
	return &RecurringProcessor{
		registry: registry,
		log:      slog.Default().With("component", "recurring_processor"),
	}
}

// ProcessUser fires the due definitions of one user.
func (p *RecurringProcessor) ProcessUser(ctx context.Context, userID string) (ProcessStats, []recurring.Result, error) {
	var results []recurring.Result
	err := p.registry.With(ctx, userID, "", func(s *session.Session) error {
		var err error
		results, err = s.FireDueRecurring(ctx)
		return err
	})

	stats := ProcessStats{Users: 1}
	for _, r := range results {
		switch {
		case r.Fired:
			stats.Fired++
		case r.Err != nil:
			stats.Refused++
		default:
			stats.Skipped++
		}
	}
	if err != nil {
		stats.Errors++
		return stats, results, err
	}
	return stats, results, nil
}

// ProcessAll pages through every user. A failure for one user is logged and
// counted; only listing failures and cancellation abort the run.
func (p *RecurringProcessor) ProcessAll(ctx context.Context) (ProcessStats, error) {
	var total ProcessStats
	st := p.registry.Deps().Store

	pageToken := ""
	for {
		ids, next, err := st.ListUserIDs(ctx, recurringPageSize, pageToken)
		if err != nil {
			return total, model.Persistence("list users", err)
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			stats, _, err := p.ProcessUser(ctx, id)
			total.add(stats)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return total, fmt.Errorf("process recurring for %s: %w", id, err)
				}
				p.log.Error("processing user failed", "user_id", id, "error", err)
			}
		}

		if next == "" {
			break
		}
		pageToken = next
	}

	p.log.Info("recurring run completed",
		"users", total.Users, "fired", total.Fired, "skipped", total.Skipped,
		"refused", total.Refused, "errors", total.Errors)
	return total, nil
}

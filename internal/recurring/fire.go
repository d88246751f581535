package recurring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/google/uuid"
)

// Committer is the manual-entry path a fired definition is routed through.
// CommitExpense must apply the budget guard and the rewards engine exactly
// as for a user-entered expense.
type Committer interface {
	CommitExpense(ctx context.Context, tx model.Transaction) error
	CommitIncome(ctx context.Context, tx model.Transaction) error
	MarkFired(ctx context.Context, definitionID string, at time.Time) error
}

// Result records what happened to one definition.
type Result struct {
	DefinitionID string             `json:"definitionId"`
	Fired        bool               `json:"fired"`
	Transaction  *model.Transaction `json:"transaction,omitempty"`
	Err          error              `json:"-"`
}

// Synthesize builds the transaction a definition realizes at now.
func Synthesize(def model.RecurringDefinition, now time.Time) model.Transaction {
	return model.Transaction{
		ID:        uuid.NewString(),
		Kind:      def.Type,
		Name:      def.Name,
		Amount:    def.Amount,
		Category:  def.Category,
		Timestamp: now,
	}
}

// Fire commits def if it is due. A refused or failed commit leaves
// lastAdded untouched so the definition fires again on the next run.
func Fire(ctx context.Context, def model.RecurringDefinition, now time.Time, c Committer) (Result, error) {
	res := Result{DefinitionID: def.ID}

	due, err := IsDue(def, now)
	if err != nil {
		res.Err = model.InvalidTransaction(err.Error())
		return res, res.Err
	}
	if !due {
		return res, nil
	}

	tx := Synthesize(def, now)
	switch tx.Kind {
	case model.KindExpense:
		err = c.CommitExpense(ctx, tx)
	case model.KindIncome:
		err = c.CommitIncome(ctx, tx)
	default:
		err = model.InvalidTransaction(fmt.Sprintf("unknown recurring type %q", tx.Kind))
	}
	if err != nil {
		res.Err = err
		return res, fmt.Errorf("fire recurring %s: %w", def.ID, err)
	}

	res.Fired = true
	res.Transaction = &tx

	if err := c.MarkFired(ctx, def.ID, now); err != nil {
		res.Err = err
		return res, fmt.Errorf("mark recurring %s fired: %w", def.ID, err)
	}
	return res, nil
}

// FireDue fires every due definition in order. Refusals are recorded and
// processing continues; a persistence failure or a cancelled context stops
// the batch.
func FireDue(ctx context.Context, defs []model.RecurringDefinition, now time.Time, c Committer) ([]Result, error) {
	results := make([]Result, 0, len(defs))
	for _, def := range defs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := Fire(ctx, def, now, c)
		results = append(results, res)
		if err == nil {
			continue
		}
		if errors.Is(err, model.ErrPersistence) || errors.Is(err, model.ErrNoActiveSession) {
			return results, err
		}
		slog.Info("recurring definition not fired",
			"component", "recurring", "definition", def.ID, "error", err)
	}
	return results, nil
}

// Fired counts the results that realized a transaction.
func Fired(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Fired {
			n++
		}
	}
	return n
}

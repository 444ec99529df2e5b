package pricing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"pricewatch-backend/internal/components/assert"
	"pricewatch-backend/internal/components/db"
	"pricewatch-backend/internal/components/telemetry"
	"pricewatch-backend/internal/scrapers/catalog"
)

const report_reconciler_reconcile = "reconciler.reconcile"

// Reconciler applies scraped items to the price table.
type Reconciler struct {
	makeTx db.MakeTx
	tel    telemetry.API
}

func NewReconciler(makeTx db.MakeTx, tel telemetry.API) Reconciler {
	assert.NotNil(makeTx)
	assert.NotNil(tel)
	return Reconciler{
		makeTx: makeTx,
		tel:    telemetry.NewScopedAPI("pricing", tel),
	}
}

// Reconcile writes every item in one transaction: known ids are overwritten and yield
// Updated, unknown ids are inserted and yield Added. Events are in item order and are
// only returned once the transaction committed.
func (r Reconciler) Reconcile(ctx context.Context, items []catalog.ScrapedItem) ([]ChangeEvent, error) {
	tx, discard, commit, err := r.makeTx(ctx)
	if err != nil {
		r.tel.ReportBroken(report_reconciler_reconcile, fmt.Errorf("begin tx: %w", err))
		return nil, err
	}
	defer discard()

	events := make([]ChangeEvent, 0, len(items))
	for _, item := range items {
		kind, err := r.apply(ctx, tx, item)
		if err != nil {
			r.tel.ReportBroken(report_reconciler_reconcile, err, item.ID)
			return nil, err
		}
		events = append(events, ChangeEvent{
			Kind:  kind,
			ID:    item.ID,
			Name:  item.Name,
			Price: item.Price,
		})
	}

	err = commit()
	if err != nil {
		r.tel.ReportBroken(report_reconciler_reconcile, fmt.Errorf("commit: %w", err))
		return nil, err
	}
	return events, nil
}

func (r Reconciler) apply(ctx context.Context, tx *db.Queries, item catalog.ScrapedItem) (ChangeKind, error) {
	_, err := tx.GetPrice(ctx, item.ID)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.CreatePrice(ctx, db.CreatePriceParams{
			ID:   item.ID,
			Name: item.Name,
			Cost: item.Price,
		})
		if err != nil {
			return 0, fmt.Errorf("create price: %w", err)
		}
		return Added, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get price: %w", err)
	}

	_, err = tx.UpdatePrice(ctx, db.UpdatePriceParams{
		ID:   item.ID,
		Name: item.Name,
		Cost: item.Price,
	})
	if err != nil {
		return 0, fmt.Errorf("update price: %w", err)
	}
	return Updated, nil
}

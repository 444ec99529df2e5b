package pricing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"pricewatch-backend/internal/components/assert"
	"pricewatch-backend/internal/components/db"
	"pricewatch-backend/internal/components/telemetry"
)

const (
	report_service_get    = "service.get"
	report_service_list   = "service.list"
	report_service_create = "service.create"
	report_service_update = "service.update"
	report_service_delete = "service.delete"
)

var (
	ErrNotFound      = errors.New("price not found")
	ErrAlreadyExists = errors.New("price already exists")
)

const DefaultListLimit = 100

// Service implements direct operations on the price table. Every successful mutation
// is broadcast right after its own commit.
type Service struct {
	qry     *db.Queries
	makeTx  db.MakeTx
	hub     Broadcaster
	metrics *telemetry.Metrics
	tel     telemetry.API
}

func NewService(
	qry *db.Queries,
	makeTx db.MakeTx,
	hub Broadcaster,
	metrics *telemetry.Metrics,
	tel telemetry.API,
) Service {
	assert.NotNil(qry)
	assert.NotNil(makeTx)
	assert.NotNil(hub)
	assert.NotNil(metrics)
	assert.NotNil(tel)
	return Service{
		qry:     qry,
		makeTx:  makeTx,
		hub:     hub,
		metrics: metrics,
		tel:     telemetry.NewScopedAPI("pricing", tel),
	}
}

func (s Service) Get(ctx context.Context, id int64) (db.Price, error) {
	price, err := s.qry.GetPrice(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Price{}, ErrNotFound
	}
	if err != nil {
		s.tel.ReportBroken(report_service_get, err, id)
		return db.Price{}, err
	}
	return price, nil
}

// List returns rows ordered by id, a non-positive limit means DefaultListLimit.
func (s Service) List(ctx context.Context, offset, limit int64) ([]db.Price, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	prices, err := s.qry.ListPrices(ctx, db.ListPricesParams{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.tel.ReportBroken(report_service_list, err, offset, limit)
		return nil, err
	}
	if prices == nil {
		prices = []db.Price{}
	}
	return prices, nil
}

func (s Service) Create(ctx context.Context, price db.Price) (db.Price, error) {
	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		s.tel.ReportBroken(report_service_create, fmt.Errorf("begin tx: %w", err))
		return db.Price{}, err
	}
	defer discard()

	_, err = tx.GetPrice(ctx, price.ID)
	if err == nil {
		return db.Price{}, ErrAlreadyExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.tel.ReportBroken(report_service_create, err, price.ID)
		return db.Price{}, err
	}

	err = tx.CreatePrice(ctx, db.CreatePriceParams{
		ID:   price.ID,
		Name: price.Name,
		Cost: price.Cost,
	})
	if err != nil {
		s.tel.ReportBroken(report_service_create, err, price.ID)
		return db.Price{}, err
	}
	err = commit()
	if err != nil {
		s.tel.ReportBroken(report_service_create, fmt.Errorf("commit: %w", err))
		return db.Price{}, err
	}

	s.announce(ctx, ChangeEvent{Kind: Added, ID: price.ID, Name: price.Name, Price: price.Cost})
	return price, nil
}

// Update overwrites the name and cost of an existing row, price.ID is ignored.
func (s Service) Update(ctx context.Context, id int64, price db.Price) (db.Price, error) {
	affected, err := s.qry.UpdatePrice(ctx, db.UpdatePriceParams{
		ID:   id,
		Name: price.Name,
		Cost: price.Cost,
	})
	if err != nil {
		s.tel.ReportBroken(report_service_update, err, id)
		return db.Price{}, err
	}
	if affected == 0 {
		return db.Price{}, ErrNotFound
	}

	updated := db.Price{ID: id, Name: price.Name, Cost: price.Cost}
	s.announce(ctx, ChangeEvent{Kind: Updated, ID: id, Name: updated.Name, Price: updated.Cost})
	return updated, nil
}

func (s Service) Delete(ctx context.Context, id int64) error {
	affected, err := s.qry.DeletePrice(ctx, id)
	if err != nil {
		s.tel.ReportBroken(report_service_delete, err, id)
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.announce(ctx, ChangeEvent{Kind: Deleted, ID: id})
	return nil
}

// announce broadcasts a committed change. The request may already be gone, its
// cancellation must not prune subscribers.
func (s Service) announce(ctx context.Context, e ChangeEvent) {
	Announce(context.WithoutCancel(ctx), s.hub, s.metrics, []ChangeEvent{e})
}

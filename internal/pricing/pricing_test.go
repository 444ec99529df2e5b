package pricing

import (
	"context"
	"errors"
	"pricewatch-backend/internal/components/db"
	"pricewatch-backend/internal/components/db/dbtest"
	"pricewatch-backend/internal/components/telemetry"
	"pricewatch-backend/internal/notify"
	"pricewatch-backend/internal/scrapers/catalog"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingBroadcaster) Broadcast(ctx context.Context, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func allPrices(t testing.TB, qry *db.Queries) []db.Price {
	t.Helper()
	rows, err := qry.ListPrices(context.Background(), db.ListPricesParams{Limit: 1000})
	require.NoError(t, err)
	return rows
}

func TestChangeEventMessage(t *testing.T) {
	table := []struct {
		event    ChangeEvent
		expected string
	}{
		{event: ChangeEvent{Kind: Added, ID: 501, Name: "Mixer X", Price: 4500}, expected: "Added: Mixer X with price 4500"},
		{event: ChangeEvent{Kind: Updated, ID: 501, Name: "Mixer X", Price: 4700}, expected: "Updated: Mixer X with price 4700"},
		{event: ChangeEvent{Kind: Deleted, ID: 501}, expected: "Deleted: Item with ID 501"},
	}
	for _, row := range table {
		require.Equal(t, row.expected, row.event.Message())
	}
}

func TestReconcileNewItems(t *testing.T) {
	res := dbtest.Open(t, dbtest.Params{})
	reconciler := NewReconciler(res.MakeTx, telemetry.NewRecorder())

	events, err := reconciler.Reconcile(context.Background(), []catalog.ScrapedItem{
		{ID: 501, Name: "Mixer X", Price: 4500},
		{ID: 502, Name: "Mixer Y", Price: 3200},
	})
	require.NoError(t, err)
	require.Equal(t, []ChangeEvent{
		{Kind: Added, ID: 501, Name: "Mixer X", Price: 4500},
		{Kind: Added, ID: 502, Name: "Mixer Y", Price: 3200},
	}, events)

	require.Empty(t, cmp.Diff([]db.Price{
		{ID: 501, Name: "Mixer X", Cost: 4500},
		{ID: 502, Name: "Mixer Y", Cost: 3200},
	}, allPrices(t, res.Queries)))
}

func TestReconcileKnownItem(t *testing.T) {
	res := dbtest.Open(t, dbtest.Params{
		Seed: []db.Price{{ID: 501, Name: "Mixer X", Cost: 4500}},
	})
	qry := res.Queries
	reconciler := NewReconciler(res.MakeTx, telemetry.NewRecorder())

	events, err := reconciler.Reconcile(context.Background(), []catalog.ScrapedItem{
		{ID: 501, Name: "Mixer X", Price: 4700},
	})
	require.NoError(t, err)
	require.Equal(t, []ChangeEvent{{Kind: Updated, ID: 501, Name: "Mixer X", Price: 4700}}, events)
	require.Equal(t, []db.Price{{ID: 501, Name: "Mixer X", Cost: 4700}}, allPrices(t, qry))
}

func TestReconcileIsIdempotent(t *testing.T) {
	res := dbtest.Open(t, dbtest.Params{})
	qry := res.Queries
	reconciler := NewReconciler(res.MakeTx, telemetry.NewRecorder())
	items := []catalog.ScrapedItem{
		{ID: 501, Name: "Mixer X", Price: 4500},
		{ID: 502, Name: "Mixer Y", Price: 3200},
	}

	_, err := reconciler.Reconcile(context.Background(), items)
	require.NoError(t, err)
	first := allPrices(t, qry)

	events, err := reconciler.Reconcile(context.Background(), items)
	require.NoError(t, err)
	require.Equal(t, first, allPrices(t, qry))
	for _, e := range events {
		require.Equal(t, Updated, e.Kind)
	}
	require.Len(t, events, 2)
}

func TestReconcileDuplicateIds(t *testing.T) {
	res := dbtest.Open(t, dbtest.Params{})
	reconciler := NewReconciler(res.MakeTx, telemetry.NewRecorder())

	events, err := reconciler.Reconcile(context.Background(), []catalog.ScrapedItem{
		{ID: 501, Name: "Mixer X", Price: 4500},
		{ID: 501, Name: "Mixer X", Price: 4400},
	})
	require.NoError(t, err)
	require.Equal(t, []ChangeEvent{
		{Kind: Added, ID: 501, Name: "Mixer X", Price: 4500},
		{Kind: Updated, ID: 501, Name: "Mixer X", Price: 4400},
	}, events)
	require.Equal(t, []db.Price{{ID: 501, Name: "Mixer X", Cost: 4400}}, allPrices(t, res.Queries))
}

func TestReconcileRollsBackOnFailure(t *testing.T) {
	res := dbtest.Open(t, dbtest.Params{})
	makeTx := res.MakeTx
	failingCommit := func(ctx context.Context) (*db.Queries, func() error, func() error, error) {
		tx, discard, _, err := makeTx(ctx)
		return tx, discard, func() error { return errors.New("disk full") }, err
	}
	tel := telemetry.NewRecorder()
	reconciler := NewReconciler(failingCommit, tel)

	events, err := reconciler.Reconcile(context.Background(), []catalog.ScrapedItem{
		{ID: 501, Name: "Mixer X", Price: 4500},
	})
	require.Error(t, err)
	require.Nil(t, events)
	require.Empty(t, allPrices(t, res.Queries))
	require.Len(t, tel.Reports("broken"), 1)
}

func newTestService(t testing.TB) (Service, *recordingBroadcaster) {
	res := dbtest.Open(t, dbtest.Params{})
	hub := &recordingBroadcaster{}
	service := NewService(res.Queries, res.MakeTx, hub, telemetry.NewMetrics(), telemetry.NewRecorder())
	return service, hub
}

func TestServiceCrud(t *testing.T) {
	ctx := context.Background()
	service, hub := newTestService(t)

	_, err := service.Create(ctx, db.Price{ID: 501, Name: "Mixer X", Cost: 4500})
	require.NoError(t, err)
	_, err = service.Create(ctx, db.Price{ID: 501, Name: "Mixer X", Cost: 1})
	require.ErrorIs(t, err, ErrAlreadyExists)

	price, err := service.Get(ctx, 501)
	require.NoError(t, err)
	require.Equal(t, db.Price{ID: 501, Name: "Mixer X", Cost: 4500}, price)

	updated, err := service.Update(ctx, 501, db.Price{Name: "Mixer X2", Cost: 4800})
	require.NoError(t, err)
	require.Equal(t, db.Price{ID: 501, Name: "Mixer X2", Cost: 4800}, updated)

	list, err := service.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Equal(t, []db.Price{updated}, list)

	require.NoError(t, service.Delete(ctx, 501))
	_, err = service.Get(ctx, 501)
	require.ErrorIs(t, err, ErrNotFound)

	list, err = service.List(ctx, 0, 10)
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)

	require.Equal(t, []string{
		"Added: Mixer X with price 4500",
		"Updated: Mixer X2 with price 4800",
		"Deleted: Item with ID 501",
	}, hub.messages)
}

func TestServiceMissingIds(t *testing.T) {
	ctx := context.Background()
	service, hub := newTestService(t)

	_, err := service.Get(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = service.Update(ctx, 999, db.Price{Name: "ghost", Cost: 1})
	require.ErrorIs(t, err, ErrNotFound)
	err = service.Delete(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)

	require.Empty(t, hub.messages)
}

func TestAnnounceKeepsOrder(t *testing.T) {
	hub := &recordingBroadcaster{}
	Announce(context.Background(), hub, telemetry.NewMetrics(), []ChangeEvent{
		{Kind: Added, ID: 501, Name: "Mixer X", Price: 4500},
		{Kind: Updated, ID: 502, Name: "Mixer Y", Price: 3000},
	})
	require.Equal(t, []string{
		"Added: Mixer X with price 4500",
		"Updated: Mixer Y with price 3000",
	}, hub.messages)
}

// cancellingSubscriber cancels the request context as soon as it receives a
// message, like a client that hangs up right after its write was committed.
type cancellingSubscriber struct {
	id     string
	cancel context.CancelFunc

	mu       sync.Mutex
	received []string
}

func (c *cancellingSubscriber) ID() string {
	return c.id
}

func (c *cancellingSubscriber) Send(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.received = append(c.received, message)
	c.mu.Unlock()
	c.cancel()
	return nil
}

func TestServiceBroadcastOutlivesRequest(t *testing.T) {
	res := dbtest.Open(t, dbtest.Params{Seed: []db.Price{{ID: 1, Name: "Mixer X", Cost: 4500}}})
	hub := notify.NewHub(telemetry.NewMetrics(), telemetry.NewRecorder())
	service := NewService(res.Queries, res.MakeTx, hub, telemetry.NewMetrics(), telemetry.NewRecorder())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := &cancellingSubscriber{id: "a", cancel: cancel}
	second := &cancellingSubscriber{id: "b", cancel: cancel}
	hub.Register(first)
	hub.Register(second)

	require.NoError(t, service.Delete(ctx, 1))

	require.Equal(t, 2, hub.Len())
	require.Equal(t, []string{"Deleted: Item with ID 1"}, first.received)
	require.Equal(t, []string{"Deleted: Item with ID 1"}, second.received)
}

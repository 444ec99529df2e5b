package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueries(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	database, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer database.Close()
	qry := New(database)

	_, err = qry.GetPrice(ctx, 501)
	require.ErrorIs(t, err, sql.ErrNoRows)

	err = qry.CreatePrice(ctx, CreatePriceParams{ID: 501, Name: "Mixer X", Cost: 4500})
	require.NoError(t, err)
	err = qry.CreatePrice(ctx, CreatePriceParams{ID: 501, Name: "dup", Cost: 1})
	require.Error(t, err)

	err = qry.UpsertPrice(ctx, UpsertPriceParams{ID: 502, Name: "Mixer Y", Cost: 100})
	require.NoError(t, err)
	err = qry.UpsertPrice(ctx, UpsertPriceParams{ID: 502, Name: "Mixer Y", Cost: 150})
	require.NoError(t, err)

	affected, err := qry.UpdatePrice(ctx, UpdatePriceParams{ID: 501, Name: "Mixer X", Cost: 4700})
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)
	affected, err = qry.UpdatePrice(ctx, UpdatePriceParams{ID: 999, Name: "ghost", Cost: 1})
	require.NoError(t, err)
	require.EqualValues(t, 0, affected)

	rows, err := qry.ListPrices(ctx, ListPricesParams{Limit: 10, Offset: 0})
	require.NoError(t, err)
	require.Equal(t, []Price{
		{ID: 501, Name: "Mixer X", Cost: 4700},
		{ID: 502, Name: "Mixer Y", Cost: 150},
	}, rows)

	rows, err = qry.ListPrices(ctx, ListPricesParams{Limit: 10, Offset: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	affected, err = qry.DeletePrice(ctx, 501)
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)

	count, err := qry.CountPrices(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestMakeTxDiscard(t *testing.T) {
	ctx := context.Background()

	database, err := Open(ctx, filepath.Join(t.TempDir(), "nested", "prices.db"))
	require.NoError(t, err)
	defer database.Close()
	makeTx := NewMakeTx(database)

	tx, discard, _, err := makeTx(ctx)
	require.NoError(t, err)
	err = tx.CreatePrice(ctx, CreatePriceParams{ID: 1, Name: "a", Cost: 1})
	require.NoError(t, err)
	require.NoError(t, discard())

	count, err := New(database).CountPrices(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)

	tx, discard, commit, err := makeTx(ctx)
	require.NoError(t, err)
	defer discard()
	err = tx.CreatePrice(ctx, CreatePriceParams{ID: 1, Name: "a", Cost: 1})
	require.NoError(t, err)
	require.NoError(t, commit())

	count, err = New(database).CountPrices(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestOpenEmptySource(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.Error(t, err)
}

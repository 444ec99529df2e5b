// Package dbtest sets up price databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"pricewatch-backend/internal/components/db"
	"testing"
)

type Params struct {
	// if unspecified, `:memory:` is used
	Path string
	// rows inserted before the database is handed out
	Seed []db.Price
}

type Result struct {
	DB      *sql.DB
	Queries *db.Queries
	MakeTx  db.MakeTx
}

// Open opens a price database that is closed when the test finishes.
func Open(t testing.TB, params Params) Result {
	t.Helper()

	path := ":memory:"
	if params.Path != "" && params.Path != ":memory:" {
		path = filepath.Join(t.TempDir(), params.Path)
	}
	database, err := db.Open(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		database.Close()
	})

	qry := db.New(database)
	for _, p := range params.Seed {
		err := qry.UpsertPrice(context.Background(), db.UpsertPriceParams{
			ID:   p.ID,
			Name: p.Name,
			Cost: p.Cost,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	return Result{
		DB:      database,
		Queries: qry,
		MakeTx:  db.NewMakeTx(database),
	}
}

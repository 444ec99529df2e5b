package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

func wrapOpen(err error) error {
	return fmt.Errorf("open db: %w", err)
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "libsql://") ||
		strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "http://")
}

// Open opens the price database and applies the schema.
//
// `source` is either a sqlite file path (or `:memory:`) or a libsql url
// (`libsql://...`), in which case the remote libsql driver is used.
func Open(ctx context.Context, source string) (*sql.DB, error) {
	if source == "" {
		return nil, wrapOpen(fmt.Errorf("a database source was not specified"))
	}

	var database *sql.DB
	var err error
	if isRemote(source) {
		database, err = sql.Open("libsql", source)
		if err != nil {
			return nil, wrapOpen(err)
		}
	} else {
		database, err = openSqlite(ctx, source)
		if err != nil {
			return nil, wrapOpen(err)
		}
	}

	_, err = database.ExecContext(ctx, Schema)
	if err != nil {
		database.Close()
		return nil, wrapOpen(fmt.Errorf("apply schema: %w", err))
	}
	return database, nil
}

func openSqlite(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0777)
		if err != nil {
			return nil, err
		}
	}

	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	// it also keeps `:memory:` databases alive on a single connection.
	database.SetMaxOpenConns(1)
	_, err = database.ExecContext(ctx, "PRAGMA journal_mode=WAL")
	if err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

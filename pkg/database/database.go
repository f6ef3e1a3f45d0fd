// Package database opens the backing store by URL scheme: postgres:// (or
// postgresql://) uses lib/pq, anything else is treated as a sqlite file path,
// with ":memory:" supported for tests. Stores write queries once with `?`
// placeholders; DB rebinds them for postgres.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// DB wraps *sql.DB with placeholder rebinding for the active driver.
type DB struct {
	*sql.DB
	driver string
}

// Open connects to the database identified by url and verifies the connection.
func Open(ctx context.Context, url string) (*DB, error) {
	driver := "sqlite"
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		driver = "postgres"
	}

	db, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database: ping %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// Single writer; avoids SQLITE_BUSY under concurrent conversations.
		db.SetMaxOpenConns(1)
	}
	return &DB{DB: db, driver: driver}, nil
}

// NewForTest wraps an already-open *sql.DB (e.g. sqlmock or :memory: sqlite).
func NewForTest(db *sql.DB, driver string) *DB {
	return &DB{DB: db, driver: driver}
}

// Driver reports the active driver name ("sqlite" or "postgres").
func (d *DB) Driver() string { return d.driver }

// Rebind converts `?` placeholders to `$N` when running against postgres.
func (d *DB) Rebind(query string) string {
	if d.driver != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ExecContext rebinds and executes.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.DB.ExecContext(ctx, d.Rebind(query), args...)
}

// QueryContext rebinds and queries.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.DB.QueryContext(ctx, d.Rebind(query), args...)
}

// QueryRowContext rebinds and queries a single row.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.DB.QueryRowContext(ctx, d.Rebind(query), args...)
}

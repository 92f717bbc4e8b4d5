package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// SQLDB is the database interface used by the session store.
// *sql.DB satisfies it.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Compile-time check that *sql.DB satisfies SQLDB.
var _ SQLDB = (*sql.DB)(nil)

// Dialect distinguishes placeholder syntax between drivers.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "pgx"
)

// Open opens and pings a database for the given driver ("sqlite" or "pgx").
// PRE: dsn is non-empty
// POST: returns a live pool configured for the driver
func Open(ctx context.Context, driver, dsn string) (*sql.DB, Dialect, error) {
	var dialect Dialect
	switch driver {
	case "sqlite":
		dialect = DialectSQLite
		if dsn != ":memory:" && !strings.Contains(dsn, "?") {
			dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
		}
	case "pgx":
		dialect = DialectPostgres
	default:
		return nil, "", fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open database: %w", err)
	}

	if dialect == DialectSQLite {
		// A single writer avoids SQLITE_BUSY under concurrent API requests.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("database unreachable: %w", err)
	}
	return db, dialect, nil
}

// InitDB creates the session tables if they do not exist.
// PRE: db is a valid database connection
// POST: session and session_cancelled_date tables exist
func InitDB(ctx context.Context, db SQLDB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS session (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			team_id TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			days_of_week TEXT NOT NULL,
			cadence TEXT NOT NULL DEFAULT 'none'
		)`,
		`CREATE TABLE IF NOT EXISTS session_cancelled_date (
			session_id TEXT NOT NULL REFERENCES session(id) ON DELETE CASCADE,
			cancelled_date TEXT NOT NULL,
			PRIMARY KEY (session_id, cancelled_date)
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites '?' placeholders as $1..$n for Postgres.
func rebind(d Dialect, query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
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

// Package driver defines the backend-agnostic contract for applying schema
// changes: an abstract operation set (create table, add column, indexes,
// foreign keys, ...), a small Dialect interface covering the syntax points
// where backends differ, and a shared Base implementation that dialect
// packages compose by delegation.
//
// Concrete backends (driver/mysql, driver/postgres, driver/sqlite,
// driver/mssql) register themselves with the factory at init time; importing
// driver/all enables all built-in backends.
package driver

import (
	"context"
	"database/sql"

	"go.uber.org/zap"
)

// Conn is the query primitive a Driver owns. *sql.DB satisfies it; tests
// substitute a mock. The Driver holds exclusive ownership of the handle for
// its entire lifetime and closes it exactly once.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Close() error
}

// Driver is the full operation set every dialect must provide. All methods
// report failures through their error return; argument-contract violations
// (missing table name, mismatched column/value counts) are detected before
// any SQL is built and come back through the same channel as backend errors.
type Driver interface {
	CreateTable(ctx context.Context, name string, opts TableOptions) error
	DropTable(ctx context.Context, name string) error
	RenameTable(ctx context.Context, oldName, newName string) error

	AddColumn(ctx context.Context, table, column string, spec ColumnSpec) error
	RemoveColumn(ctx context.Context, table, column string) error
	RenameColumn(ctx context.Context, table, oldName, newName string) error
	ChangeColumn(ctx context.Context, table, column string, spec ColumnSpec) error

	AddIndex(ctx context.Context, table, index string, columns []string, unique bool) error
	RemoveIndex(ctx context.Context, table, index string) error

	AddForeignKey(ctx context.Context, table, name string, columns []string, parentTable string, parentColumns []string, opts ForeignKeyOptions) error
	RemoveForeignKey(ctx context.Context, table, name string) error

	Insert(ctx context.Context, table string, columns []string, values []any) error

	// RunSQL is the sole write path to the connection: it strips the []
	// identifier escape markers, rewrites placeholders for dialects that use
	// numbered parameters, logs the final statement, and dispatches it.
	// Under dry run the statement is logged and skipped.
	RunSQL(ctx context.Context, stmt string, args ...any) error

	// All runs a read query with the same marker/placeholder handling and
	// normalizes the result to a slice of row maps regardless of the
	// underlying client's native result shape.
	All(ctx context.Context, stmt string, args ...any) ([]map[string]any, error)

	CreateMigrationsTable(ctx context.Context) error
	AddMigrationRecord(ctx context.Context, name string) error

	Close() error
}

// Dialect covers the syntax points where backends differ. The shared Base
// delegates to it; backends override only what their grammar changes.
type Dialect interface {
	Name() string

	// QuoteIdent quotes a single identifier segment. MySQL leaves names bare;
	// Postgres and SQLite double-quote with embedded quotes doubled; SQL
	// Server brackets.
	QuoteIdent(name string) string

	// MapType maps an abstract column spec onto the backend's type token.
	MapType(spec ColumnSpec) string

	// LengthClause renders "(N)" for types that take an explicit length, the
	// dialect default "(255)" for its default variable-length string type,
	// and "" for types whose storage class already encodes size.
	LengthClause(spec ColumnSpec) string

	// AutoIncrementToken is the keyword emitted after an inline PRIMARY KEY
	// marker, e.g. AUTO_INCREMENT or GENERATED BY DEFAULT AS IDENTITY.
	AutoIncrementToken() string

	SupportsUnsigned() bool

	// Placeholder returns the parameter marker for the n-th argument
	// (1-based). Dialects returning "?" skip placeholder rewriting.
	Placeholder(n int) string

	// EscapeMarkers returns what the [ and ] identifier escape markers become
	// in the final SQL: the dialect's native quote character, nothing at all,
	// or the markers themselves for bracket-quoting backends.
	EscapeMarkers() (open, close string)
}

// Config carries everything needed to open a driver. Either DB supplies a
// pre-built connection handle, or the raw parameters (plus the DSN escape
// hatch) describe how to open one.
type Config struct {
	// Kind selects the registered backend: "mysql", "postgres", "sqlite",
	// "mssql".
	Kind string

	// DSN, when set, is passed to the backend verbatim and wins over the
	// individual parameters below.
	DSN string

	Host     string
	Port     int
	User     string
	Password string
	Database string

	// Params holds dialect-specific connection extensions (e.g. charset or
	// TLS options), passed through to the backend's DSN builder.
	Params map[string]string

	// DB, when non-nil, is adopted as the owned connection; no new
	// connection is opened and DSN/Host/... are ignored.
	DB *sql.DB

	// DryRun suppresses statement execution on this driver instance: every
	// operation builds and logs its SQL, then reports success without
	// touching the connection.
	DryRun bool

	// MigrationsTable overrides the bookkeeping table name. Default
	// "migrations".
	MigrationsTable string

	// Logger receives every final statement before dispatch. Defaults to a
	// no-op logger.
	Logger *zap.Logger
}

// DefaultMigrationsTable is the bookkeeping table name used when
// Config.MigrationsTable is empty.
const DefaultMigrationsTable = "migrations"

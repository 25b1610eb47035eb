// Package sqlite implements the SQLite dialect using modernc.org/sqlite.
// Identifiers are double-quoted; operations SQLite's single-file engine
// cannot express without a table rebuild report descriptive errors instead.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // database/sql driver "sqlite"

	"migrate/driver"
)

var _ driver.Driver = (*Driver)(nil)

// init registers the "sqlite" backend with the factory.
func init() {
	driver.Register("sqlite", connect)
}

func connect(ctx context.Context, cfg driver.Config) (driver.Driver, error) {
	db := cfg.DB
	if db == nil {
		dsn := cfg.DSN
		if dsn == "" {
			dsn = cfg.Database
		}
		if strings.TrimSpace(dsn) == "" {
			return nil, fmt.Errorf("sqlite: database path must not be empty")
		}
		var err error
		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("sqlite: open: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: ping: %w", err)
		}
		// Enable foreign keys by default; ignore error if the driver doesn't
		// support the pragma.
		_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")
		db.SetMaxOpenConns(1)
	}
	return &Driver{Base: driver.NewBase(db, dialect{}, cfg)}, nil
}

// dialect carries the SQLite syntax points consumed by driver.Base.
type dialect struct{}

func (dialect) Name() string { return "sqlite" }

func (dialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (dialect) MapType(spec driver.ColumnSpec) string {
	return driver.DefaultTypeToken(spec)
}

var sizedTypes = map[driver.ColumnType]bool{
	driver.String: true,
	driver.Char:   true,
}

func (dialect) LengthClause(spec driver.ColumnSpec) string {
	return driver.SizedLengthClause(spec, sizedTypes)
}

func (dialect) AutoIncrementToken() string { return "AUTOINCREMENT" }

func (dialect) SupportsUnsigned() bool { return false }

func (dialect) Placeholder(n int) string { return "?" }

func (dialect) EscapeMarkers() (string, string) { return `"`, `"` }

// Driver is the SQLite migration driver.
type Driver struct {
	*driver.Base
}

// ChangeColumn is not supported: SQLite cannot alter column constraints in
// place, only rebuild the table. The caller owns that decision.
func (d *Driver) ChangeColumn(ctx context.Context, table, column string, spec driver.ColumnSpec) error {
	return fmt.Errorf("changeColumn: not supported by SQLite; recreate table %s instead", table)
}

// RemoveForeignKey is not supported: SQLite cannot drop constraints from an
// existing table.
func (d *Driver) RemoveForeignKey(ctx context.Context, table, name string) error {
	return fmt.Errorf("removeForeignKey: not supported by SQLite; recreate table %s instead", table)
}

// AddForeignKey is not supported outside CREATE TABLE on SQLite.
func (d *Driver) AddForeignKey(ctx context.Context, table, name string, columns []string, parentTable string, parentColumns []string, opts driver.ForeignKeyOptions) error {
	return fmt.Errorf("addForeignKey: not supported by SQLite; declare the key when creating table %s", table)
}

// CreateMigrationsTable creates the bookkeeping table if it does not already
// exist, checking sqlite_master first so repeated calls are no-ops.
func (d *Driver) CreateMigrationsTable(ctx context.Context) error {
	rows, err := d.All(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		d.MigrationsTable())
	if err != nil {
		return fmt.Errorf("sqlite: migrations table lookup: %w", err)
	}
	if len(rows) > 0 {
		return nil
	}
	return d.CreateTable(ctx, d.MigrationsTable(), d.MigrationsTableOptions(false))
}

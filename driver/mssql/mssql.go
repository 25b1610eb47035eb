// Package mssql implements the SQL Server dialect using go-mssqldb.
// Identifiers use bracket quoting, parameters use @p1..@pN placeholders, and
// column mutations go through ALTER COLUMN.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb" // database/sql driver "sqlserver"
	"github.com/microsoft/go-mssqldb/msdsn"

	"migrate/driver"
)

var _ driver.Driver = (*Driver)(nil)

// init registers the "mssql" backend with the factory.
func init() {
	driver.Register("mssql", connect)
}

func connect(ctx context.Context, cfg driver.Config) (driver.Driver, error) {
	db := cfg.DB
	if db == nil {
		connStr := dsn(cfg)
		// Validate the DSN early to fail fast on obvious mistakes.
		if _, err := msdsn.Parse(connStr); err != nil {
			return nil, fmt.Errorf("mssql: dsn: %w", err)
		}
		var err error
		db, err = sql.Open("sqlserver", connStr)
		if err != nil {
			return nil, fmt.Errorf("mssql: open: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("mssql: ping: %w", err)
		}
		db.SetMaxOpenConns(1)
	}
	return &Driver{Base: driver.NewBase(db, dialect{}, cfg)}, nil
}

// dsn assembles a sqlserver:// connection string from the raw parameters.
func dsn(cfg driver.Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 1433
	}
	s := fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
		cfg.User, cfg.Password, host, port, cfg.Database)
	for k, v := range cfg.Params {
		s += "&" + k + "=" + v
	}
	return s
}

// dialect carries the SQL Server syntax points consumed by driver.Base.
type dialect struct{}

func (dialect) Name() string { return "mssql" }

func (dialect) QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (dialect) MapType(spec driver.ColumnSpec) string {
	switch spec.Type {
	case driver.DateTime, driver.Timestamp:
		// T-SQL TIMESTAMP is a rowversion, not a point in time.
		return "DATETIME2"
	case driver.Boolean:
		return "BIT"
	case driver.Blob:
		return "VARBINARY(MAX)"
	default:
		return driver.DefaultTypeToken(spec)
	}
}

var sizedTypes = map[driver.ColumnType]bool{
	driver.String:  true,
	driver.Char:    true,
	driver.Decimal: true,
	driver.Binary:  true,
}

func (dialect) LengthClause(spec driver.ColumnSpec) string {
	return driver.SizedLengthClause(spec, sizedTypes)
}

func (dialect) AutoIncrementToken() string { return "IDENTITY(1,1)" }

func (dialect) SupportsUnsigned() bool { return false }

func (dialect) Placeholder(n int) string { return "@p" + strconv.Itoa(n) }

// EscapeMarkers keeps the [ and ] markers as-is: they are already SQL
// Server's native identifier quoting.
func (dialect) EscapeMarkers() (string, string) { return "[", "]" }

// Driver is the SQL Server migration driver.
type Driver struct {
	*driver.Base
}

// AddColumn uses ADD without the COLUMN keyword, per T-SQL grammar.
func (d *Driver) AddColumn(ctx context.Context, table, column string, spec driver.ColumnSpec) error {
	def := d.ColumnDef(column, spec, driver.ColumnDefOptions{EmitPrimaryKey: spec.PrimaryKey})
	return d.RunSQL(ctx, fmt.Sprintf("ALTER TABLE %s ADD %s",
		d.Dialect().QuoteIdent(table), def))
}

// RenameTable goes through sp_rename; T-SQL has no ALTER TABLE RENAME.
func (d *Driver) RenameTable(ctx context.Context, oldName, newName string) error {
	return d.RunSQL(ctx, fmt.Sprintf("EXEC sp_rename '%s', '%s'", oldName, newName))
}

// RenameColumn goes through sp_rename with the COLUMN object type.
func (d *Driver) RenameColumn(ctx context.Context, table, oldName, newName string) error {
	return d.RunSQL(ctx, fmt.Sprintf("EXEC sp_rename '%s.%s', '%s', 'COLUMN'",
		table, oldName, newName))
}

// ChangeColumn re-declares the column in a single ALTER COLUMN statement; the
// grammar requires restating the type.
func (d *Driver) ChangeColumn(ctx context.Context, table, column string, spec driver.ColumnSpec) error {
	if spec.Type == "" {
		return fmt.Errorf("changeColumn: SQL Server requires the column type to be restated for %s.%s", table, column)
	}
	def := d.ColumnDef(column, spec, driver.ColumnDefOptions{})
	return d.RunSQL(ctx, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s",
		d.Dialect().QuoteIdent(table), def))
}

// RemoveIndex drops an index; like MySQL, the owning table is a mandatory
// part of the statement.
func (d *Driver) RemoveIndex(ctx context.Context, table, index string) error {
	if table == "" {
		return fmt.Errorf("removeIndex: SQL Server requires a table name to drop index %s", index)
	}
	return d.RunSQL(ctx, fmt.Sprintf("DROP INDEX %s ON %s",
		d.Dialect().QuoteIdent(index), d.Dialect().QuoteIdent(table)))
}

// CreateMigrationsTable creates the bookkeeping table if it does not already
// exist, checking INFORMATION_SCHEMA first so repeated calls are no-ops.
func (d *Driver) CreateMigrationsTable(ctx context.Context) error {
	rows, err := d.All(ctx,
		"SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_NAME = ?",
		d.MigrationsTable())
	if err != nil {
		return fmt.Errorf("mssql: migrations table lookup: %w", err)
	}
	if len(rows) > 0 {
		return nil
	}
	return d.CreateTable(ctx, d.MigrationsTable(), d.MigrationsTableOptions(false))
}

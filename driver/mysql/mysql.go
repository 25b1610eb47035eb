// Package mysql implements the MySQL dialect using go-sql-driver/mysql.
// Identifiers are emitted bare (no backticks), column attributes fold into
// single CHANGE COLUMN statements, and the TEXT/BLOB families are size-tiered
// by declared length.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"

	"migrate/driver"
)

var _ driver.Driver = (*Driver)(nil)

// init registers the "mysql" backend with the factory.
func init() {
	driver.Register("mysql", connect)
}

func connect(ctx context.Context, cfg driver.Config) (driver.Driver, error) {
	db := cfg.DB
	if db == nil {
		var err error
		db, err = sql.Open("mysql", dsn(cfg))
		if err != nil {
			return nil, fmt.Errorf("mysql: open: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("mysql: ping: %w", err)
		}
		// One statement at a time on one connection.
		db.SetMaxOpenConns(1)
	}
	return &Driver{Base: driver.NewBase(db, dialect{}, cfg)}, nil
}

// dsn assembles a go-sql-driver DSN from the raw connection parameters.
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
		port = 3306
	}
	mc := gomysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", host, port)
	mc.DBName = cfg.Database
	for k, v := range cfg.Params {
		if mc.Params == nil {
			mc.Params = map[string]string{}
		}
		mc.Params[k] = v
	}
	return mc.FormatDSN()
}

// dialect carries the MySQL syntax points consumed by driver.Base.
type dialect struct{}

func (dialect) Name() string { return "mysql" }

// QuoteIdent leaves identifiers bare; MySQL DDL in this layer is emitted
// without backticks.
func (dialect) QuoteIdent(name string) string { return name }

// Size-class breakpoints for the TEXT and BLOB families. A declared length
// selects the smallest class whose capacity covers it; boundary values stay
// in the smaller class.
const (
	tinyMax   = 256
	baseMax   = 65536
	mediumMax = 16777216

	defaultTierLength = 1000
)

// tiered picks TINY/base/MEDIUM/LONG for a size-tiered family.
func tiered(family string, length int) string {
	if length <= 0 {
		length = defaultTierLength
	}
	switch {
	case length <= tinyMax:
		return "TINY" + family
	case length <= baseMax:
		return family
	case length <= mediumMax:
		return "MEDIUM" + family
	default:
		return "LONG" + family
	}
}

func (dialect) MapType(spec driver.ColumnSpec) string {
	switch spec.Type {
	case driver.Text:
		return tiered("TEXT", spec.Length)
	case driver.Blob:
		return tiered("BLOB", spec.Length)
	case driver.Boolean:
		// MySQL has no native boolean; BOOLEAN is itself an alias for this.
		return "TINYINT(1)"
	default:
		return driver.DefaultTypeToken(spec)
	}
}

var sizedTypes = map[driver.ColumnType]bool{
	driver.String:   true,
	driver.Char:     true,
	driver.Integer:  true,
	driver.SmallInt: true,
	driver.BigInt:   true,
	driver.Decimal:  true,
	driver.Binary:   true,
}

func (dialect) LengthClause(spec driver.ColumnSpec) string {
	return driver.SizedLengthClause(spec, sizedTypes)
}

func (dialect) AutoIncrementToken() string { return "AUTO_INCREMENT" }

func (dialect) SupportsUnsigned() bool { return true }

func (dialect) Placeholder(n int) string { return "?" }

func (dialect) EscapeMarkers() (string, string) { return "", "" }

// Driver is the MySQL migration driver. It shares the generic operation set
// through driver.Base and overrides the operations whose grammar is
// MySQL-specific.
type Driver struct {
	*driver.Base
}

// RenameTable uses MySQL's RENAME TABLE form.
func (d *Driver) RenameTable(ctx context.Context, oldName, newName string) error {
	return d.RunSQL(ctx, fmt.Sprintf("RENAME TABLE %s TO %s", oldName, newName))
}

// columnType reads back the full column type signature (e.g. "varchar(255)")
// from the catalog. CHANGE COLUMN requires restating the type even when only
// the name changes.
func (d *Driver) columnType(ctx context.Context, table, column string) (string, error) {
	rows, err := d.All(ctx,
		"SELECT COLUMN_TYPE FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ?",
		table, column)
	if err != nil {
		return "", fmt.Errorf("mysql: column type lookup %s.%s: %w", table, column, err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("mysql: no such column %s.%s", table, column)
	}
	colType, _ := rows[0]["COLUMN_TYPE"].(string)
	if colType == "" {
		return "", fmt.Errorf("mysql: empty column type for %s.%s", table, column)
	}
	return colType, nil
}

// RenameColumn reads the current type signature back and re-declares the
// column under its new name in a single CHANGE COLUMN statement.
func (d *Driver) RenameColumn(ctx context.Context, table, oldName, newName string) error {
	colType, err := d.columnType(ctx, table, oldName)
	if err != nil {
		return err
	}
	return d.RunSQL(ctx, fmt.Sprintf("ALTER TABLE %s CHANGE COLUMN %s %s %s",
		table, oldName, newName, colType))
}

// ChangeColumn folds all column attributes into one CHANGE COLUMN statement.
// When the spec leaves the type unset, the current type signature is read
// back first, because the grammar requires restating it regardless of what
// actually changed.
func (d *Driver) ChangeColumn(ctx context.Context, table, column string, spec driver.ColumnSpec) error {
	var def string
	if spec.Type == "" {
		colType, err := d.columnType(ctx, table, column)
		if err != nil {
			return err
		}
		def = strings.TrimRight(fmt.Sprintf("%s %s %s",
			column, colType, d.ColumnConstraint(spec, driver.ColumnDefOptions{})), " ")
	} else {
		def = d.ColumnDef(column, spec, driver.ColumnDefOptions{})
	}
	return d.RunSQL(ctx, fmt.Sprintf("ALTER TABLE %s CHANGE COLUMN %s %s",
		table, column, def))
}

// RemoveIndex drops an index. MySQL makes the owning table a mandatory part
// of the statement; a missing table name is reported through the normal
// error channel before any SQL is built.
func (d *Driver) RemoveIndex(ctx context.Context, table, index string) error {
	if table == "" {
		return fmt.Errorf("removeIndex: MySQL requires a table name to drop index %s", index)
	}
	return d.RunSQL(ctx, fmt.Sprintf("DROP INDEX %s ON %s", index, table))
}

// RemoveForeignKey uses MySQL's DROP FOREIGN KEY form.
func (d *Driver) RemoveForeignKey(ctx context.Context, table, name string) error {
	return d.RunSQL(ctx, fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", table, name))
}

// CreateMigrationsTable creates the bookkeeping table if it does not already
// exist, checking INFORMATION_SCHEMA first so repeated calls are no-ops.
func (d *Driver) CreateMigrationsTable(ctx context.Context) error {
	rows, err := d.All(ctx,
		"SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?",
		d.MigrationsTable())
	if err != nil {
		return fmt.Errorf("mysql: migrations table lookup: %w", err)
	}
	if len(rows) > 0 {
		return nil
	}
	return d.CreateTable(ctx, d.MigrationsTable(), d.MigrationsTableOptions(false))
}

// Package postgres implements the PostgreSQL dialect using the pgx v5
// database/sql driver. Identifiers are double-quoted with embedded quotes
// doubled, and parameters use numbered $1..$N placeholders rewritten from the
// portable ? form by the execution gateway.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver "pgx"

	"migrate/driver"
)

var _ driver.Driver = (*Driver)(nil)

// init registers the "postgres" backend with the factory.
func init() {
	driver.Register("postgres", connect)
}

func connect(ctx context.Context, cfg driver.Config) (driver.Driver, error) {
	db := cfg.DB
	if db == nil {
		var err error
		db, err = sql.Open("pgx", dsn(cfg))
		if err != nil {
			return nil, fmt.Errorf("postgres: open: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("postgres: ping: %w", err)
		}
		// One statement at a time on one connection.
		db.SetMaxOpenConns(1)
	}
	return &Driver{Base: driver.NewBase(db, dialect{}, cfg)}, nil
}

// dsn assembles a postgres:// URL from the raw connection parameters.
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
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", host, port),
		Path:   "/" + cfg.Database,
	}
	q := url.Values{}
	for k, v := range cfg.Params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// dialect carries the Postgres syntax points consumed by driver.Base.
type dialect struct{}

func (dialect) Name() string { return "postgres" }

func (dialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (dialect) MapType(spec driver.ColumnSpec) string {
	switch spec.Type {
	case driver.DateTime:
		return "TIMESTAMP"
	case driver.Blob, driver.Binary:
		return "BYTEA"
	default:
		return driver.DefaultTypeToken(spec)
	}
}

var sizedTypes = map[driver.ColumnType]bool{
	driver.String:  true,
	driver.Char:    true,
	driver.Decimal: true,
}

func (dialect) LengthClause(spec driver.ColumnSpec) string {
	return driver.SizedLengthClause(spec, sizedTypes)
}

func (dialect) AutoIncrementToken() string { return "GENERATED BY DEFAULT AS IDENTITY" }

func (dialect) SupportsUnsigned() bool { return false }

func (dialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (dialect) EscapeMarkers() (string, string) { return `"`, `"` }

// Driver is the Postgres migration driver. It shares the generic operation
// set through driver.Base and overrides the operations whose grammar is
// Postgres-specific.
type Driver struct {
	*driver.Base
}

// ChangeColumn rewrites nullability, uniqueness, and default value as three
// independently issued ALTER statements, in that order. The steps run in
// strict sequence; the first failure halts the remaining steps and its error
// is the one surfaced.
//
// The uniqueness toggle uses the deterministic constraint name
// <table>_<column>_unique. Dropping a constraint that does not exist is the
// caller's responsibility; no existence check is performed.
func (d *Driver) ChangeColumn(ctx context.Context, table, column string, spec driver.ColumnSpec) error {
	q := d.Dialect().QuoteIdent

	nullability := "DROP NOT NULL"
	if spec.NotNull {
		nullability = "SET NOT NULL"
	}
	if err := d.RunSQL(ctx, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s",
		q(table), q(column), nullability)); err != nil {
		return fmt.Errorf("changeColumn %s.%s nullability: %w", table, column, err)
	}

	constraint := fmt.Sprintf("%s_%s_unique", table, column)
	var uniqueness string
	if spec.Unique {
		uniqueness = fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s)",
			q(table), q(constraint), q(column))
	} else {
		uniqueness = fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s",
			q(table), q(constraint))
	}
	if err := d.RunSQL(ctx, uniqueness); err != nil {
		return fmt.Errorf("changeColumn %s.%s uniqueness: %w", table, column, err)
	}

	def := "DROP DEFAULT"
	if spec.DefaultValue != nil {
		def = "SET DEFAULT " + driver.Literal(spec.DefaultValue)
	}
	if err := d.RunSQL(ctx, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s",
		q(table), q(column), def)); err != nil {
		return fmt.Errorf("changeColumn %s.%s default: %w", table, column, err)
	}
	return nil
}

// versionPattern extracts a three-part server version, e.g. 9.0.4. Newer
// servers report two-part versions ("PostgreSQL 12.3"), which the pattern
// does not match; those fall back to the pre-9.1 creation path, which is
// harmless because the existence check has already run.
var versionPattern = regexp.MustCompile(`\d+\.\d+\.\d+`)

// supportsIfNotExists reports whether the server accepts the IF NOT EXISTS
// table-creation modifier (9.1 and later).
func (d *Driver) supportsIfNotExists(ctx context.Context) (bool, error) {
	rows, err := d.All(ctx, "SELECT version() AS version")
	if err != nil {
		return false, fmt.Errorf("postgres: version: %w", err)
	}
	if len(rows) == 0 {
		return false, nil
	}
	version, _ := rows[0]["version"].(string)
	m := versionPattern.FindString(version)
	if m == "" {
		return false, nil
	}
	parts := strings.SplitN(m, ".", 3)
	major, _ := strconv.Atoi(parts[0])
	minor, _ := strconv.Atoi(parts[1])
	return major > 9 || (major == 9 && minor >= 1), nil
}

// CreateMigrationsTable creates the bookkeeping table if it does not already
// exist. Existence is checked through information_schema first, so repeated
// calls are no-ops; on 9.1+ servers the creation additionally carries
// IF NOT EXISTS.
func (d *Driver) CreateMigrationsTable(ctx context.Context) error {
	rows, err := d.All(ctx,
		"SELECT table_name FROM information_schema.tables WHERE table_name = ?",
		d.MigrationsTable())
	if err != nil {
		return fmt.Errorf("postgres: migrations table lookup: %w", err)
	}
	if len(rows) > 0 {
		return nil
	}
	ifNotExists, err := d.supportsIfNotExists(ctx)
	if err != nil {
		return err
	}
	return d.CreateTable(ctx, d.MigrationsTable(), d.MigrationsTableOptions(ifNotExists))
}

package driver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// defaultTypeTokens is the dialect-independent fallback mapping from abstract
// column types to SQL type tokens. Dialects override only the entries whose
// representation differs.
var defaultTypeTokens = map[ColumnType]string{
	String:    "VARCHAR",
	Text:      "TEXT",
	Integer:   "INTEGER",
	SmallInt:  "SMALLINT",
	BigInt:    "BIGINT",
	Real:      "REAL",
	Date:      "DATE",
	DateTime:  "DATETIME",
	Time:      "TIME",
	Timestamp: "TIMESTAMP",
	Blob:      "BLOB",
	Binary:    "BINARY",
	Boolean:   "BOOLEAN",
	Decimal:   "DECIMAL",
	Char:      "CHAR",
}

// DefaultTypeToken returns the shared 1:1 mapping for spec.Type. Unknown
// types pass through unchanged so callers can name backend types directly.
func DefaultTypeToken(spec ColumnSpec) string {
	if tok, ok := defaultTypeTokens[spec.Type]; ok {
		return tok
	}
	return string(spec.Type)
}

// SizedLengthClause renders an explicit length clause for dialects whose
// sized types accept "(N)": the declared length when set, the conventional
// "(255)" when the dialect's default variable-length string type is chosen
// without one, and nothing for types outside the sized set.
func SizedLengthClause(spec ColumnSpec, sized map[ColumnType]bool) string {
	if !sized[spec.Type] {
		return ""
	}
	if spec.Length > 0 {
		return fmt.Sprintf("(%d)", spec.Length)
	}
	if spec.Type == String {
		return "(255)"
	}
	return ""
}

// Base provides the shared implementation of the Driver operation set. It
// owns the connection for its entire lifetime and delegates the syntax points
// that vary to its Dialect. Backend driver types embed *Base and shadow only
// the operations their grammar changes.
type Base struct {
	conn    Conn
	dialect Dialect
	log     *zap.Logger

	dryRun          bool
	migrationsTable string

	closeMu sync.Mutex
	closed  bool
}

// NewBase wraps an owned connection with the shared operation set.
func NewBase(conn Conn, d Dialect, cfg Config) *Base {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	table := cfg.MigrationsTable
	if table == "" {
		table = DefaultMigrationsTable
	}
	return &Base{
		conn:            conn,
		dialect:         d,
		log:             logger.With(zap.String("driver", d.Name())),
		dryRun:          cfg.DryRun,
		migrationsTable: table,
	}
}

// Dialect returns the dialect this driver delegates to.
func (b *Base) Dialect() Dialect { return b.dialect }

// MigrationsTable returns the bookkeeping table name.
func (b *Base) MigrationsTable() string { return b.migrationsTable }

// =========================================================================
// Column and constraint rendering
// =========================================================================

// ColumnDef renders one column definition: quoted identifier, mapped type,
// optional length clause, constraint clause. Slots are joined with single
// spaces; an absent length clause leaves its slot empty, so definitions
// without one carry a double space between type and constraints.
func (b *Base) ColumnDef(name string, spec ColumnSpec, opts ColumnDefOptions) string {
	return strings.Join([]string{
		b.dialect.QuoteIdent(name),
		b.dialect.MapType(spec),
		b.dialect.LengthClause(spec),
		b.ColumnConstraint(spec, opts),
	}, " ")
}

// ColumnConstraint renders the constraint clause as present-only tokens in a
// fixed order: UNSIGNED, primary key + auto-increment, NOT NULL, UNIQUE,
// NULL, DEFAULT. Presence is purely spec-driven; contradictory field
// combinations are passed through to the backend unchecked.
func (b *Base) ColumnConstraint(spec ColumnSpec, opts ColumnDefOptions) string {
	var tokens []string
	if spec.Unsigned && b.dialect.SupportsUnsigned() {
		tokens = append(tokens, "UNSIGNED")
	}
	if spec.PrimaryKey && opts.EmitPrimaryKey {
		tokens = append(tokens, "PRIMARY KEY")
		if spec.AutoIncrement {
			tokens = append(tokens, b.dialect.AutoIncrementToken())
		}
	}
	if spec.NotNull {
		tokens = append(tokens, "NOT NULL")
	}
	if spec.Unique {
		tokens = append(tokens, "UNIQUE")
	}
	if spec.Null {
		tokens = append(tokens, "NULL")
	}
	if spec.DefaultValue != nil {
		tokens = append(tokens, "DEFAULT", Literal(spec.DefaultValue))
	}
	return strings.Join(tokens, " ")
}

// Literal renders a default or inserted value as SQL text. Strings are
// single-quoted with embedded quotes doubled; numbers and booleans render
// literally; nil becomes NULL. This is intentionally the only escaping
// applied anywhere in this layer.
func Literal(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// columnOrder returns the deterministic rendering order for opts.Columns.
func columnOrder(opts TableOptions) []string {
	if len(opts.ColumnOrder) > 0 {
		return opts.ColumnOrder
	}
	names := make([]string, 0, len(opts.Columns))
	for name := range opts.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// =========================================================================
// Statement builders
// =========================================================================

// CreateTable builds and runs a CREATE TABLE statement. When more than one
// column is marked primary key, inline markers are disabled for every column
// and a table-level composite PRIMARY KEY clause is appended instead.
func (b *Base) CreateTable(ctx context.Context, name string, opts TableOptions) error {
	if name == "" {
		return fmt.Errorf("createTable: table name must not be empty")
	}
	if len(opts.Columns) == 0 {
		return fmt.Errorf("createTable: table %s needs at least one column", name)
	}

	order := columnOrder(opts)
	primary := make([]string, 0, len(order))
	for _, col := range order {
		if opts.Columns[col].PrimaryKey {
			primary = append(primary, col)
		}
	}
	defOpts := ColumnDefOptions{EmitPrimaryKey: len(primary) <= 1}

	defs := make([]string, 0, len(order)+1)
	for _, col := range order {
		spec, ok := opts.Columns[col]
		if !ok {
			return fmt.Errorf("createTable: column order names unknown column %s", col)
		}
		defs = append(defs, b.ColumnDef(col, spec, defOpts))
	}
	if len(primary) > 1 {
		quoted := make([]string, len(primary))
		for i, col := range primary {
			quoted[i] = b.dialect.QuoteIdent(col)
		}
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
	}

	modifier := ""
	if opts.IfNotExists {
		modifier = "IF NOT EXISTS "
	}
	stmt := fmt.Sprintf("CREATE TABLE %s%s (%s)",
		modifier, b.dialect.QuoteIdent(name), strings.Join(defs, ", "))
	return b.RunSQL(ctx, stmt)
}

// DropTable drops a table.
func (b *Base) DropTable(ctx context.Context, name string) error {
	return b.RunSQL(ctx, fmt.Sprintf("DROP TABLE %s", b.dialect.QuoteIdent(name)))
}

// RenameTable renames a table. MySQL shadows this with its RENAME TABLE form.
func (b *Base) RenameTable(ctx context.Context, oldName, newName string) error {
	return b.RunSQL(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
		b.dialect.QuoteIdent(oldName), b.dialect.QuoteIdent(newName)))
}

// AddColumn adds one column.
func (b *Base) AddColumn(ctx context.Context, table, column string, spec ColumnSpec) error {
	def := b.ColumnDef(column, spec, ColumnDefOptions{EmitPrimaryKey: spec.PrimaryKey})
	return b.RunSQL(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
		b.dialect.QuoteIdent(table), def))
}

// RemoveColumn drops one column.
func (b *Base) RemoveColumn(ctx context.Context, table, column string) error {
	return b.RunSQL(ctx, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
		b.dialect.QuoteIdent(table), b.dialect.QuoteIdent(column)))
}

// RenameColumn renames one column. MySQL shadows this: its grammar requires
// restating the column type, which is read back from the catalog first.
func (b *Base) RenameColumn(ctx context.Context, table, oldName, newName string) error {
	return b.RunSQL(ctx, fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		b.dialect.QuoteIdent(table), b.dialect.QuoteIdent(oldName), b.dialect.QuoteIdent(newName)))
}

// AddIndex creates a (possibly composite, possibly unique) index.
func (b *Base) AddIndex(ctx context.Context, table, index string, columns []string, unique bool) error {
	if len(columns) == 0 {
		return fmt.Errorf("addIndex: index %s needs at least one column", index)
	}
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = b.dialect.QuoteIdent(col)
	}
	modifier := ""
	if unique {
		modifier = "UNIQUE "
	}
	return b.RunSQL(ctx, fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
		modifier, b.dialect.QuoteIdent(index), b.dialect.QuoteIdent(table),
		strings.Join(quoted, ", ")))
}

// RemoveIndex drops an index by name. Dialects whose grammar requires the
// owning table (MySQL, SQL Server) shadow this and demand one.
func (b *Base) RemoveIndex(ctx context.Context, table, index string) error {
	return b.RunSQL(ctx, fmt.Sprintf("DROP INDEX %s", b.dialect.QuoteIdent(index)))
}

// AddForeignKey adds a named foreign key constraint. Referential actions are
// rendered uppercase only when present.
func (b *Base) AddForeignKey(ctx context.Context, table, name string, columns []string, parentTable string, parentColumns []string, opts ForeignKeyOptions) error {
	if len(columns) == 0 || len(parentColumns) == 0 {
		return fmt.Errorf("addForeignKey: %s needs columns on both sides", name)
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY(%s) REFERENCES %s(%s)",
		b.dialect.QuoteIdent(table), b.dialect.QuoteIdent(name),
		strings.Join(columns, ", "), b.dialect.QuoteIdent(parentTable),
		strings.Join(parentColumns, ", "))
	if opts.OnUpdate != "" {
		stmt += " ON UPDATE " + strings.ToUpper(string(opts.OnUpdate))
	}
	if opts.OnDelete != "" {
		stmt += " ON DELETE " + strings.ToUpper(string(opts.OnDelete))
	}
	return b.RunSQL(ctx, stmt)
}

// RemoveForeignKey drops a foreign key constraint. MySQL shadows this with
// its DROP FOREIGN KEY form.
func (b *Base) RemoveForeignKey(ctx context.Context, table, name string) error {
	return b.RunSQL(ctx, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s",
		b.dialect.QuoteIdent(table), b.dialect.QuoteIdent(name)))
}

// Insert builds and runs a single-row INSERT. The column/value counts must
// match; a mismatch is reported before any SQL is built. Values are rendered
// through Literal, i.e. textual interpolation with quote-doubling only.
func (b *Base) Insert(ctx context.Context, table string, columns []string, values []any) error {
	if len(columns) == 0 {
		return fmt.Errorf("insert into %s: no columns given", table)
	}
	if len(columns) != len(values) {
		return fmt.Errorf("insert into %s: %d columns but %d values",
			table, len(columns), len(values))
	}
	quoted := make([]string, len(columns))
	rendered := make([]string, len(values))
	for i, col := range columns {
		quoted[i] = b.dialect.QuoteIdent(col)
		rendered[i] = Literal(values[i])
	}
	return b.RunSQL(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		b.dialect.QuoteIdent(table), strings.Join(quoted, ", "),
		strings.Join(rendered, ", ")))
}

// =========================================================================
// Execution gateway
// =========================================================================

// prepare applies the two textual transformations every statement goes
// through before dispatch: the [ and ] identifier escape markers become the
// dialect's native quoting (or disappear), and ? placeholders are rewritten
// left to right for dialects using numbered parameters.
func (b *Base) prepare(stmt string) string {
	open, close := b.dialect.EscapeMarkers()
	if open != "[" || close != "]" {
		stmt = strings.ReplaceAll(stmt, "[", open)
		stmt = strings.ReplaceAll(stmt, "]", close)
	}
	if b.dialect.Placeholder(1) == "?" {
		return stmt
	}
	var sb strings.Builder
	sb.Grow(len(stmt))
	n := 0
	for _, r := range stmt {
		if r == '?' {
			n++
			sb.WriteString(b.dialect.Placeholder(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// RunSQL transforms, logs, and dispatches one statement on the owned
// connection. Under dry run the statement is logged and skipped, and success
// is reported without touching the connection.
func (b *Base) RunSQL(ctx context.Context, stmt string, args ...any) error {
	stmt = b.prepare(stmt)
	b.log.Info("run sql", zap.String("sql", stmt), zap.Any("params", args),
		zap.Bool("dry_run", b.dryRun))
	if b.dryRun {
		return nil
	}
	if _, err := b.conn.ExecContext(ctx, stmt, args...); err != nil {
		return err
	}
	return nil
}

// All runs a read query with the same marker and placeholder handling as
// RunSQL and normalizes the result into a slice of row maps. []byte column
// values are converted to strings so catalog reads behave uniformly across
// backends. Reads are not suppressed by dry run; they change nothing and
// some operations need catalog metadata to render their SQL at all.
func (b *Base) All(ctx context.Context, stmt string, args ...any) ([]map[string]any, error) {
	stmt = b.prepare(stmt)
	b.log.Debug("query", zap.String("sql", stmt), zap.Any("params", args))

	rows, err := b.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := vals[i]
			if bs, ok := v.([]byte); ok {
				v = string(bs)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Close releases the owned connection. The handle is owned exclusively by
// this driver, so Close is expected at most once per lifetime; repeated
// calls are no-ops.
func (b *Base) Close() error {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.conn.Close()
}

// =========================================================================
// Migration bookkeeping
// =========================================================================

// MigrationsTableOptions describes the bookkeeping table: an auto-increment
// integer id, the migration name, and the run_on timestamp.
func (b *Base) MigrationsTableOptions(ifNotExists bool) TableOptions {
	return TableOptions{
		Columns: map[string]ColumnSpec{
			"id":     {Type: Integer, PrimaryKey: true, AutoIncrement: true, NotNull: true},
			"name":   {Type: String, NotNull: true},
			"run_on": {Type: DateTime, NotNull: true},
		},
		ColumnOrder: []string{"id", "name", "run_on"},
		IfNotExists: ifNotExists,
	}
}

// AddMigrationRecord appends one bookkeeping row for an applied migration.
func (b *Base) AddMigrationRecord(ctx context.Context, name string) error {
	return b.Insert(ctx, b.migrationsTable,
		[]string{"name", "run_on"},
		[]any{name, time.Now().Format(RunOnFormat)})
}

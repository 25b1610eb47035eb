package driver

import "time"

// ColumnType names an abstract, database-agnostic column type. Each dialect
// maps these onto its own type tokens; unknown values pass through unchanged
// so callers can reach for backend-specific types when they must.
type ColumnType string

const (
	String   ColumnType = "string"
	Text     ColumnType = "text"
	Integer  ColumnType = "integer"
	SmallInt ColumnType = "smallint"
	BigInt   ColumnType = "bigint"
	Real     ColumnType = "real"
	Date     ColumnType = "date"
	DateTime ColumnType = "datetime"
	Time     ColumnType = "time"
	// Timestamp is an alias family: dialects that fold it into their
	// datetime representation map it the same way as DateTime.
	Timestamp ColumnType = "timestamp"
	Blob     ColumnType = "blob"
	Binary   ColumnType = "binary"
	Boolean  ColumnType = "boolean"
	Decimal  ColumnType = "decimal"
	Char     ColumnType = "char"
)

// ColumnSpec describes a single column in a schema-change operation.
//
// Length is advisory: dialects use it to pick a storage class for size-tiered
// types (TEXT/BLOB families) and to emit an explicit length clause where the
// grammar allows one. Zero means "not specified".
//
// No cross-field validation is performed. Setting both NotNull and Null
// produces invalid SQL and the backend's error is surfaced as-is; that is a
// caller mistake, not a guarded condition.
type ColumnSpec struct {
	Type          ColumnType
	Length        int
	Unsigned      bool
	PrimaryKey    bool
	AutoIncrement bool
	NotNull       bool
	Unique        bool
	Null          bool

	// DefaultValue renders literally for numbers and booleans; strings are
	// single-quoted with embedded quotes doubled. nil means no default.
	DefaultValue any
}

// ColumnDefOptions controls how a column definition is rendered.
// EmitPrimaryKey selects between an inline PRIMARY KEY marker on the column
// and a table-level constraint (used for composite primary keys).
type ColumnDefOptions struct {
	EmitPrimaryKey bool
}

// TableOptions describes the columns of a new table.
type TableOptions struct {
	Columns map[string]ColumnSpec

	// ColumnOrder fixes the rendering order of Columns. When empty, columns
	// are rendered in sorted-name order so generated DDL stays deterministic.
	ColumnOrder []string

	IfNotExists bool
}

// RefAction is a referential action for foreign keys. Values are stored
// lowercase and rendered uppercase only when present.
type RefAction string

const (
	Cascade  RefAction = "cascade"
	SetNull  RefAction = "set null"
	Restrict RefAction = "restrict"
	NoAction RefAction = "no action"
)

// ForeignKeyOptions carries the optional referential actions of a foreign
// key. Empty values emit no clause.
type ForeignKeyOptions struct {
	OnUpdate RefAction
	OnDelete RefAction
}

// MigrationRecord is one row of the bookkeeping table: which migration ran,
// and when. Rows are append-only; this layer never mutates or deletes them.
type MigrationRecord struct {
	Name  string
	RunOn time.Time
}

// RunOnFormat is the timestamp layout used for the run_on bookkeeping column.
const RunOnFormat = "2006-01-02 15:04:05"

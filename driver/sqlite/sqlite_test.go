package sqlite

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"migrate/driver"
)

func newTestDriver(t *testing.T, cfg driver.Config) (*Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	return &Driver{Base: driver.NewBase(db, dialect{}, cfg)}, mock
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	if got := (dialect{}).QuoteIdent("users"); got != `"users"` {
		t.Fatalf("quote = %q", got)
	}
	if got := (dialect{}).QuoteIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("quote doubling = %q", got)
	}
}

// TestColumnDef_AutoIncrement: SQLite spells the keyword AUTOINCREMENT and
// requires it to ride on an inline primary key.
func TestColumnDef_AutoIncrement(t *testing.T) {
	t.Parallel()

	d, _ := newTestDriver(t, driver.Config{})
	got := d.ColumnDef("id",
		driver.ColumnSpec{Type: driver.Integer, PrimaryKey: true, AutoIncrement: true, NotNull: true},
		driver.ColumnDefOptions{EmitPrimaryKey: true})
	if want := `"id" INTEGER  PRIMARY KEY AUTOINCREMENT NOT NULL`; got != want {
		t.Fatalf("def = %q, want %q", got, want)
	}
}

// TestColumnDef_UnsignedIgnored: the engine has no unsigned integers, so the
// flag drops out of the rendered constraint.
func TestColumnDef_UnsignedIgnored(t *testing.T) {
	t.Parallel()

	d, _ := newTestDriver(t, driver.Config{})
	got := d.ColumnDef("n", driver.ColumnSpec{Type: driver.Integer, Unsigned: true, NotNull: true},
		driver.ColumnDefOptions{})
	if want := `"n" INTEGER  NOT NULL`; got != want {
		t.Fatalf("def = %q, want %q", got, want)
	}
}

func TestUnsupportedOperations(t *testing.T) {
	t.Parallel()

	d, mock := newTestDriver(t, driver.Config{})
	ctx := context.Background()

	if err := d.ChangeColumn(ctx, "users", "age", driver.ColumnSpec{Type: driver.Integer}); err == nil ||
		!strings.Contains(err.Error(), "not supported by SQLite") {
		t.Fatalf("changeColumn err = %v", err)
	}
	if err := d.AddForeignKey(ctx, "orders", "fk", []string{"customer_id"}, "customers", []string{"id"},
		driver.ForeignKeyOptions{}); err == nil || !strings.Contains(err.Error(), "not supported by SQLite") {
		t.Fatalf("addForeignKey err = %v", err)
	}
	if err := d.RemoveForeignKey(ctx, "orders", "fk"); err == nil ||
		!strings.Contains(err.Error(), "not supported by SQLite") {
		t.Fatalf("removeForeignKey err = %v", err)
	}

	// None of the refusals may touch the connection.
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestPrepare_MarkersToQuotes: bracket escape markers become double quotes
// and `?` placeholders pass through untouched.
func TestPrepare_MarkersToQuotes(t *testing.T) {
	t.Parallel()

	d, mock := newTestDriver(t, driver.Config{})
	mock.ExpectQuery(`SELECT "name" FROM "users" WHERE id = ?`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("ada"))

	rows, err := d.All(context.Background(), "SELECT [name] FROM [users] WHERE id = ?", int64(7))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "ada", rows[0]["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMigrationsTable_Idempotent(t *testing.T) {
	t.Parallel()

	d, mock := newTestDriver(t, driver.Config{})
	lookup := "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?"

	mock.ExpectQuery(lookup).WithArgs("migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectExec(`CREATE TABLE "migrations" (` +
		`"id" INTEGER  PRIMARY KEY AUTOINCREMENT NOT NULL, ` +
		`"name" VARCHAR (255) NOT NULL, ` +
		`"run_on" DATETIME  NOT NULL)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lookup).WithArgs("migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("migrations"))

	ctx := context.Background()
	require.NoError(t, d.CreateMigrationsTable(ctx))
	require.NoError(t, d.CreateMigrationsTable(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestMigrationsTable_Override: the bookkeeping table name is taken from the
// configuration.
func TestMigrationsTable_Override(t *testing.T) {
	t.Parallel()

	d, mock := newTestDriver(t, driver.Config{MigrationsTable: "schema_history"})
	mock.ExpectQuery("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?").
		WithArgs("schema_history").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("schema_history"))

	require.NoError(t, d.CreateMigrationsTable(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnect_EmptyPath(t *testing.T) {
	t.Parallel()

	_, err := connect(context.Background(), driver.Config{Kind: "sqlite"})
	if err == nil || !strings.Contains(err.Error(), "database path") {
		t.Fatalf("err = %v, want empty-path error", err)
	}
}
